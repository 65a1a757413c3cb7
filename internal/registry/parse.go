package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// record is the decode target for one entry. It accepts the legacy flat
// probe keys alongside the nested probe mapping.
type record struct {
	Service `yaml:",inline"`

	ProbeURL     *string  `yaml:"probe_url"`
	ProbeMethod  *string  `yaml:"probe_method"`
	ProbeTimeout *float64 `yaml:"probe_timeout"`
	LegacyExpect []int    `yaml:"expect_status"`
}

// parse decodes a registry document. The root may be a mapping with a
// "services" key or a bare sequence. Entries that cannot be decoded are
// logged and skipped; only a document that is not YAML at all is an error.
//
// A record without a slug gets one derived from its name. Derivation is
// deterministic, so the same file always yields the same slugs.
func parse(data []byte) ([]Service, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	services := []Service{}
	if root.Kind == 0 || len(root.Content) == 0 {
		return services, nil // empty file
	}

	seq := servicesNode(root.Content[0])
	if seq == nil {
		slog.Warn("registry: no services sequence in document, treating as empty")
		return services, nil
	}

	type entry struct {
		svc     Service
		derived bool
		keep    bool
	}
	entries := make([]entry, 0, len(seq.Content))
	for i, item := range seq.Content {
		svc, derived, err := decodeRecord(item)
		if err != nil {
			slog.Warn("registry: skipping malformed record",
				"index", i, "line", item.Line, "err", err)
			continue
		}
		entries = append(entries, entry{svc: svc, derived: derived})
	}

	// Explicit slugs claim their identity first; a repeated one is skipped.
	taken := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.derived {
			continue
		}
		if taken[e.svc.Slug] {
			slog.Warn("registry: skipping record with duplicate slug",
				"index", i, "slug", e.svc.Slug)
			continue
		}
		taken[e.svc.Slug] = true
		e.keep = true
	}

	// Derived slugs never collide: they get a suffix that is stable across
	// loads as long as the record order is unchanged.
	for i := range entries {
		e := &entries[i]
		if !e.derived {
			continue
		}
		base := e.svc.Slug
		for n := 1; taken[e.svc.Slug]; n++ {
			e.svc.Slug = base + "-" + stableID(fmt.Sprintf("%s#%d", base, n), 4)
		}
		taken[e.svc.Slug] = true
		e.keep = true
	}

	for _, e := range entries {
		if e.keep {
			services = append(services, e.svc)
		}
	}
	return services, nil
}

func servicesNode(n *yaml.Node) *yaml.Node {
	switch n.Kind {
	case yaml.SequenceNode:
		return n
	case yaml.MappingNode:
		if v := mappingValue(n, "services"); v != nil && v.Kind == yaml.SequenceNode {
			return v
		}
	}
	return nil
}

// decodeRecord decodes one entry and reports whether its slug was derived
// from the name.
func decodeRecord(n *yaml.Node) (Service, bool, error) {
	if n.Kind != yaml.MappingNode {
		return Service{}, false, fmt.Errorf("record is not a mapping")
	}

	rec := record{Service: newService()}
	if err := n.Decode(&rec); err != nil {
		return Service{}, false, err
	}
	svc := rec.Service

	if mappingValue(n, "probe") == nil {
		if rec.ProbeURL != nil {
			svc.Probe.URL = *rec.ProbeURL
		}
		if rec.ProbeMethod != nil {
			svc.Probe.Method = *rec.ProbeMethod
		}
		if rec.ProbeTimeout != nil {
			svc.Probe.Timeout = *rec.ProbeTimeout
		}
		if rec.LegacyExpect != nil {
			svc.Probe.ExpectStatus = rec.LegacyExpect
		}
	}

	svc.Slug = strings.TrimSpace(svc.Slug)
	derived := svc.Slug == ""
	if derived {
		if strings.TrimSpace(svc.Name) == "" {
			return Service{}, false, fmt.Errorf("record has neither slug nor name")
		}
		// A name with no usable characters must map to the same slug on
		// every load, so the fallback is seeded by the name.
		name := svc.Name
		svc.Slug = slugify(name, func(n int) string { return stableID(name, n) })
	}
	if svc.Stats != nil && svc.Stats.Type == "" && svc.Stats.URL == "" {
		svc.Stats = nil
	}
	svc.normalize()
	return svc, derived, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
