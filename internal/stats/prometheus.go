package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/servicedeck/servicedeck/internal/registry"
)

// defaultPromFamilies is how many families are shown when extra.metrics is
// not configured.
const defaultPromFamilies = 6

// promPlugin scrapes a Prometheus text exposition and reports the summed
// value of selected metric families.
//
// extra.metrics lists the family names to show, in order. Without it the
// first families by name are shown. extra.labels optionally maps a family
// name to a display label.
type promPlugin struct {
	client *http.Client
}

func (p *promPlugin) Fetch(ctx context.Context, cfg registry.Stats) (*Result, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	mfs, err := fetchMetrics(ctx, p.client, cfg)
	if err != nil {
		return nil, fmt.Errorf("prometheus: %w", err)
	}

	names := stringList(cfg.Extra["metrics"])
	if len(names) == 0 {
		for name := range mfs {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > defaultPromFamilies {
			names = names[:defaultPromFamilies]
		}
	}
	labels := stringMap(cfg.Extra["labels"])

	res := &Result{
		Title:      "Prometheus",
		Headline:   fmt.Sprintf("%d metric families", len(mfs)),
		Items:      make([]Item, 0, len(names)),
		Highlights: []string{},
	}
	for _, name := range names {
		mf, ok := mfs[name]
		if !ok {
			continue
		}
		label := name
		if l, ok := labels[name]; ok {
			label = l
		}
		res.Items = append(res.Items, Item{
			Label: label,
			Value: strconv.FormatFloat(sumFamily(mf), 'f', -1, 64),
			Hint:  mf.GetHelp(),
		})
	}
	return res, nil
}

// fetchMetrics performs an HTTP GET to the configured URL and returns parsed
// metric families. A bearer token is sent when api_key is set.
func fetchMetrics(ctx context.Context, client *http.Client, cfg registry.Stats) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(io.LimitReader(resp.Body, maxBody))
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// stringList reads a YAML/JSON list of strings from a free-form extra value.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}
