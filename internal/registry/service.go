package registry

import (
	"strings"
)

// Defaults applied to probe settings that are absent from a record.
const (
	DefaultProbeMethod  = "GET"
	DefaultProbeTimeout = 3.0
)

// Service is one monitored service as stored in the registry file.
type Service struct {
	// Slug is the unique, immutable identity of the service.
	Slug string `yaml:"slug" json:"slug"`

	// Name is the human-facing display name.
	Name string `yaml:"name" json:"name"`

	// Container is the runtime identity (name or id) to inspect. Empty means
	// the service has no runtime binding and is judged by its probe alone.
	Container string `yaml:"container,omitempty" json:"container,omitempty"`

	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	AccessURL   string   `yaml:"access_url,omitempty" json:"access_url,omitempty"`
	Icon        string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Tags        []string `yaml:"tags" json:"tags"`

	Probe Probe  `yaml:"probe" json:"probe"`
	Stats *Stats `yaml:"stats,omitempty" json:"stats,omitempty"`

	// RequireProbe makes the probe the sole judge of Online.
	RequireProbe bool `yaml:"require_probe" json:"require_probe"`

	// Managed is informational only.
	Managed bool `yaml:"managed" json:"managed"`
}

// Probe configures the HTTP health check of a service.
type Probe struct {
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	Method string `yaml:"method" json:"method"`

	// Timeout is in seconds.
	Timeout float64 `yaml:"timeout" json:"timeout"`

	// ExpectStatus lists the acceptable response codes. Empty accepts any
	// code in [200, 400).
	ExpectStatus []int `yaml:"expect_status" json:"expect_status"`
}

// Stats selects and configures a stats plugin.
type Stats struct {
	Type   string         `yaml:"type,omitempty" json:"type,omitempty"`
	URL    string         `yaml:"url,omitempty" json:"url,omitempty"`
	APIKey string         `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Extra  map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// newService returns a Service pre-populated with default values.
func newService() Service {
	return Service{
		Tags:    []string{},
		Probe:   defaultProbe(),
		Managed: true,
	}
}

func defaultProbe() Probe {
	return Probe{
		Method:       DefaultProbeMethod,
		Timeout:      DefaultProbeTimeout,
		ExpectStatus: []int{},
	}
}

// normalize fills in defaults that a decode may have zeroed and canonicalises
// the probe method.
func (s *Service) normalize() {
	if s.Tags == nil {
		s.Tags = []string{}
	}
	s.Probe.Method = strings.ToUpper(strings.TrimSpace(s.Probe.Method))
	if s.Probe.Method == "" {
		s.Probe.Method = DefaultProbeMethod
	}
	if s.Probe.Timeout <= 0 {
		s.Probe.Timeout = DefaultProbeTimeout
	}
	if s.Probe.ExpectStatus == nil {
		s.Probe.ExpectStatus = []int{}
	}
	if s.Name == "" {
		s.Name = s.Slug
	}
}

// Payload is a create or update request. Nil fields are absent: on update
// they keep the stored value, on create they take the default.
type Payload struct {
	Slug         *string  `json:"slug,omitempty"`
	Name         *string  `json:"name,omitempty"`
	Container    *string  `json:"container,omitempty"`
	Description  *string  `json:"description,omitempty"`
	AccessURL    *string  `json:"access_url,omitempty"`
	Icon         *string  `json:"icon,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Probe        *Probe   `json:"probe,omitempty"`
	Stats        *Stats   `json:"stats,omitempty"`
	RequireProbe *bool    `json:"require_probe,omitempty"`
	Managed      *bool    `json:"managed,omitempty"`
}

// apply merges the fields present in p over s. The slug is not touched.
func (p Payload) apply(s *Service) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Container != nil {
		s.Container = *p.Container
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.AccessURL != nil {
		s.AccessURL = *p.AccessURL
	}
	if p.Icon != nil {
		s.Icon = *p.Icon
	}
	if p.Tags != nil {
		s.Tags = append([]string(nil), p.Tags...)
	}
	if p.Probe != nil {
		s.Probe = *p.Probe
	}
	if p.Stats != nil {
		st := *p.Stats
		if st.Type == "" && st.URL == "" && st.APIKey == "" && len(st.Extra) == 0 {
			s.Stats = nil
		} else {
			s.Stats = &st
		}
	}
	if p.RequireProbe != nil {
		s.RequireProbe = *p.RequireProbe
	}
	if p.Managed != nil {
		s.Managed = *p.Managed
	}
	s.normalize()
}
