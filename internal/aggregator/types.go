package aggregator

import (
	"time"

	"github.com/servicedeck/servicedeck/internal/stats"
	"github.com/servicedeck/servicedeck/internal/status"
	"github.com/servicedeck/servicedeck/internal/tristate"
)

// ServiceStatus is the live, computed status of one configured service.
// It is rebuilt on every evaluation and never persisted.
type ServiceStatus struct {
	Slug         string        `json:"slug"`
	Name         string        `json:"name"`
	Container    string        `json:"container,omitempty"`
	Image        string        `json:"image,omitempty"`
	State        string        `json:"state"`
	StatusText   string        `json:"status_text"`
	Healthy      tristate.Bool `json:"healthy"`
	Online       bool          `json:"online"`
	LatencyMs    *float64      `json:"latency_ms"`
	ResponseCode *int          `json:"response_code"`
	Endpoint     string        `json:"endpoint,omitempty"`
	AccessURL    string        `json:"access_url,omitempty"`
	Description  string        `json:"description,omitempty"`
	Message      string        `json:"message,omitempty"`
	CertDaysLeft *int          `json:"cert_days_left,omitempty"`
	LastChecked  time.Time     `json:"last_checked"`
	Managed      bool          `json:"managed"`
	Icon         string        `json:"icon,omitempty"`
	Tags         []string      `json:"tags"`
	Stats        *stats.Result `json:"stats,omitempty"`
}

// Summary holds fleet-wide counts.
type Summary struct {
	Total   int `json:"total"`
	Running int `json:"running"`
	Online  int `json:"online"`
	// Unhealthy counts services known to be unhealthy or not online.
	Unhealthy int `json:"unhealthy"`
}

// Overview is one evaluation of the whole registry.
type Overview struct {
	Summary  Summary         `json:"summary"`
	Services []ServiceStatus `json:"services"`

	// Message is set when an entire signal source is unavailable and the
	// statuses are degraded.
	Message string `json:"message,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Summarize computes the summary counts for services.
func Summarize(services []ServiceStatus) Summary {
	s := Summary{Total: len(services)}
	for _, svc := range services {
		if svc.State == status.StateRunning {
			s.Running++
		}
		if svc.Online {
			s.Online++
		}
		if svc.Healthy.IsFalse() || !svc.Online {
			s.Unhealthy++
		}
	}
	return s
}
