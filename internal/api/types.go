package api

import (
	"time"

	"github.com/servicedeck/servicedeck/internal/aggregator"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	ServiceCount  int    `json:"service_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ServiceResponse is one service in GET /api/v1/overview: the computed
// status plus diagnostic hints for the UI.
type ServiceResponse struct {
	aggregator.ServiceStatus
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// OverviewResponse is the payload for GET /api/v1/overview and the WebSocket
// overview event.
type OverviewResponse struct {
	Summary     aggregator.Summary `json:"summary"`
	Services    []ServiceResponse  `json:"services"`
	Message     string             `json:"message,omitempty"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// ToOverviewResponse maps an Overview to its JSON representation.
func ToOverviewResponse(ov *aggregator.Overview) OverviewResponse {
	services := make([]ServiceResponse, 0, len(ov.Services))
	for _, svc := range ov.Services {
		services = append(services, ServiceResponse{
			ServiceStatus: svc,
			Diagnostics:   computeDiagnostics(svc),
		})
	}
	return OverviewResponse{
		Summary:     ov.Summary,
		Services:    services,
		Message:     ov.Message,
		GeneratedAt: ov.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
