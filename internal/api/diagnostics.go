package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/servicedeck/servicedeck/internal/aggregator"
	"github.com/servicedeck/servicedeck/internal/status"
)

// Thresholds for diagnostic hints.
const (
	slowLatencyMs = 1000.0
	certWarnDays  = 14
)

// runtimeNotFound is the prefix inspect uses when the CLI binary is missing.
const runtimeNotFound = "container runtime not found"

const (
	levelOK       = "ok"
	levelInfo     = "info"
	levelWarning  = "warning"
	levelCritical = "critical"
)

// DiagnosticHint is one human-readable insight about a service's status.
// The UI displays these as chips on the service card; Detail is shown on
// click/hover.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with this hint (e.g. latency).
	Value *float64 `json:"value,omitempty"`
}

// levelRank orders hints: critical first, then warnings, then info.
var levelRank = map[string]int{levelCritical: 0, levelWarning: 1, levelInfo: 2, levelOK: 3}

// computeDiagnostics derives hints from a computed service status.
func computeDiagnostics(svc aggregator.ServiceStatus) []DiagnosticHint {
	var hints []DiagnosticHint

	// No signal configured at all.
	if svc.Container == "" && svc.Endpoint == "" {
		return []DiagnosticHint{{
			Key:   "no_signals",
			Level: levelInfo,
			Title: "Nothing to check",
			Detail: "This service has neither a container nor a probe URL, so its status " +
				"can never be determined. Add a container name or a probe URL.",
		}}
	}

	if strings.Contains(svc.Message, runtimeNotFound) {
		hints = append(hints, DiagnosticHint{
			Key:   "runtime_unavailable",
			Level: levelWarning,
			Title: "Runtime unavailable",
			Detail: "The container runtime CLI is not installed or not on PATH for the " +
				"servicedeck process, so container state cannot be read. Status falls " +
				"back to the probe alone.",
		})
	}

	switch svc.State {
	case status.StateExited, status.StateDead:
		hints = append(hints, DiagnosticHint{
			Key:   "container_stopped",
			Level: levelCritical,
			Title: "Container stopped",
			Detail: fmt.Sprintf(
				"Container %q is %s (%s). Check its logs for the exit reason and "+
					"restart it once the cause is fixed.",
				svc.Container, svc.State, svc.StatusText,
			),
		})
	case status.StatePaused:
		hints = append(hints, DiagnosticHint{
			Key:    "container_paused",
			Level:  levelWarning,
			Title:  "Container paused",
			Detail: fmt.Sprintf("Container %q is paused and counts as offline until it is unpaused.", svc.Container),
		})
	}

	if svc.Endpoint != "" && !svc.Online && svc.State == status.StateRunning {
		title := "Endpoint unreachable"
		if svc.ResponseCode != nil {
			title = fmt.Sprintf("HTTP %d", *svc.ResponseCode)
		}
		hints = append(hints, DiagnosticHint{
			Key:   "probe_failed",
			Level: levelCritical,
			Title: title,
			Detail: fmt.Sprintf(
				"The container is running but the probe against %s failed: %s. "+
					"The process may still be starting, listening on a different port, "+
					"or returning errors.",
				svc.Endpoint, orUnknown(svc.Message),
			),
		})
	} else if svc.Endpoint != "" && !svc.Online {
		hints = append(hints, DiagnosticHint{
			Key:    "probe_failed",
			Level:  levelCritical,
			Title:  "Endpoint unreachable",
			Detail: fmt.Sprintf("The probe against %s failed: %s.", svc.Endpoint, orUnknown(svc.Message)),
		})
	}

	if svc.Healthy.IsFalse() && svc.Online {
		hints = append(hints, DiagnosticHint{
			Key:   "health_check_failing",
			Level: levelWarning,
			Title: "Health check failing",
			Detail: "The service answers but its health check reports unhealthy. " +
				"It is counted as unhealthy in the summary.",
		})
	}

	if svc.LatencyMs != nil && *svc.LatencyMs >= slowLatencyMs {
		v := *svc.LatencyMs
		hints = append(hints, DiagnosticHint{
			Key:    "slow_response",
			Level:  levelInfo,
			Title:  fmt.Sprintf("%.0f ms response", v),
			Detail: "The probe took over a second to answer. Check the service's load.",
			Value:  &v,
		})
	}

	if svc.CertDaysLeft != nil && *svc.CertDaysLeft < certWarnDays {
		days := float64(*svc.CertDaysLeft)
		level, title := levelWarning, fmt.Sprintf("Cert expires in %d days", *svc.CertDaysLeft)
		if *svc.CertDaysLeft < 0 {
			level, title = levelCritical, "Certificate expired"
		}
		hints = append(hints, DiagnosticHint{
			Key:    "cert_expiry",
			Level:  level,
			Title:  title,
			Detail: fmt.Sprintf("The TLS certificate served at %s needs renewing.", svc.Endpoint),
			Value:  &days,
		})
	}

	if len(hints) == 0 && svc.Online {
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  levelOK,
			Title:  "All clear",
			Detail: "Every configured signal reports this service as up.",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	if hints == nil {
		hints = []DiagnosticHint{}
	}
	return hints
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}
