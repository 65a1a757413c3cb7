package status

import (
	"strings"

	"github.com/servicedeck/servicedeck/internal/inspect"
	"github.com/servicedeck/servicedeck/internal/probe"
	"github.com/servicedeck/servicedeck/internal/tristate"
)

// State constants returned by the resolver.
const (
	StateRunning = "running"
	StateExited  = "exited"
	StatePaused  = "paused"
	StateDead    = "dead"
	StateUnknown = "unknown"
)

// knownStates are matched in order as prefixes of the runtime status string.
var knownStates = []string{StateRunning, StateExited, StatePaused, StateDead}

// messageSep joins the runtime error and the probe message.
const messageSep = "; "

// Verdict is the reconciled status of one service.
type Verdict struct {
	// State is one of the State constants.
	State string

	// Healthy is the runtime health check when one is reported, otherwise
	// the probe outcome when a probe ran, otherwise Unknown.
	Healthy tristate.Bool

	// Online is the headline verdict.
	Online bool

	// Message is the runtime error and the probe message, either may be absent.
	Message string
}

// StateFrom maps a runtime status string onto a State constant by prefix.
// Matching is case-insensitive; anything unrecognised is StateUnknown.
func StateFrom(runtimeStatus string) string {
	s := strings.ToLower(strings.TrimSpace(runtimeStatus))
	for _, st := range knownStates {
		if strings.HasPrefix(s, st) {
			return st
		}
	}
	return StateUnknown
}

// HealthFrom maps a runtime health-check status onto a tri-state.
// An empty status means the runtime reports no health check.
func HealthFrom(health string) tristate.Bool {
	switch strings.ToLower(strings.TrimSpace(health)) {
	case "healthy":
		return tristate.True
	case "unhealthy":
		return tristate.False
	default:
		return tristate.Unknown
	}
}

// Resolve reconciles runtime and probe signals into a Verdict.
// pr is nil when no probe is configured.
//
// Online is decided in priority order:
//
//  1. requireProbe: the probe outcome, false without a probe.
//  2. runtime running: the probe outcome when a probe ran, else true.
//  3. runtime not running: the probe outcome, false without a probe.
//  4. runtime unknown: the probe outcome, false without a probe.
func Resolve(info inspect.Info, pr *probe.Result, requireProbe bool) Verdict {
	probed := pr != nil
	probeOK := probed && pr.OK

	v := Verdict{State: StateFrom(info.Status)}

	switch {
	case strings.TrimSpace(info.Health) != "":
		v.Healthy = HealthFrom(info.Health)
	case probed:
		v.Healthy = tristate.Of(pr.OK)
	default:
		v.Healthy = tristate.Unknown
	}

	switch {
	case requireProbe:
		v.Online = probeOK
	case info.Running.IsTrue():
		v.Online = !probed || pr.OK
	default:
		// Not running, or no runtime signal at all: the probe alone decides.
		v.Online = probeOK
	}

	var parts []string
	if info.Error != "" {
		parts = append(parts, info.Error)
	}
	if probed && pr.Message != "" {
		parts = append(parts, pr.Message)
	}
	v.Message = strings.Join(parts, messageSep)

	return v
}
