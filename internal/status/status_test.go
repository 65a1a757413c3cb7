package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/servicedeck/servicedeck/internal/inspect"
	"github.com/servicedeck/servicedeck/internal/probe"
	"github.com/servicedeck/servicedeck/internal/tristate"
)

var (
	running = inspect.Info{Running: tristate.True, Status: "running"}
	exited  = inspect.Info{Running: tristate.False, Status: "exited"}
	paused  = inspect.Info{Running: tristate.False, Status: "paused"}

	probeOK   = &probe.Result{OK: true, StatusCode: 200}
	probeFail = &probe.Result{OK: false, StatusCode: 503, Message: "HTTP 503"}
)

// --- StateFrom ---

func TestStateFrom(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"running", StateRunning},
		{"Running", StateRunning},
		{"exited", StateExited},
		{"exited (137)", StateExited},
		{"paused", StatePaused},
		{"dead", StateDead},
		{"restarting", StateUnknown},
		{"created", StateUnknown},
		{"", StateUnknown},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StateFrom(tc.in), "StateFrom(%q)", tc.in)
	}
}

// --- Resolve: online decision ---

func TestResolve_Online(t *testing.T) {
	tests := []struct {
		name         string
		info         inspect.Info
		probe        *probe.Result
		requireProbe bool
		wantOnline   bool
		wantState    string
	}{
		{
			name:       "no container and no probe",
			wantOnline: false,
			wantState:  StateUnknown,
		},
		{
			name:       "running without probe",
			info:       running,
			wantOnline: true,
			wantState:  StateRunning,
		},
		{
			name:       "running with passing probe",
			info:       running,
			probe:      probeOK,
			wantOnline: true,
			wantState:  StateRunning,
		},
		{
			name:       "running with failing probe",
			info:       running,
			probe:      probeFail,
			wantOnline: false,
			wantState:  StateRunning,
		},
		{
			name:       "exited without probe",
			info:       exited,
			wantOnline: false,
			wantState:  StateExited,
		},
		{
			name:       "exited with passing probe",
			info:       exited,
			probe:      probeOK,
			wantOnline: true,
			wantState:  StateExited,
		},
		{
			name:       "paused is treated like exited",
			info:       paused,
			wantOnline: false,
			wantState:  StatePaused,
		},
		{
			name:       "runtime unknown, probe passing",
			probe:      probeOK,
			wantOnline: true,
			wantState:  StateUnknown,
		},
		{
			name:       "runtime unknown, probe failing",
			probe:      probeFail,
			wantOnline: false,
			wantState:  StateUnknown,
		},
		{
			name:         "require probe overrides running",
			info:         running,
			probe:        probeFail,
			requireProbe: true,
			wantOnline:   false,
			wantState:    StateRunning,
		},
		{
			name:         "require probe without a probe",
			info:         running,
			requireProbe: true,
			wantOnline:   false,
			wantState:    StateRunning,
		},
		{
			name:         "require probe passing on exited container",
			info:         exited,
			probe:        probeOK,
			requireProbe: true,
			wantOnline:   true,
			wantState:    StateExited,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Resolve(tc.info, tc.probe, tc.requireProbe)
			assert.Equal(t, tc.wantOnline, v.Online)
			assert.Equal(t, tc.wantState, v.State)
		})
	}
}

// --- Resolve: health ---

func TestResolve_Healthy(t *testing.T) {
	tests := []struct {
		name  string
		info  inspect.Info
		probe *probe.Result
		want  tristate.Bool
	}{
		{"runtime healthy", inspect.Info{Health: "healthy"}, probeFail, tristate.True},
		{"runtime unhealthy", inspect.Info{Health: "unhealthy"}, probeOK, tristate.False},
		{"runtime starting is unknown", inspect.Info{Health: "starting"}, probeOK, tristate.Unknown},
		{"no runtime health, probe ok", running, probeOK, tristate.True},
		{"no runtime health, probe failed", running, probeFail, tristate.False},
		{"no signals at all", inspect.Info{}, nil, tristate.Unknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.info, tc.probe, false).Healthy)
		})
	}
}

func TestResolve_UnknownIsNotFalse(t *testing.T) {
	v := Resolve(inspect.Info{}, nil, false)
	assert.False(t, v.Healthy.Known())
	assert.False(t, v.Healthy.IsFalse())
}

// --- Resolve: message ---

func TestResolve_Message(t *testing.T) {
	tests := []struct {
		name  string
		info  inspect.Info
		probe *probe.Result
		want  string
	}{
		{"both", inspect.Info{Error: "OOMKilled"}, probeFail, "OOMKilled; HTTP 503"},
		{"runtime only", inspect.Info{Error: "container runtime not found: docker"}, nil, "container runtime not found: docker"},
		{"probe only", running, &probe.Result{Message: "timeout: dial tcp"}, "timeout: dial tcp"},
		{"neither", running, probeOK, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.info, tc.probe, false).Message)
		})
	}
}
