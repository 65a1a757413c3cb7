package inspect

import (
	"context"
	"strings"

	"github.com/servicedeck/servicedeck/internal/tristate"
)

// DefaultBinary is the container runtime CLI used when none is configured.
const DefaultBinary = "docker"

// Info is what the runtime reports about one container. The zero value means
// "no runtime binding": nothing is known and nothing went wrong.
type Info struct {
	// Running is Unknown when the runtime was not consulted or could not
	// answer. A paused container reports False.
	Running tristate.Bool

	// Status is the runtime's lifecycle status string ("running", "exited"...).
	Status string

	// Health is the health-check status when the container defines one
	// ("healthy", "unhealthy", "starting"), empty otherwise.
	Health string

	// Error is the container's last error, or the reason inspection failed.
	Error string

	// Name is the canonical container name without the leading slash.
	Name string

	// Image is the image reference the container was created from.
	Image string
}

// Inspector queries a container runtime. Implementations never return
// errors: failures are reported through Info.Error.
type Inspector interface {
	// Inspect returns the live state of container. An empty container
	// returns the zero Info.
	Inspect(ctx context.Context, container string) Info

	// Available reports whether the runtime can be consulted at all.
	Available(ctx context.Context) bool

	// Name identifies the runtime in degradation messages.
	Name() string
}

// inspectDoc is the subset of `container inspect` output (CLI JSON array
// element or Engine API body) that the inspectors read.
type inspectDoc struct {
	Name   string `json:"Name"`
	Image  string `json:"Image"`
	Config *struct {
		Image string `json:"Image"`
	} `json:"Config"`
	State *struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
		Paused  bool   `json:"Paused"`
		Error   string `json:"Error"`
		Health  *struct {
			Status string `json:"Status"`
		} `json:"Health"`
	} `json:"State"`
}

// info maps an inspect document onto Info.
func (d inspectDoc) info() Info {
	out := Info{
		Name:  strings.TrimPrefix(d.Name, "/"),
		Image: d.Image,
	}
	if d.Config != nil && d.Config.Image != "" {
		out.Image = d.Config.Image
	}
	if st := d.State; st != nil {
		out.Status = st.Status
		out.Running = tristate.Of(st.Running && !st.Paused)
		out.Error = st.Error
		if st.Health != nil {
			out.Health = st.Health.Status
		}
	}
	return out
}
