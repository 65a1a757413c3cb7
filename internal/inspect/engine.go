package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docker/docker/client"
)

const pingTimeout = 2 * time.Second

// Engine inspects containers through the Docker Engine API instead
// of the CLI. It is selected with runtime.mode "api".
type Engine struct {
	timeout    time.Duration
	inspectRaw func(ctx context.Context, id string) ([]byte, error)
	ping       func(ctx context.Context) error
}

// NewEngine builds a client from the DOCKER_* environment with API
// version negotiation.
func NewEngine(timeout time.Duration) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("inspect: create docker client: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultInspectTimeout
	}
	return &Engine{
		timeout: timeout,
		inspectRaw: func(ctx context.Context, id string) ([]byte, error) {
			_, raw, err := cli.ContainerInspectWithRaw(ctx, id, false)
			return raw, err
		},
		ping: func(ctx context.Context) error {
			_, err := cli.Ping(ctx)
			return err
		},
	}, nil
}

// Name returns "docker engine".
func (e *Engine) Name() string { return "docker engine" }

// Available pings the daemon.
func (e *Engine) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return e.ping(ctx) == nil
}

// Inspect queries the daemon for container. Failures are reported through
// Info.Error.
func (e *Engine) Inspect(ctx context.Context, container string) Info {
	if container == "" {
		return Info{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.inspectRaw(ctx, container)
	if err != nil {
		return Info{Error: err.Error()}
	}
	var doc inspectDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Info{Error: "failed to parse docker engine inspect response"}
	}
	return doc.info()
}
