package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInspectTimeout bounds one CLI invocation.
const DefaultInspectTimeout = 8 * time.Second

// CLI inspects containers by running `<binary> container inspect`.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI returns an inspector for the given CLI binary (a name
// resolved on PATH, or a path). Empty binary and non-positive timeout take
// the defaults.
func NewCLI(binary string, timeout time.Duration) *CLI {
	if binary == "" {
		binary = DefaultBinary
	}
	if timeout <= 0 {
		timeout = DefaultInspectTimeout
	}
	return &CLI{binary: binary, timeout: timeout}
}

// Name returns the CLI name, e.g. "docker".
func (c *CLI) Name() string { return filepath.Base(c.binary) }

// Available reports whether the CLI binary can be found.
func (c *CLI) Available(context.Context) bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Inspect runs the CLI and parses its JSON array output. A missing binary,
// a non-zero exit or unparsable output are reported through Info.Error.
// The call blocks for at most the configured timeout.
func (c *CLI) Inspect(ctx context.Context, container string) Info {
	if container == "" {
		return Info{}
	}

	bin, err := exec.LookPath(c.binary)
	if err != nil {
		return Info{Error: fmt.Sprintf("container runtime not found: %s", c.Name())}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "container", "inspect", container)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			return Info{Error: fmt.Sprintf("%s inspect %s timed out after %s", c.Name(), container, c.timeout)}
		case errors.As(err, &exitErr):
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return Info{Error: msg}
			}
			return Info{Error: fmt.Sprintf("%s inspect failed for %s", c.Name(), container)}
		default:
			return Info{Error: err.Error()}
		}
	}

	return c.parse(container, stdout.Bytes())
}

func (c *CLI) parse(container string, out []byte) Info {
	var docs []inspectDoc
	if err := json.Unmarshal(out, &docs); err != nil {
		slog.Debug("inspect: unparsable inspect output", "container", container, "err", err)
		return Info{Error: fmt.Sprintf("failed to parse %s inspect output", c.Name())}
	}
	if len(docs) == 0 {
		return Info{}
	}
	return docs[0].info()
}
