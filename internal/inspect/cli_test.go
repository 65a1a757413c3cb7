package inspect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicedeck/servicedeck/internal/tristate"
)

const runningHealthy = `[{
  "Name": "/jellyfin",
  "Image": "sha256:0a1b2c",
  "Config": {"Image": "jellyfin/jellyfin:10.9"},
  "State": {
    "Status": "running",
    "Running": true,
    "Paused": false,
    "Error": "",
    "Health": {"Status": "healthy"}
  }
}]`

const pausedContainer = `[{
  "Name": "/db",
  "Image": "sha256:ffee",
  "State": {"Status": "paused", "Running": true, "Paused": true}
}]`

// fakeCLI writes an executable shell script standing in for the docker CLI.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestInspect_EmptyContainerIsNeutral(t *testing.T) {
	c := NewCLI("definitely-not-installed-runtime", time.Second)
	assert.Equal(t, Info{}, c.Inspect(context.Background(), ""))
}

func TestInspect_BinaryNotFound(t *testing.T) {
	c := NewCLI("definitely-not-installed-runtime", time.Second)

	assert.False(t, c.Available(context.Background()))
	info := c.Inspect(context.Background(), "web")
	assert.Contains(t, info.Error, "container runtime not found")
	assert.Equal(t, tristate.Unknown, info.Running)
}

func TestInspect_RunningHealthy(t *testing.T) {
	bin := fakeCLI(t, "cat <<'EOF'\n"+runningHealthy+"\nEOF\n")
	c := NewCLI(bin, 5*time.Second)

	assert.True(t, c.Available(context.Background()))
	info := c.Inspect(context.Background(), "jellyfin")
	assert.Empty(t, info.Error)
	assert.Equal(t, tristate.True, info.Running)
	assert.Equal(t, "running", info.Status)
	assert.Equal(t, "healthy", info.Health)
	assert.Equal(t, "jellyfin", info.Name)
	assert.Equal(t, "jellyfin/jellyfin:10.9", info.Image)
}

func TestInspect_PausedIsNotRunning(t *testing.T) {
	bin := fakeCLI(t, "cat <<'EOF'\n"+pausedContainer+"\nEOF\n")
	info := NewCLI(bin, 5*time.Second).Inspect(context.Background(), "db")

	assert.Equal(t, tristate.False, info.Running)
	assert.Equal(t, "paused", info.Status)
	assert.Equal(t, "sha256:ffee", info.Image, "falls back to image id without Config")
}

func TestInspect_NonZeroExitUsesStderr(t *testing.T) {
	bin := fakeCLI(t, "echo 'Error: No such container: ghost' >&2\nexit 1\n")
	info := NewCLI(bin, 5*time.Second).Inspect(context.Background(), "ghost")

	assert.Equal(t, "Error: No such container: ghost", info.Error)
	assert.Equal(t, tristate.Unknown, info.Running)
}

func TestInspect_NonZeroExitWithoutStderr(t *testing.T) {
	bin := fakeCLI(t, "exit 3\n")
	info := NewCLI(bin, 5*time.Second).Inspect(context.Background(), "ghost")

	assert.Equal(t, "docker inspect failed for ghost", info.Error)
}

func TestInspect_MalformedOutput(t *testing.T) {
	bin := fakeCLI(t, "echo 'not json'\n")
	info := NewCLI(bin, 5*time.Second).Inspect(context.Background(), "web")

	assert.Equal(t, "failed to parse docker inspect output", info.Error)
}

func TestInspect_EmptyArrayIsUnknown(t *testing.T) {
	bin := fakeCLI(t, "echo '[]'\n")
	info := NewCLI(bin, 5*time.Second).Inspect(context.Background(), "web")

	assert.Equal(t, Info{}, info)
}

func TestInspect_Timeout(t *testing.T) {
	bin := fakeCLI(t, "exec sleep 5\n")
	start := time.Now()
	info := NewCLI(bin, 200*time.Millisecond).Inspect(context.Background(), "slow")

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Contains(t, info.Error, "timed out")
}
