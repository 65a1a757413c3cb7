// Package inspect queries the container runtime for a container's live state.
//
// Two Inspector implementations exist: CLI runs `docker container inspect`
// (the default, and the only one that needs nothing but the binary on PATH),
// Engine talks to the Docker Engine API. Both convert every failure into an
// Info carrying an Error string; a missing runtime is a normal degraded mode.
package inspect
