// Package metrics exposes the engine's own Prometheus metrics: evaluation
// counts and durations, the latest fleet summary, per-service online state,
// stats plugin failures and the registry size.
package metrics
