// Package stats fetches optional, service-specific summary figures from
// third-party APIs.
//
// Resolver maps a stats config's type to a Plugin. Built-in plugins:
// emby and jellyfin (library counts and now-playing sessions) and prometheus
// (sums of selected metric families from a text exposition). Stats are
// strictly best-effort: unknown types, network failures, bad payloads and
// plugin panics all yield a nil Result. A per-endpoint circuit breaker keeps
// a dead API from being called on every overview.
package stats
