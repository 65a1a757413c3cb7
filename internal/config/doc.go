// Package config loads the engine configuration from the `server:` section
// of a YAML file.
//
// Config fields:
//   - HTTPPort          port for the REST API, /metrics and the WebSocket hub (default 8080)
//   - RegistryPath      service registry file (default config/services.yaml)
//   - LogLevel          debug | info | warn | error (default info)
//   - Auth.Mode         "apikey" or "none"; apikey protects the mutating routes
//   - Auth.KeyEnv       environment variable holding the expected API key
//   - Auth.Header       HTTP header name (default "X-API-Key")
//   - Runtime.Mode      "cli" or "api" (default cli)
//   - Runtime.Binary    runtime CLI (default docker)
//   - Runtime.Timeout   per-inspect bound (default 8s)
//   - Stats.*           plugin timeout and circuit breaker tuning
//   - Overview.*        evaluation concurrency and WebSocket broadcast interval
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
