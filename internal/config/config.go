package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the engine configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultRegistryPath      = "config/services.yaml"
	DefaultLogLevel          = "info"
	DefaultAuthHeader        = "X-API-Key"
	DefaultRuntimeMode       = "cli"
	DefaultRuntimeBinary     = "docker"
	DefaultRuntimeTimeout    = 8 * time.Second
	DefaultStatsTimeout      = 5 * time.Second
	DefaultBreakerFailures   = 3
	DefaultBreakerCooldown   = 30 * time.Second
	DefaultBroadcastInterval = 10 * time.Second
)

// Config is the top-level configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all engine settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// RegistryPath is the YAML file holding the service registry. It is
	// created empty when missing.
	RegistryPath string `yaml:"registry_path"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Auth     AuthConfig     `yaml:"auth"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Stats    StatsConfig    `yaml:"stats"`
	Overview OverviewConfig `yaml:"overview"`
}

// AuthConfig controls API-key protection of the mutating routes.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header carrying the key (default "X-API-Key").
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or DefaultAuthHeader.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// RuntimeConfig selects how containers are inspected.
type RuntimeConfig struct {
	// Mode is "cli" (run `<binary> container inspect`) or "api" (Docker
	// Engine API from DOCKER_HOST and friends).
	Mode string `yaml:"mode"`

	// Binary is the runtime CLI, looked up on PATH. Used in cli mode.
	Binary string `yaml:"binary"`

	// Timeout bounds each inspect call.
	Timeout time.Duration `yaml:"timeout"`
}

// StatsConfig tunes the stats plugin resolver.
type StatsConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// OverviewConfig tunes fleet evaluation.
type OverviewConfig struct {
	// Concurrency caps parallel service evaluations; 0 means unlimited.
	Concurrency int `yaml:"concurrency"`

	// BroadcastInterval is how often the WebSocket hub pushes a fresh overview.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is what
// the process runs with when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     DefaultHTTPPort,
			RegistryPath: DefaultRegistryPath,
			LogLevel:     DefaultLogLevel,
			Auth:         AuthConfig{Mode: "none", Header: DefaultAuthHeader},
			Runtime: RuntimeConfig{
				Mode:    DefaultRuntimeMode,
				Binary:  DefaultRuntimeBinary,
				Timeout: DefaultRuntimeTimeout,
			},
			Stats: StatsConfig{
				Timeout:         DefaultStatsTimeout,
				BreakerFailures: DefaultBreakerFailures,
				BreakerCooldown: DefaultBreakerCooldown,
			},
			Overview: OverviewConfig{
				BroadcastInterval: DefaultBroadcastInterval,
			},
		},
	}
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values mean info;
// validate rejects them before this is reached.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if strings.TrimSpace(s.RegistryPath) == "" {
		return fmt.Errorf("server.registry_path must not be empty")
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required when auth.mode is apikey")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	switch s.Runtime.Mode {
	case "cli", "api", "":
	default:
		return fmt.Errorf("server.runtime.mode %q unknown: want cli|api", s.Runtime.Mode)
	}
	if s.Runtime.Timeout < 0 {
		return fmt.Errorf("server.runtime.timeout must not be negative")
	}
	if s.Stats.Timeout < 0 || s.Stats.BreakerCooldown < 0 || s.Stats.BreakerFailures < 0 {
		return fmt.Errorf("server.stats values must not be negative")
	}
	if s.Overview.Concurrency < 0 {
		return fmt.Errorf("server.overview.concurrency must not be negative")
	}
	if s.Overview.BroadcastInterval < 0 {
		return fmt.Errorf("server.overview.broadcast_interval must not be negative")
	}
	return nil
}
