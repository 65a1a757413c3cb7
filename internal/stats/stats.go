package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/servicedeck/servicedeck/internal/registry"
)

// Defaults for the resolver.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 30 * time.Second
)

// Item is one labelled figure shown on a service card.
type Item struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Hint  string `json:"hint,omitempty"`
}

// Result is the human-facing summary a plugin returns.
type Result struct {
	Title      string   `json:"title"`
	Headline   string   `json:"headline,omitempty"`
	Items      []Item   `json:"items"`
	Highlights []string `json:"highlights"`
}

// Plugin fetches stats for one service type. A nil Result with a nil error
// means the plugin has nothing to report for this config.
type Plugin interface {
	Fetch(ctx context.Context, cfg registry.Stats) (*Result, error)
}

// PluginFunc adapts a function to Plugin.
type PluginFunc func(ctx context.Context, cfg registry.Stats) (*Result, error)

// Fetch calls f.
func (f PluginFunc) Fetch(ctx context.Context, cfg registry.Stats) (*Result, error) {
	return f(ctx, cfg)
}

// FailureObserver is notified of every failed plugin call, by plugin type.
type FailureObserver interface {
	StatsFailed(pluginType string)
}

// Options configures a Resolver.
type Options struct {
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	Observer        FailureObserver
}

// Resolver dispatches stats configs to the plugin registered for their type.
// Stats are best-effort: Fetch never fails, it returns nil instead.
//
// Each (type, url) pair gets its own circuit breaker so a dead third-party
// API is not hammered on every overview.
type Resolver struct {
	opts    Options
	plugins map[string]Plugin

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewResolver returns a Resolver with no plugins registered.
func NewResolver(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = DefaultBreakerFailures
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = DefaultBreakerCooldown
	}
	return &Resolver{
		opts:     opts,
		plugins:  make(map[string]Plugin),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// NewDefaultResolver returns a Resolver with the built-in plugins registered,
// all sharing one HTTP client.
func NewDefaultResolver(opts Options) *Resolver {
	r := NewResolver(opts)
	client := newHTTPClient()
	r.Register("emby", &mediaServer{client: client, title: "Emby", auth: authQuery})
	r.Register("jellyfin", &mediaServer{client: client, title: "Jellyfin", auth: authHeader})
	r.Register("prometheus", &promPlugin{client: client})
	return r
}

// Register binds a plugin to a type discriminator, replacing any previous one.
func (r *Resolver) Register(pluginType string, p Plugin) {
	r.plugins[pluginType] = p
}

// Types returns the registered plugin types.
func (r *Resolver) Types() []string {
	out := make([]string, 0, len(r.plugins))
	for t := range r.plugins {
		out = append(out, t)
	}
	return out
}

// Fetch returns the stats for cfg, or nil when cfg is nil, has no type, names
// an unknown type, or the plugin fails in any way.
func (r *Resolver) Fetch(ctx context.Context, cfg *registry.Stats) *Result {
	if cfg == nil || cfg.Type == "" {
		return nil
	}
	plugin, ok := r.plugins[cfg.Type]
	if !ok {
		slog.Debug("stats: no plugin for type", "type", cfg.Type)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	out, err := r.breaker(cfg.Type, cfg.URL).Execute(func() (interface{}, error) {
		return safeFetch(ctx, plugin, *cfg)
	})
	if err != nil {
		slog.Warn("stats: fetch failed", "type", cfg.Type, "url", cfg.URL, "err", err)
		if r.opts.Observer != nil {
			r.opts.Observer.StatsFailed(cfg.Type)
		}
		return nil
	}
	res, _ := out.(*Result)
	return res
}

// safeFetch converts a plugin panic into an error so one broken plugin
// cannot take down the evaluation of the whole fleet.
func safeFetch(ctx context.Context, p Plugin, cfg registry.Stats) (res *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("plugin panic: %v", rec)
		}
	}()
	return p.Fetch(ctx, cfg)
}

func (r *Resolver) breaker(pluginType, url string) *gobreaker.CircuitBreaker {
	key := pluginType + "|" + url

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	failures := uint32(r.opts.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     r.opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("stats: breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[key] = cb
	return cb
}
