package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/servicedeck/servicedeck/internal/aggregator"
	"github.com/servicedeck/servicedeck/internal/api"
	"github.com/servicedeck/servicedeck/internal/auth"
	"github.com/servicedeck/servicedeck/internal/config"
	"github.com/servicedeck/servicedeck/internal/inspect"
	"github.com/servicedeck/servicedeck/internal/metrics"
	"github.com/servicedeck/servicedeck/internal/probe"
	"github.com/servicedeck/servicedeck/internal/registry"
	"github.com/servicedeck/servicedeck/internal/stats"
	"github.com/servicedeck/servicedeck/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults when empty")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("servicedeck starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"registry", cfg.Server.RegistryPath,
		"runtime_mode", cfg.Server.Runtime.Mode,
		"auth_mode", cfg.Server.Auth.Mode,
	)

	if err := run(cfg); err != nil {
		slog.Error("servicedeck stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sc := cfg.Server

	reg, err := registry.Open(sc.RegistryPath)
	if err != nil {
		return err
	}

	inspector, err := newInspector(sc.Runtime)
	if err != nil {
		return err
	}

	m := metrics.New()
	resolver := stats.NewDefaultResolver(stats.Options{
		Timeout:         sc.Stats.Timeout,
		BreakerFailures: sc.Stats.BreakerFailures,
		BreakerCooldown: sc.Stats.BreakerCooldown,
		Observer:        m,
	})
	agg := aggregator.New(reg, inspector, probe.New(), resolver, aggregator.Options{
		Concurrency: sc.Overview.Concurrency,
		Observer:    m,
	})

	if services, err := reg.List(); err == nil {
		m.SetConfigured(len(services))
	}

	// WebSocket hub: pushes the overview on every interval and on registry edits.
	hub := ws.New(agg, sc.Overview.BroadcastInterval)
	go hub.Run(ctx)

	go func() {
		err := registry.Watch(ctx, reg, func(services []registry.Service) {
			m.SetConfigured(len(services))
			hub.Notify()
		})
		if err != nil {
			slog.Error("registry watcher stopped", "err", err)
		}
	}()

	protect := auth.APIKey(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())
	if sc.Auth.Mode == "apikey" && sc.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but the key is unset; mutating routes are open",
			"key_env", sc.Auth.KeyEnv)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(reg, agg, protect))
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /ws/overview", hub)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("servicedeck shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

// newInspector builds the runtime inspector selected by the config.
func newInspector(rc config.RuntimeConfig) (inspect.Inspector, error) {
	switch rc.Mode {
	case "api":
		e, err := inspect.NewEngine(rc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("docker engine client: %w", err)
		}
		return e, nil
	default:
		return inspect.NewCLI(rc.Binary, rc.Timeout), nil
	}
}
