package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/servicedeck/servicedeck/internal/inspect"
	"github.com/servicedeck/servicedeck/internal/probe"
	"github.com/servicedeck/servicedeck/internal/registry"
	"github.com/servicedeck/servicedeck/internal/stats"
	"github.com/servicedeck/servicedeck/internal/status"
)

var tracer = otel.Tracer("servicedeck/aggregator")

// Lister supplies the configured services in registry order.
type Lister interface {
	List() ([]registry.Service, error)
}

// Prober runs one health probe.
type Prober interface {
	Probe(ctx context.Context, t probe.Target) probe.Result
}

// StatsFetcher resolves optional per-service stats. It returns nil when
// there is nothing to show.
type StatsFetcher interface {
	Fetch(ctx context.Context, cfg *registry.Stats) *stats.Result
}

// Observer receives every completed overview.
type Observer interface {
	ObserveOverview(ov *Overview, took time.Duration)
}

// Options tunes an Aggregator.
type Options struct {
	// Concurrency caps how many services are evaluated at once. Zero or
	// negative means no cap.
	Concurrency int

	// Observer is optional.
	Observer Observer

	// Now is the clock used for last_checked. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator evaluates every configured service and joins the results into
// an Overview.
//
// Overview is safe for concurrent use; overlapping calls share one
// evaluation.
type Aggregator struct {
	store     Lister
	inspector inspect.Inspector
	prober    Prober
	stats     StatsFetcher
	opts      Options

	group singleflight.Group
}

// New returns an Aggregator over the given collaborators.
func New(store Lister, inspector inspect.Inspector, prober Prober, sf StatsFetcher, opts Options) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		store:     store,
		inspector: inspector,
		prober:    prober,
		stats:     sf,
		opts:      opts,
	}
}

// Overview evaluates the whole registry. The only error is a failure to
// read the registry; every per-service failure is reported in that
// service's status instead.
//
// The shared evaluation is detached from any one caller's cancellation and
// is bounded by the per-call timeouts only. A caller whose ctx ends stops
// waiting and gets ctx.Err().
func (a *Aggregator) Overview(ctx context.Context) (*Overview, error) {
	detached := context.WithoutCancel(ctx)
	ch := a.group.DoChan("overview", func() (any, error) {
		return a.build(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("aggregator: overview shared with concurrent caller")
		}
		return res.Val.(*Overview), nil
	}
}

func (a *Aggregator) build(ctx context.Context) (*Overview, error) {
	ctx, span := tracer.Start(ctx, "aggregator.overview")
	defer span.End()

	start := time.Now()
	services, err := a.store.List()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load registry")
		return nil, fmt.Errorf("aggregator: load registry: %w", err)
	}
	span.SetAttributes(attribute.Int("services.total", len(services)))

	// The availability check runs alongside the fan-out, outside its limit.
	availCh := make(chan bool, 1)
	go func() { availCh <- a.inspector.Available(ctx) }()

	results := make([]ServiceStatus, len(services))
	var g errgroup.Group
	if a.opts.Concurrency > 0 {
		g.SetLimit(a.opts.Concurrency)
	}
	for i, svc := range services {
		g.Go(func() error {
			results[i] = a.evaluate(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()
	available := <-availCh

	ov := &Overview{
		Summary:     Summarize(results),
		Services:    results,
		GeneratedAt: a.opts.Now(),
	}
	if !available {
		ov.Message = fmt.Sprintf("%s not found, statuses are probe-only", a.inspector.Name())
		span.SetAttributes(attribute.Bool("runtime.available", false))
	}

	took := time.Since(start)
	slog.Debug("aggregator: overview built",
		"services", ov.Summary.Total, "online", ov.Summary.Online, "took", took)
	if a.opts.Observer != nil {
		a.opts.Observer.ObserveOverview(ov, took)
	}
	return ov, nil
}

// evaluate builds the status of one service. Inspection, probing and stats
// run concurrently; none of them can fail the evaluation.
func (a *Aggregator) evaluate(ctx context.Context, svc registry.Service) ServiceStatus {
	ctx, span := tracer.Start(ctx, "aggregator.evaluate",
		trace.WithAttributes(attribute.String("service.slug", svc.Slug)))
	defer span.End()

	var (
		wg   sync.WaitGroup
		info inspect.Info
		pr   *probe.Result
		st   *stats.Result
	)

	if svc.Container != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info = a.inspector.Inspect(ctx, svc.Container)
		}()
	}
	if svc.Probe.URL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := a.prober.Probe(ctx, targetOf(svc.Probe))
			pr = &res
		}()
	}
	if svc.Stats != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st = a.fetchStats(ctx, svc)
		}()
	}
	wg.Wait()

	v := status.Resolve(info, pr, svc.RequireProbe)

	out := ServiceStatus{
		Slug:        svc.Slug,
		Name:        svc.Name,
		Container:   svc.Container,
		Image:       info.Image,
		State:       v.State,
		StatusText:  statusText(info.Status, v.Message),
		Healthy:     v.Healthy,
		Online:      v.Online,
		Endpoint:    svc.Probe.URL,
		AccessURL:   svc.AccessURL,
		Description: svc.Description,
		Message:     v.Message,
		LastChecked: a.opts.Now(),
		Managed:     svc.Managed,
		Icon:        svc.Icon,
		Tags:        svc.Tags,
		Stats:       st,
	}
	if info.Name != "" {
		out.Container = info.Name
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if pr != nil {
		if pr.StatusCode != 0 {
			code := pr.StatusCode
			out.ResponseCode = &code
		}
		if pr.StatusCode != 0 || pr.OK {
			ms := latencyMs(pr.Latency)
			out.LatencyMs = &ms
		}
		out.CertDaysLeft = pr.CertDaysLeft
	}

	span.SetAttributes(
		attribute.String("service.state", out.State),
		attribute.Bool("service.online", out.Online),
	)
	return out
}

// fetchStats shields the evaluation from a stats backend that panics.
func (a *Aggregator) fetchStats(ctx context.Context, svc registry.Service) (res *stats.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("aggregator: stats fetch panicked", "slug", svc.Slug, "panic", rec)
			res = nil
		}
	}()
	return a.stats.Fetch(ctx, svc.Stats)
}

func targetOf(p registry.Probe) probe.Target {
	return probe.Target{
		URL:          p.URL,
		Method:       p.Method,
		Timeout:      time.Duration(p.Timeout * float64(time.Second)),
		ExpectStatus: p.ExpectStatus,
	}
}

func statusText(runtimeStatus, message string) string {
	switch {
	case runtimeStatus != "":
		return runtimeStatus
	case message != "":
		return message
	default:
		return status.StateUnknown
	}
}

// latencyMs converts d to milliseconds rounded to 0.01.
func latencyMs(d time.Duration) float64 {
	return math.Round(float64(d)/float64(time.Millisecond)*100) / 100
}
