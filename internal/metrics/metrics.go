package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/servicedeck/servicedeck/internal/aggregator"
)

const namespace = "servicedeck"

// Metrics holds the engine's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	overviewTotal    prometheus.Counter
	overviewDuration prometheus.Histogram
	fleet            *prometheus.GaugeVec
	serviceOnline    *prometheus.GaugeVec
	serviceLatency   *prometheus.GaugeVec
	statsFailures    *prometheus.CounterVec
	configured       prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.overviewTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "overview",
		Name:      "evaluations_total",
		Help:      "Total number of fleet evaluations.",
	})
	m.overviewDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "overview",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a fleet evaluation.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
	})
	m.fleet = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "services",
		Help:      "Service counts from the latest evaluation, by kind (total, running, online, unhealthy).",
	}, []string{"kind"})
	m.serviceOnline = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "online",
		Help:      "1 when the service was online in the latest evaluation.",
	}, []string{"slug", "state"})
	m.serviceLatency = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "service",
		Name:      "probe_latency_seconds",
		Help:      "Probe latency from the latest evaluation.",
	}, []string{"slug"})
	m.statsFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stats",
		Name:      "failures_total",
		Help:      "Failed stats plugin calls, by plugin type.",
	}, []string{"type"})
	m.configured = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "registry",
		Name:      "services",
		Help:      "Number of services in the registry file.",
	})

	m.registry.MustRegister(
		m.overviewTotal,
		m.overviewDuration,
		m.fleet,
		m.serviceOnline,
		m.serviceLatency,
		m.statsFailures,
		m.configured,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOverview records a completed evaluation. Per-service series are
// replaced wholesale so deleted services disappear.
func (m *Metrics) ObserveOverview(ov *aggregator.Overview, took time.Duration) {
	m.overviewTotal.Inc()
	m.overviewDuration.Observe(took.Seconds())

	m.fleet.WithLabelValues("total").Set(float64(ov.Summary.Total))
	m.fleet.WithLabelValues("running").Set(float64(ov.Summary.Running))
	m.fleet.WithLabelValues("online").Set(float64(ov.Summary.Online))
	m.fleet.WithLabelValues("unhealthy").Set(float64(ov.Summary.Unhealthy))

	m.serviceOnline.Reset()
	m.serviceLatency.Reset()
	for _, svc := range ov.Services {
		online := 0.0
		if svc.Online {
			online = 1
		}
		m.serviceOnline.WithLabelValues(svc.Slug, svc.State).Set(online)
		if svc.LatencyMs != nil {
			m.serviceLatency.WithLabelValues(svc.Slug).Set(*svc.LatencyMs / 1000)
		}
	}
}

// StatsFailed counts one failed stats plugin call.
func (m *Metrics) StatsFailed(pluginType string) {
	m.statsFailures.WithLabelValues(pluginType).Inc()
}

// SetConfigured records the number of services in the registry.
func (m *Metrics) SetConfigured(n int) {
	m.configured.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
