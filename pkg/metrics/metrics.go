package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notification_ingest"

// Metrics holds the pipeline collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	events                *prometheus.CounterVec
	routed                *prometheus.CounterVec
	displayed             prometheus.Counter
	failures              *prometheus.CounterVec
	attributionSuppressed *prometheus.CounterVec
	pendingOverwrites     prometheus.Counter
}

// New returns a Metrics collector with every series registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalizer",
			Name:      "events_total",
			Help:      "Normalized notification events by provenance.",
		}, []string{"source"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pending",
			Name:      "routed_total",
			Help:      "Targets written to the pending slot by origin.",
		}, []string{"origin"}),
		displayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalizer",
			Name:      "displayed_total",
			Help:      "Local notifications displayed for foreground pushes.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Caught failures by operation and kind.",
		}, []string{"op", "kind"}),
		attributionSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deeplink",
			Name:      "attribution_suppressed_total",
			Help:      "Attribution callbacks that produced no target, by reason.",
		}, []string{"reason"}),
		pendingOverwrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pending",
			Name:      "overwrites_total",
			Help:      "Unconsumed pending targets replaced by a newer one.",
		}),
	}
	m.registry.MustRegister(
		m.events,
		m.routed,
		m.displayed,
		m.failures,
		m.attributionSuppressed,
		m.pendingOverwrites,
	)
	return m
}

func (m *Metrics) IncEvent(source string)     { m.events.WithLabelValues(source).Inc() }
func (m *Metrics) IncRouted(origin string)     { m.routed.WithLabelValues(origin).Inc() }
func (m *Metrics) IncDisplayed()               { m.displayed.Inc() }
func (m *Metrics) IncFailure(op, kind string)  { m.failures.WithLabelValues(op, kind).Inc() }
func (m *Metrics) IncSuppressed(reason string) { m.attributionSuppressed.WithLabelValues(reason).Inc() }
func (m *Metrics) IncOverwrite()               { m.pendingOverwrites.Inc() }

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
