// Package metrics exposes Prometheus collectors for dispatch outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeVetoed       = "vetoed"
	OutcomeRateLimited  = "rate_limited"
	OutcomeInvalid      = "invalid"
	OutcomeUnmatched    = "unmatched"
	OutcomeAutocomplete = "autocomplete"
)

// Metrics holds the collectors of one framework instance.
type Metrics struct {
	Registry *prometheus.Registry

	interactions    *prometheus.CounterVec
	events          *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	references      prometheus.GaugeFunc
	sweeps          *prometheus.CounterVec
}

// New creates a Metrics with its own registry. refs reports the live
// reference count and may be nil.
func New(refs func() int) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbi",
				Subsystem: "interactions",
				Name:      "total",
				Help:      "Interactions dispatched, by handler kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbi",
				Subsystem: "events",
				Name:      "total",
				Help:      "Event handler invocations, by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dbi",
				Subsystem: "handlers",
				Name:      "duration_seconds",
				Help:      "Duration of handler execution.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"kind"},
		),
		sweeps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dbi",
				Subsystem: "sweeper",
				Name:      "removed_total",
				Help:      "Expired entries removed by sweeps.",
			},
			[]string{"collection"},
		),
	}
	if refs == nil {
		refs = func() int { return 0 }
	}
	m.references = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "dbi",
			Subsystem: "references",
			Name:      "live",
			Help:      "Live entries in the reference store.",
		},
		func() float64 { return float64(refs()) },
	)

	m.Registry.MustRegister(
		m.interactions,
		m.events,
		m.handlerDuration,
		m.references,
		m.sweeps,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordInteraction counts one interaction dispatch.
func (m *Metrics) RecordInteraction(kind, outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(kind, outcome).Inc()
}

// RecordEvent counts one event handler invocation.
func (m *Metrics) RecordEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
}

// ObserveHandler records a handler duration.
func (m *Metrics) ObserveHandler(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordSweep counts removed entries of a collection.
func (m *Metrics) RecordSweep(collection string, removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.sweeps.WithLabelValues(collection).Add(float64(removed))
}
