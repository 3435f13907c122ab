// Package metrics exposes lockprof's Prometheus collectors. Unlike the
// teacher's package-level promauto.New* variables registered against
// the default registerer, these are fields on a Metrics struct
// registered against a private registry, so an embedder can run more
// than one Session in the same process without collector collisions
// (see DESIGN.md).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector lockprof publishes.
type Metrics struct {
	registry *prometheus.Registry

	EventsRecordedTotal     *prometheus.CounterVec
	UnbalancedReleasesTotal prometheus.Counter
	InternerHandles         *prometheus.GaugeVec
	DumpDurationSeconds     prometheus.Histogram
	SessionDisabled         prometheus.Gauge
}

// New builds a Metrics instance registered against its own private
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsRecordedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lockprof_events_recorded_total",
			Help: "Total number of acquire/release events recorded by the tracer.",
		}, []string{"kind"}),
		UnbalancedReleasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lockprof_unbalanced_releases_total",
			Help: "Total number of release events discarded for lacking a matching acquire.",
		}),
		InternerHandles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lockprof_interner_handles",
			Help: "Current number of handles held by each interner.",
		}, []string{"interner"}),
		DumpDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lockprof_dump_duration_seconds",
			Help:    "Time spent reducing and writing a .pclprof dump.",
			Buckets: prometheus.DefBuckets,
		}),
		SessionDisabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lockprof_session_disabled",
			Help: "1 if the session has permanently disabled itself (interner capacity exhaustion), 0 otherwise.",
		}),
	}

	registry.MustRegister(
		m.EventsRecordedTotal,
		m.UnbalancedReleasesTotal,
		m.InternerHandles,
		m.DumpDurationSeconds,
		m.SessionDisabled,
	)
	return m
}

// Handler returns an http.Handler serving this Metrics instance's
// registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
