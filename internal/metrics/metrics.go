// Package metrics exposes Prometheus collectors for the companion bot.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "companion"

// Metrics holds the process collectors.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	collaborators *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	workers       prometheus.Gauge
	dropped       prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events handled, by kind.",
		}, []string{"kind"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Stage transitions, by source and target stage.",
		}, []string{"from", "to"}),
		collaborators: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Collaborator calls, by collaborator and outcome.",
		}, []string{"collaborator", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling one inbound event.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_workers",
			Help:      "Per-user dispatch workers currently running.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_rejected_total",
			Help:      "Events rejected because a user queue was full.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Event counts one inbound event of the given kind and its handling time.
func (m *Metrics) Event(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
	m.latency.WithLabelValues(kind).Observe(took.Seconds())
}

// Transition counts a stage change.
func (m *Metrics) Transition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Collaborator counts a collaborator call; err decides the outcome label.
func (m *Metrics) Collaborator(name string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.collaborators.WithLabelValues(name, outcome).Inc()
}

// WorkerStarted and WorkerStopped track the dispatcher worker gauge.
func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.workers.Inc()
	}
}

// WorkerStopped decrements the dispatcher worker gauge.
func (m *Metrics) WorkerStopped() {
	if m != nil {
		m.workers.Dec()
	}
}

// Rejected counts an event refused by a full user queue.
func (m *Metrics) Rejected() {
	if m != nil {
		m.dropped.Inc()
	}
}
