// Package metrics instruments the confirmation gateway with Prometheus
// collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "confirm"

type Metrics struct {
	registry *prometheus.Registry

	challenges  *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	expired     prometheus.Counter
	pending     prometheus.Gauge
	enrollments *prometheus.CounterVec
}

// New registers the gateway collectors on a fresh registry, along with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Guarded command invocations by policy decision.",
		}, []string{"decision"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Confirmation attempts by outcome.",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_expired_total",
			Help:      "Pending commands removed because their code expired.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_commands",
			Help:      "Pending commands currently awaiting confirmation.",
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Two-factor enrollment operations by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.challenges,
		m.attempts,
		m.expired,
		m.pending,
		m.enrollments,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Challenge(decision string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(decision).Inc()
}

func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Enrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// PendingAdded records a new pending command.
func (m *Metrics) PendingAdded() {
	if m == nil {
		return
	}
	m.pending.Inc()
}

// PendingRemoved records a pending command leaving the registry, by
// confirmation or by expiry.
func (m *Metrics) PendingRemoved(expired bool) {
	if m == nil {
		return
	}
	m.pending.Dec()
	if expired {
		m.expired.Inc()
	}
}

// ResetPending zeroes the pending gauge after the registry is cleared.
func (m *Metrics) ResetPending() {
	if m == nil {
		return
	}
	m.pending.Set(0)
}
