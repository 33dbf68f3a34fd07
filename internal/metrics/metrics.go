// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	MutationTotal    *prometheus.CounterVec
	MutationLatency  *prometheus.HistogramVec
	SignatureTotal   *prometheus.CounterVec
	OutboxDispatched *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MutationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmp_mutations_total",
			Help: "Entity mutations by kind, operation and outcome",
		}, []string{"kind", "op", "outcome"}),

		MutationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gmp_mutation_duration_seconds",
			Help:    "Duration of entity mutations including the audit append",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind", "op"}),

		SignatureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmp_signatures_total",
			Help: "Signature requests by outcome",
		}, []string{"outcome"}), // ok, validation, stale, duplicate, not_found, atomicity, error

		OutboxDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gmp_outbox_dispatch_total",
			Help: "Outbox dispatch attempts by result",
		}, []string{"result"}), // success, failure, dead
	}
}

func (m *Metrics) ObserveMutation(kind, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.MutationTotal.WithLabelValues(kind, op, outcome).Inc()
	m.MutationLatency.WithLabelValues(kind, op).Observe(d.Seconds())
}

func (m *Metrics) IncSignature(outcome string) {
	if m != nil {
		m.SignatureTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncOutbox(result string) {
	if m != nil {
		m.OutboxDispatched.WithLabelValues(result).Inc()
	}
}
