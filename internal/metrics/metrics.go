// Package metrics holds the Prometheus collectors of the consent store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	StoreOperationDuration *prometheus.HistogramVec
	StoreOperationErrors   *prometheus.CounterVec
	StatusTransitions      *prometheus.CounterVec
	IdempotencyOutcomes    *prometheus.CounterVec
	AmendmentsRecorded     prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consent_store_operation_duration_seconds",
			Help:    "Duration of consent store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		StoreOperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_store_operation_errors_total",
			Help: "Total number of failed consent store operations",
		}, []string{"operation"}),
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_status_transitions_total",
			Help: "Total number of status transition attempts",
		}, []string{"entity", "from", "to", "outcome"}),
		IdempotencyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consent_idempotency_validations_total",
			Help: "Total number of idempotency validations by outcome",
		}, []string{"idempotent", "valid"}),
		AmendmentsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "consent_amendments_recorded_total",
			Help: "Total number of amendment events written to history",
		}),
	}
}

// ObserveStoreOperation records the latency of op and counts it as failed when err is set.
// A nil receiver is a no-op.
func (m *Metrics) ObserveStoreOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StoreOperationErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncrementTransition(entity, from, to, outcome string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(entity, from, to, outcome).Inc()
}

func (m *Metrics) IncrementIdempotency(isIdempotent, isValid bool) {
	if m == nil {
		return
	}
	m.IdempotencyOutcomes.WithLabelValues(boolLabel(isIdempotent), boolLabel(isValid)).Inc()
}

func (m *Metrics) IncrementAmendments() {
	if m == nil {
		return
	}
	m.AmendmentsRecorded.Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
