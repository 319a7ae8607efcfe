package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure stages of a finalize call.
const (
	FailureValidation  = "validation"
	FailureAggregation = "aggregation"
	FailurePersistence = "persistence"
)

// Metrics provides observability for the decision finalizer.
type Metrics struct {
	// Persisted records by status
	FinalizeOutcome *prometheus.CounterVec

	// Finalize calls that wrote nothing, by the stage that failed
	FinalizeFailure *prometheus.CounterVec

	// Overall finalize latency including the aggregation call
	FinalizeLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		FinalizeOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_decision_finalize_outcomes_total",
			Help: "Verification records written by status",
		}, []string{"status"}),

		FinalizeFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_decision_finalize_failures_total",
			Help: "Finalize calls that persisted nothing, by failing stage",
		}, []string{"stage"}), // stage: "validation", "aggregation", "persistence"

		FinalizeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_decision_finalize_duration_seconds",
			Help:    "Duration of finalize including aggregation and persistence",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// IncrementOutcome records a persisted decision.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.FinalizeOutcome.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementFailure(stage string) {
	if m != nil {
		m.FinalizeFailure.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveFinalizeLatency(d time.Duration) {
	if m != nil {
		m.FinalizeLatency.Observe(d.Seconds())
	}
}
