package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for calls to the analysis capability.
type Metrics struct {
	// Call latency by evidence kind
	CallLatency *prometheus.HistogramVec

	// Call outcomes by kind and result category
	CallOutcome *prometheus.CounterVec

	// Calls rejected without reaching the backend because the circuit is open
	CircuitRejections *prometheus.CounterVec
}

// New creates a new Metrics instance with all analysis metrics registered.
func New() *Metrics {
	return &Metrics{
		CallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_analysis_call_duration_seconds",
			Help:    "Duration of analysis capability calls by evidence kind",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"kind"}),

		CallOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_analysis_call_outcomes_total",
			Help: "Analysis calls by evidence kind and outcome",
		}, []string{"kind", "outcome"}), // outcome: "ok" or an error category

		CircuitRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_analysis_circuit_rejections_total",
			Help: "Analysis calls short-circuited by the open breaker",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveCallLatency(kind string, d time.Duration) {
	if m != nil {
		m.CallLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(kind, outcome string) {
	if m != nil {
		m.CallOutcome.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) IncrementCircuitRejection(kind string) {
	if m != nil {
		m.CircuitRejections.WithLabelValues(kind).Inc()
	}
}
