package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification sessions.
type Metrics struct {
	SessionsActive   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec
	CommandFailures  *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kyc_workflow_sessions_active",
			Help: "Verification sessions currently held in memory",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_workflow_sessions_started_total",
			Help: "Verification sessions started",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_workflow_sessions_ended_total",
			Help: "Verification sessions removed, by reason",
		}, []string{"reason"}), // reason: "abandoned", "evicted"
		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_workflow_stage_transitions_total",
			Help: "Stage transitions by source and target stage",
		}, []string{"from", "to"}),
		CommandFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_workflow_command_failures_total",
			Help: "Rejected or failed commands by command and error code",
		}, []string{"command", "code"}),
	}
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.SessionsStarted.Inc()
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) SessionEnded(reason string) {
	if m != nil {
		m.SessionsEnded.WithLabelValues(reason).Inc()
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.StageTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementCommandFailure(command, code string) {
	if m != nil {
		m.CommandFailures.WithLabelValues(command, code).Inc()
	}
}
