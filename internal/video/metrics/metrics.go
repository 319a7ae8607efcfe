package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks standalone video analyses.
type Metrics struct {
	// Stored analyses by risk level
	Analyses *prometheus.CounterVec

	// Uploads refused before reaching the analysis capability
	Rejections *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Analyses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_video_analyses_total",
			Help: "Stored video analyses by risk level and deepfake verdict",
		}, []string{"risk_level", "deepfake"}),

		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_video_rejections_total",
			Help: "Video uploads rejected locally",
		}, []string{"reason"}), // reason: "too_large" or "not_video"
	}
}

func (m *Metrics) IncrementAnalysis(riskLevel string, deepfake bool) {
	if m == nil {
		return
	}
	label := "false"
	if deepfake {
		label = "true"
	}
	m.Analyses.WithLabelValues(riskLevel, label).Inc()
}

func (m *Metrics) IncrementRejection(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}
