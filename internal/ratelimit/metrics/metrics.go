package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections *prometheus.CounterVec
	Errors     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_ratelimit_rejections_total",
			Help: "Requests rejected by the per-user write limiter, by route",
		}, []string{"route"}),
		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_ratelimit_errors_total",
			Help: "Limiter failures that let a request through unchecked",
		}),
	}
}

func (m *Metrics) IncrementRejections(route string) {
	if m != nil {
		m.Rejections.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) IncrementErrors() {
	if m != nil {
		m.Errors.Inc()
	}
}
