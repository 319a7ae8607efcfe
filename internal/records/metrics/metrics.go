package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers record persistence and the mirrored sink.
type Metrics struct {
	StoreWriteFailures    *prometheus.CounterVec
	MirrorPublished       prometheus.Counter
	MirrorPublishFailures prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		StoreWriteFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_record_store_write_failures_total",
			Help: "Failed record inserts by record kind",
		}, []string{"kind"}), // kind: "verification", "video"

		MirrorPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_record_mirror_published_total",
			Help: "Record summaries acknowledged by the mirror broker",
		}),

		MirrorPublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_record_mirror_publish_failures_total",
			Help: "Record summaries the mirror failed to deliver",
		}),
	}
}

func (m *Metrics) IncrementStoreWriteFailure(kind string) {
	if m != nil {
		m.StoreWriteFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementMirrorPublished() {
	if m != nil {
		m.MirrorPublished.Inc()
	}
}

func (m *Metrics) IncrementMirrorFailure() {
	if m != nil {
		m.MirrorPublishFailures.Inc()
	}
}
