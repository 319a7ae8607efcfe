package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics for the application.
type Metrics struct {
	// Requests by method, route pattern and status code
	Requests *prometheus.CounterVec

	// Request latency by method and route pattern
	RequestDuration *prometheus.HistogramVec

	// Requests by client browser and platform family
	Clients *prometheus.CounterVec

	// Responses replayed from the idempotency cache
	IdempotentReplays prometheus.Counter
}

// New creates and registers all HTTP metrics.
func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "route"}),

		Clients: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_http_client_requests_total",
			Help: "HTTP requests by client browser and platform",
		}, []string{"browser", "platform"}),

		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_http_idempotent_replays_total",
			Help: "Responses replayed for a repeated Idempotency-Key",
		}),
	}
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncrementClient(browser, platform string) {
	if m != nil {
		m.Clients.WithLabelValues(browser, platform).Inc()
	}
}

func (m *Metrics) IncrementIdempotentReplay() {
	if m != nil {
		m.IdempotentReplays.Inc()
	}
}
