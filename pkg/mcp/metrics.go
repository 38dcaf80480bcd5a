package mcp

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the gateway.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics returns the process-wide gateway metrics, registering them
// with the default registry on first use.
//
// Metrics:
//   - orctasks_gateway_requests_total{outcome}
//   - orctasks_gateway_request_duration_seconds{outcome}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "orctasks_gateway_requests_total",
					Help: "Total number of gateway requests by outcome",
				},
				[]string{"outcome"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "orctasks_gateway_request_duration_seconds",
					Help:    "Gateway request latency by outcome",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"outcome"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(seconds)
}
