// ABOUTME: Prometheus collectors for the HTTP control API
// ABOUTME: Request counts, latency and errors per route
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP records control API traffic
type HTTP struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Errors          *prometheus.CounterVec
}

// NewHTTP creates and registers the HTTP collectors
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)

	return &HTTP{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRequest records an HTTP request
func (h *HTTP) RecordRequest(method, endpoint, statusCode string, durationSeconds float64) {
	h.Requests.WithLabelValues(method, endpoint, statusCode).Inc()
	h.RequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordError records an HTTP error
func (h *HTTP) RecordError(method, endpoint, errorType string) {
	h.Errors.WithLabelValues(method, endpoint, errorType).Inc()
}
