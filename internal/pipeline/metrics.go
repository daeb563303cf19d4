package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline observability counters.
type Metrics struct {
	RequestsTotal          *prometheus.CounterVec
	RequestDurationSeconds *prometheus.HistogramVec
	RetriesTotal           *prometheus.CounterVec
	AuthRetriesTotal       prometheus.Counter
	FailuresTotal          *prometheus.CounterVec
}

// NewMetrics registers the pipeline metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_pipeline_requests_total",
			Help: "Total number of requests by method and status class",
		}, []string{"method", "status"}),
		RequestDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aegis_pipeline_request_duration_seconds",
			Help:    "End-to-end request duration including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		RetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_pipeline_retries_total",
			Help: "Total number of transport-level retries",
		}, []string{"endpoint"}),
		AuthRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_pipeline_auth_retries_total",
			Help: "Total number of 401-triggered refresh-and-retry cycles",
		}),
		FailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_pipeline_failures_total",
			Help: "Total number of failed requests by fault code",
		}, []string{"code"}),
	}
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(method, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDurationSeconds.WithLabelValues(method).Observe(seconds)
}

// RecordRetry counts one transport retry.
func (m *Metrics) RecordRetry(endpoint string) {
	m.RetriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordAuthRetry counts one 401 refresh-and-retry.
func (m *Metrics) RecordAuthRetry() {
	m.AuthRetriesTotal.Inc()
}

// RecordFailure counts one failed request by fault code.
func (m *Metrics) RecordFailure(code string) {
	m.FailuresTotal.WithLabelValues(code).Inc()
}
