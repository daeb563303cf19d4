package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records limiter observability counters.
type Metrics struct {
	ChecksAllowedTotal   *prometheus.CounterVec
	ChecksRejectedTotal  *prometheus.CounterVec
	SweepRunsTotal       *prometheus.CounterVec
	SweepPurgedTotal     prometheus.Counter
	SweepDurationSeconds prometheus.Histogram
}

// NewMetrics registers the limiter metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		ChecksAllowedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ratelimit_checks_allowed_total",
			Help: "Total number of rate limit checks that allowed the request",
		}, []string{"rule"}),
		ChecksRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ratelimit_checks_rejected_total",
			Help: "Total number of rate limit checks that rejected the request",
		}, []string{"rule"}),
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_ratelimit_sweep_runs_total",
			Help: "Total number of sweeper runs",
		}, []string{"status"}),
		SweepPurgedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_ratelimit_sweep_purged_total",
			Help: "Total number of expired entries purged from the in-memory cache",
		}),
		SweepDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "aegis_ratelimit_sweep_duration_seconds",
			Help: "Duration of sweeper runs in seconds",
		}),
	}
}

// RecordAllowed counts an allowed check for a rule.
func (m *Metrics) RecordAllowed(rule string) {
	m.ChecksAllowedTotal.WithLabelValues(rule).Inc()
}

// RecordRejection counts a rejected check for a rule.
func (m *Metrics) RecordRejection(rule string) {
	m.ChecksRejectedTotal.WithLabelValues(rule).Inc()
}

// RecordSweep records one sweeper run.
func (m *Metrics) RecordSweep(status string, purged int, seconds float64) {
	m.SweepRunsTotal.WithLabelValues(status).Inc()
	m.SweepPurgedTotal.Add(float64(purged))
	m.SweepDurationSeconds.Observe(seconds)
}
