package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics
// Metrics holds the analyzer's Prometheus collectors.
type Metrics struct {
	analyses *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the analyzer collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// analyses counts completed analyses by verdict
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecc_analyses_total",
			Help: "Completed analyses by verdict",
		}, []string{"verdict"}),

		// errors counts rejected requests by reason
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ecc_analysis_errors_total",
			Help: "Rejected analysis requests by reason",
		}, []string{"reason"}),

		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecc_analysis_duration_seconds",
			Help:    "Analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}),
	}
}

func (m *Metrics) observe(verdict string, seconds float64) {
	m.analyses.WithLabelValues(verdict).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) fail(reason string) {
	m.errors.WithLabelValues(reason).Inc()
}

// #endregion metrics
