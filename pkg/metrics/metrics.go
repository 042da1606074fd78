package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Outcome_Approved = "approved"
	Outcome_Rejected = "rejected"
)

// Metrics contains all Prometheus metrics for the signer
type Metrics struct {
	// SignRequestsTotal counts requests by kind and outcome
	SignRequestsTotal *prometheus.CounterVec

	// SignRejectionsTotal counts rejections by error kind
	SignRejectionsTotal *prometheus.CounterVec

	SignDuration prometheus.Histogram

	// SignerBusyTotal counts requests turned away because the card was in use
	SignerBusyTotal prometheus.Counter

	JournalWriteFailures prometheus.Counter

	RateLimitedTotal prometheus.Counter
}

// NewMetrics registers metrics with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers metrics with registry, or the default one when nil
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		SignRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secora_sign_requests_total",
			Help: "The total number of signing requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		SignRejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "secora_sign_rejections_total",
			Help: "The total number of rejected signing requests by error kind",
		}, []string{"error_kind"}),
		SignDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "secora_sign_duration_seconds",
			Help:    "Time from request to result, secure element wait included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SignerBusyTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "secora_signer_busy_total",
			Help: "The total number of requests rejected because a signing operation was in flight",
		}),
		JournalWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "secora_journal_write_failures_total",
			Help: "The total number of signing records that could not be written",
		}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "secora_rate_limited_total",
			Help: "The total number of HTTP requests refused by the rate limiter",
		}),
	}
}
