package prometheus

import (
	"time"

	"github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/marmos91/sliceproxy/pkg/subrequest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// subrequestMetrics is the Prometheus implementation of subrequest.Metrics.
type subrequestMetrics struct {
	attempts *prometheus.CounterVec
	retries  prometheus.Counter
	latency  prometheus.Histogram
}

// NewSubrequestMetrics creates a new Prometheus-backed subrequest.Metrics.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSubrequestMetrics() subrequest.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	return &subrequestMetrics{
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sliceproxy_subrequest_attempts_total",
			Help: "Total number of origin range-GET attempts, by outcome",
		}, []string{"outcome"}), // "transport_error", "2xx", "4xx", "5xx", "other"
		retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_subrequest_retries_total",
			Help: "Total number of retried origin range-GET attempts",
		}),
		latency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sliceproxy_subrequest_duration_seconds",
			Help:    "End-to-end duration of a single slice fetch, including retries",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *subrequestMetrics) RecordAttempt(status int, err error) {
	if m == nil {
		return
	}
	outcome := "transport_error"
	if err == nil {
		outcome = statusOutcome(status)
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *subrequestMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *subrequestMetrics) ObserveLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(duration.Seconds())
}

func statusOutcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
