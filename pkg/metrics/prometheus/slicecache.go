package prometheus

import (
	"time"

	"github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/marmos91/sliceproxy/pkg/slicecache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sliceCacheMetrics is the Prometheus implementation of slicecache.Metrics.
type sliceCacheMetrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	fills       *prometheus.CounterVec
	fillLatency prometheus.Histogram
}

// NewSliceCacheMetrics creates a new Prometheus-backed slicecache.Metrics.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewSliceCacheMetrics() slicecache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	return &sliceCacheMetrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_memcache_hits_total",
			Help: "Total number of in-memory slice cache hits",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_memcache_misses_total",
			Help: "Total number of in-memory slice cache misses",
		}),
		fills: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sliceproxy_memcache_fills_total",
			Help: "Total number of origin fills triggered by a double-miss, by outcome",
		}, []string{"outcome"}), // "success", "error"
		fillLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sliceproxy_memcache_fill_duration_seconds",
			Help:    "Duration of single-fill origin fetches triggered by a cache miss",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *sliceCacheMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

func (m *sliceCacheMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *sliceCacheMetrics) RecordFill(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fills.WithLabelValues(outcome).Inc()
	m.fillLatency.Observe(duration.Seconds())
}
