package prometheus

import (
	"time"

	"github.com/marmos91/sliceproxy/pkg/diskcache"
	"github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// diskCacheMetrics is the Prometheus implementation of diskcache.Metrics.
type diskCacheMetrics struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	corruptions    prometheus.Counter
	defragRuns     prometheus.Counter
	defragBytes    prometheus.Counter
	defragDuration prometheus.Histogram
}

// NewDiskCacheMetrics creates a new Prometheus-backed diskcache.Metrics.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewDiskCacheMetrics() diskcache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	return &diskCacheMetrics{
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_diskcache_hits_total",
			Help: "Total number of disk cache hits",
		}),
		misses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_diskcache_misses_total",
			Help: "Total number of disk cache misses",
		}),
		corruptions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_diskcache_corruptions_total",
			Help: "Total number of checksum mismatches evicted on read",
		}),
		defragRuns: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_diskcache_defrag_runs_total",
			Help: "Total number of online defragmentation runs",
		}),
		defragBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_diskcache_defrag_bytes_moved_total",
			Help: "Total payload bytes relocated across all defragmentation runs",
		}),
		defragDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sliceproxy_diskcache_defrag_duration_seconds",
			Help:    "Duration of a single online defragmentation run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *diskCacheMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

func (m *diskCacheMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

func (m *diskCacheMetrics) RecordCorruption() {
	if m == nil {
		return
	}
	m.corruptions.Inc()
}

func (m *diskCacheMetrics) RecordDefragRun(bytesMoved uint64, duration time.Duration) {
	if m == nil {
		return
	}
	m.defragRuns.Inc()
	m.defragBytes.Add(float64(bytesMoved))
	m.defragDuration.Observe(duration.Seconds())
}
