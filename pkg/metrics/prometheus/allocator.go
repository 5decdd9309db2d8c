package prometheus

import (
	"github.com/marmos91/sliceproxy/pkg/allocator"
	"github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// allocatorMetrics is the Prometheus implementation of allocator.Metrics.
type allocatorMetrics struct {
	allocations        prometheus.Counter
	allocatedBlocks    prometheus.Counter
	noSpace            prometheus.Counter
	fragmentationRatio prometheus.Gauge
}

// NewAllocatorMetrics creates a new Prometheus-backed allocator.Metrics.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAllocatorMetrics() allocator.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	return &allocatorMetrics{
		allocations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_allocator_allocations_total",
			Help: "Total number of successful block allocations",
		}),
		allocatedBlocks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_allocator_allocated_blocks_total",
			Help: "Total number of blocks handed out across all allocations",
		}),
		noSpace: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sliceproxy_allocator_no_space_total",
			Help: "Total number of allocation attempts that found no sufficient free run",
		}),
		fragmentationRatio: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sliceproxy_allocator_fragmentation_ratio",
			Help: "1 - largest_free_run/total_free_blocks, as last observed",
		}),
	}
}

func (m *allocatorMetrics) RecordAllocation(blocks uint64) {
	if m == nil {
		return
	}
	m.allocations.Inc()
	m.allocatedBlocks.Add(float64(blocks))
}

func (m *allocatorMetrics) RecordNoSpace() {
	if m == nil {
		return
	}
	m.noSpace.Inc()
}

func (m *allocatorMetrics) SetFragmentationRatio(ratio float64) {
	if m == nil {
		return
	}
	m.fragmentationRatio.Set(ratio)
}
