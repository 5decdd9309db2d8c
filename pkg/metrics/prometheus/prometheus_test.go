package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Metrics must be disabled by default so instrumented packages pay no cost
// before InitRegistry is called.
func TestConstructorsReturnNilWhenDisabled(t *testing.T) {
	assert.Nil(t, NewSliceCacheMetrics())
	assert.Nil(t, NewAllocatorMetrics())
	assert.Nil(t, NewDiskCacheMetrics())
	assert.Nil(t, NewSubrequestMetrics())
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var sc *sliceCacheMetrics
	assert.NotPanics(t, func() {
		sc.RecordHit()
		sc.RecordMiss()
		sc.RecordFill(time.Millisecond, nil)
	})

	var al *allocatorMetrics
	assert.NotPanics(t, func() {
		al.RecordAllocation(1)
		al.RecordNoSpace()
		al.SetFragmentationRatio(0.5)
	})

	var dc *diskCacheMetrics
	assert.NotPanics(t, func() {
		dc.RecordHit()
		dc.RecordMiss()
		dc.RecordCorruption()
		dc.RecordDefragRun(1024, time.Second)
	})

	var sr *subrequestMetrics
	assert.NotPanics(t, func() {
		sr.RecordAttempt(200, nil)
		sr.RecordRetry()
		sr.ObserveLatency(time.Millisecond)
	})
}
