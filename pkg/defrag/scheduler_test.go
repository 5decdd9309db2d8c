package defrag

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTarget struct {
	shouldDefrag atomic.Bool
	runs         atomic.Int32
}

func (f *fakeTarget) ShouldDefrag() bool { return f.shouldDefrag.Load() }
func (f *fakeTarget) RunDefrag()         { f.runs.Add(1) }

func TestDefragmenterPollsAndTriggers(t *testing.T) {
	target := &fakeTarget{}
	target.shouldDefrag.Store(true)

	d := New(target, 10*time.Millisecond)
	d.Start(context.Background())
	defer d.Stop(time.Second)

	assert.Eventually(t, func() bool { return target.runs.Load() > 0 }, time.Second, 5*time.Millisecond)
}

func TestDefragmenterStopIsIdempotentWithoutStart(t *testing.T) {
	d := New(&fakeTarget{}, time.Second)
	assert.NotPanics(t, func() { d.Stop(time.Millisecond) })
}
