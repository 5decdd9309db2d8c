package subrequest

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	headFn     func(ctx context.Context, url string) (rangespec.FileMetadata, error)
	getRangeFn func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error)
}

func (f *fakeTransport) Head(ctx context.Context, url string) (rangespec.FileMetadata, error) {
	return f.headFn(ctx, url)
}

func (f *fakeTransport) GetRange(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
	return f.getRangeFn(ctx, url, start, end)
}

func spec(index, start, end uint64) rangespec.SliceSpec {
	return rangespec.SliceSpec{Index: index, Range: rangespec.ByteRange{Start: start, End: end}}
}

// S8 from spec.md §8: order preservation regardless of completion order.
func TestFetchSlicesPreservesOrder(t *testing.T) {
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			// Slower for earlier slices so completion order is reversed.
			time.Sleep(time.Duration(10-start) * time.Millisecond)
			size := end - start + 1
			return origin.RangeResult{
				Status: http.StatusPartialContent, Body: make([]byte, size),
				ContentRangeOK: true, ContentRangeStart: start, ContentRangeEnd: end,
			}, nil
		},
	}

	mgr := New(transport, 4, 0)
	specs := []rangespec.SliceSpec{spec(0, 0, 9), spec(1, 10, 19), spec(2, 20, 29)}

	results, err := mgr.FetchSlices(context.Background(), specs, "http://example.com/f")
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, uint64(i), r.SliceIndex)
	}
}

// S6 from spec.md §8: 500 twice then 206 succeeds on attempt 3, retry count 2.
func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			n := calls.Add(1)
			if n <= 2 {
				return origin.RangeResult{Status: http.StatusInternalServerError}, nil
			}
			return origin.RangeResult{
				Status: http.StatusPartialContent, Body: make([]byte, end-start+1),
				ContentRangeOK: true, ContentRangeStart: start, ContentRangeEnd: end,
			}, nil
		},
	}

	mgr := NewWithConfig(transport, Config{MaxConcurrent: 1, MaxRetries: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	results, err := mgr.FetchSlices(context.Background(), []rangespec.SliceSpec{spec(0, 0, 9)}, "http://example.com/f")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, results, 1)
}

// S7 from spec.md §8: retry bound, max_retries+1 failures -> single error, no further calls.
func TestRetryBoundStopsAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			calls.Add(1)
			return origin.RangeResult{Status: http.StatusInternalServerError}, nil
		},
	}

	mgr := NewWithConfig(transport, Config{MaxConcurrent: 1, MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	_, err := mgr.FetchSlices(context.Background(), []rangespec.SliceSpec{spec(0, 0, 9)}, "http://example.com/f")
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load()) // initial attempt + 2 retries
}

func TestContentMismatchNotRetried(t *testing.T) {
	var calls atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			calls.Add(1)
			return origin.RangeResult{
				Status: http.StatusPartialContent, Body: []byte("short"),
				ContentRangeOK: true, ContentRangeStart: start, ContentRangeEnd: end,
			}, nil
		},
	}

	mgr := New(transport, 1, 3)
	_, err := mgr.FetchSlices(context.Background(), []rangespec.SliceSpec{spec(0, 0, 99)}, "http://example.com/f")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// spec.md §7: a 206 whose Content-Range disagrees with the requested
// offsets is a non-retryable content mismatch, even when the body length
// happens to match the requested size.
func TestContentRangeMismatchNotRetried(t *testing.T) {
	var calls atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			calls.Add(1)
			size := end - start + 1
			return origin.RangeResult{
				Status: http.StatusPartialContent, Body: make([]byte, size),
				ContentRangeOK: true, ContentRangeStart: start + 1, ContentRangeEnd: end + 1,
			}, nil
		},
	}

	mgr := New(transport, 1, 3)
	_, err := mgr.FetchSlices(context.Background(), []rangespec.SliceSpec{spec(0, 0, 9)}, "http://example.com/f")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// spec.md §7: a 206 with no Content-Range header at all is a non-retryable
// content mismatch.
func TestMissingContentRangeNotRetried(t *testing.T) {
	var calls atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			calls.Add(1)
			return origin.RangeResult{Status: http.StatusPartialContent, Body: make([]byte, end-start+1)}, nil
		},
	}

	mgr := New(transport, 1, 3)
	_, err := mgr.FetchSlices(context.Background(), []rangespec.SliceSpec{spec(0, 0, 9)}, "http://example.com/f")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBoundedConcurrency(t *testing.T) {
	var inFlight, maxObserved atomic.Int32
	transport := &fakeTransport{
		getRangeFn: func(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				cur := maxObserved.Load()
				if n <= cur || maxObserved.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			return origin.RangeResult{Status: http.StatusOK, Body: make([]byte, end-start+1)}, nil
		},
	}

	mgr := New(transport, 2, 0)
	specs := []rangespec.SliceSpec{spec(0, 0, 9), spec(1, 10, 19), spec(2, 20, 29)}
	_, err := mgr.FetchSlices(context.Background(), specs, "http://example.com/f")
	require.NoError(t, err)
	assert.LessOrEqual(t, maxObserved.Load(), int32(2))
}
