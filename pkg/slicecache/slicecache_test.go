package slicecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(start, end uint64) rangespec.ByteRange {
	return rangespec.ByteRange{Start: start, End: end}
}

// S3 from spec.md §8.
func TestTTLExpiry(t *testing.T) {
	c := New(500 * time.Millisecond)
	c.StoreSlice("http://example.com/f", rng(0, 1023), []byte("payload"))

	payload, ok := c.LookupSlice("http://example.com/f", rng(0, 1023))
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), payload)

	time.Sleep(600 * time.Millisecond)
	_, ok = c.LookupSlice("http://example.com/f", rng(0, 1023))
	assert.False(t, ok)
}

// Cache-key uniqueness, from examples/cache_example.rs.
func TestKeyDeterminismAndUniqueness(t *testing.T) {
	r0 := rng(0, 1023)
	r1 := rng(1024, 2047)

	k1 := GenerateCacheKey("http://example.com/file1.bin", r0)
	k2 := GenerateCacheKey("http://example.com/file2.bin", r0)
	k3 := GenerateCacheKey("http://example.com/file1.bin", r1)

	assert.Equal(t, k1, GenerateCacheKey("http://example.com/file1.bin", r0))
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.NotEqual(t, k2, k3)
}

func TestLookupMultiple(t *testing.T) {
	c := New(time.Hour)
	url := "http://example.com/f"
	ranges := []rangespec.ByteRange{rng(0, 99), rng(100, 199), rng(200, 299)}

	c.StoreSlice(url, ranges[0], []byte("a"))
	c.StoreSlice(url, ranges[2], []byte("c"))

	found := c.LookupMultiple(url, ranges)
	assert.Len(t, found, 2)
	assert.Equal(t, []byte("a"), found[0])
	assert.Equal(t, []byte("c"), found[2])
	_, missing := found[1]
	assert.False(t, missing)
}

// Single-fill property, spec.md §8 item 6.
func TestSingleFillUnderConcurrentMisses(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int32

	fill := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []byte("origin-data"), nil
	}

	const n = 20
	results := make([][]byte, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			data, err := c.GetOrFill(context.Background(), "http://example.com/f", rng(0, 99), fill)
			require.NoError(t, err)
			results[i] = data
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []byte("origin-data"), r)
	}
}

func TestStoreOverwritesResetsTimestamp(t *testing.T) {
	c := New(time.Hour)
	url, r := "http://example.com/f", rng(0, 9)

	c.StoreSlice(url, r, []byte("v1"))
	c.StoreSlice(url, r, []byte("v2"))

	payload, ok := c.LookupSlice(url, r)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), payload)
}
