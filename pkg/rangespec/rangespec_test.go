package rangespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewByteRange(t *testing.T) {
	r, err := NewByteRange(0, 1023)
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), r.Size())

	_, err = NewByteRange(10, 5)
	assert.Error(t, err)
}

func TestByteRangeOverlaps(t *testing.T) {
	a := ByteRange{Start: 0, End: 99}
	b := ByteRange{Start: 50, End: 150}
	c := ByteRange{Start: 100, End: 200}

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
}

func TestBoundsFinalSliceShort(t *testing.T) {
	// content_length=4096, slice_size=1024 -> 4 full slices, indices 0..3.
	b := Bounds(3, 1024, 4096)
	assert.Equal(t, ByteRange{Start: 3072, End: 4095}, b)

	// content_length not a multiple of slice_size: final slice shorter.
	b = Bounds(2, 1024, 2500)
	assert.Equal(t, ByteRange{Start: 2048, End: 2499}, b)
}

func TestIndexForOffset(t *testing.T) {
	assert.Equal(t, uint64(0), IndexForOffset(0, 1024))
	assert.Equal(t, uint64(0), IndexForOffset(1023, 1024))
	assert.Equal(t, uint64(1), IndexForOffset(1024, 1024))
}
