package allocator

import (
	"errors"
	"testing"

	"github.com/marmos91/sliceproxy/pkg/sliceerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S4 from spec.md §8: BlockAllocator(block_size=4096, total_blocks=8).
func TestAllocateFreeSequence(t *testing.T) {
	a := New(4096, 8)

	loc, err := a.Allocate(3)
	require.NoError(t, err)
	assert.Equal(t, Location{Offset: 0, Blocks: 3}, loc)

	loc, err = a.Allocate(3)
	require.NoError(t, err)
	assert.Equal(t, Location{Offset: 12288, Blocks: 3}, loc)

	a.Free(0, 3)

	_, err = a.Allocate(4)
	assert.True(t, errors.Is(err, sliceerr.ErrNoSpace))
}

func TestConservationInvariant(t *testing.T) {
	a := New(1024, 16)

	locs := make([]Location, 0)
	for i := 0; i < 4; i++ {
		loc, err := a.Allocate(2)
		require.NoError(t, err)
		locs = append(locs, loc)
	}
	assert.Equal(t, uint64(16), a.UsedBlocks()+a.FreeBlocks())

	a.Free(locs[1].Offset, locs[1].Blocks)
	assert.Equal(t, uint64(16), a.UsedBlocks()+a.FreeBlocks())
}

func TestFragmentationRatio(t *testing.T) {
	a := New(1024, 10)
	assert.Equal(t, 0.0, a.FragmentationRatio()) // all free -> contiguous.

	loc1, err := a.Allocate(2) // blocks 0-1
	require.NoError(t, err)
	_, err = a.Allocate(2) // blocks 2-3
	require.NoError(t, err)
	loc3, err := a.Allocate(2) // blocks 4-5
	require.NoError(t, err)

	a.Free(loc1.Offset, loc1.Blocks)
	a.Free(loc3.Offset, loc3.Blocks)
	// Free blocks: 0,1,4,5,6,7,8,9 (8 total); largest run 4..9 = 6.
	assert.InDelta(t, 1-6.0/8.0, a.FragmentationRatio(), 0.0001)
}

func TestMarkUsedOutOfBounds(t *testing.T) {
	a := New(1024, 4)
	err := a.MarkUsed(0, 5)
	assert.Error(t, err)
}

func TestFreeBeyondDeviceIgnored(t *testing.T) {
	a := New(1024, 4)
	assert.NotPanics(t, func() { a.Free(10*1024, 3) })
}

func TestFirstFitDeterminism(t *testing.T) {
	build := func() *Allocator {
		a := New(512, 20)
		_, _ = a.Allocate(3)
		_, _ = a.Allocate(2)
		_, _ = a.Allocate(4)
		return a
	}
	a1, a2 := build(), build()
	assert.Equal(t, a1.free, a2.free)
}
