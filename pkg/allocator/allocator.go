// Package allocator implements a first-fit contiguous block allocator over
// a fixed-size device, backed by a free-bitmap. It is grounded on the
// bitmap coverage idiom used by the cache package's per-block coverage
// tracking (one bit per unit), generalised here to one bit per block
// across the whole device.
package allocator

import (
	"fmt"
	"sync"

	"github.com/marmos91/sliceproxy/pkg/sliceerr"
)

// Location describes a contiguous allocation: blocks [Offset/BlockSize,
// Offset/BlockSize + Blocks) are reserved for it.
type Location struct {
	Offset uint64
	Blocks uint64
}

// Metrics observes allocator activity. A nil Metrics is always safe: every
// call site checks for nil before calling through.
type Metrics interface {
	RecordAllocation(blocks uint64)
	RecordNoSpace()
	SetFragmentationRatio(ratio float64)
}

// Allocator is a first-fit contiguous block allocator over totalBlocks
// fixed-size blocks. All methods are safe for concurrent use; no method
// performs I/O, so callers may hold Allocator's lock only for short,
// CPU-bound critical sections (per the no-suspension-under-lock rule of
// the wider concurrency model).
type Allocator struct {
	mu          sync.Mutex
	blockSize   uint64
	totalBlocks uint64
	free        []uint64 // bitmap: free[i]&(1<<b) set iff block i*64+b is free
	metrics     Metrics
}

const wordBits = 64

// New creates an Allocator over a device of totalBlocks blocks of blockSize
// bytes each, with every block initially free.
func New(blockSize, totalBlocks uint64) *Allocator {
	return NewWithMetrics(blockSize, totalBlocks, nil)
}

// NewWithMetrics creates an Allocator that reports allocation/fragmentation
// observations to m.
func NewWithMetrics(blockSize, totalBlocks uint64, m Metrics) *Allocator {
	words := (totalBlocks + wordBits - 1) / wordBits
	free := make([]uint64, words)
	for i := range free {
		free[i] = ^uint64(0)
	}
	// Clear any bits beyond totalBlocks in the final word.
	if rem := totalBlocks % wordBits; rem != 0 && len(free) > 0 {
		free[len(free)-1] = (uint64(1) << rem) - 1
	}
	return &Allocator{blockSize: blockSize, totalBlocks: totalBlocks, free: free, metrics: m}
}

func (a *Allocator) isFree(block uint64) bool {
	return a.free[block/wordBits]&(1<<(block%wordBits)) != 0
}

func (a *Allocator) setFree(block uint64, free bool) {
	word := block / wordBits
	bit := uint64(1) << (block % wordBits)
	if free {
		a.free[word] |= bit
	} else {
		a.free[word] &^= bit
	}
}

// Allocate finds the first run of >= blocksNeeded consecutive free blocks,
// scanning from block 0, and marks them used. Returns sliceerr.ErrNoSpace
// (Kind NoSpace) if no such run exists.
func (a *Allocator) Allocate(blocksNeeded uint64) (Location, error) {
	if blocksNeeded == 0 {
		return Location{}, fmt.Errorf("allocator: blocksNeeded must be > 0")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var runStart uint64
	var runLen uint64
	found := false

	for b := uint64(0); b < a.totalBlocks; b++ {
		if a.isFree(b) {
			if runLen == 0 {
				runStart = b
			}
			runLen++
			if runLen >= blocksNeeded {
				found = true
				break
			}
		} else {
			runLen = 0
		}
	}

	if !found {
		if a.metrics != nil {
			a.metrics.RecordNoSpace()
		}
		return Location{}, sliceerr.ErrNoSpace
	}

	for b := runStart; b < runStart+blocksNeeded; b++ {
		a.setFree(b, false)
	}

	if a.metrics != nil {
		a.metrics.RecordAllocation(blocksNeeded)
	}

	return Location{Offset: runStart * a.blockSize, Blocks: blocksNeeded}, nil
}

// Free releases blocks starting at offset/blockSize. Blocks beyond
// totalBlocks are silently ignored, matching the permissive behavior
// required when a freed location may have been truncated on recovery.
// Freeing an already-free block is a no-op.
func (a *Allocator) Free(offset, blocks uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := offset / a.blockSize
	for b := start; b < start+blocks; b++ {
		if b >= a.totalBlocks {
			break
		}
		a.setFree(b, true)
	}
}

// MarkUsed marks blocks starting at offset/blockSize as used, for recovery
// after restart. Returns an error if the range extends beyond the device.
func (a *Allocator) MarkUsed(offset, blocks uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := offset / a.blockSize
	if start+blocks > a.totalBlocks {
		return fmt.Errorf("allocator: block range out of bounds: %d+%d > %d", start, blocks, a.totalBlocks)
	}
	for b := start; b < start+blocks; b++ {
		a.setFree(b, false)
	}
	return nil
}

// UsedBlocks returns the number of currently-used blocks.
func (a *Allocator) UsedBlocks() uint64 {
	return a.TotalBlocks() - a.FreeBlocks()
}

// FreeBlocks returns the number of currently-free blocks.
func (a *Allocator) FreeBlocks() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count uint64
	for _, w := range a.free {
		count += uint64(popcount(w))
	}
	return count
}

// TotalBlocks returns the device's fixed block count.
func (a *Allocator) TotalBlocks() uint64 {
	return a.totalBlocks
}

// BlockSize returns the device's fixed block size in bytes.
func (a *Allocator) BlockSize() uint64 {
	return a.blockSize
}

// FragmentationRatio is 1 - largest_free_run/total_free_blocks, or 0 when
// there are no free blocks. A fully contiguous free region yields 0;
// maximally scattered free blocks approach 1.
func (a *Allocator) FragmentationRatio() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var totalFree, largestRun, currentRun uint64
	for b := uint64(0); b < a.totalBlocks; b++ {
		if a.isFree(b) {
			totalFree++
			currentRun++
			if currentRun > largestRun {
				largestRun = currentRun
			}
		} else {
			currentRun = 0
		}
	}

	ratio := 0.0
	if totalFree != 0 {
		ratio = 1 - float64(largestRun)/float64(totalFree)
	}
	if a.metrics != nil {
		a.metrics.SetFragmentationRatio(ratio)
	}
	return ratio
}

func popcount(w uint64) int {
	count := 0
	for w != 0 {
		w &= w - 1
		count++
	}
	return count
}
