package planner

import (
	"testing"

	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meta(contentLength uint64) rangespec.FileMetadata {
	return rangespec.FileMetadata{ContentLength: contentLength, AcceptsRanges: true}
}

func rng(start, end uint64) *rangespec.ByteRange {
	return &rangespec.ByteRange{Start: start, End: end}
}

// S1 from spec.md §8.
func TestPlanFullFile(t *testing.T) {
	specs, err := Plan(meta(4096), rng(0, 4095), 1024)
	require.NoError(t, err)
	require.Len(t, specs, 4)
	for i, s := range specs {
		assert.Equal(t, uint64(i), s.Index)
	}
}

// S2 from spec.md §8.
func TestPlanAndAssembleMidRange(t *testing.T) {
	specs, err := Plan(meta(4096), rng(500, 2500), 1024)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2}, []uint64{specs[0].Index, specs[1].Index, specs[2].Index})

	payloads := []SlicePayload{
		{Spec: specs[0], Payload: make([]byte, 1024)},
		{Spec: specs[1], Payload: make([]byte, 1024)},
		{Spec: specs[2], Payload: make([]byte, 1024)},
	}
	for i := range payloads {
		for j := range payloads[i].Payload {
			payloads[i].Payload[j] = byte(i)
		}
	}

	out, err := Assemble(payloads, rangespec.ByteRange{Start: 500, End: 2500})
	require.NoError(t, err)
	assert.Len(t, out, 2001)
	assert.Equal(t, byte(0), out[0])
	assert.Equal(t, byte(2), out[len(out)-1])
}

func TestPlanInvalidRange(t *testing.T) {
	_, err := Plan(meta(4096), rng(100, 50), 1024)
	assert.Error(t, err)

	_, err = Plan(meta(4096), rng(0, 4096), 1024)
	assert.Error(t, err)
}

func TestPlanUnranged(t *testing.T) {
	specs, err := Plan(meta(2500), nil, 1024)
	require.NoError(t, err)
	assert.Len(t, specs, 3)
	assert.Equal(t, rangespec.ByteRange{Start: 2048, End: 2499}, specs[2].Range)
}

func TestAssembleShortSlice(t *testing.T) {
	specs, err := Plan(meta(4096), rng(0, 1023), 1024)
	require.NoError(t, err)

	_, err = Assemble([]SlicePayload{{Spec: specs[0], Payload: make([]byte, 10)}}, rangespec.ByteRange{Start: 0, End: 1023})
	assert.Error(t, err)
}
