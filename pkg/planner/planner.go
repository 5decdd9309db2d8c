// Package planner implements SlicePlanner: translating a client byte
// range into the minimal covering set of slice-aligned subranges, and
// reassembling fetched slice payloads back into the client's requested
// bytes, per spec.md §4.1.
package planner

import (
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/sliceerr"
)

// Plan computes the ordered, duplicate-free sequence of SliceSpec that
// covers clientRange for a file described by metadata, given the
// configured sliceSize. A nil clientRange plans the whole file (an
// unranged client request).
func Plan(metadata rangespec.FileMetadata, clientRange *rangespec.ByteRange, sliceSize uint64) ([]rangespec.SliceSpec, error) {
	var c0, c1 uint64
	if clientRange == nil {
		if metadata.ContentLength == 0 {
			return nil, nil
		}
		c0, c1 = 0, metadata.ContentLength-1
	} else {
		c0, c1 = clientRange.Start, clientRange.End
	}

	if c0 > c1 {
		return nil, sliceerr.InvalidRange("start after end")
	}
	if metadata.ContentLength > 0 && c1 >= metadata.ContentLength {
		return nil, sliceerr.InvalidRange("end beyond content length")
	}

	firstIdx := rangespec.IndexForOffset(c0, sliceSize)
	lastIdx := rangespec.IndexForOffset(c1, sliceSize)

	specs := make([]rangespec.SliceSpec, 0, lastIdx-firstIdx+1)
	for idx := firstIdx; idx <= lastIdx; idx++ {
		r := rangespec.Bounds(idx, sliceSize, metadata.ContentLength)
		specs = append(specs, rangespec.NewSliceSpec(idx, r))
	}
	return specs, nil
}

// SlicePayload pairs a plan entry with its fetched bytes, the shape
// Assemble consumes.
type SlicePayload struct {
	Spec    rangespec.SliceSpec
	Payload []byte
}

// Assemble concatenates the requested sub-range of each slice's payload,
// in plan order, yielding exactly clientRange.Size() bytes. It returns
// sliceerr.ErrShortSlice if a payload is smaller than its spec claims.
func Assemble(plan []SlicePayload, clientRange rangespec.ByteRange) ([]byte, error) {
	out := make([]byte, 0, clientRange.Size())

	for _, sp := range plan {
		sliceStart := sp.Spec.Range.Start
		sliceEnd := sp.Spec.Range.End

		if uint64(len(sp.Payload)) < sliceEnd-sliceStart+1 {
			return nil, sliceerr.ErrShortSlice
		}

		from := maxU64(clientRange.Start, sliceStart) - sliceStart
		to := minU64(clientRange.End, sliceEnd) - sliceStart

		out = append(out, sp.Payload[from:to+1]...)
	}

	return out, nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
