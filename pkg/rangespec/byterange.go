// Package rangespec defines the value types the slicing core is built on:
// inclusive byte ranges, slice-aligned range specs, and origin metadata.
// All types here are immutable once constructed.
package rangespec

import "github.com/marmos91/sliceproxy/pkg/sliceerr"

// ByteRange is an inclusive byte range [Start, End]. Size is End-Start+1.
type ByteRange struct {
	Start uint64
	End   uint64
}

// NewByteRange constructs a ByteRange, failing when end < start.
func NewByteRange(start, end uint64) (ByteRange, error) {
	if end < start {
		return ByteRange{}, sliceerr.InvalidRange("end before start")
	}
	return ByteRange{Start: start, End: end}, nil
}

// Size returns the number of bytes covered by the range.
func (r ByteRange) Size() uint64 {
	return r.End - r.Start + 1
}

// Overlaps reports whether r and other share at least one byte.
func (r ByteRange) Overlaps(other ByteRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// FileMetadata is origin-provided information about a URL's content,
// obtained once via the origin transport's head() before planning.
type FileMetadata struct {
	ContentLength uint64
	AcceptsRanges bool
	ContentType   string
	ETag          string
}
