// Package sliceerr defines the error taxonomy shared across the slicing
// proxy core. Errors are classified by Kind rather than by Go type, so
// callers can branch on Kind() while still using errors.Is/errors.As for
// the sentinels that carry no extra data.
package sliceerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error without binding callers to a concrete type.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota

	// KindInvalidRange marks a malformed or out-of-bounds client range.
	KindInvalidRange

	// KindMetadataFetchError marks an origin HEAD failure.
	KindMetadataFetchError

	// KindSubrequestError marks an origin GET failure after all retries.
	KindSubrequestError

	// KindContentMismatch marks a Content-Range or body size disagreement.
	KindContentMismatch

	// KindNoSpace marks an allocator unable to satisfy a contiguous run.
	KindNoSpace

	// KindCorruption marks a checksum or header mismatch on disk read.
	KindCorruption

	// KindCancelled marks cooperative cancellation; not logged as an error.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRange:
		return "invalid_range"
	case KindMetadataFetchError:
		return "metadata_fetch_error"
	case KindSubrequestError:
		return "subrequest_error"
	case KindContentMismatch:
		return "content_mismatch"
	case KindNoSpace:
		return "no_space"
	case KindCorruption:
		return "corruption"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinel errors for kinds that carry no extra payload. Use errors.Is
// against these directly when no slice index or cause needs attaching.
var (
	ErrNoSpace    = &Error{kind: KindNoSpace, msg: "allocator: no contiguous run available", SliceIndex: -1}
	ErrCorruption = &Error{kind: KindCorruption, msg: "disk cache: checksum or header mismatch", SliceIndex: -1}
	ErrCancelled  = &Error{kind: KindCancelled, msg: "operation cancelled", SliceIndex: -1}
	ErrShortSlice = &Error{kind: KindContentMismatch, msg: "planner: supplied slice payload shorter than spec", SliceIndex: -1}
)

// Error is the concrete error type for the core. SliceIndex is -1 when the
// error is not attributable to a single slice (e.g. a metadata fetch).
type Error struct {
	kind       Kind
	msg        string
	SliceIndex int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.SliceIndex >= 0 {
			return fmt.Sprintf("%s (slice %d): %v", e.msg, e.SliceIndex, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.msg, e.Cause)
	}
	if e.SliceIndex >= 0 {
		return fmt.Sprintf("%s (slice %d)", e.msg, e.SliceIndex)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind reports the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Is makes sentinel comparison work across wrapping: two *Error values are
// equal for errors.Is purposes when they share the same Kind and target is
// itself a *Error with no Cause (i.e. a sentinel from this package).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Cause == nil && e.kind == t.kind
}

// InvalidRange builds a KindInvalidRange error for the given client range.
func InvalidRange(reason string) error {
	return &Error{kind: KindInvalidRange, msg: "invalid client range: " + reason, SliceIndex: -1}
}

// MetadataFetchError wraps an origin HEAD failure with its HTTP status.
func MetadataFetchError(status int, cause error) error {
	return &Error{
		kind:       KindMetadataFetchError,
		msg:        fmt.Sprintf("metadata fetch failed (status %d)", status),
		SliceIndex: -1,
		Cause:      cause,
	}
}

// SubrequestError wraps an exhausted-retries origin GET failure.
func SubrequestError(sliceIndex, lastStatus int, cause error) error {
	return &Error{
		kind:       KindSubrequestError,
		msg:        fmt.Sprintf("subrequest failed after retries (last status %d)", lastStatus),
		SliceIndex: sliceIndex,
		Cause:      cause,
	}
}

// ContentMismatch reports a Content-Range or body-size disagreement for a slice.
func ContentMismatch(sliceIndex int, reason string) error {
	return &Error{kind: KindContentMismatch, msg: "content mismatch: " + reason, SliceIndex: sliceIndex}
}

// IsTransient reports whether an HTTP status or a transport-level error
// should be retried per the SubrequestManager's retry policy: connect
// errors and read timeouts (transportErr true), 5xx, 408, and 429.
func IsTransient(status int, transportErr bool) bool {
	if transportErr {
		return true
	}
	if status >= 500 {
		return true
	}
	return status == 408 || status == 429
}

// As is a thin re-export so callers need not import both errors and sliceerr.
func As(err error, target any) bool { return errors.As(err, target) }
