package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request Identity
	// ========================================================================
	KeyRequestID = "request_id" // Client-facing request identifier
	KeyURL       = "url"        // Requested origin URL
	KeyMethod    = "method"     // HTTP method

	// ========================================================================
	// Byte Ranges & Slicing
	// ========================================================================
	KeyRangeStart = "range_start" // Requested byte range start (inclusive)
	KeyRangeEnd   = "range_end"   // Requested byte range end (inclusive)
	KeySliceIndex = "slice_index" // Index of the slice within a file
	KeySliceSize  = "slice_size"  // Configured slice size in bytes
	KeySliceCount = "slice_count" // Number of slices a range was split into

	// ========================================================================
	// Cache Layer (memory and disk)
	// ========================================================================
	KeyCacheKey   = "cache_key"   // Fingerprint/key identifying a cached slice
	KeyCacheHit   = "cache_hit"   // Cache hit indicator
	KeyCacheLayer = "cache_layer" // Which cache layer served/missed: memory, disk
	KeyCacheTTL   = "cache_ttl"   // Time-to-live applied to a cache entry
	KeyEvicted    = "evicted"     // Number of entries evicted

	// ========================================================================
	// Block Allocator & Raw Disk Cache
	// ========================================================================
	KeyBlockOffset        = "block_offset"        // Block index on disk
	KeyBlockCount         = "block_count"          // Number of contiguous blocks
	KeyBlockSize          = "block_size"           // Configured block size in bytes
	KeyFragmentationRatio = "fragmentation_ratio"  // Allocator fragmentation ratio
	KeyBytesMoved         = "bytes_moved"          // Bytes relocated during a defrag run

	// ========================================================================
	// Origin & Subrequests
	// ========================================================================
	KeyOrigin     = "origin"      // Origin transport type: http, s3
	KeyStatus     = "status"      // HTTP status code returned by origin
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyBucket     = "bucket"      // S3 bucket name
	KeyRegion     = "region"      // Cloud region

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyOperation  = "operation"   // Sub-operation type for complex operations
	KeySize       = "size"        // Generic byte size

	// ========================================================================
	// LogContext Fields
	// ========================================================================
	KeyProcedure = "procedure" // Procedure/operation name carried by LogContext
	KeyShare     = "share"     // Share name carried by LogContext
	KeyClientIP  = "client_ip" // Client IP address
	KeyUID       = "uid"       // Caller user ID
	KeyGID       = "gid"       // Caller group ID
	KeyHandle    = "handle"    // Opaque handle, hex-encoded
)

// Handle returns a slog.Attr for an opaque handle, formatted as lowercase hex.
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, hex.EncodeToString(h))
}

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID returns a slog.Attr for the client-facing request identifier.
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// URL returns a slog.Attr for the requested origin URL.
func URL(url string) slog.Attr {
	return slog.String(KeyURL, url)
}

// Method returns a slog.Attr for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(KeyMethod, method)
}

// RangeStart returns a slog.Attr for the requested byte range start.
func RangeStart(off int64) slog.Attr {
	return slog.Int64(KeyRangeStart, off)
}

// RangeEnd returns a slog.Attr for the requested byte range end.
func RangeEnd(off int64) slog.Attr {
	return slog.Int64(KeyRangeEnd, off)
}

// SliceIndex returns a slog.Attr for the index of a slice within a file.
func SliceIndex(idx int) slog.Attr {
	return slog.Int(KeySliceIndex, idx)
}

// SliceSize returns a slog.Attr for the configured slice size in bytes.
func SliceSize(size uint64) slog.Attr {
	return slog.Uint64(KeySliceSize, size)
}

// SliceCount returns a slog.Attr for the number of slices a range was split into.
func SliceCount(n int) slog.Attr {
	return slog.Int(KeySliceCount, n)
}

// CacheKey returns a slog.Attr for the fingerprint/key identifying a cached slice.
func CacheKey(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// CacheHit returns a slog.Attr for the cache hit indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheLayer returns a slog.Attr identifying which cache layer served/missed.
func CacheLayer(layer string) slog.Attr {
	return slog.String(KeyCacheLayer, layer)
}

// CacheTTL returns a slog.Attr for the time-to-live applied to a cache entry.
func CacheTTL(ttl string) slog.Attr {
	return slog.String(KeyCacheTTL, ttl)
}

// Evicted returns a slog.Attr for the number of entries evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// BlockOffset returns a slog.Attr for a block index on disk.
func BlockOffset(block uint64) slog.Attr {
	return slog.Uint64(KeyBlockOffset, block)
}

// BlockCount returns a slog.Attr for the number of contiguous blocks.
func BlockCount(n uint64) slog.Attr {
	return slog.Uint64(KeyBlockCount, n)
}

// BlockSize returns a slog.Attr for the configured block size in bytes.
func BlockSize(size uint64) slog.Attr {
	return slog.Uint64(KeyBlockSize, size)
}

// FragmentationRatio returns a slog.Attr for the allocator's fragmentation ratio.
func FragmentationRatio(ratio float64) slog.Attr {
	return slog.Float64(KeyFragmentationRatio, ratio)
}

// BytesMoved returns a slog.Attr for bytes relocated during a defrag run.
func BytesMoved(n uint64) slog.Attr {
	return slog.Uint64(KeyBytesMoved, n)
}

// Origin returns a slog.Attr for the origin transport type.
func Origin(kind string) slog.Attr {
	return slog.String(KeyOrigin, kind)
}

// Status returns a slog.Attr for the HTTP status code returned by origin.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Attempt returns a slog.Attr for the retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Bucket returns a slog.Attr for the S3 bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Region returns a slog.Attr for the cloud region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// DurationMs returns a slog.Attr for duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Operation returns a slog.Attr for sub-operation type.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Size returns a slog.Attr for a generic byte size.
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}
