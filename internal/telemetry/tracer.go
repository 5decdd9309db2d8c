package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for the proxy's request/slice/cache/origin pipeline.
const (
	AttrOriginURL    = "origin.url"
	AttrOriginType   = "origin.type"
	AttrRangeStart   = "range.start"
	AttrRangeEnd     = "range.end"
	AttrSliceIndex   = "slice.index"
	AttrSliceCount   = "slice.count"
	AttrSliceSize    = "slice.size"
	AttrCacheHit     = "cache.hit"
	AttrCacheSource  = "cache.source" // memory, disk, origin
	AttrCacheKey     = "cache.key"
	AttrBlockCount   = "block.count"
	AttrRetryAttempt = "subrequest.attempt"
	AttrBucket       = "storage.bucket"
	AttrRegion       = "storage.region"
)

// Span names for the proxy's pipeline.
const (
	SpanProxyFetch       = "proxy.fetch"
	SpanPlannerPlan      = "planner.plan"
	SpanSliceResolve     = "slice.resolve"
	SpanSubrequestFetch  = "subrequest.fetch"
	SpanDiskCacheLookup  = "diskcache.lookup"
	SpanDiskCacheStore   = "diskcache.store"
	SpanDefragRun        = "defrag.run"
)

// OriginURL returns an attribute for the origin URL being fetched.
func OriginURL(url string) attribute.KeyValue {
	return attribute.String(AttrOriginURL, url)
}

// OriginType returns an attribute for the origin transport kind (http, s3).
func OriginType(kind string) attribute.KeyValue {
	return attribute.String(AttrOriginType, kind)
}

// RangeStart returns an attribute for a byte range's inclusive start offset.
func RangeStart(start uint64) attribute.KeyValue {
	return attribute.Int64(AttrRangeStart, int64(start))
}

// RangeEnd returns an attribute for a byte range's inclusive end offset.
func RangeEnd(end uint64) attribute.KeyValue {
	return attribute.Int64(AttrRangeEnd, int64(end))
}

// SliceIndex returns an attribute for a slice's position within a plan.
func SliceIndex(i int) attribute.KeyValue {
	return attribute.Int(AttrSliceIndex, i)
}

// SliceCount returns an attribute for the number of slices a range was planned into.
func SliceCount(n int) attribute.KeyValue {
	return attribute.Int(AttrSliceCount, n)
}

// CacheHit returns an attribute for a cache hit/miss outcome.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for which layer served a slice.
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// CacheKey returns an attribute for a slice cache key's string form.
func CacheKey(key string) attribute.KeyValue {
	return attribute.String(AttrCacheKey, key)
}

// RetryAttempt returns an attribute for a subrequest's retry attempt number.
func RetryAttempt(attempt int) attribute.KeyValue {
	return attribute.Int(AttrRetryAttempt, attempt)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// StartFetchSpan starts the root span for a proxy.Fetch call.
func StartFetchSpan(ctx context.Context, url string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{OriginURL(url)}, attrs...)
	return StartSpan(ctx, SpanProxyFetch, trace.WithAttributes(allAttrs...))
}

// StartSliceSpan starts a span for resolving a single planned slice.
func StartSliceSpan(ctx context.Context, index int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{SliceIndex(index)}, attrs...)
	return StartSpan(ctx, SpanSliceResolve, trace.WithAttributes(allAttrs...))
}

// StartSubrequestSpan starts a span for a single origin range-GET attempt.
func StartSubrequestSpan(ctx context.Context, url string, start, end uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{OriginURL(url), RangeStart(start), RangeEnd(end)}, attrs...)
	return StartSpan(ctx, SpanSubrequestFetch, trace.WithAttributes(allAttrs...))
}
