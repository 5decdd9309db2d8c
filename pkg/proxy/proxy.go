// Package proxy wires the slicing core's six components behind a single
// entry point, the way the teacher's BlockService wraps a cache and a
// transfer manager behind simple ReadAt/WriteAt calls
// (pkg/blocks/service.go). The proxy session lifecycle and HTTP framing
// themselves remain out of scope per spec.md §1; this package is the
// thing an HTTP handler would call into.
package proxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/sliceproxy/internal/telemetry"
	"github.com/marmos91/sliceproxy/pkg/diskcache"
	"github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/planner"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/slicecache"
	"github.com/marmos91/sliceproxy/pkg/sliceerr"
	"github.com/marmos91/sliceproxy/pkg/subrequest"
)

// Config holds the configuration surface named in spec.md §6.
type Config struct {
	SliceSize     uint64
	EnableCache   bool
	MaxConcurrent int
	MaxRetries    int
}

// Proxy orchestrates planning, the layered caches, and origin fetches for
// a single client range request.
type Proxy struct {
	cfg       Config
	transport origin.Transport
	memCache  *slicecache.Cache
	diskCache *diskcache.Cache
	manager   *subrequest.Manager
}

// New wires a Proxy from its already-constructed components.
func New(cfg Config, transport origin.Transport, memCache *slicecache.Cache, diskCache *diskcache.Cache, manager *subrequest.Manager) *Proxy {
	return &Proxy{cfg: cfg, transport: transport, memCache: memCache, diskCache: diskCache, manager: manager}
}

// Response is what a handler streams back to the client.
type Response struct {
	Metadata rangespec.FileMetadata
	Body     []byte
}

// Fetch resolves a client range request for url end to end: metadata
// lookup, planning, layered cache lookup with single-fill origin
// dispatch on double-miss, and final assembly.
func (p *Proxy) Fetch(ctx context.Context, url string, clientRange *rangespec.ByteRange) (Response, error) {
	ctx, span := telemetry.StartFetchSpan(ctx, url)
	defer span.End()

	meta, err := p.transport.Head(ctx, url)
	if err != nil {
		return Response{}, fmt.Errorf("proxy: head %s: %w", url, err)
	}

	specs, err := planner.Plan(meta, clientRange, p.cfg.SliceSize)
	if err != nil {
		return Response{}, err
	}
	span.SetAttributes(telemetry.SliceCount(len(specs)))

	payloads := make([]planner.SlicePayload, len(specs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, len(specs))

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec rangespec.SliceSpec) {
			defer wg.Done()
			data, err := p.resolveSlice(ctx, url, i, spec)
			mu.Lock()
			payloads[i] = planner.SlicePayload{Spec: spec, Payload: data}
			errs[i] = err
			mu.Unlock()
		}(i, spec)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return Response{}, err
		}
	}

	var out []byte
	if clientRange != nil {
		out, err = planner.Assemble(payloads, *clientRange)
	} else {
		out, err = planner.Assemble(payloads, rangespec.ByteRange{Start: 0, End: meta.ContentLength - 1})
	}
	if err != nil {
		return Response{}, err
	}

	return Response{Metadata: meta, Body: out}, nil
}

// resolveSlice satisfies one slice from the in-memory cache, then the disk
// cache, and only on a double-miss dispatches a single-fill origin fetch
// that populates both caches.
func (p *Proxy) resolveSlice(ctx context.Context, url string, index int, spec rangespec.SliceSpec) ([]byte, error) {
	ctx, span := telemetry.StartSliceSpan(ctx, index, telemetry.RangeStart(spec.Range.Start), telemetry.RangeEnd(spec.Range.End))
	defer span.End()

	if !p.cfg.EnableCache {
		span.SetAttributes(telemetry.CacheSource("origin"))
		return p.fetchAndStore(ctx, url, spec)
	}

	fill := func(ctx context.Context) ([]byte, error) {
		if p.diskCache != nil {
			if data, ok, err := p.diskCache.Get(slicecache.GenerateCacheKey(url, spec.Range)); err == nil && ok {
				span.SetAttributes(telemetry.CacheHit(true), telemetry.CacheSource("disk"))
				return data, nil
			} else if err != nil && !isCorruption(err) {
				return nil, err
			}
		}
		span.SetAttributes(telemetry.CacheHit(false), telemetry.CacheSource("origin"))
		return p.fetchAndStore(ctx, url, spec)
	}

	return p.memCache.GetOrFill(ctx, url, spec.Range, fill)
}

func (p *Proxy) fetchAndStore(ctx context.Context, url string, spec rangespec.SliceSpec) ([]byte, error) {
	results, err := p.manager.FetchSlices(ctx, []rangespec.SliceSpec{spec}, url)
	if err != nil {
		return nil, err
	}
	data := results[0].Data

	if p.cfg.EnableCache && p.diskCache != nil {
		_ = p.diskCache.Put(slicecache.GenerateCacheKey(url, spec.Range), data)
	}
	return data, nil
}

func isCorruption(err error) bool {
	var e *sliceerr.Error
	return sliceerr.As(err, &e) && e.Kind() == sliceerr.KindCorruption
}
