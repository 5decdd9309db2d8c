// Package subrequest implements the bounded-concurrency origin fetcher
// with retry/backoff described in spec.md §4.2. Concurrency is bounded by
// golang.org/x/sync/semaphore, grounded on the permit-count knobs already
// present in the teacher's offloader config (pkg/payload/offloader/types.go,
// ParallelDownloads/MaxParallelUploads); retries are driven by
// github.com/cenkalti/backoff/v4, promoted here from an indirect teacher
// dependency to a directly used one.
package subrequest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marmos91/sliceproxy/internal/telemetry"
	"github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/sliceerr"
	"golang.org/x/sync/semaphore"
)

// Result is one slice's fetch outcome, per spec.md §4.2.
type Result struct {
	SliceIndex uint64
	Data       []byte
	Status     int
	Headers    http.Header
}

// Config tunes the manager's concurrency and retry behavior.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

// DefaultConfig returns sensible defaults for BaseBackoff/MaxBackoff; the
// original implementation's example (subrequest_manager_example.rs)
// constructs a manager from just (maxConcurrent, maxRetries), so those two
// fields have no defaults here - callers must set them.
func DefaultConfig(maxConcurrent, maxRetries int) Config {
	return Config{
		MaxConcurrent: maxConcurrent,
		MaxRetries:    maxRetries,
		BaseBackoff:   100 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
	}
}

// Metrics observes subrequest activity. A nil Metrics is always safe:
// every call site checks for nil before calling through.
type Metrics interface {
	RecordAttempt(status int, err error)
	RecordRetry()
	ObserveLatency(duration time.Duration)
}

// Manager is the bounded-concurrency, retrying origin fetcher.
type Manager struct {
	transport origin.Transport
	cfg       Config
	sem       *semaphore.Weighted
	metrics   Metrics
}

// New creates a Manager with maxConcurrent in-flight subrequests and
// maxRetries retry attempts per subrequest, matching the constructor shape
// demonstrated by the original implementation's example.
func New(transport origin.Transport, maxConcurrent, maxRetries int) *Manager {
	return NewWithConfig(transport, DefaultConfig(maxConcurrent, maxRetries))
}

// NewWithConfig creates a Manager with full control over backoff timing.
func NewWithConfig(transport origin.Transport, cfg Config) *Manager {
	return &Manager{
		transport: transport,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// NewWithMetrics creates a Manager that reports attempt/retry/latency
// observations to m.
func NewWithMetrics(transport origin.Transport, cfg Config, m Metrics) *Manager {
	mgr := NewWithConfig(transport, cfg)
	mgr.metrics = m
	return mgr
}

// FetchSlices fetches every spec concurrently, bounded by MaxConcurrent
// in-flight subrequests, and returns results in input order regardless of
// completion order. Cancelling ctx cancels all outstanding subrequests
// promptly and releases their permits; no result is produced for specs
// that never started.
func (m *Manager) FetchSlices(ctx context.Context, specs []rangespec.SliceSpec, url string) ([]Result, error) {
	results := make([]Result, len(specs))
	errs := make([]error, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			// Context already cancelled: no further subrequests launched.
			errs[i] = sliceerr.ErrCancelled
			continue
		}

		wg.Add(1)
		go func(i int, spec rangespec.SliceSpec) {
			defer wg.Done()
			defer m.sem.Release(1)

			res, err := m.fetchOne(ctx, spec, url)
			results[i] = res
			errs[i] = err
		}(i, spec)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("subrequest manager: slice %d: %w", specs[i].Index, err)
		}
	}
	return results, nil
}

// fetchOne issues the range-GET for a single slice, retrying transient
// failures with full-jitter exponential backoff up to MaxRetries times.
func (m *Manager) fetchOne(ctx context.Context, spec rangespec.SliceSpec, url string) (Result, error) {
	ctx, span := telemetry.StartSubrequestSpan(ctx, url, spec.Range.Start, spec.Range.End)
	defer span.End()

	var lastStatus int
	var result Result
	attempts := 0
	start := time.Now()

	operation := func() error {
		if attempts > 0 && m.metrics != nil {
			m.metrics.RecordRetry()
			span.SetAttributes(telemetry.RetryAttempt(attempts))
		}

		if ctx.Err() != nil {
			return backoff.Permanent(sliceerr.ErrCancelled)
		}

		attempts++
		res, err := m.transport.GetRange(ctx, url, spec.Range.Start, spec.Range.End)
		if err != nil {
			if m.metrics != nil {
				m.metrics.RecordAttempt(0, err)
			}
			if attempts > m.cfg.MaxRetries+1 {
				return backoff.Permanent(err)
			}
			return err // transport error: always transient, retry.
		}
		lastStatus = res.Status
		if m.metrics != nil {
			m.metrics.RecordAttempt(res.Status, nil)
		}

		if res.Status != http.StatusPartialContent && res.Status != http.StatusOK {
			if !sliceerr.IsTransient(res.Status, false) || attempts > m.cfg.MaxRetries+1 {
				return backoff.Permanent(fmt.Errorf("status %d", res.Status))
			}
			return fmt.Errorf("status %d", res.Status)
		}

		// A 206 must carry a Content-Range that matches the requested
		// offsets exactly; an origin that returns the wrong range with a
		// coincidentally-correct body length would otherwise corrupt
		// assembly undetected. This is a content disagreement, not a
		// transport failure, so it is never retried.
		if res.Status == http.StatusPartialContent {
			if !res.ContentRangeOK {
				return backoff.Permanent(sliceerr.ContentMismatch(int(spec.Index), "206 response missing Content-Range header"))
			}
			if res.ContentRangeStart != spec.Range.Start || res.ContentRangeEnd != spec.Range.End {
				return backoff.Permanent(sliceerr.ContentMismatch(int(spec.Index), fmt.Sprintf(
					"Content-Range bytes %d-%d does not match requested range %d-%d",
					res.ContentRangeStart, res.ContentRangeEnd, spec.Range.Start, spec.Range.End)))
			}
		}

		if uint64(len(res.Body)) != spec.Range.Size() {
			// Size mismatch is non-transient per spec.md §4.2.
			return backoff.Permanent(sliceerr.ContentMismatch(int(spec.Index), "body size does not match requested range"))
		}

		result = Result{SliceIndex: spec.Index, Data: res.Body, Status: res.Status, Headers: res.Headers}
		return nil
	}

	b := backoff.WithMaxRetries(newFullJitterBackOff(m.cfg.BaseBackoff, m.cfg.MaxBackoff), uint64(m.cfg.MaxRetries))
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if m.metrics != nil {
		m.metrics.ObserveLatency(time.Since(start))
	}
	if err != nil {
		return Result{}, sliceerr.SubrequestError(int(spec.Index), lastStatus, err)
	}
	return result, nil
}
