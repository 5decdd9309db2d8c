// Package http implements origin.Transport over a plain net/http client,
// issuing HEAD for metadata and range-GET for slice fetches.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
)

// Transport is an origin.Transport backed by an *http.Client.
type Transport struct {
	Client *http.Client
}

// New creates a Transport. A nil client falls back to http.DefaultClient.
func New(client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{Client: client}
}

// Head issues a HEAD request and extracts FileMetadata from the response
// headers named in spec.md §6.
func (t *Transport) Head(ctx context.Context, url string) (rangespec.FileMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return rangespec.FileMetadata{}, fmt.Errorf("origin/http: build HEAD request: %w", err)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return rangespec.FileMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return rangespec.FileMetadata{}, &statusError{status: resp.StatusCode}
	}

	contentLength, _ := strconv.ParseUint(resp.Header.Get("Content-Length"), 10, 64)

	return rangespec.FileMetadata{
		ContentLength: contentLength,
		AcceptsRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		ContentType:   resp.Header.Get("Content-Type"),
		ETag:          resp.Header.Get("ETag"),
	}, nil
}

// GetRange issues a range-GET with an inclusive Range header.
func (t *Transport) GetRange(ctx context.Context, url string, start, end uint64) (origin.RangeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return origin.RangeResult{}, fmt.Errorf("origin/http: build GET request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := t.Client.Do(req)
	if err != nil {
		return origin.RangeResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return origin.RangeResult{}, fmt.Errorf("origin/http: read body: %w", err)
	}

	result := origin.RangeResult{Status: resp.StatusCode, Headers: resp.Header, Body: body}

	if crStart, crEnd, crTotal, ok := origin.ParseContentRange(resp.Header.Get("Content-Range")); ok {
		result.ContentRangeStart = crStart
		result.ContentRangeEnd = crEnd
		result.ContentRangeTotal = crTotal
		result.ContentRangeOK = true
	}

	return result, nil
}

// statusError carries an HTTP status code for classification by callers
// deciding retryability (sliceerr.IsTransient).
type statusError struct{ status int }

func (e *statusError) Error() string { return fmt.Sprintf("origin/http: HEAD returned status %d", e.status) }

// Status returns the HTTP status code that produced this error.
func (e *statusError) Status() int { return e.status }
