package proxyserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sliceproxy/pkg/diskcache"
	origintransport "github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/proxy"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/slicecache"
	"github.com/marmos91/sliceproxy/pkg/subrequest"
)

type fakeTransport struct {
	contentLength uint64
}

func (f *fakeTransport) Head(ctx context.Context, url string) (rangespec.FileMetadata, error) {
	return rangespec.FileMetadata{ContentLength: f.contentLength, AcceptsRanges: true, ContentType: "application/octet-stream"}, nil
}

func (f *fakeTransport) GetRange(ctx context.Context, url string, start, end uint64) (origintransport.RangeResult, error) {
	size := end - start + 1
	body := make([]byte, size)
	for i := range body {
		body[i] = byte(start)
	}
	return origintransport.RangeResult{
		Status: http.StatusPartialContent, Body: body,
		ContentRangeOK: true, ContentRangeStart: start, ContentRangeEnd: end,
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	transport := &fakeTransport{contentLength: 4096}

	dc, err := diskcache.Open(filepath.Join(t.TempDir(), "c.bin"), 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { dc.Close() })

	mc := slicecache.New(time.Hour)
	mgr := subrequest.New(transport, 4, 2)
	p := proxy.New(proxy.Config{SliceSize: 1024, EnableCache: true, MaxConcurrent: 4, MaxRetries: 2}, transport, mc, dc, mgr)

	return NewRouter(p, "sliceproxy", time.Now(), false)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestFetchEndpointUnranged(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/fetch?url=http://example.com/f", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Body.Bytes(), 4096)
}

func TestFetchEndpointRanged(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/fetch?url=http://example.com/f", nil)
	req.Header.Set("Range", "bytes=500-1500")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 500-1500/4096", rec.Header().Get("Content-Range"))
	assert.Len(t, rec.Body.Bytes(), 1001)
}

func TestFetchEndpointMissingURL(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/fetch", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchEndpointInvalidRangeHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/fetch?url=http://example.com/f", nil)
	req.Header.Set("Range", "bytes=100-50")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}
