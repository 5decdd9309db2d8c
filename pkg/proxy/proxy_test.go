package proxy

import (
	"context"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/sliceproxy/pkg/diskcache"
	origintransport "github.com/marmos91/sliceproxy/pkg/origin"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/slicecache"
	"github.com/marmos91/sliceproxy/pkg/subrequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	contentLength uint64
	fetches       atomic.Int32
}

func (f *fakeTransport) Head(ctx context.Context, url string) (rangespec.FileMetadata, error) {
	return rangespec.FileMetadata{ContentLength: f.contentLength, AcceptsRanges: true}, nil
}

func (f *fakeTransport) GetRange(ctx context.Context, url string, start, end uint64) (origintransport.RangeResult, error) {
	f.fetches.Add(1)
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

func newTestProxy(t *testing.T, transport *fakeTransport) *Proxy {
	t.Helper()
	dc, err := diskcache.Open(filepath.Join(t.TempDir(), "c.bin"), 1<<20, 4096, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { dc.Close() })

	mc := slicecache.New(time.Hour)
	mgr := subrequest.New(transport, 4, 2)

	cfg := Config{SliceSize: 1024, EnableCache: true, MaxConcurrent: 4, MaxRetries: 2}
	return New(cfg, transport, mc, dc, mgr)
}

func TestFetchAssemblesMultipleSlices(t *testing.T) {
	transport := &fakeTransport{contentLength: 4096}
	p := newTestProxy(t, transport)

	resp, err := p.Fetch(context.Background(), "http://example.com/f", &rangespec.ByteRange{Start: 0, End: 4095})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 4096)
}

func TestFetchCachesSlicesInMemory(t *testing.T) {
	transport := &fakeTransport{contentLength: 4096}
	p := newTestProxy(t, transport)

	r := &rangespec.ByteRange{Start: 0, End: 1023}
	_, err := p.Fetch(context.Background(), "http://example.com/f", r)
	require.NoError(t, err)
	calls := transport.fetches.Load()

	_, err = p.Fetch(context.Background(), "http://example.com/f", r)
	require.NoError(t, err)
	assert.Equal(t, calls, transport.fetches.Load())
}
