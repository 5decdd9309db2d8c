package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadExtractsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("ETag", `"abc123"`)
	}))
	defer srv.Close()

	tr := New(nil)
	meta, err := tr.Head(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), meta.ContentLength)
	assert.True(t, meta.AcceptsRanges)
	assert.Equal(t, `"abc123"`, meta.ETag)
}

func TestGetRangeReturnsPartialContent(t *testing.T) {
	body := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 2-4/10")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[2:5])
	}))
	defer srv.Close()

	tr := New(nil)
	res, err := tr.GetRange(t.Context(), srv.URL, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, res.Status)
	assert.Equal(t, []byte("234"), res.Body)
	assert.True(t, res.ContentRangeOK)
	assert.Equal(t, uint64(2), res.ContentRangeStart)
	assert.Equal(t, uint64(4), res.ContentRangeEnd)
	assert.Equal(t, uint64(10), res.ContentRangeTotal)
}

func TestGetRangeWithoutContentRangeHeader(t *testing.T) {
	body := []byte("0123456789")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[2:5])
	}))
	defer srv.Close()

	tr := New(nil)
	res, err := tr.GetRange(t.Context(), srv.URL, 2, 4)
	require.NoError(t, err)
	assert.False(t, res.ContentRangeOK)
}
