// Package proxyserver wires pkg/proxy behind an http.Handler, the way the
// teacher's pkg/api package wraps a registry behind chi routes
// (pkg/api/router.go, pkg/api/server.go). HTTP framing is deliberately out
// of scope for the slicing core per spec.md §1; this package is the thing
// that calls into it.
package proxyserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/marmos91/sliceproxy/internal/logger"
	"github.com/marmos91/sliceproxy/pkg/proxy"
	"github.com/marmos91/sliceproxy/pkg/rangespec"
	"github.com/marmos91/sliceproxy/pkg/sliceerr"
)

// fetchHandler adapts proxy.Proxy to net/http. A client issues
//
//	GET /fetch?url=<origin-url>
//	Range: bytes=500-2500
//
// and receives a 206 Partial Content (or 200 for an unranged request)
// carrying the assembled bytes, mirroring the request/response shape
// the SubrequestManager itself issues against the origin per spec.md §4.2.
type fetchHandler struct {
	proxy *proxy.Proxy
}

func newFetchHandler(p *proxy.Proxy) *fetchHandler {
	return &fetchHandler{proxy: p}
}

func (h *fetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	originURL := r.URL.Query().Get("url")
	if originURL == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: url")
		return
	}

	clientRange, err := parseRangeHeader(r.Header.Get("Range"))
	if err != nil {
		writeError(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
		return
	}

	resp, err := h.proxy.Fetch(r.Context(), originURL, clientRange)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	if resp.Metadata.ContentType != "" {
		w.Header().Set("Content-Type", resp.Metadata.ContentType)
	}
	if resp.Metadata.ETag != "" {
		w.Header().Set("ETag", resp.Metadata.ETag)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))

	if clientRange != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", clientRange.Start, clientRange.End, resp.Metadata.ContentLength))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if _, err := w.Write(resp.Body); err != nil {
		logger.Warn("fetch response write failed", "url", originURL, "error", err)
	}
}

// parseRangeHeader parses a single-range "bytes=start-end" request header,
// per spec.md §4.2's request format. A missing header plans the whole
// object (nil clientRange); multi-range requests are rejected.
func parseRangeHeader(header string) (*rangespec.ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, errors.New("invalid Range header: must start with \"bytes=\"")
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return nil, errors.New("multi-range requests are not supported")
	}

	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.New("invalid Range header: suffix and open-ended ranges are not supported")
	}

	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid Range header: %w", err)
	}
	end, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid Range header: %w", err)
	}

	r, err := rangespec.NewByteRange(start, end)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// writeFetchError maps a sliceerr.Kind to an HTTP status, per the
// propagation rules in spec.md §7.
func writeFetchError(w http.ResponseWriter, err error) {
	var se *sliceerr.Error
	if !errors.As(err, &se) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	switch se.Kind() {
	case sliceerr.KindInvalidRange:
		writeError(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
	case sliceerr.KindMetadataFetchError, sliceerr.KindSubrequestError:
		writeError(w, http.StatusBadGateway, err.Error())
	case sliceerr.KindContentMismatch:
		writeError(w, http.StatusBadGateway, err.Error())
	case sliceerr.KindCancelled:
		writeError(w, 499, err.Error()) // client closed request, nginx convention
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":"error","error":%q}`, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON response", "error", err)
	}
}
