package proxyserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/sliceproxy/internal/cli/health"
	"github.com/marmos91/sliceproxy/internal/logger"
	"github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/marmos91/sliceproxy/pkg/proxy"
)

// NewRouter builds the chi router exposing the proxy's range-GET handler
// plus operational endpoints, mirroring the middleware stack and route
// grouping of the teacher's pkg/api/router.go.
//
// Routes:
//   - GET /health - liveness probe
//   - GET /fetch?url=<origin-url> - range-GET proxy entry point
//   - GET /metrics - Prometheus exposition, when metrics are enabled and
//     not served on their own port (see cmd/sliceproxy's use of
//     cfg.Metrics.Port)
func NewRouter(p *proxy.Proxy, serviceName string, startedAt time.Time, exposeMetrics bool) http.Handler {
	r := chi.NewRouter()

	r.Use(uuidRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/health", http.StatusTemporaryRedirect)
	})
	r.Get("/health", healthHandler(serviceName, startedAt))
	r.Handle("/fetch", newFetchHandler(p))

	if exposeMetrics && metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	return r
}

// healthHandler reports liveness and uptime in the shape internal/cli/health
// decodes on the status-command side of the same binary.
func healthHandler(serviceName string, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		uptime := now.Sub(startedAt)

		resp := health.Response{
			Status:    "healthy",
			Timestamp: now.Format(time.RFC3339),
		}
		resp.Data.Service = serviceName
		resp.Data.StartedAt = startedAt.UTC().Format(time.RFC3339)
		resp.Data.Uptime = uptime.String()
		resp.Data.UptimeSec = int64(uptime.Seconds())

		writeJSON(w, http.StatusOK, resp)
	}
}

// uuidRequestID stamps every request with a random UUID rather than chi's
// default per-process incrementing counter, so request IDs stay unique
// across restarts and across the multiple sliceproxy instances a deployment
// typically runs behind a load balancer.
func uuidRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, uuid.New().String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs requests through the internal logger, matching the
// dual-level (DEBUG start, INFO completion) shape of the teacher's
// pkg/api/router.go requestLogger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.URL(r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("request completed",
			logger.RequestID(requestID),
			logger.Method(r.Method),
			logger.URL(r.URL.String()),
			logger.Status(ww.Status()),
			logger.DurationMs(float64(time.Since(start).Milliseconds())),
		)
	})
}
