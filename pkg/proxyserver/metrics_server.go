package proxyserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/sliceproxy/internal/logger"
	"github.com/marmos91/sliceproxy/pkg/metrics"
)

// MetricsServer exposes the shared Prometheus registry on its own port,
// used when cfg.Metrics.Port differs from cfg.Server.Port so metrics
// scraping doesn't compete with range-GET traffic.
type MetricsServer struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewMetricsServer builds a dedicated metrics listener. Returns nil if
// metrics are disabled.
func NewMetricsServer(port int) *MetricsServer {
	if !metrics.IsEnabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux},
		port:   port,
	}
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *MetricsServer) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (s *MetricsServer) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		}
	})
	return shutdownErr
}
