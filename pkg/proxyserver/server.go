package proxyserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/sliceproxy/internal/logger"
	"github.com/marmos91/sliceproxy/pkg/config"
	"github.com/marmos91/sliceproxy/pkg/proxy"
)

// Server is the HTTP front door for a Proxy: range-GET requests, a health
// endpoint, and (optionally) a Prometheus exposition endpoint, grounded on
// the start/stop/graceful-shutdown shape of the teacher's pkg/api.Server.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer builds a Server from the service's ServerConfig. exposeMetrics
// controls whether /metrics is mounted on this same listener; callers that
// run a dedicated metrics port (cfg.Metrics.Port != cfg.Server.Port) should
// pass false and serve metrics separately.
func NewServer(cfg config.ServerConfig, p *proxy.Proxy, serviceName string, startedAt time.Time, exposeMetrics bool) *Server {
	router := NewRouter(p, serviceName, startedAt, exposeMetrics)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{server: httpServer, port: cfg.Port}
}

// Start serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("proxy server listening", "port", s.port)
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
		return fmt.Errorf("proxy server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("proxy server shutdown error: %w", err)
			logger.Error("proxy server shutdown error", "error", err)
		} else {
			logger.Info("proxy server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}
