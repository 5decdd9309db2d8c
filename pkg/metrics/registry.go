// Package metrics owns the process-wide Prometheus registry and the
// enabled/disabled switch the rest of the tree checks before allocating
// any metric. When metrics are disabled, collectors are never registered
// and every instrumented call is a nil-receiver no-op, so the hot path
// pays nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry enables metrics collection and creates the shared registry.
// Call once during startup, before constructing any metrics-aware
// component. Calling it again is safe and replaces the registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the shared registry. Only meaningful after
// InitRegistry; callers that might run before it should check IsEnabled
// first.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
