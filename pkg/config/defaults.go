package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/sliceproxy/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. It is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults, mirroring the dispatch-per-section shape the teacher uses.
//
// Default Strategy:
//   - Zero values (0, "", false) are replaced with defaults.
//   - Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyCoreDefaults(cfg)
	applyRawDiskDefaults(&cfg.RawDisk)
	applyDefragDefaults(&cfg.Defrag)
	applyOriginDefaults(&cfg.Origin)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry and Pyroscope defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry).

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling).

	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets Prometheus metrics server defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyServerDefaults sets HTTP listener defaults for the proxy's own
// range-GET/health endpoint, mirroring the teacher's APIConfig.applyDefaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyCoreDefaults sets defaults for the slicing core's own configuration
// surface, per spec.md §6 and the test_config_loading.rs-derived floor
// recorded in SPEC_FULL.md's SUPPLEMENTED FEATURES section: a config file
// that supplies only slice_size still gets max_concurrent_subrequests=4,
// max_retries=3, enable_cache=true.
func applyCoreDefaults(cfg *Config) {
	if cfg.SliceSize == 0 {
		cfg.SliceSize = bytesize.ByteSize(bytesize.MiB) // 1 MiB
	}
	if cfg.MaxConcurrentSubrequests == 0 {
		cfg.MaxConcurrentSubrequests = 4
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.EnableCache == nil {
		enabled := true
		cfg.EnableCache = &enabled
	}
}

// applyRawDiskDefaults sets disk cache geometry defaults.
func applyRawDiskDefaults(cfg *RawDiskConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join("/var/lib/sliceproxy", "cache.bin")
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = bytesize.ByteSize(bytesize.GiB) // 1 GiB
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = bytesize.ByteSize(4096)
	}
}

// applyDefragDefaults sets online defragmentation trigger defaults. The
// 0.3 threshold matches DefragConfig::default().fragmentation_threshold
// from tests/test_defrag_simple.rs, recorded in SPEC_FULL.md.
func applyDefragDefaults(cfg *DefragConfig) {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.3
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 2 * time.Minute
	}
	if cfg.MaxMoveBytes == 0 {
		cfg.MaxMoveBytes = bytesize.ByteSize(64 * bytesize.MiB) // 64 MiB per run
	}
}

// applyOriginDefaults sets origin transport defaults.
func applyOriginDefaults(cfg *OriginConfig) {
	if cfg.Type == "" {
		cfg.Type = "http"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}

	ApplyDefaults(cfg)
	return cfg
}
