package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/sliceproxy/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the sliceproxy configuration surface named in spec.md §6.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (SLICEPROXY_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and Pyroscope
	// continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the HTTP listener that exposes the proxy's
	// range-GET handler and health endpoint.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// SliceSize is the alignment and size, in bytes, of each slice the
	// planner carves a client range into. Must be at least 64 KiB.
	// Accepts human-readable sizes in config files, e.g. "1Mi", "512Ki".
	SliceSize bytesize.ByteSize `mapstructure:"slice_size" validate:"required,gte=65536" yaml:"slice_size"`

	// MaxConcurrentSubrequests bounds the SubrequestManager's semaphore.
	MaxConcurrentSubrequests int `mapstructure:"max_concurrent_subrequests" validate:"required,gt=0" yaml:"max_concurrent_subrequests"`

	// MaxRetries is the maximum retry attempts per subrequest, beyond the
	// initial attempt.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries"`

	// EnableCache bypasses the in-memory SliceCache entirely when false;
	// every slice is resolved straight from the disk cache or origin. A
	// nil value means "not set"; ApplyDefaults turns that into true so a
	// bool zero value can't be confused with an explicit false.
	EnableCache *bool `mapstructure:"enable_cache" yaml:"enable_cache"`

	// CacheTTL is the in-memory slice cache entry lifetime.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required,gt=0" yaml:"cache_ttl"`

	// RawDisk configures the persistent disk cache's geometry.
	RawDisk RawDiskConfig `mapstructure:"raw_disk" yaml:"raw_disk"`

	// Defrag configures the disk cache's online defragmentation triggers.
	Defrag DefragConfig `mapstructure:"defrag" yaml:"defrag"`

	// Origin configures how the proxy reaches the upstream it slices.
	Origin OriginConfig `mapstructure:"origin" yaml:"origin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When enabled,
// span data is exported to an OTLP-compatible collector over gRPC.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	// Default: false (opt-in for telemetry).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317" (standard OTLP gRPC port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) gRPC connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server are enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerConfig configures the proxy's HTTP listener.
type ServerConfig struct {
	// Port is the HTTP port the proxy listens on for range-GET requests,
	// /health, and (when metrics are enabled and metrics.port equals this
	// port) /metrics.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. Large range responses should size this accordingly.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// RawDiskConfig configures the persistent disk cache's fixed-capacity,
// slot-headered store, per spec.md §6 (`raw_disk.capacity`, `raw_disk.block_size`).
type RawDiskConfig struct {
	// Path is the backing file for the memory-mapped disk cache.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Capacity is the total size, in bytes, of the backing file.
	Capacity bytesize.ByteSize `mapstructure:"capacity" validate:"required,gt=0" yaml:"capacity"`

	// BlockSize is the allocation unit, in bytes, of the disk cache's
	// bitmap allocator.
	BlockSize bytesize.ByteSize `mapstructure:"block_size" validate:"required,gt=0" yaml:"block_size"`
}

// DefragConfig configures the disk cache's online defragmentation triggers,
// per spec.md §6 (`defrag.threshold`, `defrag.cooldown`, `defrag.max_move_bytes`).
type DefragConfig struct {
	// Threshold is the fragmentation ratio at or above which a defrag run
	// is triggered.
	Threshold float64 `mapstructure:"threshold" validate:"gte=0,lte=1" yaml:"threshold"`

	// Cooldown is the minimum time between defrag runs.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`

	// MaxMoveBytes bounds how many payload bytes a single defrag run may
	// relocate, keeping each run's latency predictable.
	MaxMoveBytes bytesize.ByteSize `mapstructure:"max_move_bytes" validate:"gt=0" yaml:"max_move_bytes"`
}

// OriginConfig selects and configures the upstream transport the
// SubrequestManager fetches slices through.
type OriginConfig struct {
	// Type selects the transport implementation.
	// Valid values: "http", "s3".
	Type string `mapstructure:"type" validate:"required,oneof=http s3" yaml:"type"`

	// S3Region is the AWS region used when Type is "s3" and no explicit
	// client was supplied.
	S3Region string `mapstructure:"s3_region" yaml:"s3_region,omitempty"`
}

// CacheEnabled reports whether the in-memory slice cache is active,
// resolving the tri-state EnableCache pointer set by ApplyDefaults.
func (c *Config) CacheEnabled() bool {
	return c.EnableCache == nil || *c.EnableCache
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SLICEPROXY_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages, checking that a
// config file exists before attempting to parse it.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  sliceproxy init\n\n"+
				"Or specify a custom config file:\n"+
				"  sliceproxy <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  sliceproxy init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML
// format, respecting the struct's yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file search settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SLICEPROXY_ prefix and underscores.
	// Example: SLICEPROXY_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SLICEPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks composes the custom decode hooks mapstructure needs for
// Config's non-primitive fields: human-readable byte sizes and durations.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts
// strings and numbers to bytesize.ByteSize, so config files can use
// human-readable sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts
// strings and numbers to time.Duration, so config files can use
// human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path, honoring
// XDG_CONFIG_HOME and falling back to ~/.config, or "." as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sliceproxy")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "sliceproxy")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
