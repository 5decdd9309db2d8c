package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/sliceproxy/internal/logger"
	"github.com/marmos91/sliceproxy/internal/telemetry"
	"github.com/marmos91/sliceproxy/pkg/config"
	"github.com/marmos91/sliceproxy/pkg/defrag"
	"github.com/marmos91/sliceproxy/pkg/diskcache"
	metricsregistry "github.com/marmos91/sliceproxy/pkg/metrics"
	"github.com/marmos91/sliceproxy/pkg/origin"
	originhttp "github.com/marmos91/sliceproxy/pkg/origin/http"
	origins3 "github.com/marmos91/sliceproxy/pkg/origin/s3"
	"github.com/marmos91/sliceproxy/pkg/proxy"
	"github.com/marmos91/sliceproxy/pkg/proxyserver"
	"github.com/marmos91/sliceproxy/pkg/slicecache"
	"github.com/marmos91/sliceproxy/pkg/subrequest"
	"github.com/spf13/cobra"

	promallocator "github.com/marmos91/sliceproxy/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sliceproxy server",
	Long: `Start the sliceproxy server with the specified configuration.

By default, the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/sliceproxy/config.yaml.

Examples:
  # Start in background (default)
  sliceproxy start

  # Start in foreground
  sliceproxy start --foreground

  # Start with custom config file
  sliceproxy start --config /etc/sliceproxy/config.yaml

  # Start with environment variable overrides
  SLICEPROXY_LOGGING_LEVEL=DEBUG sliceproxy start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/sliceproxy/sliceproxy.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/sliceproxy/sliceproxy.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "sliceproxy",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "sliceproxy",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("sliceproxy - a byte-range slicing proxy")
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("profiling disabled")
	}

	if cfg.Metrics.Enabled {
		metricsregistry.InitRegistry()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	transport, err := buildOriginTransport(ctx, &cfg.Origin)
	if err != nil {
		return fmt.Errorf("failed to build origin transport: %w", err)
	}

	totalBlocks := cfg.RawDisk.Capacity.Uint64() / cfg.RawDisk.BlockSize.Uint64()
	diskCache, err := diskcache.OpenWithAllocatorMetrics(
		cfg.RawDisk.Path,
		cfg.RawDisk.Capacity.Uint64(),
		cfg.RawDisk.BlockSize.Uint64(),
		cfg.CacheTTL,
		promallocator.NewDiskCacheMetrics(),
		promallocator.NewAllocatorMetrics(),
	)
	if err != nil {
		return fmt.Errorf("failed to open disk cache: %w", err)
	}
	defer func() {
		if err := diskCache.Close(); err != nil {
			logger.Error("disk cache close error", "error", err)
		}
	}()

	diskCache.UpdateDefragConfig(diskcache.DefragConfig{
		FragmentationThreshold: cfg.Defrag.Threshold,
		MinFreeRunBlocks:       diskcache.DefaultDefragConfig().MinFreeRunBlocks,
		MaxMoveBytesPerRun:     cfg.Defrag.MaxMoveBytes.Uint64(),
		Cooldown:               cfg.Defrag.Cooldown,
	})
	logger.Info("disk cache opened",
		logger.Size(cfg.RawDisk.Capacity.Uint64()),
		logger.BlockSize(cfg.RawDisk.BlockSize.Uint64()),
		logger.BlockCount(totalBlocks),
	)

	defragmenter := defrag.New(diskCache, cfg.Defrag.Cooldown)
	defragmenter.Start(ctx)
	defer defragmenter.Stop(5 * time.Second)

	memCache := slicecache.NewWithMetrics(cfg.CacheTTL, promallocator.NewSliceCacheMetrics())

	manager := subrequest.NewWithMetrics(transport, subrequest.Config{
		MaxConcurrent: cfg.MaxConcurrentSubrequests,
		MaxRetries:    cfg.MaxRetries,
		BaseBackoff:   100 * time.Millisecond,
		MaxBackoff:    10 * time.Second,
	}, promallocator.NewSubrequestMetrics())

	p := proxy.New(proxy.Config{
		SliceSize:     cfg.SliceSize.Uint64(),
		EnableCache:   cfg.CacheEnabled(),
		MaxConcurrent: cfg.MaxConcurrentSubrequests,
		MaxRetries:    cfg.MaxRetries,
	}, transport, memCache, diskCache, manager)

	startedAt := time.Now()
	exposeMetricsOnServerPort := cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port
	server := proxyserver.NewServer(cfg.Server, p, "sliceproxy", startedAt, exposeMetricsOnServerPort)

	var metricsServer *proxyserver.MetricsServer
	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.Server.Port {
		metricsServer = proxyserver.NewMetricsServer(cfg.Metrics.Port)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Start(ctx) }()

	metricsDone := make(chan error, 1)
	if metricsServer != nil {
		go func() { metricsDone <- metricsServer.Start(ctx) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running", "port", cfg.Server.Port)
	fmt.Println("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		if metricsServer != nil {
			if err := <-metricsDone; err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("server stopped")
	}

	return nil
}

// buildOriginTransport constructs the origin.Transport implementation
// selected by cfg.Type: a plain HTTP client for "http", or an S3 GetObject
// client (with Range support) for "s3".
func buildOriginTransport(ctx context.Context, cfg *config.OriginConfig) (origin.Transport, error) {
	switch cfg.Type {
	case "s3":
		return origins3.NewFromConfig(ctx, cfg.S3Region)
	default:
		return originhttp.New(nil), nil
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
