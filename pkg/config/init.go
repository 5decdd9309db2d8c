package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// configTemplate is the commented YAML written by InitConfig/InitConfigToPath.
// Values follow GetDefaultConfig, except telemetry.sample_rate (0.1 here,
// 1.0 in GetDefaultConfig) and metrics.port (9090 here; GetDefaultConfig
// leaves it 0 while metrics are disabled). The empty profiling endpoint and
// profile_types are filled in by ApplyDefaults on load. A freshly
// initialized file is loadable as-is and documents every knob named in
// spec.md §6.
const configTemplate = `# sliceproxy configuration file
#
# All options below can be overridden with environment variables using the
# SLICEPROXY_<SECTION>_<KEY> pattern (underscores for nesting), e.g.
# SLICEPROXY_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO
  format: text
  output: stdout

telemetry:
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 0.1
  profiling:
    enabled: false
    endpoint: ""
    profile_types: []

metrics:
  enabled: false
  port: 9090

server:
  port: 8080
  read_timeout: 10s
  write_timeout: 60s
  idle_timeout: 60s

shutdown_timeout: 30s

# slice_size is the alignment and size of each slice the planner carves a
# client range into. Must be at least 64 KiB. Accepts human-readable sizes
# such as "1Mi" or plain byte counts.
slice_size: 1Mi

max_concurrent_subrequests: 4
max_retries: 3
enable_cache: true
cache_ttl: 5m

raw_disk:
  path: /var/lib/sliceproxy/cache.bin
  capacity: 1Gi
  block_size: 4096

defrag:
  threshold: 0.3
  cooldown: 2m
  max_move_bytes: 64Mi

origin:
  type: http
  s3_region: ""
`

// WizardValues holds the subset of configTemplate's knobs an interactive
// init wizard collects from the operator; every other setting keeps its
// template default.
type WizardValues struct {
	ServerPort     int
	RawDiskPath    string
	RawDiskCapacity string
	SliceSize      string
}

// DefaultWizardValues returns the values baked into configTemplate, used to
// pre-fill an interactive wizard's prompts.
func DefaultWizardValues() WizardValues {
	return WizardValues{
		ServerPort:      8080,
		RawDiskPath:     "/var/lib/sliceproxy/cache.bin",
		RawDiskCapacity: "1Gi",
		SliceSize:       "1Mi",
	}
}

// RenderConfigTemplate substitutes the wizard-collected values into
// configTemplate, leaving every other setting at its documented default.
func RenderConfigTemplate(values WizardValues) string {
	rendered := configTemplate
	rendered = strings.Replace(rendered, "server:\n  port: 8080", fmt.Sprintf("server:\n  port: %d", values.ServerPort), 1)
	rendered = strings.Replace(rendered, "slice_size: 1Mi", fmt.Sprintf("slice_size: %s", values.SliceSize), 1)
	rendered = strings.Replace(rendered, "path: /var/lib/sliceproxy/cache.bin", fmt.Sprintf("path: %s", values.RawDiskPath), 1)
	rendered = strings.Replace(rendered, "capacity: 1Gi", fmt.Sprintf("capacity: %s", values.RawDiskCapacity), 1)
	return rendered
}

// InitConfigToPathWithValues writes a configuration file rendered from
// values rather than the static template, for InitConfig's --interactive path.
func InitConfigToPathWithValues(path string, force bool, values WizardValues) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(RenderConfigTemplate(values)), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitConfig writes a sample configuration file to the default location
// ($XDG_CONFIG_HOME/sliceproxy/config.yaml, or ~/.config/sliceproxy as a
// fallback), refusing to overwrite an existing file unless force is set.
// It returns the path the file was written to.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to an explicit path,
// refusing to overwrite an existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
