package config

import (
	"fmt"

	"github.com/marmos91/sliceproxy/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the sliceproxy configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  sliceproxy config validate

  # Validate specific config file
  sliceproxy config validate --config /etc/sliceproxy/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Origin.Type == "s3" && cfg.Origin.S3Region == "" {
		warnings = append(warnings, "origin.type is s3 but origin.s3_region is empty - relying on the default AWS region chain")
	}
	if !cfg.Metrics.Enabled {
		warnings = append(warnings, "metrics collection is disabled - Prometheus instrumentation will be a no-op")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Server port:     %d\n", cfg.Server.Port)
	fmt.Printf("  Slice size:      %s\n", cfg.SliceSize)
	fmt.Printf("  Origin type:     %s\n", cfg.Origin.Type)
	fmt.Printf("  Cache enabled:   %t\n", cfg.CacheEnabled())
	fmt.Printf("  Raw disk path:   %s\n", cfg.RawDisk.Path)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
