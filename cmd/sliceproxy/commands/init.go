package commands

import (
	"errors"
	"fmt"

	"github.com/marmos91/sliceproxy/internal/cli/prompt"
	"github.com/marmos91/sliceproxy/pkg/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample sliceproxy configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/sliceproxy/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  sliceproxy init

  # Initialize with custom path
  sliceproxy init --config /etc/sliceproxy/config.yaml

  # Walk through the main settings interactively
  sliceproxy init --interactive

  # Force overwrite existing config
  sliceproxy init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Prompt for the main settings instead of writing defaults")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if initInteractive {
		configPath, err = runInitWizard(configFile)
	} else if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			fmt.Println("\nAborted.")
			return nil
		}
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the proxy with: sliceproxy start")
	fmt.Printf("  3. Or specify custom config: sliceproxy start --config %s\n", configPath)

	return nil
}

// runInitWizard prompts for the handful of settings operators most commonly
// need to change on day one, leaving everything else at its template default.
func runInitWizard(configFile string) (string, error) {
	defaults := config.DefaultWizardValues()

	port, err := prompt.InputPort("HTTP listen port", defaults.ServerPort)
	if err != nil {
		return "", err
	}

	sliceSize, err := prompt.Input("Slice size (e.g. 1Mi, 512Ki)", defaults.SliceSize)
	if err != nil {
		return "", err
	}

	rawDiskPath, err := prompt.Input("Disk cache file path", defaults.RawDiskPath)
	if err != nil {
		return "", err
	}

	rawDiskCapacity, err := prompt.Input("Disk cache capacity (e.g. 1Gi, 10Gi)", defaults.RawDiskCapacity)
	if err != nil {
		return "", err
	}

	values := config.WizardValues{
		ServerPort:      port,
		SliceSize:       sliceSize,
		RawDiskPath:     rawDiskPath,
		RawDiskCapacity: rawDiskCapacity,
	}

	configPath := configFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if err := config.InitConfigToPathWithValues(configPath, initForce, values); err != nil {
		return "", err
	}

	return configPath, nil
}
