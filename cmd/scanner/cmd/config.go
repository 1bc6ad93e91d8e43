package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scanner/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage scanner configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  scanner config init -o scanner.yaml
  scanner config validate -f scanner.yaml`,
	// config commands load files themselves
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads and passes validation, and that
the configured notification channels have credentials.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "scanner.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nSet TELEGRAM_TOKEN and TELEGRAM_CHAT_ID, then run:")
	fmt.Printf("  scanner run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Universe: top %d %s pairs over %.0f quote volume\n", c.Scan.UniverseLimit, c.Scan.Quote, c.Scan.MinQuoteVolume)
	fmt.Printf("  Bias mode: %s\n", c.Levels.BiasMode)
	fmt.Printf("  Dispatch: min score %.0f, top %d, daily cap %d (%s)\n", c.Dispatch.MinScore, c.Dispatch.TopN, c.Dispatch.DailyCap, c.Dispatch.Timezone)
	fmt.Printf("  State: %s\n", c.Dispatch.State.Backend)
	fmt.Printf("  Journal: %s\n", c.Journal.Type)
	fmt.Printf("  Channels: %s\n", strings.Join(c.Notify.Channels, ", "))

	if err := c.NotifyOptions().Validate(); err != nil {
		fmt.Printf("  ✗ %v\n", err)
	}
	return nil
}
