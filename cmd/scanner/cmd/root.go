package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/scanner/config"
	"github.com/rustyeddy/scanner/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Crypto signal scanner with regime, risk and anti-spam gating",
	Long: `Scanner evaluates a universe of crypto assets once per invocation.

Each run:
  - checks the risk circuit breaker against the trade log
  - scores the market regime from BTC, ETH, DXY and VIX
  - resolves bias, entry, stop and target levels per asset
  - ranks candidates and sends the best ones, with dedup, cooldowns
    and a daily cap

Schedule it with cron or a systemd timer.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger zerolog.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults plus environment when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (console|json)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
		cfg.ApplyEnv()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger, err = logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return err
}
