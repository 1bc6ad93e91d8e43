package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the dispatcher anti-spam state",
	Long: `The dispatcher persists the last top-set fingerprint, per-symbol send
times and per-day send counters between runs.

Subcommands:
  show   - Print the persisted state
  reset  - Clear the persisted state`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted dispatcher state",
	Args:  cobra.NoArgs,
	RunE:  runStateShow,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the persisted dispatcher state",
	Args:  cobra.NoArgs,
	RunE:  runStateReset,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
}

func runStateShow(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()
	s, err := a.store()
	if err != nil {
		return err
	}

	st, err := s.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func runStateReset(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()
	s, err := a.store()
	if err != nil {
		return err
	}

	if err := resetStore(cmd.Context(), s); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	fmt.Printf("✓ Dispatcher state cleared (%s)\n", cfg.Dispatch.State.Backend)
	return nil
}
