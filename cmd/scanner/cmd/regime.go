package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Evaluate and print the current market regime",
	Long: `Score the market regime from the reference assets without scanning
or sending anything.

Example:
  scanner regime --json`,
	Args: cobra.NoArgs,
	RunE: runRegime,
}

var regimeJSON bool

func init() {
	rootCmd.AddCommand(regimeCmd)
	regimeCmd.Flags().BoolVar(&regimeJSON, "json", false, "print the regime as JSON")
}

func runRegime(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()

	ev, err := a.evaluator()
	if err != nil {
		return err
	}
	rg, err := ev.Evaluate(cmd.Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("regime unavailable")
	}

	if regimeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rg)
	}
	fmt.Println(rg.Summary())
	fmt.Printf("Status: %s\n", rg.Status())
	return nil
}
