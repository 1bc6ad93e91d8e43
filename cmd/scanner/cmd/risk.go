package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/risk"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show the risk circuit breaker state",
	Long: `Project the trade log and the leading reference drawdown into the
circuit breaker and print its decision.

Example:
  scanner risk`,
	Args: cobra.NoArgs,
	RunE: runRisk,
}

func init() {
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()

	j, err := a.journal()
	if err != nil {
		return err
	}
	recs, err := j.RecentTrades(cfg.Risk.TradeWindow)
	if err != nil {
		return fmt.Errorf("read trade log: %w", err)
	}
	ev, err := a.evaluator()
	if err != nil {
		return err
	}
	ref, err := ev.LeadingDaily(cmd.Context())
	if err != nil {
		return fmt.Errorf("reference drawdown: %w", err)
	}

	dd := risk.Drawdown(ref.Closes(), cfg.Risk.DrawdownLookback)
	dec := risk.Evaluate(risk.NewState(journal.Outcomes(recs), dd), cfg.RiskThresholds())

	fmt.Printf("Trades considered: %d\n", len(recs))
	fmt.Printf("Consecutive losses: %d (max %d)\n", dec.State.ConsecutiveLosses, cfg.Risk.MaxConsecutiveLosses)
	fmt.Printf("Drawdown: %.2f%% (max %.2f%%)\n", dec.State.LastKnownDrawdown*100, cfg.Risk.MaxDrawdownPct*100)
	if dec.Allowed {
		fmt.Println("✓ Signals allowed")
		return nil
	}
	fmt.Printf("✗ Signals paused: %s\n", dec.Reason())
	return nil
}
