package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/metrics"
	"github.com/rustyeddy/scanner/notify"
	"github.com/rustyeddy/scanner/scan"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scan batch",
	Long: `Run one batch: risk breaker, market regime, universe analysis and
notification dispatch.

Examples:
  scanner run -c scanner.yaml
  scanner run --dry-run --symbols BTCUSDT,SOLUSDT
  scanner run --json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runDryRun  bool
	runSymbols []string
	runJSON    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log notifications instead of sending them")
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "scan these symbols instead of the selected universe")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the batch report as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if runDryRun {
		cfg.Notify.DryRun = true
	}

	a := newApp()
	defer a.Close()

	ch, err := notify.New(ctx, cfg.NotifyOptions(), a.log)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	a.track(ch)
	notifier := notify.NewNotifier(ch, a.log)

	if err := a.feeds(); err != nil {
		return err
	}
	ev, err := a.evaluator()
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}
	j, err := a.journal()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		return err
	}

	d := dispatch.New(policy, store, notifier, a.log)
	d.DryRun = cfg.Notify.DryRun

	opts := cfg.ScanOptions()
	if len(runSymbols) > 0 {
		opts.Symbols = runSymbols
	}

	s := scan.New(opts, a.log)
	s.Daily = cfg.Engine()
	s.Weekly = cfg.WeeklyEngine()
	s.Resolver = resolver
	s.Scorer = cfg.Scorer()
	s.Grid = cfg.Grid()
	s.Series = a.series
	s.Assets = a.binance
	s.Regime = ev
	s.Dispatcher = d
	s.Trades = j
	s.Status = notifier
	s.Metrics = metrics.New()
	if audit, ok := j.(scan.Audit); ok {
		s.Audit = audit
	}

	rep, err := s.Run(ctx)
	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return err
	}
	if runJSON {
		return nil
	}

	fmt.Printf("✓ Run %s: %s\n", rep.RunID, rep.Outcome)
	if rep.Outcome == scan.OutcomeDispatched || rep.Outcome == scan.OutcomeDeduplicated {
		fmt.Printf("  %s\n", notify.RenderSummary(rep.Result))
	}
	if len(rep.Skipped) > 0 {
		fmt.Printf("  %d assets skipped during analysis\n", len(rep.Skipped))
	}
	return nil
}
