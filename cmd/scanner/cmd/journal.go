package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/pkg/id"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Record and query the trade journal",
	Long: `Record closed trades for the risk breaker and query the journal.

Subcommands:
  record     - Record a closed trade
  trade      - Get details of a specific trade by ID
  today      - List trades closed today
  day        - List trades closed on a specific day
  decisions  - List the audit rows of one run

Examples:
  scanner journal record --symbol SOLUSDT --bias long --entry 142.5 --exit 138 --pnl -45
  scanner journal trade <trade-id>
  scanner journal day 2024-01-15
  scanner journal decisions <run-id>`,
}

var journalRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a closed trade",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecord,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions <run-id>",
	Short: "List the audit rows of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDecisions,
}

var (
	recSymbol string
	recBias   string
	recEntry  float64
	recExit   float64
	recPnL    float64
	recOpened string
	recClosed string
	recReason string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRecordCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalDecisionsCmd)

	f := journalRecordCmd.Flags()
	f.StringVar(&recSymbol, "symbol", "", "traded symbol (required)")
	f.StringVar(&recBias, "bias", "long", "long or short")
	f.Float64Var(&recEntry, "entry", 0, "entry price")
	f.Float64Var(&recExit, "exit", 0, "exit price")
	f.Float64Var(&recPnL, "pnl", 0, "realized profit or loss (required)")
	f.StringVar(&recOpened, "opened", "", "open time, RFC3339 (defaults to close time)")
	f.StringVar(&recClosed, "closed", "", "close time, RFC3339 (defaults to now)")
	f.StringVar(&recReason, "reason", "", "free-form exit reason")
	_ = journalRecordCmd.MarkFlagRequired("symbol")
	_ = journalRecordCmd.MarkFlagRequired("pnl")
}

func runJournalRecord(cmd *cobra.Command, args []string) error {
	bias, err := market.ParseBias(recBias)
	if err != nil {
		return err
	}
	closed := time.Now().UTC()
	if recClosed != "" {
		if closed, err = time.Parse(time.RFC3339, recClosed); err != nil {
			return fmt.Errorf("closed: %w", err)
		}
	}
	opened := closed
	if recOpened != "" {
		if opened, err = time.Parse(time.RFC3339, recOpened); err != nil {
			return fmt.Errorf("opened: %w", err)
		}
	}

	a := newApp()
	defer a.Close()
	j, err := a.journal()
	if err != nil {
		return err
	}

	rec := journal.TradeRecord{
		TradeID:    id.NewAt(closed),
		Symbol:     strings.ToUpper(strings.TrimSpace(recSymbol)),
		Bias:       bias,
		EntryPrice: recEntry,
		ExitPrice:  recExit,
		OpenTime:   opened,
		CloseTime:  closed,
		RealizedPL: recPnL,
		Reason:     recReason,
	}
	if err := j.RecordTrade(rec); err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	fmt.Printf("✓ Recorded trade %s (%s %s, P/L %.2f)\n", rec.TradeID, rec.Symbol, rec.Bias, rec.RealizedPL)
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()
	j, err := a.sqlite()
	if err != nil {
		return err
	}

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}
	fmt.Println(journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	loc := time.Local
	return listTradesOn(loc, time.Now().In(loc).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return listTradesOn(time.Local, args[0])
}

func listTradesOn(loc *time.Location, day string) error {
	start, end, err := dayBounds(loc, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	a := newApp()
	defer a.Close()
	j, err := a.sqlite()
	if err != nil {
		return err
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Println(journal.FormatTradesOrg(recs))
	return nil
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	a := newApp()
	defer a.Close()
	j, err := a.sqlite()
	if err != nil {
		return err
	}

	ds, err := j.ListDecisions(args[0])
	if err != nil {
		return fmt.Errorf("query decisions: %w", err)
	}
	fmt.Print(journal.FormatDecisionsOrg(args[0], ds))
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1), nil
}
