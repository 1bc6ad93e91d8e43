package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block suitable for
// pasting into a journal. Structured facts go in a PROPERTIES drawer.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Symbol, t.Bias, shortID(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":BIAS: %s\n", t.Bias)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %s\n", f(t.EntryPrice))
	fmt.Fprintf(&b, ":EXIT_PRICE: %s\n", f(t.ExitPrice))
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatDecisionsOrg renders the audit rows of one run as an Org table.
func FormatDecisionsOrg(runID string, ds []Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Run %s\n", runID)
	b.WriteString("| Symbol | Bias | Score | Outcome | Reason |\n")
	b.WriteString("|--------+------+-------+---------+--------|\n")
	for _, d := range ds {
		fmt.Fprintf(&b, "| %s | %s | %.1f | %s | %s |\n", d.Symbol, d.Bias, d.Score, d.Outcome, d.Reason)
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
