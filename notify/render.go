package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/risk"
)

// Classic Markdown only honours escapes before these entity characters.
var mdEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// Escape protects dynamic text for Telegram's classic Markdown.
func Escape(s string) string { return mdEscaper.Replace(s) }

// FormatPrice prints a price with precision that depends on its magnitude.
func FormatPrice(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1000:
		return thousands(v)
	case a >= 10:
		return fmt.Sprintf("%.2f", v)
	case a >= 1:
		return fmt.Sprintf("%.4f", v)
	}
	return fmt.Sprintf("%.6f", v)
}

func thousands(v float64) string {
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var sb strings.Builder
	if v < 0 {
		sb.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	sb.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		sb.WriteByte(',')
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// Render formats a payload as a Markdown signal card.
func Render(p dispatch.Payload) string {
	icon := "🔴"
	if p.Bias == market.Long {
		icon = "🟢"
	}

	var ctx []string
	if p.Grid != nil {
		tag := ""
		if p.Grid.Clamp != "" {
			tag = " (" + p.Grid.Clamp + ")"
		}
		ctx = append(ctx, fmt.Sprintf("Grids=%d%s | step≈%.2f%%", p.Grid.Levels, tag, p.Grid.Step*100))
	}
	ctx = append(ctx, p.Context...)
	if rr := risk.RR(p.Entry, p.StopLoss, p.TakeProfit); rr > 0 {
		ctx = append(ctx, fmt.Sprintf("RR≈%.2fR", rr))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s SIGNAL*\n", icon, p.Bias)
	fmt.Fprintf(&sb, "*%s* (%s) | *Score:* %.1f\n\n", Escape(p.Symbol), p.Bias, p.Score)
	fmt.Fprintf(&sb, "*Entry:* `%s`\n", FormatPrice(p.Entry))
	fmt.Fprintf(&sb, "*StopLoss:* `%s`\n", FormatPrice(p.StopLoss))
	fmt.Fprintf(&sb, "*TakeProfit:* `%s`\n", FormatPrice(p.TakeProfit))
	if len(ctx) > 0 {
		sb.WriteString("\n*Context:*\n")
		for _, c := range ctx {
			fmt.Fprintf(&sb, "• %s\n", Escape(c))
		}
	}
	if p.Evaluated > 0 {
		fmt.Fprintf(&sb, "\nEvaluated: %d | Eligible: %d | Sent: %d", p.Evaluated, p.Eligible, p.SentSoFar)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderSummary formats the outcome of one batch.
func RenderSummary(r dispatch.Result) string {
	switch {
	case r.Refused != "":
		return fmt.Sprintf("Batch refused (%s): %d candidates evaluated, nothing sent.", r.Refused, r.Evaluated)
	case r.Deduplicated:
		return fmt.Sprintf("Top set unchanged: %d evaluated, %d eligible, nothing re-sent.", r.Evaluated, r.Eligible)
	}
	s := fmt.Sprintf("Batch done: %d evaluated, %d eligible, %d sent", r.Evaluated, r.Eligible, r.SentOK)
	if r.SentFail > 0 {
		s += fmt.Sprintf(", %d failed", r.SentFail)
	}
	return s + "."
}
