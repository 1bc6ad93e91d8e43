// Package regime scores the overall market climate from a few macro
// reference series, separately for long and short setups.
package regime

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
)

// PointsPerCheck is the allotment of each sub-check; four checks per
// direction make MaxScore.
const (
	PointsPerCheck = 25
	MaxScore       = 4 * PointsPerCheck
)

// Direction a sub-check contributes to.
type Direction string

const (
	LongSide  Direction = "long"
	ShortSide Direction = "short"
)

// Check is one scored sub-check.
type Check struct {
	Name      string    `json:"name"`
	Side      Direction `json:"side"`
	Passed    bool      `json:"passed"`
	Available bool      `json:"available"`
	Points    int       `json:"points"`
}

// Regime is the batch-wide market assessment. It is computed once per batch
// and read-only afterwards.
type Regime struct {
	BTCBullish bool             `json:"btc_bullish"`
	ETHBullish bool             `json:"eth_bullish"`
	DXYBullish bool             `json:"dxy_bullish"`
	VIXLevel   indicators.Value `json:"vix_level"`

	ScoreLong     int  `json:"score_long"`
	ScoreShort    int  `json:"score_short"`
	EligibleLong  bool `json:"eligible_long"`
	EligibleShort bool `json:"eligible_short"`

	Checks []Check `json:"checks"`

	// Available is false when the leading reference could not be fetched.
	// Such a regime is never eligible.
	Available   bool      `json:"available"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Unknown is the regime used when the leading reference is unavailable.
func Unknown(at time.Time) Regime {
	return Regime{EvaluatedAt: at}
}

// Eligible reports whether candidates with bias may be sent.
func (r Regime) Eligible(b market.Bias) bool {
	if !r.Available {
		return false
	}
	switch b {
	case market.Long:
		return r.EligibleLong
	case market.Short:
		return r.EligibleShort
	}
	return false
}

// Favorable reports whether at least one direction is eligible.
func (r Regime) Favorable() bool {
	return r.Available && (r.EligibleLong || r.EligibleShort)
}

// Status is a short machine-friendly label for the batch report.
func (r Regime) Status() string {
	switch {
	case !r.Available:
		return "regime-unknown"
	case !r.Favorable():
		return "regime-unfavorable"
	}
	return "regime-ok"
}

// Summary renders the regime as a human readable multi-line notice.
func (r Regime) Summary() string {
	if !r.Available {
		return "Market regime unknown: reference data unavailable. No signals this run."
	}

	yes := func(b bool) string {
		if b {
			return "bullish"
		}
		return "not bullish"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Market regime\n")
	fmt.Fprintf(&sb, "BTC: %s\n", yes(r.BTCBullish))
	fmt.Fprintf(&sb, "ETH: %s\n", yes(r.ETHBullish))
	fmt.Fprintf(&sb, "DXY: %s\n", yes(r.DXYBullish))
	fmt.Fprintf(&sb, "VIX: %s\n", r.VIXLevel)
	fmt.Fprintf(&sb, "Long score: %d/%d (%s)\n", r.ScoreLong, MaxScore, eligible(r.EligibleLong))
	fmt.Fprintf(&sb, "Short score: %d/%d (%s)", r.ScoreShort, MaxScore, eligible(r.EligibleShort))
	return sb.String()
}

func eligible(b bool) string {
	if b {
		return "eligible"
	}
	return "not eligible"
}
