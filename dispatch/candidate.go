package dispatch

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/scoring"
)

// Candidate is one scored asset handed to the dispatcher.
type Candidate struct {
	Symbol    string
	Bias      market.Bias
	Daily     indicators.Profile
	Weekly    indicators.Profile
	Levels    levels.PriceLevels
	Breakdown scoring.Breakdown

	// Volume24h is the rolling 24h quote volume. Zero falls back to the
	// last daily bar's quote volume.
	Volume24h float64

	Grid *levels.Grid
}

// Score is the aggregate composite score.
func (c Candidate) Score() float64 { return c.Breakdown.Score }

// ADX returns the daily ADX or -1 when unavailable so that candidates
// without it rank last among equal scores.
func (c Candidate) ADX() float64 { return c.Daily.ADX.Or(-1) }

// QuoteVolume is the liquidity figure used for ranking and display.
func (c Candidate) QuoteVolume() float64 {
	if c.Volume24h > 0 {
		return c.Volume24h
	}
	return c.Daily.QuoteVolume
}

// Payload is the notification content for one candidate.
type Payload struct {
	Symbol     string       `json:"symbol"`
	Bias       market.Bias  `json:"bias"`
	Score      float64      `json:"score"`
	Entry      float64      `json:"entry"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	ATRPct     float64      `json:"atr_pct"`
	Context    []string     `json:"context"`
	Grid       *levels.Grid `json:"grid,omitempty"`

	// Batch footer.
	Evaluated int `json:"evaluated"`
	Eligible  int `json:"eligible"`
	SentSoFar int `json:"sent_so_far"`
}

// NewPayload builds the payload and its free-text context lines.
func NewPayload(c Candidate) Payload {
	p := Payload{
		Symbol:     c.Symbol,
		Bias:       c.Bias,
		Score:      c.Score(),
		Entry:      c.Levels.Entry,
		StopLoss:   c.Levels.StopLoss,
		TakeProfit: c.Levels.TakeProfit,
		ATRPct:     c.Daily.ATRPct.Or(0),
		Grid:       c.Grid,
	}

	if adx, ok := c.Daily.ADX.Get(); ok {
		p.Context = append(p.Context, fmt.Sprintf("ADX=%.1f", adx))
	} else {
		p.Context = append(p.Context, "ADX=n/a")
	}
	p.Context = append(p.Context, fmt.Sprintf("ATR%%=%.2f%%", p.ATRPct*100))
	p.Context = append(p.Context, "Scores: "+c.Breakdown.String())
	if v := c.QuoteVolume(); v > 0 {
		p.Context = append(p.Context, fmt.Sprintf("Vol24h≈%s USDT", Compact(v)))
	}
	return p
}

// Compact formats a large amount with a K/M/B suffix.
func Compact(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case a >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case a >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}

// Skip records why a candidate was not sent.
type Skip struct {
	Symbol string      `json:"symbol"`
	Bias   market.Bias `json:"bias"`
	Reason string      `json:"reason"`
}

// Skip reasons.
const (
	ReasonNoBias     = "no-bias"
	ReasonScore      = "below-min-score"
	ReasonExcluded   = "excluded"
	ReasonRegime     = "regime-ineligible"
	ReasonCooldown   = "cooldown"
	ReasonBelowTopN  = "below-top-n"
	ReasonDailyCap   = "daily-cap"
	ReasonSymbolLock = "symbol-lock"
)

// Result summarizes one batch.
type Result struct {
	Evaluated int `json:"evaluated"`
	Eligible  int `json:"eligible"`
	ToSend    int `json:"to_send"`
	SentOK    int `json:"sent_ok"`
	SentFail  int `json:"sent_fail"`

	Skipped []Skip   `json:"skipped,omitempty"`
	Sent    []string `json:"sent,omitempty"`
	Failed  []string `json:"failed,omitempty"`

	Deduplicated bool   `json:"deduplicated"`
	Refused      string `json:"refused,omitempty"`
	Fingerprint  string `json:"fingerprint"`
}

func (r *Result) skip(c Candidate, reason string) {
	r.Skipped = append(r.Skipped, Skip{Symbol: c.Symbol, Bias: c.Bias, Reason: reason})
}
