package scan

import (
	"time"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/regime"
	"github.com/rustyeddy/scanner/risk"
)

// Skip is an asset dropped before it became a candidate.
type Skip struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
	Err    string `json:"error,omitempty"`
}

// Report is the outcome of one batch.
type Report struct {
	RunID   string `json:"run_id"`
	Outcome string `json:"outcome"`

	Regime regime.Regime `json:"regime"`
	Risk   risk.Decision `json:"risk"`

	Candidates []dispatch.Candidate `json:"-"`
	Result     dispatch.Result      `json:"result"`
	Skipped    []Skip               `json:"skipped,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Decision outcomes.
const (
	DecisionSent         = "sent"
	DecisionFailed       = "failed"
	DecisionSkipped      = "skipped"
	DecisionDeduplicated = "deduplicated"
)

// Decisions lists one audit row per analyzed asset: assets dropped during
// analysis first, then candidates in universe order.
func (r Report) Decisions(at time.Time) []journal.Decision {
	out := make([]journal.Decision, 0, len(r.Skipped)+len(r.Candidates))
	for _, sk := range r.Skipped {
		out = append(out, journal.Decision{
			RunID: r.RunID, Time: at, Symbol: sk.Symbol, Bias: market.None,
			Outcome: DecisionSkipped, Reason: sk.Reason,
		})
	}

	sent := make(map[string]bool, len(r.Result.Sent))
	for _, s := range r.Result.Sent {
		sent[s] = true
	}
	failed := make(map[string]bool, len(r.Result.Failed))
	for _, s := range r.Result.Failed {
		failed[s] = true
	}
	skipped := make(map[string]string, len(r.Result.Skipped))
	for _, sk := range r.Result.Skipped {
		skipped[sk.Symbol] = sk.Reason
	}

	for _, c := range r.Candidates {
		d := journal.Decision{
			RunID: r.RunID, Time: at, Symbol: c.Symbol, Bias: c.Bias, Score: c.Score(),
		}
		switch {
		case sent[c.Symbol]:
			d.Outcome = DecisionSent
		case failed[c.Symbol]:
			d.Outcome = DecisionFailed
		case skipped[c.Symbol] != "":
			d.Outcome = DecisionSkipped
			d.Reason = skipped[c.Symbol]
		case r.Result.Deduplicated:
			d.Outcome = DecisionDeduplicated
		default:
			d.Outcome = DecisionSkipped
		}
		out = append(out, d)
	}
	return out
}
