// journal/journal.go
package journal

import (
	"sort"
	"time"

	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/risk"
)

// TradeRecord is one closed trade as reported back by the operator.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	Bias       market.Bias
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	RealizedPL float64
	Reason     string
}

// Decision is one audit row per evaluated candidate.
type Decision struct {
	RunID   string
	Time    time.Time
	Symbol  string
	Bias    market.Bias
	Score   float64
	Outcome string // sent, failed, skipped
	Reason  string
}

// RegimeSnapshot is a persisted regime evaluation.
type RegimeSnapshot struct {
	RunID         string
	Time          time.Time
	ScoreLong     int
	ScoreShort    int
	EligibleLong  bool
	EligibleShort bool
	Available     bool
	Summary       string
}

type Journal interface {
	RecordTrade(TradeRecord) error
	// RecentTrades returns up to n trades ordered by close time, newest last.
	RecentTrades(n int) ([]TradeRecord, error)
	Close() error
}

// Outcomes converts trade records into breaker input, oldest first.
func Outcomes(recs []TradeRecord) []risk.Outcome {
	sorted := make([]TradeRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CloseTime.Before(sorted[j].CloseTime)
	})

	out := make([]risk.Outcome, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, risk.Outcome{Time: r.CloseTime, PnL: r.RealizedPL})
	}
	return out
}

func tail(recs []TradeRecord, n int) []TradeRecord {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
