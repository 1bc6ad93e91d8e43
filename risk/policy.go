package risk

import "time"

// Thresholds configure the circuit breaker.
type Thresholds struct {
	// MaxConsecutiveLosses pauses new activity once this many losing trades
	// close in a row.
	MaxConsecutiveLosses int

	// MaxDrawdownPct pauses new activity while the reference asset sits this
	// far (fraction, 0.10 = 10%) below its recent peak.
	MaxDrawdownPct float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MaxConsecutiveLosses: 3, MaxDrawdownPct: 0.10}
}

// Outcome is one closed trade from the trade log.
type Outcome struct {
	Time time.Time
	PnL  float64
}

// State is the projection of the trade log used by the breaker.
type State struct {
	ConsecutiveLosses int     `json:"consecutive_losses"`
	LastKnownDrawdown float64 `json:"last_known_drawdown"`
}

// NewState projects outcomes (oldest first) and the current reference
// drawdown into a State.
func NewState(outcomes []Outcome, drawdown float64) State {
	return State{
		ConsecutiveLosses: ConsecutiveLosses(outcomes),
		LastKnownDrawdown: drawdown,
	}
}

// ConsecutiveLosses walks outcomes from newest to oldest and counts losses
// until the first non-loss. Break-even counts as a non-loss.
func ConsecutiveLosses(outcomes []Outcome) int {
	n := 0
	for i := len(outcomes) - 1; i >= 0; i-- {
		if outcomes[i].PnL >= 0 {
			break
		}
		n++
	}
	return n
}
