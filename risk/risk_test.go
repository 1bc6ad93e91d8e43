package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func outcomes(pnls ...float64) []Outcome {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Outcome, len(pnls))
	for i, p := range pnls {
		out[i] = Outcome{Time: start.Add(time.Duration(i) * time.Hour), PnL: p}
	}
	return out
}

func TestConsecutiveLosses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  []Outcome
		want int
	}{
		{"empty", nil, 0},
		{"ends with gain", outcomes(-1, -2, 5), 0},
		{"three losses", outcomes(10, -1, -2, -3), 3},
		{"breakeven stops scan", outcomes(-1, 0, -2), 1},
		{"all losses", outcomes(-1, -1), 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ConsecutiveLosses(tt.log))
		})
	}
}

func TestCanTradeConsecutiveLosses(t *testing.T) {
	t.Parallel()

	th := Thresholds{MaxConsecutiveLosses: 3, MaxDrawdownPct: 0.1}

	losing := outcomes(20, -5, -4, -3)
	assert.False(t, CanTrade(NewState(losing, 0), th))

	recovered := outcomes(20, -5, -4, 7)
	assert.True(t, CanTrade(NewState(recovered, 0), th))
}

func TestCanTradeDrawdown(t *testing.T) {
	t.Parallel()

	th := Thresholds{MaxConsecutiveLosses: 3, MaxDrawdownPct: 0.1}

	assert.False(t, CanTrade(State{LastKnownDrawdown: 0.1}, th))
	assert.False(t, CanTrade(State{LastKnownDrawdown: 0.25}, th))
	assert.True(t, CanTrade(State{LastKnownDrawdown: 0.099}, th))
}

func TestEvaluateRecordsViolations(t *testing.T) {
	t.Parallel()

	d := Evaluate(State{ConsecutiveLosses: 4, LastKnownDrawdown: 0.2}, DefaultThresholds())
	assert.False(t, d.Allowed)
	assert.Len(t, d.Violations, 2)
	assert.Equal(t, "CONSECUTIVE_LOSSES,DRAWDOWN_LIMIT", d.Reason())

	ok := Evaluate(State{}, DefaultThresholds())
	assert.True(t, ok.Allowed)
	assert.Empty(t, ok.Reason())
}

func TestRR(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, RR(100, 92.5, 115), 1e-12)
	assert.InDelta(t, 2.0, RR(100, 107.5, 85), 1e-12)
	assert.Equal(t, 0.0, RR(100, 100, 120))
}

func TestDrawdown(t *testing.T) {
	t.Parallel()

	closes := []float64{100, 120, 110, 108}
	assert.InDelta(t, 0.1, Drawdown(closes, 0), 1e-12)
	assert.InDelta(t, (110.0-108.0)/110.0, Drawdown(closes, 2), 1e-12)
	assert.Equal(t, 0.0, Drawdown([]float64{1, 2, 3}, 7))
	assert.Equal(t, 0.0, Drawdown(nil, 7))
}
