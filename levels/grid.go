package levels

import (
	"math"

	"github.com/rustyeddy/scanner/market"
)

// GridConfig maps volatility to geometric grid spacing.
type GridConfig struct {
	MinStep  float64
	MaxStep  float64
	ATRToK   float64
	MinGrids int
	MaxGrids int
}

func DefaultGridConfig() GridConfig {
	return GridConfig{MinStep: 0.015, MaxStep: 0.035, ATRToK: 0.35, MinGrids: 6, MaxGrids: 30}
}

// Grid is a geometric order-spacing suggestion between entry and target.
// Clamp is "min" or "cap" when the natural count was clamped.
type Grid struct {
	Levels int     `json:"levels"`
	Step   float64 `json:"step"`
	Clamp  string  `json:"clamp,omitempty"`
}

// Plan computes the grid for a levels set.
func (c GridConfig) Plan(bias market.Bias, lv PriceLevels, atrPct float64) Grid {
	factor := 1.0
	switch bias {
	case market.Long:
		factor = math.Max(lv.TakeProfit, lv.Entry*1.0005) / math.Max(lv.Entry, 1e-12)
	case market.Short:
		factor = math.Max(lv.Entry, 1e-12) / math.Max(lv.TakeProfit, 1e-12)
	}
	factor = math.Max(factor, 1.0005)

	if math.IsNaN(atrPct) || atrPct < 0 {
		atrPct = 0
	}
	step := math.Max(c.MinStep, math.Min(c.MaxStep, atrPct*c.ATRToK))

	n := int(math.Floor(math.Log(factor) / math.Log(1+step)))
	if n < 1 {
		n = 1
	}
	g := Grid{Levels: n, Step: step}
	switch {
	case n < c.MinGrids:
		g.Levels, g.Clamp = c.MinGrids, "min"
	case n > c.MaxGrids:
		g.Levels, g.Clamp = c.MaxGrids, "cap"
	}
	return g
}
