// Package scoring combines indicator and level factors into one 0-100
// opportunity score.
package scoring

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
)

// Weights are the maximum points of each component.
type Weights struct {
	Trend      float64 `yaml:"trend" json:"trend"`
	Momentum   float64 `yaml:"momentum" json:"momentum"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
	Volume     float64 `yaml:"volume" json:"volume"`
	RiskReward float64 `yaml:"risk_reward" json:"risk_reward"`
}

func (w Weights) Sum() float64 {
	return w.Trend + w.Momentum + w.Volatility + w.Volume + w.RiskReward
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"trend": w.Trend, "momentum": w.Momentum, "volatility": w.Volatility,
		"volume": w.Volume, "risk_reward": w.RiskReward,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be >= 0", name)
		}
	}
	if w.Sum() > 100 {
		return fmt.Errorf("weights sum to %.2f, must be <= 100", w.Sum())
	}
	return nil
}

// Breakdown holds the points of each component and their sum.
type Breakdown struct {
	Trend      float64 `json:"trend"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	RiskReward float64 `json:"risk_reward"`
	Score      float64 `json:"score"`
}

func (b Breakdown) String() string {
	return fmt.Sprintf("T%.0f/M%.0f/Vola%.0f/Vol%.0f/RR%.0f",
		b.Trend, b.Momentum, b.Volatility, b.Volume, b.RiskReward)
}

type Scorer struct {
	Weights Weights

	// TrendPartial is the trend credit when only the daily frame agrees.
	TrendPartial float64

	MomentumLong  Band
	MomentumShort Band
	Volatility    Band

	VolumeFloor   float64
	VolumeCeiling float64

	RRFloor float64
	RRFull  float64
}

func DefaultScorer() Scorer {
	return Scorer{
		Weights:       Weights{Trend: 30, Momentum: 20, Volatility: 15, Volume: 15, RiskReward: 20},
		TrendPartial:  0.5,
		MomentumLong:  Band{Low: 40, IdealLow: 50, IdealHigh: 60, High: 70},
		MomentumShort: Band{Low: 30, IdealLow: 40, IdealHigh: 50, High: 60},
		Volatility:    Band{Low: 0.01, IdealLow: 0.02, IdealHigh: 0.06, High: 0.12},
		VolumeFloor:   0.5,
		VolumeCeiling: 1.5,
		RRFloor:       1.0,
		RRFull:        2.5,
	}
}

// Score computes the breakdown for one candidate. The aggregate is the
// plain sum of the components, clamped to [0,100].
func (s Scorer) Score(daily, weekly indicators.Profile, lv levels.PriceLevels, bias market.Bias) Breakdown {
	b := Breakdown{
		Trend:      points(s.Weights.Trend, s.trend(daily, weekly, bias)),
		Momentum:   points(s.Weights.Momentum, s.momentum(daily, bias)),
		Volatility: points(s.Weights.Volatility, s.Volatility.Fraction(daily.ATRPct.Or(math.NaN()))),
		Volume:     points(s.Weights.Volume, Ramp(daily.VolumeRatio().Or(math.NaN()), s.VolumeFloor, s.VolumeCeiling)),
		RiskReward: points(s.Weights.RiskReward, Ramp(lv.RewardMultiple, s.RRFloor, s.RRFull)),
	}
	b.Score = math.Min(100, math.Max(0, b.Trend+b.Momentum+b.Volatility+b.Volume+b.RiskReward))
	return b
}

func (s Scorer) trend(daily, weekly indicators.Profile, bias market.Bias) float64 {
	want := indicators.Up
	switch bias {
	case market.Long:
	case market.Short:
		want = indicators.Down
	default:
		return 0
	}
	if daily.Trend() != want {
		return 0
	}
	if weekly.Trend() == want {
		return 1
	}
	return clamp01(s.TrendPartial)
}

func (s Scorer) momentum(daily indicators.Profile, bias market.Bias) float64 {
	rsi := daily.RSI.Or(math.NaN())
	switch bias {
	case market.Long:
		return s.MomentumLong.Fraction(rsi)
	case market.Short:
		return s.MomentumShort.Fraction(rsi)
	}
	return 0
}

func points(weight, frac float64) float64 {
	if !(weight > 0) || math.IsInf(weight, 0) {
		return 0
	}
	return weight * clamp01(frac)
}
