package levels

import (
	"errors"
	"math"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/risk"
)

// PriceLevels are the planned trade levels for one candidate.
//
// For LONG: StopLoss < Entry < TakeProfit. For SHORT: TakeProfit < Entry <
// StopLoss. RiskDistance is |Entry-StopLoss| and always positive.
type PriceLevels struct {
	Entry          float64 `json:"entry"`
	StopLoss       float64 `json:"stop_loss"`
	TakeProfit     float64 `json:"take_profit"`
	RiskDistance   float64 `json:"risk_distance"`
	RewardMultiple float64 `json:"reward_multiple"`

	// StopSource is "atr" or "swing".
	StopSource string `json:"stop_source"`
	Sanitized  bool   `json:"sanitized,omitempty"`
	Capped     bool   `json:"capped,omitempty"`
	Rounded    bool   `json:"rounded,omitempty"`
}

// Ordered reports whether the levels satisfy the ordering invariant for bias
// and are all positive prices.
func (lv PriceLevels) Ordered(bias market.Bias) bool {
	if !(lv.Entry > 0 && lv.StopLoss > 0 && lv.TakeProfit > 0) {
		return false
	}
	switch bias {
	case market.Long:
		return lv.StopLoss < lv.Entry && lv.Entry < lv.TakeProfit
	case market.Short:
		return lv.TakeProfit < lv.Entry && lv.Entry < lv.StopLoss
	}
	return false
}

// TPCap bounds the target distance at N x ATR, with N picked from the ATR%
// band the asset sits in.
type TPCap struct {
	Enabled bool
	LowBand float64 // ATR% at or below: NLow
	MidBand float64 // ATR% at or below: NMid, above: NHigh
	NLow    float64
	NMid    float64
	NHigh   float64
}

func DefaultTPCap() TPCap {
	return TPCap{LowBand: 0.04, MidBand: 0.08, NLow: 12, NMid: 8, NHigh: 5}
}

// Multiple returns N for the given ATR fraction.
func (c TPCap) Multiple(atrPct float64) float64 {
	switch {
	case atrPct <= c.LowBand:
		return c.NLow
	case atrPct <= c.MidBand:
		return c.NMid
	default:
		return c.NHigh
	}
}

// Resolver builds PriceLevels.
type Resolver struct {
	Mode           BiasMode
	SLATRMultiple  float64
	RewardMultiple float64
	SwingLookback  int
	TPCap          TPCap
}

func DefaultResolver() Resolver {
	return Resolver{
		Mode:           Relaxed,
		SLATRMultiple:  1.5,
		RewardMultiple: 2.0,
		SwingLookback:  14,
		TPCap:          DefaultTPCap(),
	}
}

// Resolve infers the bias (unless hint is LONG or SHORT) and builds levels
// from the last closed daily bar. A NONE bias returns zero levels and no
// error. tick <= 0 disables rounding.
func (r Resolver) Resolve(daily market.Series, dp, wp indicators.Profile, hint market.Bias, tick float64) (market.Bias, PriceLevels, error) {
	bias := hint
	if bias == market.None {
		bias = InferBias(r.Mode, dp, wp)
	}
	if bias == market.None {
		return market.None, PriceLevels{}, nil
	}

	atr, ok := dp.ATR.Get()
	if !ok {
		return bias, PriceLevels{}, &DegenerateLevelsError{Symbol: daily.Symbol, Bias: bias, Entry: dp.Close, Reason: "atr unavailable"}
	}

	swing := SwingExtreme(daily, bias, r.SwingLookback)
	lv, err := r.Levels(bias, dp.Close, atr, swing, tick)
	if err != nil {
		var dle *DegenerateLevelsError
		if errors.As(err, &dle) {
			dle.Symbol = daily.Symbol
		}
		return bias, PriceLevels{}, err
	}
	return bias, lv, nil
}

// SwingExtreme is the lowest low (LONG) or highest high (SHORT) over the
// last lookback valid bars. It returns NaN when there is nothing to scan.
func SwingExtreme(s market.Series, bias market.Bias, lookback int) float64 {
	tail := s.ValidTail().Candles
	if lookback <= 0 || len(tail) == 0 {
		return math.NaN()
	}
	if lookback < len(tail) {
		tail = tail[len(tail)-lookback:]
	}

	out := math.NaN()
	for _, c := range tail {
		switch bias {
		case market.Long:
			if math.IsNaN(out) || c.Low < out {
				out = c.Low
			}
		case market.Short:
			if math.IsNaN(out) || c.High > out {
				out = c.High
			}
		}
	}
	return out
}

// Levels builds levels for bias from an entry price, the ATR and the
// structural swing extreme (NaN when there is none).
func (r Resolver) Levels(bias market.Bias, entry, atr, swing, tick float64) (PriceLevels, error) {
	dir := direction(bias)
	if dir == 0 || !(entry > 0) || math.IsInf(entry, 0) {
		return PriceLevels{}, &DegenerateLevelsError{Bias: bias, Entry: entry, ATR: atr, Reason: "invalid entry or bias"}
	}

	atrStop := entry - dir*r.SLATRMultiple*atr
	stop, source := atrStop, "atr"
	if swing > 0 && !math.IsInf(swing, 0) {
		// keep whichever stop sits further from entry
		if dir*(atrStop-swing) > 0 {
			stop, source = swing, "swing"
		}
	}

	riskDist := dir * (entry - stop)
	if !(riskDist > 0) {
		stop, source = atrStop, "atr"
		riskDist = dir * (entry - stop)
	}
	if !(riskDist > 0) {
		return PriceLevels{}, &DegenerateLevelsError{Bias: bias, Entry: entry, ATR: atr, Reason: "risk distance is not positive"}
	}

	lv := PriceLevels{
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: entry + dir*r.RewardMultiple*riskDist,
		StopSource: source,
	}

	if r.TPCap.Enabled && atr > 0 {
		limit := r.TPCap.Multiple(atr/entry) * atr
		if r.RewardMultiple*riskDist > limit {
			lv.TakeProfit = entry + dir*limit
			lv.Capped = true
		}
	}

	if !lv.Ordered(bias) {
		lv = r.atrLevels(bias, entry, atr)
		if !lv.Ordered(bias) {
			return PriceLevels{}, &DegenerateLevelsError{Bias: bias, Entry: entry, ATR: atr, Reason: "atr levels violate ordering"}
		}
	}

	if tick > 0 {
		rounded, ok := roundLevels(lv, bias, tick)
		if !ok {
			return PriceLevels{}, &DegenerateLevelsError{Bias: bias, Entry: entry, ATR: atr, Reason: "levels collapse at tick size"}
		}
		lv = rounded
	}

	lv.RiskDistance = math.Abs(lv.Entry - lv.StopLoss)
	lv.RewardMultiple = risk.RR(lv.Entry, lv.StopLoss, lv.TakeProfit)
	return lv, nil
}

// atrLevels is the sanitized fallback: stop and target both derived from the
// ATR offset.
func (r Resolver) atrLevels(bias market.Bias, entry, atr float64) PriceLevels {
	dir := direction(bias)
	off := r.SLATRMultiple * atr
	return PriceLevels{
		Entry:      entry,
		StopLoss:   entry - dir*off,
		TakeProfit: entry + dir*r.RewardMultiple*off,
		StopSource: "atr",
		Sanitized:  true,
	}
}

func direction(b market.Bias) float64 {
	switch b {
	case market.Long:
		return 1
	case market.Short:
		return -1
	}
	return 0
}
