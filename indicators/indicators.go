// Package indicators computes the technical profile of a price series.
package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/scanner/market"
)

// Value is an optional indicator reading. OK is false when the indicator
// could not be computed from the available bars.
type Value struct {
	V  float64 `json:"v"`
	OK bool    `json:"ok"`
}

func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{V: v, OK: true}
}

// Get returns the reading and whether it is available.
func (v Value) Get() (float64, bool) { return v.V, v.OK }

// Or returns the reading, or def when unavailable.
func (v Value) Or(def float64) float64 {
	if !v.OK {
		return def
	}
	return v.V
}

func (v Value) String() string {
	if !v.OK {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v.V)
}

// Profile is the per-asset, per-timeframe technical snapshot. It is built
// once by Engine.Compute and never modified afterwards.
type Profile struct {
	Symbol    string
	Timeframe market.Timeframe
	Bars      int

	Close       float64
	Low         float64
	High        float64
	Volume      float64
	QuoteVolume float64

	RSI        Value
	MACD       Value
	MACDSignal Value
	EMAFast    Value
	EMAMid     Value
	EMASlow    Value
	ATR        Value
	ATRPct     Value
	ADX        Value
	MFI        Value
	OBV        Value

	BollingerUpper Value
	BollingerLower Value

	VolumeAvg Value
}

// Trend is the fast/mid EMA ordering of a profile.
type Trend int

const (
	Flat Trend = iota
	Up
	Down
)

func (t Trend) String() string {
	switch t {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// Trend compares the fast and mid EMAs. Unavailable readings are Flat.
func (p Profile) Trend() Trend {
	fast, ok1 := p.EMAFast.Get()
	mid, ok2 := p.EMAMid.Get()
	if !ok1 || !ok2 {
		return Flat
	}
	switch {
	case fast > mid:
		return Up
	case fast < mid:
		return Down
	default:
		return Flat
	}
}

// VolumeRatio is the last bar volume over its moving average.
func (p Profile) VolumeRatio() Value {
	avg, ok := p.VolumeAvg.Get()
	if !ok || avg <= 0 {
		return Value{}
	}
	return Some(p.Volume / avg)
}
