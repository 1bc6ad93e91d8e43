package regime

import (
	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
)

// Moving average windows used by the regime checks.
const (
	fastMA   = 20
	mediumMA = 50
	longMA   = 200
	rsiLen   = 14
)

// Frame is what the regime checks need from one reference series.
type Frame struct {
	Available bool

	Bullish bool

	FastAboveMedium bool
	FastBelowMedium bool

	RSI indicators.Value

	VolumeRising     bool
	VolumeNotFalling bool

	HigherLow bool
	LowerHigh bool

	Last float64
}

// Bullish reports whether the medium MA is above the long MA and the last
// close above the medium MA. Short histories are not bullish.
func Bullish(closes []float64) bool {
	if len(closes) < longMA {
		return false
	}
	medium, err := indicators.EMA(closes, mediumMA)
	if err != nil {
		return false
	}
	long, err := indicators.EMA(closes, longMA)
	if err != nil {
		return false
	}
	last := closes[len(closes)-1]
	return medium > long && last > medium
}

// Read derives a Frame from a series. An empty series is unavailable.
func Read(s market.Series) Frame {
	s = s.ValidTail()
	n := s.Len()
	if n == 0 {
		return Frame{}
	}

	closes := s.Closes()
	f := Frame{Available: true, Bullish: Bullish(closes), Last: closes[n-1]}

	fast, err1 := indicators.EMA(closes, fastMA)
	medium, err2 := indicators.EMA(closes, mediumMA)
	if err1 == nil && err2 == nil {
		f.FastAboveMedium = fast > medium
		f.FastBelowMedium = fast < medium
	}
	if rsi, err := indicators.RSI(closes, rsiLen); err == nil {
		f.RSI = indicators.Some(rsi)
	}

	if n >= 2 {
		cur, prev := s.Candles[n-1], s.Candles[n-2]
		f.VolumeRising = cur.Volume > prev.Volume
		f.VolumeNotFalling = cur.Volume >= prev.Volume
		f.HigherLow = cur.Low > prev.Low
		f.LowerHigh = cur.High < prev.High
	}
	return f
}
