// Package markettest builds synthetic price series for tests.
package markettest

import (
	"time"

	"github.com/rustyeddy/scanner/market"
)

// Epoch is the open time of the first generated bar.
var Epoch = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// Spec describes a generated series. Close moves by Step per bar starting
// from Start; High/Low sit Spread above/below the close; Volume grows by
// VolumeStep per bar from Volume.
type Spec struct {
	Symbol     string
	Timeframe  market.Timeframe
	Bars       int
	Start      float64
	Step       float64
	Spread     float64
	Volume     float64
	VolumeStep float64
}

// Build generates the series described by s.
func Build(s Spec) market.Series {
	tf := s.Timeframe
	if tf == "" {
		tf = market.Daily
	}
	spread := s.Spread
	if spread == 0 {
		spread = 1
	}
	vol := s.Volume
	if vol == 0 {
		vol = 1000
	}

	out := market.Series{Symbol: s.Symbol, Timeframe: tf, Candles: make([]market.Candle, s.Bars)}
	for i := 0; i < s.Bars; i++ {
		c := s.Start + s.Step*float64(i)
		open := Epoch.Add(time.Duration(i) * tf.Duration())
		out.Candles[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open.Add(tf.Duration() - time.Millisecond),
			Open:      c - s.Step/2,
			High:      c + spread,
			Low:       c - spread,
			Close:     c,
			Volume:    vol + s.VolumeStep*float64(i),
		}
	}
	return out
}

// Rising is a steadily rising daily series with rising volume.
func Rising(symbol string, bars int) market.Series {
	return Build(Spec{Symbol: symbol, Bars: bars, Start: 100, Step: 0.5, Spread: 1, Volume: 1000, VolumeStep: 5})
}

// Falling is a steadily falling daily series with rising volume.
func Falling(symbol string, bars int) market.Series {
	return Build(Spec{Symbol: symbol, Bars: bars, Start: 400, Step: -0.5, Spread: 1, Volume: 1000, VolumeStep: 5})
}

// Weekly converts s to a weekly series with the same bar values.
func Weekly(s market.Series) market.Series {
	out := market.Series{Symbol: s.Symbol, Timeframe: market.Weekly, Candles: make([]market.Candle, len(s.Candles))}
	for i, c := range s.Candles {
		open := Epoch.Add(time.Duration(i) * market.Weekly.Duration())
		c.OpenTime = open
		c.CloseTime = open.Add(market.Weekly.Duration() - time.Millisecond)
		out.Candles[i] = c
	}
	return out
}

// After returns a time after the last bar of s closed.
func After(s market.Series) time.Time {
	last, ok := s.Last()
	if !ok {
		return Epoch
	}
	return last.CloseTime.Add(time.Hour)
}
