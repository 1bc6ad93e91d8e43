package market

import (
	"math"
	"time"
)

// Candle is one OHLCV bar. QuoteVolume is the traded value in the quote
// asset when the provider reports it, zero otherwise.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume      float64
	QuoteVolume float64
}

// Valid reports whether the bar carries usable prices.
func (c Candle) Valid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	if math.IsNaN(c.Volume) || c.Volume < 0 {
		return false
	}
	return c.High >= c.Low
}

// Quote returns the bar's quote volume, falling back to close*volume.
func (c Candle) Quote() float64 {
	if c.QuoteVolume > 0 {
		return c.QuoteVolume
	}
	return c.Close * c.Volume
}
