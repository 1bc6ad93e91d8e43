package indicators

import (
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rustyeddy/scanner/market"
)

// Engine holds the indicator windows. The zero value is not usable; start
// from DefaultEngine.
type Engine struct {
	FastEMA int
	MidEMA  int
	SlowEMA int

	RSIPeriod int
	ATRPeriod int
	ADXPeriod int
	MFIPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	BollingerPeriod int
	BollingerDev    float64

	VolumeAvg int

	// MinBars is the shortest series accepted by Compute.
	MinBars int
}

func DefaultEngine() Engine {
	return Engine{
		FastEMA:         20,
		MidEMA:          50,
		SlowEMA:         200,
		RSIPeriod:       14,
		ATRPeriod:       14,
		ADXPeriod:       14,
		MFIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerDev:    2.0,
		VolumeAvg:       20,
		MinBars:         200,
	}
}

// WithMinBars returns a copy of e accepting series of at least n bars.
func (e Engine) WithMinBars(n int) Engine {
	e.MinBars = n
	return e
}

// Compute builds a Profile from the bars of s that closed at or before now.
// A zero now treats every bar as closed.
//
// Indicators whose window does not fit into the trailing run of valid bars
// come back unavailable. ATR is required: without it Compute fails with
// *InsufficientDataError.
func (e Engine) Compute(s market.Series, now time.Time) (Profile, error) {
	if !now.IsZero() {
		s = s.Closed(now)
	}
	if s.Len() < e.MinBars {
		return Profile{}, &InsufficientDataError{Symbol: s.Symbol, Need: e.MinBars, Got: s.Len()}
	}

	tail := s.ValidTail()
	n := tail.Len()
	if n < e.ATRPeriod+1 {
		return Profile{}, &InsufficientDataError{Symbol: s.Symbol, Need: e.ATRPeriod + 1, Got: n, What: "valid candles for ATR"}
	}

	closes := tail.Closes()
	highs := tail.Highs()
	lows := tail.Lows()
	vols := tail.Volumes()
	last := tail.Candles[n-1]

	p := Profile{
		Symbol:      s.Symbol,
		Timeframe:   s.Timeframe,
		Bars:        n,
		Close:       last.Close,
		High:        last.High,
		Low:         last.Low,
		Volume:      last.Volume,
		QuoteVolume: last.Quote(),
	}

	p.ATR = lastOf(talib.Atr(highs, lows, closes, e.ATRPeriod))
	if !p.ATR.OK {
		return Profile{}, &InsufficientDataError{Symbol: s.Symbol, Need: e.ATRPeriod + 1, Got: n, What: "valid candles for ATR"}
	}
	p.ATRPct = Some(p.ATR.V / last.Close)

	if n >= e.FastEMA {
		p.EMAFast = lastOf(talib.Ema(closes, e.FastEMA))
	}
	if n >= e.MidEMA {
		p.EMAMid = lastOf(talib.Ema(closes, e.MidEMA))
	}
	if n >= e.SlowEMA {
		p.EMASlow = lastOf(talib.Ema(closes, e.SlowEMA))
	}
	if n > e.RSIPeriod {
		p.RSI = lastOf(talib.Rsi(closes, e.RSIPeriod))
	}
	if n > e.MACDSlow+e.MACDSignal {
		macd, signal, _ := talib.Macd(closes, e.MACDFast, e.MACDSlow, e.MACDSignal)
		p.MACD = lastOf(macd)
		p.MACDSignal = lastOf(signal)
	}
	if n >= 2*e.ADXPeriod+1 {
		p.ADX = lastOf(talib.Adx(highs, lows, closes, e.ADXPeriod))
	}
	if n > e.MFIPeriod {
		p.MFI = lastOf(talib.Mfi(highs, lows, closes, vols, e.MFIPeriod))
	}
	p.OBV = lastOf(talib.Obv(closes, vols))
	if n >= e.BollingerPeriod {
		upper, _, lower := talib.BBands(closes, e.BollingerPeriod, e.BollingerDev, e.BollingerDev, talib.SMA)
		p.BollingerUpper = lastOf(upper)
		p.BollingerLower = lastOf(lower)
	}
	if n >= e.VolumeAvg {
		p.VolumeAvg = lastOf(talib.Sma(vols, e.VolumeAvg))
	}

	return p, nil
}

func lastOf(xs []float64) Value {
	if len(xs) == 0 {
		return Value{}
	}
	return Some(xs[len(xs)-1])
}
