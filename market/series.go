package market

import (
	"fmt"
	"time"
)

// Timeframe is a bar interval.
type Timeframe string

const (
	Daily  Timeframe = "1d"
	Weekly Timeframe = "1w"
)

func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Daily, Weekly:
		return Timeframe(s), nil
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// Duration is the nominal length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Series is an ordered (oldest first) run of bars for one symbol and
// timeframe. Treat it as read-only once fetched.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

func (s Series) Len() int { return len(s.Candles) }

// Last returns the newest bar.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closed returns a copy of the series without bars that close after now.
func (s Series) Closed(now time.Time) Series {
	out := Series{Symbol: s.Symbol, Timeframe: s.Timeframe}
	out.Candles = make([]Candle, 0, len(s.Candles))
	for _, c := range s.Candles {
		end := c.CloseTime
		if end.IsZero() {
			end = c.OpenTime.Add(s.Timeframe.Duration())
		}
		if end.After(now) {
			continue
		}
		out.Candles = append(out.Candles, c)
	}
	return out
}

// ValidTail returns the longest suffix made only of valid bars.
func (s Series) ValidTail() Series {
	i := len(s.Candles)
	for i > 0 && s.Candles[i-1].Valid() {
		i--
	}
	return Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[i:]}
}

func (s Series) Closes() []float64 {
	return s.pluck(func(c Candle) float64 { return c.Close })
}

func (s Series) Highs() []float64 {
	return s.pluck(func(c Candle) float64 { return c.High })
}

func (s Series) Lows() []float64 {
	return s.pluck(func(c Candle) float64 { return c.Low })
}

func (s Series) Volumes() []float64 {
	return s.pluck(func(c Candle) float64 { return c.Volume })
}

func (s Series) pluck(f func(Candle) float64) []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = f(c)
	}
	return out
}
