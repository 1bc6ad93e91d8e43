package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/market/markettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeInsufficientData(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 150)
	_, err := DefaultEngine().Compute(s, markettest.After(s))

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 200, ide.Need)
	assert.Equal(t, 150, ide.Got)
	assert.Contains(t, err.Error(), "not enough candles")
}

func TestComputeRisingSeries(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 260)
	p, err := DefaultEngine().Compute(s, markettest.After(s))
	require.NoError(t, err)

	assert.Equal(t, 260, p.Bars)
	last, _ := s.Last()
	assert.Equal(t, last.Close, p.Close)

	for name, v := range map[string]Value{
		"rsi": p.RSI, "macd": p.MACD, "macd_signal": p.MACDSignal,
		"ema_fast": p.EMAFast, "ema_mid": p.EMAMid, "ema_slow": p.EMASlow,
		"atr": p.ATR, "atr_pct": p.ATRPct, "adx": p.ADX, "mfi": p.MFI, "obv": p.OBV,
		"bb_upper": p.BollingerUpper, "bb_lower": p.BollingerLower, "volume_avg": p.VolumeAvg,
	} {
		assert.True(t, v.OK, name)
	}

	assert.Greater(t, p.EMAFast.V, p.EMAMid.V)
	assert.Greater(t, p.EMAMid.V, p.EMASlow.V)
	assert.Equal(t, Up, p.Trend())
	assert.Greater(t, p.RSI.V, 50.0)
	assert.Greater(t, p.ATR.V, 0.0)
	assert.InDelta(t, p.ATR.V/p.Close, p.ATRPct.V, 1e-12)
	assert.Greater(t, p.BollingerUpper.V, p.BollingerLower.V)
	assert.Greater(t, p.VolumeRatio().V, 1.0)
}

func TestComputeFallingSeriesTrendsDown(t *testing.T) {
	t.Parallel()

	s := markettest.Falling("ABCUSDT", 220)
	p, err := DefaultEngine().Compute(s, markettest.After(s))
	require.NoError(t, err)
	assert.Equal(t, Down, p.Trend())
	assert.Less(t, p.RSI.V, 50.0)
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 240)
	now := markettest.After(s)
	a, err := DefaultEngine().Compute(s, now)
	require.NoError(t, err)
	b, err := DefaultEngine().Compute(s, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeBrokenBarOnlyDropsLongWindows(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 240)
	bars := append([]market.Candle(nil), s.Candles...)
	bars[180].Close = math.NaN()
	s.Candles = bars

	p, err := DefaultEngine().Compute(s, markettest.After(s))
	require.NoError(t, err)

	assert.Equal(t, 59, p.Bars)
	assert.True(t, p.ATR.OK)
	assert.True(t, p.EMAMid.OK)
	assert.False(t, p.EMASlow.OK)
}

func TestComputeBrokenTailIsInsufficient(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 220)
	bars := append([]market.Candle(nil), s.Candles...)
	bars[len(bars)-3].High = -1
	s.Candles = bars

	_, err := DefaultEngine().Compute(s, markettest.After(s))
	var ide *InsufficientDataError
	assert.True(t, errors.As(err, &ide))
}

func TestComputeIgnoresOpenBar(t *testing.T) {
	t.Parallel()

	s := markettest.Rising("ABCUSDT", 230)
	last, _ := s.Last()
	now := last.OpenTime.Add(time.Hour)

	p, err := DefaultEngine().Compute(s, now)
	require.NoError(t, err)
	assert.Equal(t, 229, p.Bars)
	assert.Equal(t, s.Candles[228].Close, p.Close)
}

func TestWeeklyEngineAcceptsShortHistory(t *testing.T) {
	t.Parallel()

	s := markettest.Weekly(markettest.Rising("ABCUSDT", 60))
	e := DefaultEngine().WithMinBars(50)

	p, err := e.Compute(s, markettest.After(s))
	require.NoError(t, err)
	assert.True(t, p.EMAMid.OK)
	assert.False(t, p.EMASlow.OK)
	assert.Equal(t, market.Weekly, p.Timeframe)
}

func TestValueHelpers(t *testing.T) {
	t.Parallel()

	assert.False(t, Some(math.Inf(1)).OK)
	assert.Equal(t, 3.0, Value{}.Or(3))
	assert.Equal(t, "n/a", Value{}.String())
	assert.Equal(t, Flat, Profile{}.Trend())
	assert.False(t, Profile{Volume: 5}.VolumeRatio().OK)
}
