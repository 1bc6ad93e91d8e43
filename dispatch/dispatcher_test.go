package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/regime"
	"github.com/rustyeddy/scanner/scoring"
)

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (r *recorder) Deliver(_ context.Context, p Payload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p.Symbol)
	return !r.fail[p.Symbol]
}

func cand(sym string, bias market.Bias, score float64) Candidate {
	lv := levels.PriceLevels{Entry: 100, StopLoss: 95, TakeProfit: 110, RiskDistance: 5, RewardMultiple: 2}
	if bias == market.Short {
		lv = levels.PriceLevels{Entry: 100, StopLoss: 105, TakeProfit: 90, RiskDistance: 5, RewardMultiple: 2}
	}
	return Candidate{
		Symbol:    sym,
		Bias:      bias,
		Daily:     indicators.Profile{Symbol: sym, ADX: indicators.Some(25), ATRPct: indicators.Some(0.03), QuoteVolume: 1e6},
		Levels:    lv,
		Breakdown: scoring.Breakdown{Score: score},
	}
}

func openRegime() regime.Regime {
	return regime.Regime{Available: true, EligibleLong: true, EligibleShort: true, ScoreLong: 75, ScoreShort: 75}
}

func newTestDispatcher(p Policy) (*Dispatcher, *MemoryStore, *recorder) {
	st := NewMemoryStore()
	rec := &recorder{fail: map[string]bool{}}
	return New(p, st, rec, zerolog.Nop()), st, rec
}

func reasons(res Result) map[string]string {
	out := map[string]string{}
	for _, s := range res.Skipped {
		out[s.Symbol] = s.Reason
	}
	return out
}

func TestDispatchDailyCap(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.DailyCap = 3
	d, _, rec := newTestDispatcher(p)

	cands := []Candidate{
		cand("CCCUSDT", market.Long, 80),
		cand("AAAUSDT", market.Long, 90),
		cand("EEEUSDT", market.Long, 72),
		cand("BBBUSDT", market.Long, 85),
		cand("DDDUSDT", market.Long, 75),
	}

	res, err := d.Dispatch(context.Background(), cands, openRegime(), t0)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Evaluated)
	assert.Equal(t, 5, res.Eligible)
	assert.Equal(t, 5, res.ToSend)
	assert.Equal(t, 3, res.SentOK)
	assert.Equal(t, []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}, rec.sent)
	assert.Equal(t, map[string]string{"DDDUSDT": ReasonDailyCap, "EEEUSDT": ReasonDailyCap}, reasons(res))
}

func TestDispatchDailyCapCarriesAcrossBatches(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.DailyCap = 2
	d, st, _ := newTestDispatcher(p)

	_, err := d.Dispatch(context.Background(), []Candidate{cand("AAAUSDT", market.Long, 90)}, openRegime(), t0)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), []Candidate{
		cand("BBBUSDT", market.Long, 90),
		cand("CCCUSDT", market.Long, 80),
	}, openRegime(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SentOK)
	assert.Equal(t, ReasonDailyCap, reasons(res)["CCCUSDT"])

	s, _ := st.Load(context.Background())
	assert.Equal(t, 2, s.SentOn("2024-03-10"))
}

func TestDispatchDeduplicatesIdenticalTopSet(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.SymbolCooldown = 0
	p.SymbolLock = 0
	d, st, rec := newTestDispatcher(p)

	cands := []Candidate{cand("AAAUSDT", market.Long, 90), cand("BBBUSDT", market.Short, 80)}

	first, err := d.Dispatch(context.Background(), cands, openRegime(), t0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.SentOK)
	require.Equal(t, 1, st.Saves())

	second, err := d.Dispatch(context.Background(), cands, openRegime(), t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, 0, second.SentOK)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, rec.sent, 2)

	// state untouched
	assert.Equal(t, 1, st.Saves())
	s, _ := st.Load(context.Background())
	assert.True(t, s.LastTopAt.Equal(t0))
}

func TestDispatchDedupExpires(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.SymbolCooldown = 0
	p.SymbolLock = 0
	d, _, rec := newTestDispatcher(p)

	cands := []Candidate{cand("AAAUSDT", market.Long, 90)}
	_, err := d.Dispatch(context.Background(), cands, openRegime(), t0)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), cands, openRegime(), t0.Add(p.GlobalCooldown))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, 1, res.SentOK)
	assert.Len(t, rec.sent, 2)
}

func TestDispatchResubmitWithDefaultPolicySendsNothing(t *testing.T) {
	t.Parallel()

	d, _, rec := newTestDispatcher(DefaultPolicy())
	cands := []Candidate{cand("AAAUSDT", market.Long, 90), cand("BBBUSDT", market.Long, 85)}

	_, err := d.Dispatch(context.Background(), cands, openRegime(), t0)
	require.NoError(t, err)

	for _, after := range []time.Duration{time.Minute, time.Hour} {
		res, err := d.Dispatch(context.Background(), cands, openRegime(), t0.Add(after))
		require.NoError(t, err)
		assert.Equal(t, 0, res.SentOK, "after %s", after)
	}
	assert.Len(t, rec.sent, 2)
}

func TestDispatchEmptyBatchPersists(t *testing.T) {
	t.Parallel()

	d, st, _ := newTestDispatcher(DefaultPolicy())

	res, err := d.Dispatch(context.Background(), nil, openRegime(), t0)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, 1, st.Saves())

	s, _ := st.Load(context.Background())
	assert.Equal(t, Fingerprint(nil), s.LastTopFingerprint)
	assert.True(t, s.LastTopAt.Equal(t0))

	again, err := d.Dispatch(context.Background(), []Candidate{cand("LOWUSDT", market.Long, 10)}, openRegime(), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, again.Deduplicated)
	assert.Equal(t, 1, st.Saves())
}

func TestDispatchFailedSendStillCounts(t *testing.T) {
	t.Parallel()

	d, st, rec := newTestDispatcher(DefaultPolicy())
	rec.fail["AAAUSDT"] = true

	res, err := d.Dispatch(context.Background(), []Candidate{
		cand("AAAUSDT", market.Long, 90),
		cand("BBBUSDT", market.Long, 80),
	}, openRegime(), t0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.SentOK)
	assert.Equal(t, 1, res.SentFail)
	assert.Equal(t, []string{"AAAUSDT"}, res.Failed)
	assert.Equal(t, []string{"BBBUSDT"}, res.Sent)

	s, _ := st.Load(context.Background())
	assert.Equal(t, 2, s.SentOn("2024-03-10"))
	_, ok := s.LastSent("AAAUSDT", market.Long)
	assert.True(t, ok)

	retry, err := d.Dispatch(context.Background(), []Candidate{cand("AAAUSDT", market.Long, 90)}, openRegime(), t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ReasonCooldown, reasons(retry)["AAAUSDT"])
	assert.Len(t, rec.sent, 2)
}

func TestDispatchRegimeRefusal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rg   regime.Regime
		want string
	}{
		{"unknown", regime.Unknown(t0), "regime-unknown"},
		{"unfavorable", regime.Regime{Available: true, ScoreLong: 25, ScoreShort: 25}, "regime-unfavorable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, st, rec := newTestDispatcher(DefaultPolicy())

			res, err := d.Dispatch(context.Background(), []Candidate{cand("AAAUSDT", market.Long, 99)}, tt.rg, t0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Refused)
			assert.Equal(t, 0, res.SentOK)
			assert.Empty(t, rec.sent)
			assert.Equal(t, 0, st.Saves())
		})
	}
}

func TestDispatchRegimeGatesDirection(t *testing.T) {
	t.Parallel()

	d, _, rec := newTestDispatcher(DefaultPolicy())
	rg := regime.Regime{Available: true, EligibleLong: true, ScoreLong: 75}

	res, err := d.Dispatch(context.Background(), []Candidate{
		cand("AAAUSDT", market.Long, 90),
		cand("BBBUSDT", market.Short, 95),
	}, rg, t0)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAAUSDT"}, rec.sent)
	assert.Equal(t, ReasonRegime, reasons(res)["BBBUSDT"])
}

func TestDispatchFilterReasons(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.Exclude = []string{"usdcusdt"}
	d, _, _ := newTestDispatcher(p)

	res, err := d.Dispatch(context.Background(), []Candidate{
		cand("NONEUSDT", market.None, 95),
		cand("LOWUSDT", market.Long, 69.9),
		cand("USDCUSDT", market.Long, 95),
		cand("OKUSDT", market.Long, 70),
	}, openRegime(), t0)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Eligible)
	assert.Equal(t, []string{"OKUSDT"}, res.Sent)
	assert.Equal(t, map[string]string{
		"NONEUSDT": ReasonNoBias,
		"LOWUSDT":  ReasonScore,
		"USDCUSDT": ReasonExcluded,
	}, reasons(res))
}

func TestDispatchTopN(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.TopN = 2
	d, _, rec := newTestDispatcher(p)

	res, err := d.Dispatch(context.Background(), []Candidate{
		cand("AAAUSDT", market.Long, 71),
		cand("BBBUSDT", market.Long, 95),
		cand("CCCUSDT", market.Long, 88),
	}, openRegime(), t0)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ToSend)
	assert.Equal(t, []string{"BBBUSDT", "CCCUSDT"}, rec.sent)
	assert.Equal(t, ReasonBelowTopN, reasons(res)["AAAUSDT"])
}

func TestDispatchSymbolLockAcrossBias(t *testing.T) {
	t.Parallel()

	d, _, rec := newTestDispatcher(DefaultPolicy())

	_, err := d.Dispatch(context.Background(), []Candidate{cand("SOLUSDT", market.Long, 90)}, openRegime(), t0)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), []Candidate{cand("SOLUSDT", market.Short, 90)}, openRegime(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ReasonSymbolLock, reasons(res)["SOLUSDT"])

	later, err := d.Dispatch(context.Background(), []Candidate{cand("SOLUSDT", market.Short, 90)}, openRegime(), t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, later.SentOK)
	assert.Len(t, rec.sent, 2)
}

func TestDispatchDryRun(t *testing.T) {
	t.Parallel()

	d, st, rec := newTestDispatcher(DefaultPolicy())
	d.DryRun = true

	res, err := d.Dispatch(context.Background(), []Candidate{cand("AAAUSDT", market.Long, 90)}, openRegime(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SentOK)
	assert.Empty(t, rec.sent)

	s, _ := st.Load(context.Background())
	assert.Equal(t, 1, s.SentOn("2024-03-10"))
}

func TestDispatchDayKeyUsesLocation(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.Location = time.FixedZone("UTC-5", -5*3600)
	d, st, _ := newTestDispatcher(p)

	// 02:00 UTC on the 11th is still the 10th at UTC-5.
	now := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	_, err := d.Dispatch(context.Background(), []Candidate{cand("AAAUSDT", market.Long, 90)}, openRegime(), now)
	require.NoError(t, err)

	s, _ := st.Load(context.Background())
	assert.Equal(t, 1, s.SentOn("2024-03-10"))
	assert.Equal(t, 0, s.SentOn("2024-03-11"))
}

func TestRank(t *testing.T) {
	t.Parallel()

	a := cand("AAAUSDT", market.Long, 80)
	a.Daily.ADX = indicators.Value{}
	b := cand("BBBUSDT", market.Long, 80)
	b.Daily.ADX = indicators.Some(30)
	c := cand("CCCUSDT", market.Long, 80)
	c.Daily.ADX = indicators.Some(30)
	c.Volume24h = 5e6
	e := cand("EEEUSDT", market.Long, 80)
	e.Daily.ADX = indicators.Some(30)
	top := cand("ZZZUSDT", market.Long, 81)

	cs := []Candidate{a, e, b, c, top}
	Rank(cs)

	var got []string
	for _, c := range cs {
		got = append(got, c.Symbol)
	}
	assert.Equal(t, []string{"ZZZUSDT", "CCCUSDT", "BBBUSDT", "EEEUSDT", "AAAUSDT"}, got)
}

func TestNewPayload(t *testing.T) {
	t.Parallel()

	c := cand("AAAUSDT", market.Long, 88.4)
	c.Breakdown = scoring.Breakdown{Trend: 30, Momentum: 20, Volatility: 10, Volume: 8.4, RiskReward: 20, Score: 88.4}
	g := levels.Grid{Levels: 8, Step: 0.015}
	c.Grid = &g

	p := NewPayload(c)
	assert.Equal(t, "AAAUSDT", p.Symbol)
	assert.Equal(t, 100.0, p.Entry)
	assert.Equal(t, 95.0, p.StopLoss)
	assert.Equal(t, 110.0, p.TakeProfit)
	assert.Equal(t, []string{
		"ADX=25.0",
		"ATR%=3.00%",
		"Scores: T30/M20/Vola10/Vol8/RR20",
		"Vol24h≈1.00M USDT",
	}, p.Context)
	assert.Equal(t, 8, p.Grid.Levels)
}

func TestCompact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "950", Compact(950))
	assert.Equal(t, "12.5K", Compact(12_500))
	assert.Equal(t, "3.40M", Compact(3_400_000))
	assert.Equal(t, "1.20B", Compact(1_200_000_000))
}
