package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/feed"
	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/market/markettest"
	"github.com/rustyeddy/scanner/metrics"
	"github.com/rustyeddy/scanner/regime"
)

var now = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeSeries struct {
	mu     sync.Mutex
	series map[string]market.Series
	calls  int
}

func (f *fakeSeries) Series(_ context.Context, symbol string, tf market.Timeframe, _ int) (market.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	s, ok := f.series[symbol+"@"+string(tf)]
	if !ok {
		return market.Series{}, fmt.Errorf("%s %s: %w", symbol, tf, feed.ErrNoData)
	}
	return s, nil
}

func (f *fakeSeries) add(s market.Series, weekly market.Series) {
	if f.series == nil {
		f.series = map[string]market.Series{}
	}
	f.series[s.Symbol+"@1d"] = s
	if weekly.Len() > 0 {
		f.series[s.Symbol+"@1w"] = weekly
	}
}

type fakeAssets struct {
	tickers []feed.Ticker
	err     error
	calls   int
}

func (f *fakeAssets) Universe(context.Context, feed.UniverseOptions) ([]feed.Ticker, error) {
	f.calls++
	return f.tickers, f.err
}

func (f *fakeAssets) TickSize(context.Context, string) (float64, error) { return 0.01, nil }

type fakeRegime struct {
	rg         regime.Regime
	err        error
	leading    market.Series
	leadingErr error
	evaluated  int
}

func (f *fakeRegime) Evaluate(context.Context) (regime.Regime, error) {
	f.evaluated++
	return f.rg, f.err
}

func (f *fakeRegime) LeadingDaily(context.Context) (market.Series, error) {
	return f.leading, f.leadingErr
}

type fakeDispatcher struct {
	calls int
	cands []dispatch.Candidate
	rg    regime.Regime
	res   dispatch.Result
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, cands []dispatch.Candidate, rg regime.Regime, _ time.Time) (dispatch.Result, error) {
	f.calls++
	f.cands = cands
	f.rg = rg
	return f.res, f.err
}

type fakeTrades struct {
	recs []journal.TradeRecord
	err  error
}

func (f fakeTrades) RecentTrades(int) ([]journal.TradeRecord, error) { return f.recs, f.err }

type fakeAudit struct {
	mu        sync.Mutex
	decisions []journal.Decision
	regimes   []journal.RegimeSnapshot
}

func (f *fakeAudit) RecordDecision(d journal.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakeAudit) RecordRegime(r journal.RegimeSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regimes = append(f.regimes, r)
	return nil
}

type fakeStatus struct{ texts []string }

func (f *fakeStatus) Status(_ context.Context, text string) bool {
	f.texts = append(f.texts, text)
	return true
}

func longRegime() regime.Regime {
	return regime.Regime{Available: true, EligibleLong: true, ScoreLong: 75, ScoreShort: 25, EvaluatedAt: now}
}

func rising(sym string) (market.Series, market.Series) {
	return markettest.Rising(sym, 260), markettest.Weekly(markettest.Rising(sym, 100))
}

type fixture struct {
	series     *fakeSeries
	assets     *fakeAssets
	regime     *fakeRegime
	dispatcher *fakeDispatcher
	audit      *fakeAudit
	status     *fakeStatus
	scanner    *Scanner
}

func newFixture(t *testing.T, symbols ...string) *fixture {
	t.Helper()
	f := &fixture{
		series:     &fakeSeries{},
		assets:     &fakeAssets{},
		regime:     &fakeRegime{rg: longRegime(), leading: markettest.Rising("BTC-USD", 260)},
		dispatcher: &fakeDispatcher{},
		audit:      &fakeAudit{},
		status:     &fakeStatus{},
	}
	for i, sym := range symbols {
		d, w := rising(sym)
		f.series.add(d, w)
		f.assets.tickers = append(f.assets.tickers, feed.Ticker{Symbol: sym, QuoteVolume: float64(1_000_000 * (len(symbols) - i))})
	}

	s := New(DefaultOptions(), zerolog.Nop())
	s.Series = f.series
	s.Assets = f.assets
	s.Regime = f.regime
	s.Dispatcher = f.dispatcher
	s.Trades = fakeTrades{}
	s.Audit = f.audit
	s.Status = f.status
	s.Now = func() time.Time { return now }
	s.NewID = func() string { return "run-1" }
	f.scanner = s
	return f
}

func losses(n int) []journal.TradeRecord {
	var out []journal.TradeRecord
	for i := 0; i < n; i++ {
		out = append(out, journal.TradeRecord{
			TradeID:    fmt.Sprintf("T%d", i),
			Symbol:     "BTCUSDT",
			RealizedPL: -10,
			CloseTime:  now.Add(time.Duration(i-n) * time.Hour),
		})
	}
	return out
}

func TestRunDispatchesWithRealDispatcher(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT", "ETHUSDT")
	f.series.add(markettest.Rising("NEWUSDT", 40), market.Series{})
	f.assets.tickers = append(f.assets.tickers,
		feed.Ticker{Symbol: "NEWUSDT", QuoteVolume: 500_000},
		feed.Ticker{Symbol: "GONEUSDT", QuoteVolume: 400_000},
	)

	p := dispatch.DefaultPolicy()
	p.MinScore = 0
	p.SymbolCooldown = 0
	p.SymbolLock = 0
	store := dispatch.NewMemoryStore()
	d := dispatch.New(p, store, nil, zerolog.Nop())
	d.DryRun = true
	f.scanner.Dispatcher = d

	rec := metrics.New()
	f.scanner.Metrics = rec
	f.scanner.Opts.MetricsTextfile = filepath.Join(t.TempDir(), "scanner.prom")

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, OutcomeDispatched, rep.Outcome)
	assert.True(t, rep.Risk.Allowed)
	require.Len(t, rep.Skipped, 2)
	assert.Equal(t, []Skip{
		{Symbol: "NEWUSDT", Reason: ReasonInsufficientData, Err: rep.Skipped[0].Err},
		{Symbol: "GONEUSDT", Reason: ReasonFetchFailed, Err: rep.Skipped[1].Err},
	}, rep.Skipped)

	require.Len(t, rep.Candidates, 2)
	for _, c := range rep.Candidates {
		assert.Equal(t, market.Long, c.Bias)
		assert.True(t, c.Levels.Ordered(market.Long))
		assert.NotNil(t, c.Grid)
	}
	assert.Equal(t, "BTCUSDT", rep.Candidates[0].Symbol)
	assert.Equal(t, 2_000_000.0, rep.Candidates[0].Volume24h)

	assert.Equal(t, 2, rep.Result.SentOK)
	assert.Equal(t, 1, store.Saves())

	require.Len(t, f.audit.regimes, 1)
	assert.Equal(t, 75, f.audit.regimes[0].ScoreLong)
	require.Len(t, f.audit.decisions, 4)
	outcomes := map[string]string{}
	for _, d := range f.audit.decisions {
		outcomes[d.Symbol] = d.Outcome
	}
	assert.Equal(t, map[string]string{
		"BTCUSDT": DecisionSent, "ETHUSDT": DecisionSent,
		"NEWUSDT": DecisionSkipped, "GONEUSDT": DecisionSkipped,
	}, outcomes)

	require.Len(t, f.status.texts, 1)
	assert.Contains(t, f.status.texts[0], "Market regime")

	data, err := os.ReadFile(f.scanner.Opts.MetricsTextfile)
	require.NoError(t, err)
	prom := string(data)
	assert.Contains(t, prom, `scanner_candidates_total{outcome="sent"} 2`)
	assert.Contains(t, prom, `scanner_skips_total{reason="insufficient-data"} 1`)
	assert.Contains(t, prom, `scanner_sends_total{result="ok"} 2`)
	assert.Contains(t, prom, `scanner_regime_score{direction="long"} 75`)

	// Same market one minute later: top set unchanged.
	f.scanner.Now = func() time.Time { return now.Add(time.Minute) }
	rep, err = f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeduplicated, rep.Outcome)
	assert.Equal(t, 0, rep.Result.SentOK)
}

func TestRunRiskPausedByLosses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT")
	f.scanner.Trades = fakeTrades{recs: losses(3)}

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRiskPaused, rep.Outcome)
	assert.False(t, rep.Risk.Allowed)
	assert.Equal(t, "CONSECUTIVE_LOSSES", rep.Risk.Reason())
	assert.Equal(t, 0, f.regime.evaluated)
	assert.Equal(t, 0, f.dispatcher.calls)
	require.Len(t, f.status.texts, 1)
	assert.Contains(t, f.status.texts[0], "CONSECUTIVE_LOSSES")
}

func TestRunRiskPausedByDrawdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT")
	f.regime.leading = markettest.Build(markettest.Spec{Symbol: "BTC-USD", Bars: 60, Start: 400, Step: -5})

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRiskPaused, rep.Outcome)
	assert.Equal(t, "DRAWDOWN_LIMIT", rep.Risk.Reason())
	assert.Equal(t, 0, f.dispatcher.calls)
}

func TestRunRiskUnknownFailsSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(f *fixture)
	}{
		{"trade log unreadable", func(f *fixture) {
			f.scanner.Trades = fakeTrades{err: errors.New("disk gone")}
		}},
		{"reference unavailable", func(f *fixture) {
			f.regime.leadingErr = errors.New("timeout")
		}},
		{"reference empty", func(f *fixture) {
			f.regime.leading = market.Series{}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, "BTCUSDT")
			tt.mutate(f)

			rep, err := f.scanner.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, OutcomeRiskUnknown, rep.Outcome)
			assert.Equal(t, 0, f.regime.evaluated)
			assert.Equal(t, 0, f.dispatcher.calls)
		})
	}
}

func TestRunRegimeUnfavorableSkipsUniverse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT")
	f.regime.rg = regime.Regime{Available: true, ScoreLong: 25, ScoreShort: 25, EvaluatedAt: now}

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "regime-unfavorable", rep.Outcome)
	assert.Equal(t, 0, f.assets.calls)
	assert.Equal(t, 0, f.dispatcher.calls)
	assert.Len(t, f.audit.regimes, 1)
}

func TestRunRegimeUnknown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT")
	f.regime.rg = regime.Unknown(now)
	f.regime.err = &regime.RegimeUnavailableError{Symbol: "BTC-USD", Err: errors.New("503")}

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "regime-unknown", rep.Outcome)
	assert.Equal(t, 0, f.dispatcher.calls)
	require.Len(t, f.status.texts, 1)
	assert.Contains(t, f.status.texts[0], "unknown")
}

func TestRunScanWhenUnfavorableStillAudits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT", "ETHUSDT")
	f.regime.rg = regime.Regime{Available: true, EvaluatedAt: now}
	f.scanner.Opts.ScanWhenUnfavorable = true
	f.dispatcher.res = dispatch.Result{
		Evaluated: 2,
		Refused:   "regime-unfavorable",
		Skipped: []dispatch.Skip{
			{Symbol: "BTCUSDT", Bias: market.Long, Reason: "regime-unfavorable"},
			{Symbol: "ETHUSDT", Bias: market.Long, Reason: "regime-unfavorable"},
		},
	}

	rep, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "regime-unfavorable", rep.Outcome)
	assert.Equal(t, 1, f.dispatcher.calls)
	assert.Len(t, f.dispatcher.cands, 2)
	require.Len(t, f.audit.decisions, 2)
	for _, d := range f.audit.decisions {
		assert.Equal(t, DecisionSkipped, d.Outcome)
		assert.Equal(t, "regime-unfavorable", d.Reason)
	}
}

func TestRunStatusMessagesDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT")
	f.scanner.Opts.StatusMessages = false

	_, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.status.texts)
}

func TestAnalyzeSkipReasons(t *testing.T) {
	t.Parallel()

	t.Run("atr ceiling", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "BTCUSDT")
		f.scanner.Opts.MaxATRPct = 0.005

		rep, err := f.scanner.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, rep.Skipped, 1)
		assert.Equal(t, ReasonATRCeiling, rep.Skipped[0].Reason)
		assert.Empty(t, f.dispatcher.cands)
	})

	t.Run("no bias reaches the dispatcher", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.series.add(markettest.Rising("MIXUSDT", 260), markettest.Weekly(markettest.Falling("MIXUSDT", 100)))
		f.assets.tickers = []feed.Ticker{{Symbol: "MIXUSDT"}}
		f.scanner.Resolver.Mode = levels.Strict

		rep, err := f.scanner.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rep.Skipped)
		require.Len(t, f.dispatcher.cands, 1)
		assert.Equal(t, market.None, f.dispatcher.cands[0].Bias)
		assert.Zero(t, f.dispatcher.cands[0].Score())
	})

	t.Run("missing weekly reads flat", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.series.add(markettest.Rising("SOLUSDT", 260), market.Series{})
		f.assets.tickers = []feed.Ticker{{Symbol: "SOLUSDT"}}

		_, err := f.scanner.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, f.dispatcher.cands, 1)
		assert.Equal(t, market.Long, f.dispatcher.cands[0].Bias)
	})
}

func TestRunKeepsUniverseOrder(t *testing.T) {
	t.Parallel()

	var syms []string
	for i := 0; i < 20; i++ {
		syms = append(syms, fmt.Sprintf("A%02dUSDT", i))
	}
	f := newFixture(t, syms...)
	f.scanner.Opts.Workers = 4

	_, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dispatcher.cands, len(syms))
	for i, c := range f.dispatcher.cands {
		assert.Equal(t, syms[i], c.Symbol)
	}
}

func TestRunSymbolsOverrideUniverse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "BTCUSDT", "ETHUSDT")
	f.scanner.Opts.Symbols = []string{"ETHUSDT"}

	_, err := f.scanner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, f.assets.calls)
	require.Len(t, f.dispatcher.cands, 1)
	assert.Equal(t, "ETHUSDT", f.dispatcher.cands[0].Symbol)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	t.Run("universe", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.assets.err = errors.New("exchange info: 418")
		_, err := f.scanner.Run(context.Background())
		assert.ErrorContains(t, err, "select universe")
	})

	t.Run("dispatcher state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "BTCUSDT")
		f.dispatcher.err = fmt.Errorf("lock dispatch state: %w", dispatch.ErrLocked)
		_, err := f.scanner.Run(context.Background())
		assert.ErrorIs(t, err, dispatch.ErrLocked)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "BTCUSDT")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.scanner.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, f.dispatcher.calls)
	})
}

func TestReportDecisions(t *testing.T) {
	t.Parallel()

	rep := Report{
		RunID:   "r",
		Skipped: []Skip{{Symbol: "NEWUSDT", Reason: ReasonInsufficientData}},
		Candidates: []dispatch.Candidate{
			{Symbol: "AAA", Bias: market.Long},
			{Symbol: "BBB", Bias: market.Short},
			{Symbol: "CCC", Bias: market.Long},
			{Symbol: "DDD", Bias: market.Long},
		},
		Result: dispatch.Result{
			Sent:    []string{"AAA"},
			Failed:  []string{"BBB"},
			Skipped: []dispatch.Skip{{Symbol: "CCC", Bias: market.Long, Reason: dispatch.ReasonDailyCap}},
		},
	}

	got := rep.Decisions(now)
	require.Len(t, got, 5)
	var lines []string
	for _, d := range got {
		assert.Equal(t, "r", d.RunID)
		assert.Equal(t, now, d.Time)
		lines = append(lines, d.Symbol+":"+d.Outcome+":"+d.Reason)
	}
	assert.Equal(t, "NEWUSDT:skipped:insufficient-data|AAA:sent:|BBB:failed:|CCC:skipped:daily-cap|DDD:skipped:",
		strings.Join(lines, "|"))

	rep.Result = dispatch.Result{Deduplicated: true}
	got = rep.Decisions(now)
	assert.Equal(t, DecisionDeduplicated, got[1].Outcome)
}
