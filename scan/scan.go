// Package scan runs one batch: risk breaker, market regime, universe
// analysis on a bounded worker pool, then the notification dispatcher.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/feed"
	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/metrics"
	"github.com/rustyeddy/scanner/pkg/id"
	"github.com/rustyeddy/scanner/regime"
	"github.com/rustyeddy/scanner/risk"
	"github.com/rustyeddy/scanner/scoring"
)

// Batch outcomes.
const (
	OutcomeRiskPaused   = "risk-paused"
	OutcomeRiskUnknown  = "risk-unknown"
	OutcomeDispatched   = "dispatched"
	OutcomeDeduplicated = "deduplicated"
)

// Per-asset skip reasons.
const (
	ReasonInsufficientData = "insufficient-data"
	ReasonDegenerateLevels = "degenerate-levels"
	ReasonFetchFailed      = "fetch-failed"
	ReasonATRCeiling       = "atr-ceiling"
)

// Assets lists the tradable universe and its price increments.
type Assets interface {
	Universe(ctx context.Context, o feed.UniverseOptions) ([]feed.Ticker, error)
	TickSize(ctx context.Context, symbol string) (float64, error)
}

// RegimeSource is satisfied by *regime.Evaluator.
type RegimeSource interface {
	Evaluate(ctx context.Context) (regime.Regime, error)
	LeadingDaily(ctx context.Context) (market.Series, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cands []dispatch.Candidate, rg regime.Regime, now time.Time) (dispatch.Result, error)
}

type TradeLog interface {
	RecentTrades(n int) ([]journal.TradeRecord, error)
}

// Audit persists decisions and regime snapshots. Optional.
type Audit interface {
	RecordDecision(journal.Decision) error
	RecordRegime(journal.RegimeSnapshot) error
}

// StatusSender delivers free-form notices. Optional.
type StatusSender interface {
	Status(ctx context.Context, text string) bool
}

type Options struct {
	Universe feed.UniverseOptions
	// Symbols replaces universe selection when set.
	Symbols []string

	Workers    int
	DailyBars  int
	WeeklyBars int

	// MaxATRPct drops assets above this daily ATR fraction. 0 disables.
	MaxATRPct float64

	ScanWhenUnfavorable bool
	StatusMessages      bool
	Grids               bool

	Risk             risk.Thresholds
	TradeWindow      int
	DrawdownLookback int

	MetricsTextfile string
}

func DefaultOptions() Options {
	return Options{
		Universe: feed.UniverseOptions{
			Quote:          "USDT",
			MinQuoteVolume: 300_000,
			Limit:          50,
			Excluded:       market.DefaultExcludedTerms,
		},
		Workers:          8,
		DailyBars:        400,
		WeeklyBars:       200,
		StatusMessages:   true,
		Grids:            true,
		Risk:             risk.DefaultThresholds(),
		TradeWindow:      50,
		DrawdownLookback: 30,
	}
}

// Scanner wires the pipeline. Series, Assets, Regime, Dispatcher and Trades
// are required; Audit, Status and Metrics may be nil.
type Scanner struct {
	Opts Options

	Daily    indicators.Engine
	Weekly   indicators.Engine
	Resolver levels.Resolver
	Scorer   scoring.Scorer
	Grid     levels.GridConfig

	Series     feed.Provider
	Assets     Assets
	Regime     RegimeSource
	Dispatcher Dispatcher
	Trades     TradeLog
	Audit      Audit
	Status     StatusSender
	Metrics    *metrics.Recorder

	Log   zerolog.Logger
	Now   func() time.Time
	NewID func() string
}

func New(opts Options, log zerolog.Logger) *Scanner {
	return &Scanner{
		Opts:     opts,
		Daily:    indicators.DefaultEngine(),
		Weekly:   indicators.DefaultEngine().WithMinBars(50),
		Resolver: levels.DefaultResolver(),
		Scorer:   scoring.DefaultScorer(),
		Grid:     levels.DefaultGridConfig(),
		Log:      log.With().Str("component", "scan").Logger(),
		Now:      time.Now,
		NewID:    id.New,
	}
}

func (s *Scanner) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Run executes one batch. Per-asset failures never abort it; errors are
// returned only for universe selection, dispatcher state and cancellation.
func (s *Scanner) Run(ctx context.Context) (Report, error) {
	newID := s.NewID
	if newID == nil {
		newID = id.New
	}
	rep := Report{RunID: newID(), Started: s.now()}
	log := s.Log.With().Str("run_id", rep.RunID).Logger()

	dec, err := s.checkRisk(ctx)
	rep.Risk = dec
	if err != nil {
		rep.Outcome = OutcomeRiskUnknown
		log.Warn().Err(err).Msg("risk state unavailable, nothing sent")
		s.status(ctx, "Risk state unavailable: no signals this run.")
		return s.finish(rep), nil
	}
	if !dec.Allowed {
		rep.Outcome = OutcomeRiskPaused
		log.Info().Str("reason", dec.Reason()).Msg("risk breaker tripped")
		s.status(ctx, "Signals paused by risk breaker: "+dec.Reason())
		return s.finish(rep), nil
	}

	rg, err := s.Regime.Evaluate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("regime unavailable")
	}
	rep.Regime = rg
	s.recordRegime(rep.RunID, rg)
	s.status(ctx, rg.Summary())

	if !rg.Favorable() {
		rep.Outcome = rg.Status()
		if !s.Opts.ScanWhenUnfavorable {
			log.Info().Str("outcome", rep.Outcome).Msg("regime not favorable, universe skipped")
			return s.finish(rep), nil
		}
	}

	tickers, err := s.universe(ctx)
	if err != nil {
		return s.finish(rep), fmt.Errorf("select universe: %w", err)
	}
	log.Info().Int("assets", len(tickers)).Msg("universe selected")

	rep.Candidates, rep.Skipped = s.analyze(ctx, tickers)
	if err := ctx.Err(); err != nil {
		return s.finish(rep), err
	}

	res, err := s.Dispatcher.Dispatch(ctx, rep.Candidates, rg, s.now())
	rep.Result = res
	if err != nil {
		s.audit(rep)
		return s.finish(rep), fmt.Errorf("dispatch: %w", err)
	}
	if rep.Outcome == "" {
		rep.Outcome = OutcomeDispatched
		if res.Deduplicated {
			rep.Outcome = OutcomeDeduplicated
		}
	}

	s.audit(rep)
	return s.finish(rep), nil
}

// checkRisk projects the trade log and the leading reference drawdown into
// a breaker decision. Any missing input is an error: the caller fails safe.
func (s *Scanner) checkRisk(ctx context.Context) (risk.Decision, error) {
	recs, err := s.Trades.RecentTrades(s.Opts.TradeWindow)
	if err != nil {
		return risk.Decision{}, fmt.Errorf("read trade log: %w", err)
	}
	ref, err := s.Regime.LeadingDaily(ctx)
	if err != nil {
		return risk.Decision{}, fmt.Errorf("reference drawdown: %w", err)
	}
	if ref.Len() == 0 {
		return risk.Decision{}, errors.New("reference drawdown: no closed bars")
	}

	st := risk.NewState(journal.Outcomes(recs), risk.Drawdown(ref.Closes(), s.Opts.DrawdownLookback))
	if s.Metrics != nil {
		s.Metrics.ConsecutiveLosses(st.ConsecutiveLosses)
	}
	return risk.Evaluate(st, s.Opts.Risk), nil
}

func (s *Scanner) universe(ctx context.Context) ([]feed.Ticker, error) {
	if len(s.Opts.Symbols) > 0 {
		out := make([]feed.Ticker, 0, len(s.Opts.Symbols))
		for _, sym := range s.Opts.Symbols {
			out = append(out, feed.Ticker{Symbol: sym})
		}
		return out, nil
	}
	return s.Assets.Universe(ctx, s.Opts.Universe)
}

type assetResult struct {
	cand dispatch.Candidate
	skip *Skip
}

// analyze runs every asset on the worker pool. The returned candidates keep
// universe order.
func (s *Scanner) analyze(ctx context.Context, tickers []feed.Ticker) ([]dispatch.Candidate, []Skip) {
	workers := s.Opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]assetResult, len(tickers))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, t := range tickers {
		i, t := i, t
		g.Go(func() error {
			results[i] = s.analyzeAsset(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	var cands []dispatch.Candidate
	var skipped []Skip
	for _, r := range results {
		if r.skip != nil {
			skipped = append(skipped, *r.skip)
			continue
		}
		cands = append(cands, r.cand)
	}
	return cands, skipped
}

func (s *Scanner) analyzeAsset(ctx context.Context, t feed.Ticker) assetResult {
	sym := t.Symbol
	log := s.Log.With().Str("symbol", sym).Logger()
	skip := func(reason string, err error) assetResult {
		ev := log.Debug().Str("reason", reason)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("asset skipped")
		return assetResult{skip: &Skip{Symbol: sym, Reason: reason, Err: errString(err)}}
	}

	now := s.now()
	daily, err := s.Series.Series(ctx, sym, market.Daily, s.Opts.DailyBars)
	if err != nil {
		return skip(ReasonFetchFailed, err)
	}
	daily = daily.Closed(now)

	dp, err := s.Daily.Compute(daily, now)
	if err != nil {
		var ide *indicators.InsufficientDataError
		if errors.As(err, &ide) {
			return skip(ReasonInsufficientData, err)
		}
		return skip(ReasonFetchFailed, err)
	}

	if s.Opts.MaxATRPct > 0 {
		if atrPct, ok := dp.ATRPct.Get(); ok && atrPct > s.Opts.MaxATRPct {
			return skip(ReasonATRCeiling, fmt.Errorf("atr%% %.4f above %.4f", atrPct, s.Opts.MaxATRPct))
		}
	}

	// A missing weekly frame reads as flat.
	var wp indicators.Profile
	weekly, err := s.Series.Series(ctx, sym, market.Weekly, s.Opts.WeeklyBars)
	if err == nil {
		wp, err = s.Weekly.Compute(weekly, now)
	}
	if err != nil {
		log.Debug().Err(err).Msg("weekly profile unavailable")
		wp = indicators.Profile{}
	}

	tick := 0.0
	if s.Assets != nil {
		if tick, err = s.Assets.TickSize(ctx, sym); err != nil {
			log.Debug().Err(err).Msg("tick size unavailable, levels unrounded")
			tick = 0
		}
	}

	bias, lv, err := s.Resolver.Resolve(daily, dp, wp, market.None, tick)
	if err != nil {
		var dle *levels.DegenerateLevelsError
		if errors.As(err, &dle) {
			return skip(ReasonDegenerateLevels, err)
		}
		return skip(ReasonFetchFailed, err)
	}

	c := dispatch.Candidate{
		Symbol:    sym,
		Bias:      bias,
		Daily:     dp,
		Weekly:    wp,
		Levels:    lv,
		Volume24h: t.QuoteVolume,
	}
	// NONE goes through so the dispatcher records it as no-bias.
	if bias == market.None {
		return assetResult{cand: c}
	}

	c.Breakdown = s.Scorer.Score(dp, wp, lv, bias)
	if s.Opts.Grids {
		g := s.Grid.Plan(bias, lv, dp.ATRPct.Or(0))
		c.Grid = &g
	}
	log.Debug().Stringer("bias", bias).Float64("score", c.Breakdown.Score).Msg("asset scored")
	return assetResult{cand: c}
}

func (s *Scanner) status(ctx context.Context, text string) {
	if s.Status == nil || !s.Opts.StatusMessages {
		return
	}
	if !s.Status.Status(ctx, text) {
		s.Log.Warn().Msg("status notice not delivered")
	}
}

func (s *Scanner) recordRegime(runID string, rg regime.Regime) {
	if s.Metrics != nil {
		s.Metrics.Regime(rg.ScoreLong, rg.ScoreShort)
	}
	if s.Audit == nil {
		return
	}
	err := s.Audit.RecordRegime(journal.RegimeSnapshot{
		RunID:         runID,
		Time:          rg.EvaluatedAt,
		ScoreLong:     rg.ScoreLong,
		ScoreShort:    rg.ScoreShort,
		EligibleLong:  rg.EligibleLong,
		EligibleShort: rg.EligibleShort,
		Available:     rg.Available,
		Summary:       rg.Summary(),
	})
	if err != nil {
		s.Log.Warn().Err(err).Msg("record regime snapshot")
	}
}

// audit writes one decision per analyzed asset and feeds the counters.
func (s *Scanner) audit(rep Report) {
	decisions := rep.Decisions(s.now())
	for _, d := range decisions {
		if s.Metrics != nil {
			s.Metrics.Candidate(d.Outcome)
			if d.Reason != "" {
				s.Metrics.Skip(d.Reason)
			}
		}
		if s.Audit == nil {
			continue
		}
		if err := s.Audit.RecordDecision(d); err != nil {
			s.Log.Warn().Err(err).Str("symbol", d.Symbol).Msg("record decision")
		}
	}
	if s.Metrics != nil {
		s.Metrics.Sends(rep.Result.SentOK, rep.Result.SentFail)
	}
}

func (s *Scanner) finish(rep Report) Report {
	rep.Finished = s.now()
	if s.Metrics != nil {
		s.Metrics.Batch(rep.Started, rep.Finished)
		if s.Opts.MetricsTextfile != "" {
			if err := s.Metrics.WriteTextfile(s.Opts.MetricsTextfile); err != nil {
				s.Log.Warn().Err(err).Str("path", s.Opts.MetricsTextfile).Msg("write metrics textfile")
			}
		}
	}
	s.Log.Info().
		Str("run_id", rep.RunID).
		Str("outcome", rep.Outcome).
		Int("candidates", len(rep.Candidates)).
		Int("skipped", len(rep.Skipped)).
		Int("sent", rep.Result.SentOK).
		Dur("took", rep.Finished.Sub(rep.Started)).
		Msg("batch finished")
	return rep
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
