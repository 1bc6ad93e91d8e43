package regime

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
)

// Provider fetches reference series. Implementations return only closed
// bars and may return fewer bars than asked for.
type Provider interface {
	Series(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error)
}

// RegimeUnavailableError reports a reference series that could not be
// fetched.
type RegimeUnavailableError struct {
	Symbol string
	Err    error
}

func (e *RegimeUnavailableError) Error() string {
	return fmt.Sprintf("regime reference %s unavailable: %v", e.Symbol, e.Err)
}

func (e *RegimeUnavailableError) Unwrap() error { return e.Err }

// References names the macro series. Currency lists alternates tried in
// order.
type References struct {
	Leading    string
	Secondary  string
	Currency   []string
	Volatility string
}

func DefaultReferences() References {
	return References{
		Leading:    "BTC-USD",
		Secondary:  "ETH-USD",
		Currency:   []string{"DX-Y.NYB", "^DXY"},
		Volatility: "^VIX",
	}
}

// Inputs are the frames the scoring rules consume.
type Inputs struct {
	LeadingDaily    Frame
	LeadingWeekly   Frame
	SecondaryDaily  Frame
	SecondaryWeekly Frame
	CurrencyDaily   Frame
	Volatility      Frame
}

// Thresholds decide eligibility per direction.
type Thresholds struct {
	Long    int
	Short   int
	VIXCalm float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Long: 50, Short: 50, VIXCalm: 20}
}

// Score applies the sub-checks to in. It is a pure function.
func Score(in Inputs, th Thresholds, at time.Time) Regime {
	r := Regime{
		Available:   in.LeadingDaily.Available,
		BTCBullish:  in.LeadingDaily.Bullish && in.LeadingWeekly.Bullish,
		ETHBullish:  in.SecondaryDaily.Bullish && in.SecondaryWeekly.Bullish,
		DXYBullish:  in.CurrencyDaily.Bullish,
		EvaluatedAt: at,
	}
	if in.Volatility.Available {
		r.VIXLevel = indicators.Some(in.Volatility.Last)
	}
	vix, vixOK := r.VIXLevel.Get()

	lw, sd, cd := in.LeadingWeekly, in.SecondaryDaily, in.CurrencyDaily

	r.add(LongSide, "leading structure", lw.Available,
		lw.HigherLow && lw.FastAboveMedium)
	r.add(LongSide, "leading momentum", lw.Available,
		lw.RSI.OK && lw.RSI.V > 50 && lw.VolumeRising)
	r.add(LongSide, "secondary confirmation", sd.Available,
		sd.FastAboveMedium && sd.RSI.OK && sd.RSI.V > 50 && sd.VolumeRising)
	r.add(LongSide, "dollar and volatility", cd.Available && vixOK,
		!cd.Bullish && vix < th.VIXCalm)

	r.add(ShortSide, "leading structure", lw.Available,
		lw.LowerHigh && lw.FastBelowMedium)
	r.add(ShortSide, "leading momentum", lw.Available,
		lw.RSI.OK && lw.RSI.V < 50 && lw.VolumeNotFalling)
	r.add(ShortSide, "secondary confirmation", sd.Available,
		sd.FastBelowMedium && sd.RSI.OK && sd.RSI.V < 50 && sd.VolumeNotFalling)
	r.add(ShortSide, "dollar and volatility", cd.Available && vixOK,
		cd.Bullish && vix > th.VIXCalm)

	if !r.Available {
		r.ScoreLong, r.ScoreShort = 0, 0
	}
	r.EligibleLong = r.Available && r.ScoreLong >= th.Long
	r.EligibleShort = r.Available && r.ScoreShort >= th.Short
	return r
}

func (r *Regime) add(side Direction, name string, available, passed bool) {
	c := Check{Name: name, Side: side, Available: available, Passed: available && passed}
	if c.Passed {
		c.Points = PointsPerCheck
		if side == LongSide {
			r.ScoreLong += PointsPerCheck
		} else {
			r.ScoreShort += PointsPerCheck
		}
	}
	r.Checks = append(r.Checks, c)
}

// Evaluator fetches the references and scores the regime.
type Evaluator struct {
	Provider   Provider
	Refs       References
	Thresholds Thresholds

	DailyBars  int
	WeeklyBars int

	Log zerolog.Logger
	Now func() time.Time
}

func NewEvaluator(p Provider, refs References, th Thresholds, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		Provider:   p,
		Refs:       refs,
		Thresholds: th,
		DailyBars:  400,
		WeeklyBars: 260,
		Log:        log.With().Str("component", "regime").Logger(),
		Now:        time.Now,
	}
}

// Evaluate fetches every reference and scores the regime. When the leading
// reference is unavailable it returns Unknown and a
// *RegimeUnavailableError; other missing references only zero their checks.
func (e *Evaluator) Evaluate(ctx context.Context) (Regime, error) {
	now := e.Now()

	var in Inputs
	var err error

	in.LeadingDaily, err = e.frame(ctx, e.Refs.Leading, market.Daily, e.DailyBars, now)
	if err != nil {
		return Unknown(now), &RegimeUnavailableError{Symbol: e.Refs.Leading, Err: err}
	}
	in.LeadingWeekly, _ = e.frame(ctx, e.Refs.Leading, market.Weekly, e.WeeklyBars, now)
	in.SecondaryDaily, _ = e.frame(ctx, e.Refs.Secondary, market.Daily, e.DailyBars, now)
	in.SecondaryWeekly, _ = e.frame(ctx, e.Refs.Secondary, market.Weekly, e.WeeklyBars, now)
	for _, sym := range e.Refs.Currency {
		if in.CurrencyDaily, err = e.frame(ctx, sym, market.Daily, e.DailyBars, now); err == nil {
			break
		}
	}
	in.Volatility, _ = e.frame(ctx, e.Refs.Volatility, market.Daily, 30, now)

	r := Score(in, e.Thresholds, now)
	e.Log.Info().
		Bool("btc_bullish", r.BTCBullish).
		Bool("eth_bullish", r.ETHBullish).
		Bool("dxy_bullish", r.DXYBullish).
		Str("vix", r.VIXLevel.String()).
		Int("score_long", r.ScoreLong).
		Int("score_short", r.ScoreShort).
		Bool("eligible_long", r.EligibleLong).
		Bool("eligible_short", r.EligibleShort).
		Msg("regime evaluated")
	return r, nil
}

// LeadingDaily returns the closed daily series of the leading reference.
// The risk breaker measures drawdown on it.
func (e *Evaluator) LeadingDaily(ctx context.Context) (market.Series, error) {
	s, err := e.Provider.Series(ctx, e.Refs.Leading, market.Daily, e.DailyBars)
	if err != nil {
		return market.Series{}, &RegimeUnavailableError{Symbol: e.Refs.Leading, Err: err}
	}
	return s.Closed(e.Now()), nil
}

func (e *Evaluator) frame(ctx context.Context, symbol string, tf market.Timeframe, bars int, now time.Time) (Frame, error) {
	if symbol == "" {
		return Frame{}, fmt.Errorf("no symbol configured")
	}
	s, err := e.Provider.Series(ctx, symbol, tf, bars)
	if err == nil {
		s = s.Closed(now)
		if s.Len() == 0 {
			err = fmt.Errorf("no closed bars")
		}
	}
	if err != nil {
		e.Log.Warn().Err(err).Str("symbol", symbol).Str("tf", string(tf)).Msg("reference unavailable")
		return Frame{}, err
	}
	return Read(s), nil
}
