package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/regime"
)

// Sender delivers one payload. Failures are reported as false, never as
// errors.
type Sender interface {
	Deliver(ctx context.Context, p Payload) bool
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, p Payload) bool

func (f SenderFunc) Deliver(ctx context.Context, p Payload) bool { return f(ctx, p) }

type Dispatcher struct {
	Policy Policy
	Store  Store
	Sender Sender

	// DryRun simulates every send as successful without calling Sender.
	DryRun bool

	Log zerolog.Logger
}

func New(p Policy, store Store, sender Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{Policy: p, Store: store, Sender: sender, Log: log}
}

// Dispatch runs one batch: regime gate, filter, rank, truncate, anti-spam,
// daily cap and symbol lock, then persist.
func (d *Dispatcher) Dispatch(ctx context.Context, cands []Candidate, rg regime.Regime, now time.Time) (Result, error) {
	res := Result{Evaluated: len(cands)}

	if !rg.Favorable() {
		res.Refused = rg.Status()
		for _, c := range cands {
			res.skip(c, res.Refused)
		}
		d.Log.Info().Str("reason", res.Refused).Int("candidates", len(cands)).Msg("batch refused")
		return res, nil
	}

	unlock, err := d.Store.Lock(ctx)
	if err != nil {
		return res, fmt.Errorf("lock dispatch state: %w", err)
	}
	defer unlock()

	st, err := d.Store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load dispatch state: %w", err)
	}
	st.init()

	eligible := d.filter(cands, rg, st, now, &res)
	res.Eligible = len(eligible)

	Rank(eligible)

	top := eligible
	if n := d.Policy.TopN; n > 0 && len(top) > n {
		for _, c := range top[n:] {
			res.skip(c, ReasonBelowTopN)
		}
		top = top[:n]
	}
	res.ToSend = len(top)

	fp := Fingerprint(top)
	res.Fingerprint = fp
	if fp == st.LastTopFingerprint && !st.LastTopAt.IsZero() && now.Sub(st.LastTopAt) < d.Policy.GlobalCooldown {
		res.Deduplicated = true
		d.Log.Info().Str("fingerprint", fp).Time("last", st.LastTopAt).Msg("top set unchanged, nothing sent")
		return res, nil
	}

	loc := d.Policy.location()
	day := dayKey(now, loc)
	for _, c := range top {
		if st.SentOn(day) >= d.Policy.DailyCap {
			res.skip(c, ReasonDailyCap)
			continue
		}
		if last, ok := st.LastSentAny(c.Symbol); ok && now.Sub(last) < d.Policy.SymbolLock {
			res.skip(c, ReasonSymbolLock)
			continue
		}

		st.markSent(c.Symbol, c.Bias, now, day)
		if d.send(ctx, c, res) {
			res.SentOK++
			res.Sent = append(res.Sent, c.Symbol)
		} else {
			res.SentFail++
			res.Failed = append(res.Failed, c.Symbol)
		}
	}

	st.LastTopFingerprint = fp
	st.LastTopAt = now
	st.prune(now, loc, d.Policy.retention())

	if err := d.Store.Save(ctx, st); err != nil {
		return res, fmt.Errorf("save dispatch state: %w", err)
	}

	d.Log.Info().
		Int("evaluated", res.Evaluated).
		Int("eligible", res.Eligible).
		Int("sent", res.SentOK).
		Int("failed", res.SentFail).
		Str("fingerprint", fp).
		Msg("batch dispatched")
	return res, nil
}

func (d *Dispatcher) filter(cands []Candidate, rg regime.Regime, st State, now time.Time, res *Result) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		switch {
		case c.Bias == market.None:
			res.skip(c, ReasonNoBias)
		case !rg.Eligible(c.Bias):
			res.skip(c, ReasonRegime)
		case c.Score() < d.Policy.MinScore:
			res.skip(c, ReasonScore)
		case d.Policy.excluded(c.Symbol):
			res.skip(c, ReasonExcluded)
		case d.inCooldown(st, c, now):
			res.skip(c, ReasonCooldown)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (d *Dispatcher) inCooldown(st State, c Candidate, now time.Time) bool {
	last, ok := st.LastSent(c.Symbol, c.Bias)
	return ok && now.Sub(last) < d.Policy.SymbolCooldown
}

func (d *Dispatcher) send(ctx context.Context, c Candidate, res Result) bool {
	p := NewPayload(c)
	p.Evaluated = res.Evaluated
	p.Eligible = res.Eligible
	p.SentSoFar = res.SentOK + 1
	if d.DryRun || d.Sender == nil {
		d.Log.Info().Str("symbol", c.Symbol).Str("bias", c.Bias.String()).Float64("score", p.Score).Msg("dry-run send")
		return true
	}

	ok := d.Sender.Deliver(ctx, p)
	ev := d.Log.Info()
	if !ok {
		ev = d.Log.Warn()
	}
	ev.Str("symbol", c.Symbol).Str("bias", c.Bias.String()).Bool("ok", ok).Msg("send")
	return ok
}

// Rank sorts by score, then ADX, then 24h quote volume, all descending,
// with the symbol as a final tie-breaker.
func Rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if a.ADX() != b.ADX() {
			return a.ADX() > b.ADX()
		}
		if a.QuoteVolume() != b.QuoteVolume() {
			return a.QuoteVolume() > b.QuoteVolume()
		}
		return strings.ToUpper(a.Symbol) < strings.ToUpper(b.Symbol)
	})
}
