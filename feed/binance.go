package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/scanner/market"
)

const DefaultBinanceURL = "https://api.binance.com"

const maxKlines = 1000

// Binance reads public spot market data.
type Binance struct {
	BaseURL string
	Client  *HTTPClient
	Cache   Cache
	InfoTTL time.Duration
	Now     func() time.Time

	ticks *market.TickTable
	mu    sync.Mutex
	info  singleflight.Group
}

func NewBinance(c *HTTPClient, cache Cache) *Binance {
	return &Binance{
		BaseURL: DefaultBinanceURL,
		Client:  c,
		Cache:   cache,
		InfoTTL: 24 * time.Hour,
		Now:     time.Now,
		ticks:   market.NewTickTable(),
	}
}

func (b *Binance) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Binance) endpoint(path string, q url.Values) string {
	u := strings.TrimRight(b.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Series fetches klines and drops the bar still in progress.
func (b *Binance) Series(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error) {
	if bars <= 0 || bars > maxKlines {
		bars = maxKlines
	}
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", string(tf))
	q.Set("limit", strconv.Itoa(bars))

	var rows [][]json.RawMessage
	if err := b.Client.GetJSON(ctx, b.endpoint("/api/v3/klines", q), &rows); err != nil {
		return market.Series{}, fmt.Errorf("klines %s %s: %w", symbol, tf, err)
	}

	s := market.Series{Symbol: strings.ToUpper(symbol), Timeframe: tf}
	for _, r := range rows {
		c, err := parseKline(r)
		if err != nil {
			return market.Series{}, fmt.Errorf("klines %s: %w", symbol, err)
		}
		s.Candles = append(s.Candles, c)
	}
	s = s.Closed(b.now())
	if s.Len() == 0 {
		return s, fmt.Errorf("klines %s %s: %w", symbol, tf, ErrNoData)
	}
	return s, nil
}

func parseKline(r []json.RawMessage) (market.Candle, error) {
	if len(r) < 8 {
		return market.Candle{}, fmt.Errorf("short kline row (%d fields)", len(r))
	}
	var (
		openMS, closeMS int64
		c               market.Candle
	)
	if err := json.Unmarshal(r[0], &openMS); err != nil {
		return c, err
	}
	if err := json.Unmarshal(r[6], &closeMS); err != nil {
		return c, err
	}

	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range fields {
		v, err := rawFloat(r[i+1])
		if err != nil {
			return c, err
		}
		*dst = v
	}
	qv, err := rawFloat(r[7])
	if err != nil {
		return c, err
	}
	c.QuoteVolume = qv
	c.OpenTime = time.UnixMilli(openMS).UTC()
	c.CloseTime = time.UnixMilli(closeMS).UTC()
	return c, nil
}

// rawFloat accepts both quoted and bare JSON numbers.
func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Filters    []struct {
			FilterType string `json:"filterType"`
			TickSize   string `json:"tickSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// SymbolInfo is the subset of exchange metadata the scanner uses.
type SymbolInfo struct {
	Symbol     string  `json:"symbol"`
	BaseAsset  string  `json:"base_asset"`
	QuoteAsset string  `json:"quote_asset"`
	Trading    bool    `json:"trading"`
	TickSize   float64 `json:"tick_size"`
}

const exchangeInfoKey = "binance:exchange-info"

// ExchangeInfo returns symbol metadata, cached for InfoTTL.
func (b *Binance) ExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	var out []SymbolInfo
	if b.Cache != nil {
		if err := b.Cache.Get(ctx, exchangeInfoKey, &out); err == nil {
			b.remember(out)
			return out, nil
		}
	}

	// Concurrent cache misses share one download.
	v, err, _ := b.info.Do(exchangeInfoKey, func() (any, error) {
		return b.fetchExchangeInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]SymbolInfo), nil
}

func (b *Binance) fetchExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	var info exchangeInfo
	if err := b.Client.GetJSON(ctx, b.endpoint("/api/v3/exchangeInfo", nil), &info); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	var out []SymbolInfo
	for _, s := range info.Symbols {
		si := SymbolInfo{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Trading:    s.Status == "TRADING",
		}
		for _, f := range s.Filters {
			if f.FilterType == "PRICE_FILTER" {
				si.TickSize, _ = strconv.ParseFloat(f.TickSize, 64)
			}
		}
		out = append(out, si)
	}

	if b.Cache != nil {
		_ = b.Cache.Set(ctx, exchangeInfoKey, out, b.InfoTTL)
	}
	b.remember(out)
	return out, nil
}

func (b *Binance) remember(infos []SymbolInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ticks == nil {
		b.ticks = market.NewTickTable()
	}
	for _, si := range infos {
		if si.TickSize > 0 {
			b.ticks.Set(si.Symbol, si.TickSize)
		}
	}
}

// TickSize returns the price increment of symbol, or 0 when unknown.
func (b *Binance) TickSize(ctx context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	if b.ticks == nil {
		b.ticks = market.NewTickTable()
	}
	ticks := b.ticks
	b.mu.Unlock()

	if t, err := ticks.Get(symbol); err == nil {
		return t, nil
	}
	if _, err := b.ExchangeInfo(ctx); err != nil {
		return 0, err
	}
	t, err := ticks.Get(symbol)
	if err != nil {
		return 0, nil
	}
	return t, nil
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	QuoteVolume string `json:"quoteVolume"`
}

// Tickers returns 24h statistics keyed by symbol.
func (b *Binance) Tickers(ctx context.Context) (map[string]Ticker, error) {
	var rows []ticker24h
	if err := b.Client.GetJSON(ctx, b.endpoint("/api/v3/ticker/24hr", nil), &rows); err != nil {
		return nil, fmt.Errorf("ticker 24hr: %w", err)
	}
	out := make(map[string]Ticker, len(rows))
	for _, r := range rows {
		last, _ := strconv.ParseFloat(r.LastPrice, 64)
		qv, _ := strconv.ParseFloat(r.QuoteVolume, 64)
		out[r.Symbol] = Ticker{Symbol: r.Symbol, LastPrice: last, QuoteVolume: qv}
	}
	return out, nil
}

// UniverseOptions select the symbols to scan.
type UniverseOptions struct {
	Quote          string
	MinQuoteVolume float64
	Limit          int
	Excluded       []string
}

// Universe lists trading symbols quoted in Quote, with enough liquidity,
// ordered by 24h quote volume (descending).
func (b *Binance) Universe(ctx context.Context, o UniverseOptions) ([]Ticker, error) {
	infos, err := b.ExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}
	tickers, err := b.Tickers(ctx)
	if err != nil {
		return nil, err
	}

	quote := strings.ToUpper(o.Quote)
	var out []Ticker
	for _, si := range infos {
		if !si.Trading || strings.ToUpper(si.QuoteAsset) != quote {
			continue
		}
		if market.Excluded(si.Symbol, quote, o.Excluded) {
			continue
		}
		t, ok := tickers[si.Symbol]
		if !ok || t.QuoteVolume < o.MinQuoteVolume {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].QuoteVolume != out[j].QuoteVolume {
			return out[i].QuoteVolume > out[j].QuoteVolume
		}
		return out[i].Symbol < out[j].Symbol
	})
	if o.Limit > 0 && len(out) > o.Limit {
		out = out[:o.Limit]
	}
	return out, nil
}
