// Package feed fetches market and macro series from public HTTP APIs.
package feed

import (
	"context"
	"errors"

	"github.com/rustyeddy/scanner/market"
)

// Provider returns up to bars closed bars of symbol, oldest first. It may
// return fewer bars than requested.
type Provider interface {
	Series(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error)
}

// ErrNoData is returned when a provider answered but had no usable bars.
var ErrNoData = errors.New("no data")

// Ticker is the rolling 24h statistics of a symbol.
type Ticker struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"last_price"`
	QuoteVolume float64 `json:"quote_volume"`
}
