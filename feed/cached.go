package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scanner/market"
)

// Cached wraps a provider so each (symbol, timeframe, bars) is fetched at
// most once per TTL.
type Cached struct {
	Provider Provider
	Cache    Cache
	TTL      time.Duration
	Name     string
	Log      zerolog.Logger
}

func NewCached(p Provider, c Cache, ttl time.Duration, name string, log zerolog.Logger) *Cached {
	return &Cached{Provider: p, Cache: c, TTL: ttl, Name: name, Log: log}
}

func (c *Cached) Series(ctx context.Context, symbol string, tf market.Timeframe, bars int) (market.Series, error) {
	key := fmt.Sprintf("%s:series:%s:%s:%d", c.Name, symbol, tf, bars)

	var s market.Series
	if err := c.Cache.Get(ctx, key, &s); err == nil {
		return s, nil
	}

	s, err := c.Provider.Series(ctx, symbol, tf, bars)
	if err != nil {
		return s, err
	}
	if err := c.Cache.Set(ctx, key, s, c.TTL); err != nil {
		c.Log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
	return s, nil
}
