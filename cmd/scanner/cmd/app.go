package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/feed"
	"github.com/rustyeddy/scanner/journal"
	"github.com/rustyeddy/scanner/regime"
)

// app holds the long-lived resources built from cfg for one command.
type app struct {
	log zerolog.Logger

	redis   *redis.Client
	binance *feed.Binance
	series  feed.Provider
	refs    feed.Provider

	closers []io.Closer
}

func newApp() *app {
	a := &app{log: logger}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.redis)
	}
	return a
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

func (a *app) cache() (feed.Cache, error) {
	switch cfg.Feed.Cache.Backend {
	case "memory":
		return feed.NewMemoryCache(), nil
	case "redis":
		if a.redis == nil {
			return nil, errors.New("feed cache: redis.addr not set")
		}
		return feed.NewRedisCache(a.redis, cfg.Redis.Prefix), nil
	}
	return nil, nil
}

// feeds builds the exchange feed and the reference feed, each behind the
// configured series cache.
func (a *app) feeds() error {
	cache, err := a.cache()
	if err != nil {
		return err
	}

	client := feed.NewHTTPClient(cfg.HTTPOptions(), a.log)
	a.binance = feed.NewBinance(client, cache)
	a.binance.BaseURL = cfg.Feed.BinanceURL
	yahoo := feed.NewYahoo(client)
	yahoo.BaseURL = cfg.Feed.YahooURL

	a.series, a.refs = a.binance, yahoo
	if cache != nil {
		ttl := cfg.Feed.Cache.TTL
		a.series = feed.NewCached(a.binance, cache, ttl, "binance", a.log)
		a.refs = feed.NewCached(yahoo, cache, ttl, "yahoo", a.log)
	}
	return nil
}

func (a *app) evaluator() (*regime.Evaluator, error) {
	if a.refs == nil {
		if err := a.feeds(); err != nil {
			return nil, err
		}
	}
	ev := regime.NewEvaluator(a.refs, cfg.References(), cfg.RegimeThresholds(), a.log)
	ev.DailyBars = cfg.Regime.DailyBars
	ev.WeeklyBars = cfg.Regime.WeeklyBars
	return ev, nil
}

func (a *app) store() (dispatch.Store, error) {
	switch cfg.Dispatch.State.Backend {
	case "file":
		return dispatch.NewFileStore(cfg.Dispatch.State.Path), nil
	case "redis":
		if a.redis == nil {
			return nil, errors.New("dispatch state: redis.addr not set")
		}
		return dispatch.NewRedisStore(a.redis, cfg.Redis.Prefix), nil
	case "memory":
		return dispatch.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("dispatch state: unknown backend %q", cfg.Dispatch.State.Backend)
}

// resetStore clears persisted dispatch state under its lock.
func resetStore(ctx context.Context, s dispatch.Store) error {
	unlock, err := s.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	switch st := s.(type) {
	case *dispatch.FileStore:
		return st.Reset()
	case *dispatch.RedisStore:
		return st.Reset(ctx)
	}
	return s.Save(ctx, dispatch.NewState())
}

func (a *app) journal() (journal.Journal, error) {
	var (
		j   journal.Journal
		err error
	)
	if cfg.Journal.Type == "csv" {
		j, err = journal.NewCSV(cfg.Journal.TradesFile)
	} else {
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.closers = append(a.closers, j)
	return j, nil
}

// sqlite opens the SQLite journal regardless of journal.type; the query
// commands need it.
func (a *app) sqlite() (*journal.SQLite, error) {
	if cfg.Journal.Type != "sqlite" {
		return nil, fmt.Errorf("journal queries need journal.type sqlite, got %q", cfg.Journal.Type)
	}
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.closers = append(a.closers, j)
	return j, nil
}
