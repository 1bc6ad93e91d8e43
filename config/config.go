package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scanner/dispatch"
	"github.com/rustyeddy/scanner/feed"
	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/levels"
	"github.com/rustyeddy/scanner/market"
	"github.com/rustyeddy/scanner/notify"
	"github.com/rustyeddy/scanner/regime"
	"github.com/rustyeddy/scanner/risk"
	"github.com/rustyeddy/scanner/scan"
	"github.com/rustyeddy/scanner/scoring"
)

// Config represents the complete scanner configuration
type Config struct {
	Log        LogConfig        `json:"log" yaml:"log"`
	Scan       ScanConfig       `json:"scan" yaml:"scan"`
	Indicators IndicatorsConfig `json:"indicators" yaml:"indicators"`
	Levels     LevelsConfig     `json:"levels" yaml:"levels"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`
	Regime     RegimeConfig     `json:"regime" yaml:"regime"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Dispatch   DispatchConfig   `json:"dispatch" yaml:"dispatch"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Feed       FeedConfig       `json:"feed" yaml:"feed"`
	Redis      RedisConfig      `json:"redis" yaml:"redis"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" default:"console" validate:"oneof=console json"`
}

// ScanConfig selects the universe and sizes the worker pool.
type ScanConfig struct {
	Quote          string   `json:"quote" yaml:"quote" default:"USDT" validate:"required"`
	MinQuoteVolume float64  `json:"min_quote_volume" yaml:"min_quote_volume" default:"300000" validate:"gte=0"`
	UniverseLimit  int      `json:"universe_limit" yaml:"universe_limit" default:"50" validate:"gte=1"`
	Excluded       []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`

	// Symbols, when set, replaces universe selection.
	Symbols []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`

	Workers    int `json:"workers" yaml:"workers" default:"8" validate:"gte=1,lte=64"`
	DailyBars  int `json:"daily_bars" yaml:"daily_bars" default:"400" validate:"gte=50"`
	WeeklyBars int `json:"weekly_bars" yaml:"weekly_bars" default:"200" validate:"gte=20"`

	// MaxATRPct drops assets whose daily ATR% is above it. 0 disables.
	MaxATRPct float64 `json:"max_atr_pct" yaml:"max_atr_pct" validate:"gte=0,lte=1"`

	// ScanWhenUnfavorable keeps per-asset analysis running for the audit
	// trail when no direction is eligible. The dispatcher still refuses.
	ScanWhenUnfavorable bool `json:"scan_when_unfavorable" yaml:"scan_when_unfavorable"`
}

func (s *ScanConfig) SetDefaults() {
	if s.Excluded == nil {
		s.Excluded = append([]string(nil), market.DefaultExcludedTerms...)
	}
}

type IndicatorsConfig struct {
	FastEMA         int     `json:"fast_ema" yaml:"fast_ema" default:"20" validate:"gte=2"`
	MidEMA          int     `json:"mid_ema" yaml:"mid_ema" default:"50" validate:"gte=2"`
	SlowEMA         int     `json:"slow_ema" yaml:"slow_ema" default:"200" validate:"gte=2"`
	RSIPeriod       int     `json:"rsi_period" yaml:"rsi_period" default:"14" validate:"gte=2"`
	ATRPeriod       int     `json:"atr_period" yaml:"atr_period" default:"14" validate:"gte=1"`
	ADXPeriod       int     `json:"adx_period" yaml:"adx_period" default:"14" validate:"gte=2"`
	MFIPeriod       int     `json:"mfi_period" yaml:"mfi_period" default:"14" validate:"gte=2"`
	MACDFast        int     `json:"macd_fast" yaml:"macd_fast" default:"12" validate:"gte=2"`
	MACDSlow        int     `json:"macd_slow" yaml:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal      int     `json:"macd_signal" yaml:"macd_signal" default:"9" validate:"gte=1"`
	BollingerPeriod int     `json:"bollinger_period" yaml:"bollinger_period" default:"20" validate:"gte=2"`
	BollingerDev    float64 `json:"bollinger_dev" yaml:"bollinger_dev" default:"2" validate:"gt=0"`
	VolumeAvg       int     `json:"volume_avg" yaml:"volume_avg" default:"20" validate:"gte=1"`
	MinBars         int     `json:"min_bars" yaml:"min_bars" default:"200" validate:"gte=1"`

	// WeeklyMinBars is the shortest weekly series profiled; weekly history
	// of young assets rarely reaches MinBars.
	WeeklyMinBars int `json:"weekly_min_bars" yaml:"weekly_min_bars" default:"50" validate:"gte=1"`
}

type LevelsConfig struct {
	BiasMode       string      `json:"bias_mode" yaml:"bias_mode" default:"relaxed"`
	SLATRMultiple  float64     `json:"sl_atr_multiple" yaml:"sl_atr_multiple" default:"1.5" validate:"gt=0"`
	RewardMultiple float64     `json:"reward_multiple" yaml:"reward_multiple" default:"2" validate:"gt=0"`
	SwingLookback  int         `json:"swing_lookback" yaml:"swing_lookback" default:"14" validate:"gte=1"`
	TPCap          TPCapConfig `json:"tp_atr_cap" yaml:"tp_atr_cap"`
	Grid           GridConfig  `json:"grid" yaml:"grid"`
}

type TPCapConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	LowBand float64 `json:"low_band" yaml:"low_band" default:"0.04" validate:"gte=0"`
	MidBand float64 `json:"mid_band" yaml:"mid_band" default:"0.08" validate:"gte=0"`
	NLow    float64 `json:"n_low" yaml:"n_low" default:"12" validate:"gt=0"`
	NMid    float64 `json:"n_mid" yaml:"n_mid" default:"8" validate:"gt=0"`
	NHigh   float64 `json:"n_high" yaml:"n_high" default:"5" validate:"gt=0"`
}

type GridConfig struct {
	MinStep  float64 `json:"min_step" yaml:"min_step" default:"0.015" validate:"gt=0"`
	MaxStep  float64 `json:"max_step" yaml:"max_step" default:"0.035" validate:"gt=0"`
	ATRToK   float64 `json:"atr_to_k" yaml:"atr_to_k" default:"0.35" validate:"gt=0"`
	MinGrids int     `json:"min_grids" yaml:"min_grids" default:"6" validate:"gte=1"`
	MaxGrids int     `json:"max_grids" yaml:"max_grids" default:"30" validate:"gte=1"`
}

// ScoringConfig mirrors scoring.Scorer. Zero sections take the scorer
// defaults.
type ScoringConfig struct {
	Weights       scoring.Weights `json:"weights" yaml:"weights"`
	TrendPartial  float64         `json:"trend_partial" yaml:"trend_partial" default:"0.5" validate:"gte=0,lte=1"`
	MomentumLong  scoring.Band    `json:"momentum_long" yaml:"momentum_long"`
	MomentumShort scoring.Band    `json:"momentum_short" yaml:"momentum_short"`
	Volatility    scoring.Band    `json:"volatility" yaml:"volatility"`
	VolumeFloor   float64         `json:"volume_floor" yaml:"volume_floor" default:"0.5" validate:"gte=0"`
	VolumeCeiling float64         `json:"volume_ceiling" yaml:"volume_ceiling" default:"1.5" validate:"gte=0"`
	RRFloor       float64         `json:"rr_floor" yaml:"rr_floor" default:"1" validate:"gte=0"`
	RRFull        float64         `json:"rr_full" yaml:"rr_full" default:"2.5" validate:"gte=0"`
}

func (s *ScoringConfig) SetDefaults() {
	d := scoring.DefaultScorer()
	if s.Weights == (scoring.Weights{}) {
		s.Weights = d.Weights
	}
	if s.MomentumLong == (scoring.Band{}) {
		s.MomentumLong = d.MomentumLong
	}
	if s.MomentumShort == (scoring.Band{}) {
		s.MomentumShort = d.MomentumShort
	}
	if s.Volatility == (scoring.Band{}) {
		s.Volatility = d.Volatility
	}
}

type RegimeConfig struct {
	Leading        string   `json:"leading" yaml:"leading" default:"BTC-USD" validate:"required"`
	Secondary      string   `json:"secondary" yaml:"secondary" default:"ETH-USD"`
	Currency       []string `json:"currency" yaml:"currency" default:"[\"DX-Y.NYB\",\"^DXY\"]"`
	Volatility     string   `json:"volatility" yaml:"volatility" default:"^VIX"`
	ThresholdLong  int      `json:"threshold_long" yaml:"threshold_long" default:"50" validate:"gte=0,lte=100"`
	ThresholdShort int      `json:"threshold_short" yaml:"threshold_short" default:"50" validate:"gte=0,lte=100"`
	VIXCalm        float64  `json:"vix_calm" yaml:"vix_calm" default:"20" validate:"gt=0"`
	DailyBars      int      `json:"daily_bars" yaml:"daily_bars" default:"400" validate:"gte=200"`
	WeeklyBars     int      `json:"weekly_bars" yaml:"weekly_bars" default:"260" validate:"gte=50"`
}

type RiskConfig struct {
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses" default:"3" validate:"gte=1"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct" default:"0.10" validate:"gt=0,lte=1"`
	DrawdownLookback     int     `json:"drawdown_lookback" yaml:"drawdown_lookback" default:"30" validate:"gte=1"`

	// TradeWindow is how many recent trades feed the loss streak.
	TradeWindow int `json:"trade_window" yaml:"trade_window" default:"50" validate:"gte=1"`
}

type DispatchConfig struct {
	MinScore       float64       `json:"min_score" yaml:"min_score" default:"70" validate:"gte=0,lte=100"`
	TopN           int           `json:"top_n" yaml:"top_n" default:"5" validate:"gte=1"`
	SymbolCooldown time.Duration `json:"symbol_cooldown" yaml:"symbol_cooldown" default:"30m" validate:"gte=0"`
	SymbolLock     time.Duration `json:"symbol_lock" yaml:"symbol_lock" default:"4h" validate:"gte=0"`
	GlobalCooldown time.Duration `json:"global_cooldown" yaml:"global_cooldown" default:"2h" validate:"gte=0"`
	DailyCap       int           `json:"daily_cap" yaml:"daily_cap" default:"10" validate:"gte=0"`
	Exclude        []string      `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Timezone       string        `json:"timezone" yaml:"timezone" default:"UTC"`
	State          StateConfig   `json:"state" yaml:"state"`
}

type StateConfig struct {
	Backend string `json:"backend" yaml:"backend" default:"file" validate:"oneof=file redis memory"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty" default:"./state/dispatch.json"`
}

type NotifyConfig struct {
	Channels       []string `json:"channels" yaml:"channels" default:"[\"telegram\"]"`
	DryRun         bool     `json:"dry_run" yaml:"dry_run"`
	StatusMessages bool     `json:"status_messages" yaml:"status_messages" default:"true"`
	Grids          bool     `json:"grids" yaml:"grids" default:"true"`

	TelegramToken   string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChatID  string `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
	TelegramBaseURL string `json:"telegram_base_url,omitempty" yaml:"telegram_base_url,omitempty"`

	FCMCredentialsPath string `json:"fcm_credentials_path,omitempty" yaml:"fcm_credentials_path,omitempty"`
	FCMTopic           string `json:"fcm_topic,omitempty" yaml:"fcm_topic,omitempty" default:"signals"`

	KafkaBrokers []string `json:"kafka_brokers,omitempty" yaml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `json:"kafka_topic,omitempty" yaml:"kafka_topic,omitempty" default:"scanner.signals"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" default:"sqlite" validate:"oneof=csv sqlite"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" default:"./journal/trades.csv"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" default:"./journal/scanner.db"`
}

type FeedConfig struct {
	BinanceURL string        `json:"binance_url" yaml:"binance_url" default:"https://api.binance.com" validate:"required,url"`
	YahooURL   string        `json:"yahoo_url" yaml:"yahoo_url" default:"https://query1.finance.yahoo.com" validate:"required,url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" default:"15s" validate:"gt=0"`
	Retries    int           `json:"retries" yaml:"retries" default:"3" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay" default:"500ms" validate:"gte=0"`
	RPS        float64       `json:"rps" yaml:"rps" default:"8" validate:"gt=0"`
	Burst      int           `json:"burst" yaml:"burst" default:"4" validate:"gte=1"`
	Cache      CacheConfig   `json:"cache" yaml:"cache"`
}

type CacheConfig struct {
	Backend string        `json:"backend" yaml:"backend" default:"memory" validate:"oneof=none memory redis"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" default:"15m" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db" yaml:"db" validate:"gte=0"`
	Prefix   string `json:"prefix" yaml:"prefix" default:"scanner"`
}

type MetricsConfig struct {
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML). Missing
// keys keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides secrets and deployment switches from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.TelegramChatID = v
	}
	if v := os.Getenv("FIREBASE_CREDENTIALS_PATH"); v != "" {
		c.Notify.FCMCredentialsPath = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Notify.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SCANNER_DRY_RUN"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			c.Notify.DryRun = true
		case "0", "false", "no", "off":
			c.Notify.DryRun = false
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Only reachable with a malformed default tag.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Engine returns the daily indicator engine.
func (c *Config) Engine() indicators.Engine {
	ic := c.Indicators
	return indicators.Engine{
		FastEMA:         ic.FastEMA,
		MidEMA:          ic.MidEMA,
		SlowEMA:         ic.SlowEMA,
		RSIPeriod:       ic.RSIPeriod,
		ATRPeriod:       ic.ATRPeriod,
		ADXPeriod:       ic.ADXPeriod,
		MFIPeriod:       ic.MFIPeriod,
		MACDFast:        ic.MACDFast,
		MACDSlow:        ic.MACDSlow,
		MACDSignal:      ic.MACDSignal,
		BollingerPeriod: ic.BollingerPeriod,
		BollingerDev:    ic.BollingerDev,
		VolumeAvg:       ic.VolumeAvg,
		MinBars:         ic.MinBars,
	}
}

// WeeklyEngine is Engine accepting the shorter weekly history.
func (c *Config) WeeklyEngine() indicators.Engine {
	return c.Engine().WithMinBars(c.Indicators.WeeklyMinBars)
}

func (c *Config) Resolver() (levels.Resolver, error) {
	mode, err := levels.ParseBiasMode(c.Levels.BiasMode)
	if err != nil {
		return levels.Resolver{}, fmt.Errorf("levels.bias_mode: %w", err)
	}
	tp := c.Levels.TPCap
	return levels.Resolver{
		Mode:           mode,
		SLATRMultiple:  c.Levels.SLATRMultiple,
		RewardMultiple: c.Levels.RewardMultiple,
		SwingLookback:  c.Levels.SwingLookback,
		TPCap: levels.TPCap{
			Enabled: tp.Enabled,
			LowBand: tp.LowBand,
			MidBand: tp.MidBand,
			NLow:    tp.NLow,
			NMid:    tp.NMid,
			NHigh:   tp.NHigh,
		},
	}, nil
}

func (c *Config) Grid() levels.GridConfig {
	g := c.Levels.Grid
	return levels.GridConfig{
		MinStep:  g.MinStep,
		MaxStep:  g.MaxStep,
		ATRToK:   g.ATRToK,
		MinGrids: g.MinGrids,
		MaxGrids: g.MaxGrids,
	}
}

func (c *Config) Scorer() scoring.Scorer {
	s := c.Scoring
	return scoring.Scorer{
		Weights:       s.Weights,
		TrendPartial:  s.TrendPartial,
		MomentumLong:  s.MomentumLong,
		MomentumShort: s.MomentumShort,
		Volatility:    s.Volatility,
		VolumeFloor:   s.VolumeFloor,
		VolumeCeiling: s.VolumeCeiling,
		RRFloor:       s.RRFloor,
		RRFull:        s.RRFull,
	}
}

func (c *Config) References() regime.References {
	return regime.References{
		Leading:    c.Regime.Leading,
		Secondary:  c.Regime.Secondary,
		Currency:   append([]string(nil), c.Regime.Currency...),
		Volatility: c.Regime.Volatility,
	}
}

func (c *Config) RegimeThresholds() regime.Thresholds {
	return regime.Thresholds{
		Long:    c.Regime.ThresholdLong,
		Short:   c.Regime.ThresholdShort,
		VIXCalm: c.Regime.VIXCalm,
	}
}

func (c *Config) RiskThresholds() risk.Thresholds {
	return risk.Thresholds{
		MaxConsecutiveLosses: c.Risk.MaxConsecutiveLosses,
		MaxDrawdownPct:       c.Risk.MaxDrawdownPct,
	}
}

// Policy builds the dispatcher policy. The timezone is resolved here.
func (c *Config) Policy() (dispatch.Policy, error) {
	loc, err := time.LoadLocation(c.Dispatch.Timezone)
	if err != nil {
		return dispatch.Policy{}, fmt.Errorf("dispatch.timezone: %w", err)
	}
	d := c.Dispatch
	return dispatch.Policy{
		MinScore:       d.MinScore,
		TopN:           d.TopN,
		SymbolCooldown: d.SymbolCooldown,
		SymbolLock:     d.SymbolLock,
		GlobalCooldown: d.GlobalCooldown,
		DailyCap:       d.DailyCap,
		Exclude:        append([]string(nil), d.Exclude...),
		Location:       loc,
	}, nil
}

func (c *Config) NotifyOptions() notify.Options {
	n := c.Notify
	return notify.Options{
		Channels:           append([]string(nil), n.Channels...),
		TelegramToken:      n.TelegramToken,
		TelegramChatID:     n.TelegramChatID,
		TelegramBaseURL:    n.TelegramBaseURL,
		FCMCredentialsPath: n.FCMCredentialsPath,
		FCMTopic:           n.FCMTopic,
		KafkaBrokers:       append([]string(nil), n.KafkaBrokers...),
		KafkaTopic:         n.KafkaTopic,
		DryRun:             n.DryRun,
	}
}

func (c *Config) HTTPOptions() feed.HTTPOptions {
	o := feed.DefaultHTTPOptions()
	o.Timeout = c.Feed.Timeout
	o.Retries = c.Feed.Retries
	o.BaseDelay = c.Feed.BaseDelay
	o.RPS = c.Feed.RPS
	o.Burst = c.Feed.Burst
	return o
}

func (c *Config) UniverseOptions() feed.UniverseOptions {
	return feed.UniverseOptions{
		Quote:          c.Scan.Quote,
		MinQuoteVolume: c.Scan.MinQuoteVolume,
		Limit:          c.Scan.UniverseLimit,
		Excluded:       append([]string(nil), c.Scan.Excluded...),
	}
}

func (c *Config) ScanOptions() scan.Options {
	return scan.Options{
		Universe:            c.UniverseOptions(),
		Symbols:             append([]string(nil), c.Scan.Symbols...),
		Workers:             c.Scan.Workers,
		DailyBars:           c.Scan.DailyBars,
		WeeklyBars:          c.Scan.WeeklyBars,
		MaxATRPct:           c.Scan.MaxATRPct,
		ScanWhenUnfavorable: c.Scan.ScanWhenUnfavorable,
		StatusMessages:      c.Notify.StatusMessages,
		Grids:               c.Notify.Grids,
		Risk:                c.RiskThresholds(),
		TradeWindow:         c.Risk.TradeWindow,
		DrawdownLookback:    c.Risk.DrawdownLookback,
		MetricsTextfile:     c.Metrics.Textfile,
	}
}
