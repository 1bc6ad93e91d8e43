package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rustyeddy/scanner/levels"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML keys.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid. Notification credentials
// are checked when the channels are built, not here.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	ic := c.Indicators
	if !(ic.FastEMA < ic.MidEMA && ic.MidEMA < ic.SlowEMA) {
		return fmt.Errorf("indicators.fast_ema < mid_ema < slow_ema must hold")
	}
	if ic.MACDFast >= ic.MACDSlow {
		return fmt.Errorf("indicators.macd_fast must be below macd_slow")
	}

	if _, err := levels.ParseBiasMode(c.Levels.BiasMode); err != nil {
		return fmt.Errorf("levels.bias_mode must be relaxed, strict or slow_frame")
	}
	if c.Levels.TPCap.LowBand > c.Levels.TPCap.MidBand {
		return fmt.Errorf("levels.tp_atr_cap.low_band must not exceed mid_band")
	}
	if g := c.Levels.Grid; g.MinStep > g.MaxStep || g.MinGrids > g.MaxGrids {
		return fmt.Errorf("levels.grid minimums must not exceed maximums")
	}

	s := c.Scoring
	if err := s.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	for name, b := range map[string]bool{
		"momentum_long":  s.MomentumLong.Valid(),
		"momentum_short": s.MomentumShort.Valid(),
		"volatility":     s.Volatility.Valid(),
	} {
		if !b {
			return fmt.Errorf("scoring.%s must satisfy low <= ideal_low <= ideal_high <= high", name)
		}
	}
	if s.VolumeFloor > s.VolumeCeiling {
		return fmt.Errorf("scoring.volume_floor must not exceed volume_ceiling")
	}
	if s.RRFloor > s.RRFull {
		return fmt.Errorf("scoring.rr_floor must not exceed rr_full")
	}

	if len(c.Regime.Currency) == 0 {
		return fmt.Errorf("regime.currency must list at least one symbol")
	}

	if _, err := time.LoadLocation(c.Dispatch.Timezone); err != nil {
		return fmt.Errorf("dispatch.timezone must be a valid IANA zone: %w", err)
	}
	switch c.Dispatch.State.Backend {
	case "file":
		if c.Dispatch.State.Path == "" {
			return fmt.Errorf("dispatch.state.path required for file backend")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr required for redis dispatch state")
		}
	}
	if c.Feed.Cache.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required for redis feed cache")
	}

	if c.Journal.Type == "csv" && c.Journal.TradesFile == "" {
		return fmt.Errorf("journal trades_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}

	for _, ch := range c.Notify.Channels {
		switch strings.ToLower(ch) {
		case "telegram", "fcm", "kafka", "log":
		default:
			return fmt.Errorf("notify.channels must be telegram, fcm, kafka or log, got %q", ch)
		}
	}
	return nil
}

// fieldError renders a validator failure as "section.key must be ...".
func fieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return fmt.Errorf("%s must be a valid URL", field)
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Errorf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Errorf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Errorf("%s failed validation: %s", field, fe.Tag())
	}
}
