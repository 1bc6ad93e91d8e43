// Package levels infers a directional bias for an asset and builds the
// entry, stop-loss and take-profit levels for it.
package levels

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
)

// BiasMode selects how the daily and weekly EMA orderings combine.
type BiasMode int

const (
	// Relaxed: the daily frame decides and the weekly frame must not
	// show the opposite ordering.
	Relaxed BiasMode = iota
	// Strict: both frames must show the same ordering.
	Strict
	// SlowFrameAuthoritative: the weekly frame decides alone.
	SlowFrameAuthoritative
)

func (m BiasMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case SlowFrameAuthoritative:
		return "slow_frame"
	default:
		return "relaxed"
	}
}

func ParseBiasMode(s string) (BiasMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relaxed":
		return Relaxed, nil
	case "strict":
		return Strict, nil
	case "slow_frame", "slow-frame", "slow_frame_authoritative":
		return SlowFrameAuthoritative, nil
	}
	return Relaxed, fmt.Errorf("unknown bias mode %q", s)
}

// InferBias derives the bias from the fast/mid EMA ordering of the daily and
// weekly profiles. A weekly profile that could not be computed is passed as
// the zero Profile and reads as flat.
func InferBias(mode BiasMode, daily, weekly indicators.Profile) market.Bias {
	d, w := daily.Trend(), weekly.Trend()

	switch mode {
	case Strict:
		switch {
		case d == indicators.Up && w == indicators.Up:
			return market.Long
		case d == indicators.Down && w == indicators.Down:
			return market.Short
		}
	case SlowFrameAuthoritative:
		switch w {
		case indicators.Up:
			return market.Long
		case indicators.Down:
			return market.Short
		}
	default:
		switch {
		case d == indicators.Up && w != indicators.Down:
			return market.Long
		case d == indicators.Down && w != indicators.Up:
			return market.Short
		}
	}
	return market.None
}
