package levels

import (
	"testing"

	"github.com/rustyeddy/scanner/indicators"
	"github.com/rustyeddy/scanner/market"
	"github.com/stretchr/testify/assert"
)

func frame(fast, mid float64) indicators.Profile {
	return indicators.Profile{EMAFast: indicators.Some(fast), EMAMid: indicators.Some(mid)}
}

var (
	up      = frame(110, 100)
	down    = frame(90, 100)
	flat    = frame(100, 100)
	missing = indicators.Profile{}
)

func TestInferBias(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		daily   indicators.Profile
		weekly  indicators.Profile
		relaxed market.Bias
		strict  market.Bias
		slow    market.Bias
	}{
		{"both up", up, up, market.Long, market.Long, market.Long},
		{"both down", down, down, market.Short, market.Short, market.Short},
		{"daily up weekly flat", up, flat, market.Long, market.None, market.None},
		{"daily up weekly missing", up, missing, market.Long, market.None, market.None},
		{"daily up weekly down", up, down, market.None, market.None, market.Short},
		{"daily down weekly up", down, up, market.None, market.None, market.Long},
		{"daily flat weekly up", flat, up, market.None, market.None, market.Long},
		{"daily down weekly missing", down, missing, market.Short, market.None, market.None},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.relaxed, InferBias(Relaxed, tt.daily, tt.weekly), "relaxed")
			assert.Equal(t, tt.strict, InferBias(Strict, tt.daily, tt.weekly), "strict")
			assert.Equal(t, tt.slow, InferBias(SlowFrameAuthoritative, tt.daily, tt.weekly), "slow frame")
		})
	}
}

func TestModesDisagreeOnSameInput(t *testing.T) {
	t.Parallel()

	// daily up, weekly missing: only the relaxed mode goes LONG
	assert.NotEqual(t, InferBias(Relaxed, up, missing), InferBias(Strict, up, missing))
	// daily up, weekly down: only the slow frame mode has a bias
	assert.NotEqual(t, InferBias(Relaxed, up, down), InferBias(SlowFrameAuthoritative, up, down))
	// daily flat, weekly up: strict and slow frame differ
	assert.NotEqual(t, InferBias(Strict, flat, up), InferBias(SlowFrameAuthoritative, flat, up))
}

func TestParseBiasMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]BiasMode{
		"":           Relaxed,
		"relaxed":    Relaxed,
		"STRICT":     Strict,
		"slow_frame": SlowFrameAuthoritative,
	} {
		got, err := ParseBiasMode(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseBiasMode("majority")
	assert.Error(t, err)
	assert.Equal(t, "slow_frame", SlowFrameAuthoritative.String())
}
