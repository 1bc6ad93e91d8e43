package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RR is the reward multiple of a planned trade: |target-entry| / |entry-stop|.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// Drawdown is the fractional drop of the last close from the highest close
// among the last lookback closes. A lookback <= 0 uses every close.
func Drawdown(closes []float64, lookback int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if lookback > 0 && lookback < len(closes) {
		closes = closes[len(closes)-lookback:]
	}
	peak := math.Inf(-1)
	for _, c := range closes {
		if c > peak {
			peak = c
		}
	}
	last := closes[len(closes)-1]
	if peak <= 0 || last >= peak {
		return 0
	}
	return (peak - last) / peak
}
