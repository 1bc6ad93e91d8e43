package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"
)

// MA calculates the Simple Moving Average of the last period values.
func MA(values []float64, period int) (float64, error) {
	if err := checkPeriod(len(values), period, period); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average for the given period,
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) (float64, error) {
	if err := checkPeriod(len(values), period, period); err != nil {
		return 0, err
	}
	out := talib.Ema(values, period)
	return out[len(out)-1], nil
}

// RSI calculates Wilder's Relative Strength Index.
func RSI(values []float64, period int) (float64, error) {
	if err := checkPeriod(len(values), period, period+1); err != nil {
		return 0, err
	}
	out := talib.Rsi(values, period)
	return out[len(out)-1], nil
}

func checkPeriod(have, period, need int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if have < need {
		return fmt.Errorf("not enough candles: need %d, got %d", need, have)
	}
	return nil
}
