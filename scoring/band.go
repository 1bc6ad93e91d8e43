package scoring

import "math"

// Band is a trapezoid: zero at or outside [Low, High], one inside
// [IdealLow, IdealHigh], linear in between.
type Band struct {
	Low       float64 `yaml:"low" json:"low"`
	IdealLow  float64 `yaml:"ideal_low" json:"ideal_low"`
	IdealHigh float64 `yaml:"ideal_high" json:"ideal_high"`
	High      float64 `yaml:"high" json:"high"`
}

// Fraction maps x into [0,1]. NaN maps to 0.
func (b Band) Fraction(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	switch {
	case x >= b.IdealLow && x <= b.IdealHigh:
		return 1
	case x <= b.Low || x >= b.High:
		return 0
	case x < b.IdealLow:
		return clamp01((x - b.Low) / (b.IdealLow - b.Low))
	default:
		return clamp01((b.High - x) / (b.High - b.IdealHigh))
	}
}

// Valid reports whether the band edges are ordered.
func (b Band) Valid() bool {
	return b.Low <= b.IdealLow && b.IdealLow <= b.IdealHigh && b.IdealHigh <= b.High
}

// Ramp is a saturating linear function: 0 at or below floor, 1 at or above
// full.
func Ramp(x, floor, full float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if full <= floor {
		if x >= full {
			return 1
		}
		return 0
	}
	return clamp01((x - floor) / (full - floor))
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
