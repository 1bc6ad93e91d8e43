package market

import (
	"fmt"
	"strings"
)

// Bias is the directional hypothesis for an asset.
type Bias int

const (
	None Bias = iota
	Long
	Short
)

func (b Bias) String() string {
	switch b {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

func ParseBias(s string) (Bias, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG":
		return Long, nil
	case "SHORT":
		return Short, nil
	case "", "NONE":
		return None, nil
	}
	return None, fmt.Errorf("unknown bias %q", s)
}

func (b Bias) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bias) UnmarshalText(p []byte) error {
	v, err := ParseBias(string(p))
	if err != nil {
		return err
	}
	*b = v
	return nil
}
