package levels

import (
	"fmt"

	"github.com/rustyeddy/scanner/market"
)

// DegenerateLevelsError means no positive risk distance could be built, even
// from the ATR offset alone. Callers skip the asset.
type DegenerateLevelsError struct {
	Symbol string
	Bias   market.Bias
	Entry  float64
	ATR    float64
	Reason string
}

func (e *DegenerateLevelsError) Error() string {
	return fmt.Sprintf("%s %s: degenerate levels (entry=%g atr=%g): %s",
		e.Symbol, e.Bias, e.Entry, e.ATR, e.Reason)
}
