package indicators

import "fmt"

// InsufficientDataError means the series is too short (or too broken) to
// build a profile. Callers skip the asset.
type InsufficientDataError struct {
	Symbol string
	Need   int
	Got    int
	What   string
}

func (e *InsufficientDataError) Error() string {
	what := e.What
	if what == "" {
		what = "candles"
	}
	return fmt.Sprintf("%s: not enough %s: need %d, got %d", e.Symbol, what, e.Need, e.Got)
}
