package market

import (
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// TickTable holds the minimum price increment per symbol.
type TickTable struct {
	mu    sync.RWMutex
	ticks map[string]float64
}

func NewTickTable() *TickTable {
	return &TickTable{ticks: make(map[string]float64)}
}

func (tt *TickTable) Set(symbol string, tick float64) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.ticks[strings.ToUpper(symbol)] = tick
}

func (tt *TickTable) Get(symbol string) (float64, error) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	t, ok := tt.ticks[strings.ToUpper(symbol)]
	if !ok {
		return 0, errors.New("tick size not found")
	}
	return t, nil
}

func (tt *TickTable) Len() int {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return len(tt.ticks)
}

// Rounding direction for RoundTick.
type Rounding int

const (
	Nearest Rounding = iota
	Down
	Up
)

// RoundTick rounds price to a multiple of tick. A non-positive tick returns
// price unchanged.
func RoundTick(price, tick float64, mode Rounding) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	// absorb binary float noise before taking floor/ceil
	steps := p.Div(t).Round(8)
	switch mode {
	case Down:
		steps = steps.Floor()
	case Up:
		steps = steps.Ceil()
	default:
		steps = steps.Round(0)
	}
	f, _ := steps.Mul(t).Float64()
	return f
}

// AddTicks moves price by n ticks (n may be negative).
func AddTicks(price, tick float64, n int) float64 {
	f, _ := decimal.NewFromFloat(price).
		Add(decimal.NewFromFloat(tick).Mul(decimal.NewFromInt(int64(n)))).
		Float64()
	return f
}
