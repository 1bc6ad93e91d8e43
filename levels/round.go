package levels

import "github.com/rustyeddy/scanner/market"

// roundLevels snaps levels to tick. Entry goes to the nearest tick; stop and
// target are rounded away from entry and pushed one more tick out if they
// land on it.
func roundLevels(lv PriceLevels, bias market.Bias, tick float64) (PriceLevels, bool) {
	entry := market.RoundTick(lv.Entry, tick, market.Nearest)

	var stop, target float64
	switch bias {
	case market.Long:
		stop = market.RoundTick(lv.StopLoss, tick, market.Down)
		if stop >= entry {
			stop = market.AddTicks(entry, tick, -1)
		}
		target = market.RoundTick(lv.TakeProfit, tick, market.Up)
		if target <= entry {
			target = market.AddTicks(entry, tick, 1)
		}
	case market.Short:
		stop = market.RoundTick(lv.StopLoss, tick, market.Up)
		if stop <= entry {
			stop = market.AddTicks(entry, tick, 1)
		}
		target = market.RoundTick(lv.TakeProfit, tick, market.Down)
		if target >= entry {
			target = market.AddTicks(entry, tick, -1)
		}
	default:
		return lv, false
	}

	out := lv
	out.Entry, out.StopLoss, out.TakeProfit = entry, stop, target
	out.Rounded = true
	return out, out.Ordered(bias)
}
