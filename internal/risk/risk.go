package risk

import "math"

// Limits caps per-trade notional and halts new entries after a drawdown.
// Zero values disable the corresponding check.
type Limits struct {
	MaxNotionalPerTrade float64
	KillSwitchDrawdown  float64 // fraction of starting equity, e.g. 0.25
}

func (l Limits) Allow(notional float64) bool {
	return l.MaxNotionalPerTrade <= 0 || notional <= l.MaxNotionalPerTrade
}

// Clamp scales qty down so |qty|*price stays within the per-trade cap.
// The sign of qty is kept.
func (l Limits) Clamp(qty, price float64) float64 {
	if l.Allow(math.Abs(qty)*price) || price <= 0 {
		return qty
	}
	return math.Copysign(l.MaxNotionalPerTrade/price, qty)
}

// Halted reports whether equity has fallen far enough below start to stop new entries.
func (l Limits) Halted(equity, start float64) bool {
	if l.KillSwitchDrawdown <= 0 || start <= 0 {
		return false
	}
	return (start-equity)/start >= l.KillSwitchDrawdown
}
