package paper

import (
	"sync"

	"chikoubot-go/internal/execution"
)

// Ledger keeps every fill of a run in memory for the end-of-run report.
type Ledger struct {
	mu       sync.Mutex
	fills    []execution.Fill
	turnover float64
}

// NewLedger creates an empty ledger pre-sized for capacity fills.
func NewLedger(capacity int) *Ledger {
	return &Ledger{fills: make([]execution.Fill, 0, max(capacity, 0))}
}

// Record implements execution.FillRecorder.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = append(l.fills, fill)
	l.turnover += fill.Qty * fill.Price
}

// Fills returns a copy of the recorded fills, oldest first.
func (l *Ledger) Fills() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Len reports how many fills were recorded.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fills)
}

// Turnover is the summed notional of all fills.
func (l *Ledger) Turnover() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turnover
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = l.fills[:0]
	l.turnover = 0
}
