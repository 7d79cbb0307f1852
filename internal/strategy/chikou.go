// Package strategy contains trading signal generation logic driven by closed bars.
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/signal"
)

// Chikou trades breakouts of price against the bar displacement periods back,
// plus retests of the breakout level and a neutral reset after a quiet spell.
type Chikou struct {
	engine *Engine
	state  *State
}

// NewChikou builds the breakout strategy with a fresh neutral state.
func NewChikou(p ChikouParams, log zerolog.Logger) *Chikou {
	engine := NewEngine(p, log.With().Str("strategy", "chikou").Logger())
	return &Chikou{engine: engine, state: engine.NewState()}
}

// Name returns the identifier for logging.
func (c *Chikou) Name() string { return "Chikou" }

// Engine exposes the underlying engine.
func (c *Chikou) Engine() *Engine { return c.engine }

// State exposes the live state for inspection.
func (c *Chikou) State() *State { return c.state }

// Warm fills the reference window. Bars at or before the newest stored bar are
// ignored so a restored state can be primed with overlapping history. Once the
// engine has evaluated bars, warmed bars still advance the bar clock so the
// retest and reset windows count the gap.
func (c *Chikou) Warm(bar signal.Bar, _ signal.Snapshot) {
	if newest, ok := c.state.Window.At(0); ok && !bar.End.After(newest.End) {
		return
	}
	c.state.Window.Push(bar)
	if c.state.BarIndex > 0 {
		c.state.BarIndex++
	}
}

// OnBar runs the engine for one bar.
func (c *Chikou) OnBar(bar signal.Bar, snap signal.Snapshot, position float64) []signal.Intent {
	return c.engine.Process(c.state, Input{Bar: bar, Snapshot: snap, Position: position})
}

// Stats reports signal counters and the current stance.
func (c *Chikou) Stats() Stats {
	return Stats{
		Strategy:  c.Name(),
		Bars:      c.state.BarIndex,
		Breakouts: c.state.Breakouts,
		Retests:   c.state.Retests,
		Resets:    c.state.Resets,
		Direction: c.state.Active,
		Score:     c.state.TrendScore,
	}
}

// Checkpoint serialises the engine state.
func (c *Chikou) Checkpoint() ([]byte, error) {
	return json.Marshal(c.state)
}

// Restore replaces the engine state with a checkpoint.
func (c *Chikou) Restore(data []byte) error {
	st := c.engine.NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return fmt.Errorf("decode chikou state: %w", err)
	}
	if want := c.engine.Params().Displacement + 1; st.Window == nil || st.Window.Cap() != want {
		return fmt.Errorf("chikou state window does not match displacement %d", want-1)
	}
	c.state = st
	return nil
}
