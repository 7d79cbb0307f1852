package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/indicator"
	"chikoubot-go/internal/signal"
	"chikoubot-go/internal/window"
)

// MomentumParams configures the Chikou momentum band-breakout strategy.
type MomentumParams struct {
	ChikouPeriod      int
	BBPeriod          int
	BBStdDev          float64
	PositionSize      float64
	MinSignalInterval time.Duration
}

// DefaultMomentumParams mirrors the 26/20/2.0 setup.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		ChikouPeriod:      26,
		BBPeriod:          20,
		BBStdDev:          2.0,
		PositionSize:      0.8,
		MinSignalInterval: 12 * time.Hour,
	}
}

// Momentum enters when the percent change against the close ChikouPeriod bars
// back breaks out of its own Bollinger Bands with price outside the cloud, and
// exits once price falls back into the cloud.
type Momentum struct {
	params   MomentumParams
	log      zerolog.Logger
	closes   *window.Ring[float64]
	momentum *window.Ring[float64]
	bands    *indicator.Bollinger

	bars       int
	lastEnd    time.Time
	lastSignal time.Time
	entries    int
	exits      int
	direction  signal.Direction
}

// NewMomentum builds the momentum strategy, filling non-positive knobs with defaults.
func NewMomentum(p MomentumParams, log zerolog.Logger) *Momentum {
	def := DefaultMomentumParams()
	if p.ChikouPeriod <= 0 {
		p.ChikouPeriod = def.ChikouPeriod
	}
	if p.BBPeriod <= 0 {
		p.BBPeriod = def.BBPeriod
	}
	if p.BBStdDev <= 0 {
		p.BBStdDev = def.BBStdDev
	}
	if p.PositionSize <= 0 {
		p.PositionSize = def.PositionSize
	}
	return &Momentum{
		params:   p,
		log:      log.With().Str("strategy", "momentum").Logger(),
		closes:   window.New[float64](p.ChikouPeriod + 1),
		momentum: window.New[float64](p.BBPeriod + 1),
		bands:    indicator.NewBollinger(p.BBPeriod, p.BBStdDev),
	}
}

// Name returns the identifier for logging.
func (m *Momentum) Name() string { return "ChikouMomentum" }

// Warm records closes and momentum without trading.
func (m *Momentum) Warm(bar signal.Bar, _ signal.Snapshot) {
	if !m.lastEnd.IsZero() && !bar.End.After(m.lastEnd) {
		return
	}
	m.observe(bar)
}

// OnBar evaluates entries and exits for one bar.
func (m *Momentum) OnBar(bar signal.Bar, snap signal.Snapshot, position float64) []signal.Intent {
	m.bars++
	m.observe(bar)

	if !m.bands.Ready() || !snap.IchimokuReady || m.momentum.Len() < 2 {
		return nil
	}
	if !m.lastSignal.IsZero() && bar.End.Sub(m.lastSignal) < m.params.MinSignalInterval {
		return nil
	}

	cur, _ := m.momentum.At(0)
	prev, _ := m.momentum.At(1)
	bands := m.bands.Value()
	top, bottom := snap.CloudTop(), snap.CloudBottom()
	price := bar.Close

	switch {
	case prev <= bands.Upper && cur > bands.Upper && price > top && position <= 0:
		return []signal.Intent{m.enter(bar, signal.Bullish, cur, fmt.Sprintf(
			"BULLISH BREAKOUT: price %.2f, momentum %.2f, upper band %.2f", price, cur, bands.Upper))}
	case prev >= bands.Lower && cur < bands.Lower && price < bottom && position >= 0:
		return []signal.Intent{m.enter(bar, signal.Bearish, cur, fmt.Sprintf(
			"BEARISH BREAKOUT: price %.2f, momentum %.2f, lower band %.2f", price, cur, bands.Lower))}
	case position > 0 && price < top:
		return []signal.Intent{m.exit(bar, cur, fmt.Sprintf("EXIT LONG: price %.2f fell below cloud top %.2f", price, top))}
	case position < 0 && price > bottom:
		return []signal.Intent{m.exit(bar, cur, fmt.Sprintf("EXIT SHORT: price %.2f rose above cloud bottom %.2f", price, bottom))}
	}
	return nil
}

func (m *Momentum) observe(bar signal.Bar) {
	m.lastEnd = bar.End
	m.closes.Push(bar.Close)
	if !m.closes.Full() {
		return
	}
	hist, _ := m.closes.At(m.params.ChikouPeriod)
	if hist == 0 {
		return
	}
	mom := (bar.Close - hist) / hist * 100
	m.momentum.Push(mom)
	m.bands.Update(mom)
}

func (m *Momentum) enter(bar signal.Bar, dir signal.Direction, mom float64, reason string) signal.Intent {
	m.lastSignal = bar.End
	m.entries++
	m.direction = dir
	m.log.Info().Str("sym", bar.Symbol).Str("direction", dir.String()).Float64("momentum", mom).Msg(reason)
	return signal.Intent{
		Symbol:         bar.Symbol,
		Kind:           signal.Enter,
		Target:         float64(signal.Bias(dir)) * m.params.PositionSize,
		LiquidateFirst: true,
		Direction:      dir,
		Score:          mom,
		Reason:         reason,
		Ts:             bar.End,
	}
}

func (m *Momentum) exit(bar signal.Bar, mom float64, reason string) signal.Intent {
	m.exits++
	m.direction = signal.Neutral
	m.log.Info().Str("sym", bar.Symbol).Float64("momentum", mom).Msg(reason)
	return signal.Intent{
		Symbol:    bar.Symbol,
		Kind:      signal.Liquidate,
		Direction: signal.Neutral,
		Score:     mom,
		Reason:    reason,
		Ts:        bar.End,
	}
}

// Stats reports entry and exit counts. Score is the latest momentum reading.
func (m *Momentum) Stats() Stats {
	score, _ := m.momentum.At(0)
	return Stats{
		Strategy:  m.Name(),
		Bars:      m.bars,
		Breakouts: m.entries,
		Exits:     m.exits,
		Direction: m.direction,
		Score:     score,
	}
}

type momentumCheckpoint struct {
	Closes     *window.Ring[float64] `json:"closes"`
	Momentum   *window.Ring[float64] `json:"momentum"`
	Bars       int                   `json:"bars"`
	LastEnd    time.Time             `json:"last_end"`
	LastSignal time.Time             `json:"last_signal"`
	Entries    int                   `json:"entries"`
	Exits      int                   `json:"exits"`
	Direction  signal.Direction      `json:"direction"`
}

// Checkpoint serialises the rolling history and counters.
func (m *Momentum) Checkpoint() ([]byte, error) {
	return json.Marshal(momentumCheckpoint{
		Closes:     m.closes,
		Momentum:   m.momentum,
		Bars:       m.bars,
		LastEnd:    m.lastEnd,
		LastSignal: m.lastSignal,
		Entries:    m.entries,
		Exits:      m.exits,
		Direction:  m.direction,
	})
}

// Restore rebuilds the strategy from a checkpoint. The bands are replayed from
// the stored momentum history, which covers their full period.
func (m *Momentum) Restore(data []byte) error {
	cp := momentumCheckpoint{
		Closes:   window.New[float64](m.params.ChikouPeriod + 1),
		Momentum: window.New[float64](m.params.BBPeriod + 1),
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("decode momentum state: %w", err)
	}
	if cp.Closes == nil || cp.Momentum == nil ||
		cp.Closes.Cap() != m.params.ChikouPeriod+1 || cp.Momentum.Cap() != m.params.BBPeriod+1 {
		return fmt.Errorf("momentum state does not match configured periods")
	}

	bands := indicator.NewBollinger(m.params.BBPeriod, m.params.BBStdDev)
	for _, v := range cp.Momentum.Values() {
		bands.Update(v)
	}
	m.closes, m.momentum, m.bands = cp.Closes, cp.Momentum, bands
	m.bars, m.lastEnd, m.lastSignal = cp.Bars, cp.LastEnd, cp.LastSignal
	m.entries, m.exits, m.direction = cp.Entries, cp.Exits, cp.Direction
	return nil
}
