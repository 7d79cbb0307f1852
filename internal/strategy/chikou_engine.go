package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/signal"
	"chikoubot-go/internal/window"
)

// retestWindowBars caps how long after a breakout a retest is still honored.
const retestWindowBars = 60

// strongScore separates STRONG from WEAK breakouts in logs.
const strongScore = 50.0

// ChikouParams configures the breakout/retest/neutral-reset engine.
type ChikouParams struct {
	Displacement       int
	UseBodies          bool
	ConfirmOnClose     bool
	Retests            bool
	RetestMinDelayBars int
	NeutralResetBars   int
	UseVolume          bool
	VolumeSensitivity  float64
	VolumeCap          float64
	PositionSize       float64
	MinSignalInterval  time.Duration
	TickSize           float64
}

// DefaultChikouParams returns the parameters the strategy was tuned with on 4h BTCUSD bars.
func DefaultChikouParams() ChikouParams {
	return ChikouParams{
		Displacement:       26,
		UseBodies:          false,
		ConfirmOnClose:     true,
		Retests:            true,
		RetestMinDelayBars: 2,
		NeutralResetBars:   60,
		UseVolume:          true,
		VolumeSensitivity:  0.35,
		VolumeCap:          3.0,
		PositionSize:       0.8,
		MinSignalInterval:  12 * time.Hour,
		TickSize:           0.01,
	}
}

// State is the mutable core of the engine. It is owned by a single caller and
// mutated only through Engine.Process. Bar indexes start at 1; zero means unset.
type State struct {
	Window          *window.Ring[signal.Bar] `json:"window"`
	Active          signal.Direction         `json:"active"`
	LastBreakoutBar int                      `json:"last_breakout_bar"`
	LastBreakoutDir signal.Direction         `json:"last_breakout_dir"`
	BreakoutLevel   float64                  `json:"breakout_level"`
	LastRetestBar   int                      `json:"last_retest_bar"`
	LastSignal      time.Time                `json:"last_signal"`
	TrendScore      float64                  `json:"trend_score"`
	BarIndex        int                      `json:"bar_index"`
	Breakouts       int                      `json:"breakouts"`
	Retests         int                      `json:"retests"`
	Resets          int                      `json:"resets"`
}

// NewState returns a neutral state with a reference window of displacement+1 bars.
func NewState(displacement int) *State {
	return &State{Window: window.New[signal.Bar](displacement + 1)}
}

// Input is everything the engine reads for one bar.
type Input struct {
	Bar      signal.Bar
	Snapshot signal.Snapshot
	// Position is the signed quantity currently held, used to tell a retest
	// confirmation from a retest entry.
	Position float64
}

// Engine evaluates Chikou breakouts, retests and neutral resets bar by bar.
type Engine struct {
	params ChikouParams
	log    zerolog.Logger
}

// NewEngine builds an engine, filling non-positive knobs with defaults.
func NewEngine(p ChikouParams, log zerolog.Logger) *Engine {
	def := DefaultChikouParams()
	if p.Displacement <= 0 {
		p.Displacement = def.Displacement
	}
	if p.RetestMinDelayBars < 0 {
		p.RetestMinDelayBars = def.RetestMinDelayBars
	}
	if p.NeutralResetBars <= 0 {
		p.NeutralResetBars = def.NeutralResetBars
	}
	if p.VolumeCap < 1 {
		p.VolumeCap = def.VolumeCap
	}
	if p.VolumeSensitivity < 0 {
		p.VolumeSensitivity = 0
	}
	if p.PositionSize <= 0 {
		p.PositionSize = def.PositionSize
	}
	if p.TickSize < 0 {
		p.TickSize = 0
	}
	return &Engine{params: p, log: log}
}

// Params returns the effective parameters.
func (e *Engine) Params() ChikouParams { return e.params }

// NewState returns a state sized for this engine.
func (e *Engine) NewState() *State { return NewState(e.params.Displacement) }

// Process advances st by one bar and returns the resulting intents. Nothing is
// evaluated until the indicators are ready and the reference window is full.
func (e *Engine) Process(st *State, in Input) []signal.Intent {
	st.BarIndex++
	st.Window.Push(in.Bar)

	if !in.Snapshot.IchimokuReady || !st.Window.Full() {
		return nil
	}

	ref, _ := st.Window.At(e.params.Displacement)
	refHigh, refLow := e.referenceLevels(ref)
	st.TrendScore = e.Score(st, in.Snapshot, ref, in.Bar)

	var intents []signal.Intent
	if it, ok := e.checkBreakout(st, in.Bar, refHigh, refLow); ok {
		intents = append(intents, it)
	}
	if e.params.Retests {
		if it, ok := e.checkRetest(st, in); ok {
			intents = append(intents, it)
		}
	}
	if it, ok := e.checkNeutralReset(st, in.Bar); ok {
		intents = append(intents, it)
	}
	return intents
}

func (e *Engine) referenceLevels(ref signal.Bar) (float64, float64) {
	if e.params.UseBodies {
		return ref.BodyHigh(), ref.BodyLow()
	}
	return ref.High, ref.Low
}

func (e *Engine) coolingDown(st *State, at time.Time) bool {
	return !st.LastSignal.IsZero() && at.Sub(st.LastSignal) < e.params.MinSignalInterval
}

func (e *Engine) checkBreakout(st *State, bar signal.Bar, refHigh, refLow float64) (signal.Intent, bool) {
	if e.coolingDown(st, bar.End) {
		return signal.Intent{}, false
	}
	if e.params.ConfirmOnClose && !bar.Closed {
		return signal.Intent{}, false
	}

	switch {
	case bar.Close > refHigh && st.Active != signal.Bullish:
		return e.fireBreakout(st, bar, signal.Bullish, refHigh), true
	case bar.Close < refLow && st.Active != signal.Bearish:
		return e.fireBreakout(st, bar, signal.Bearish, refLow), true
	}
	return signal.Intent{}, false
}

func (e *Engine) fireBreakout(st *State, bar signal.Bar, dir signal.Direction, level float64) signal.Intent {
	st.Active = dir
	st.LastBreakoutDir = dir
	st.LastBreakoutBar = st.BarIndex
	st.BreakoutLevel = level
	st.LastSignal = bar.End
	st.Breakouts++

	strength := "WEAK"
	if math.Abs(st.TrendScore) > strongScore {
		strength = "STRONG"
	}
	op := ">"
	if dir == signal.Bearish {
		op = "<"
	}
	reason := fmt.Sprintf("%s BREAKOUT (%s): price %.2f %s ref %.2f", dir, strength, bar.Close, op, level)
	e.log.Info().
		Str("sym", bar.Symbol).
		Str("direction", dir.String()).
		Str("strength", strength).
		Float64("price", bar.Close).
		Float64("ref", level).
		Float64("score", st.TrendScore).
		Int("bar", st.BarIndex).
		Msg("breakout")

	return signal.Intent{
		Symbol:         bar.Symbol,
		Kind:           signal.Enter,
		Target:         float64(signal.Bias(dir)) * e.params.PositionSize,
		LiquidateFirst: true,
		Direction:      dir,
		Score:          st.TrendScore,
		Reason:         reason,
		Ts:             bar.End,
	}
}

func (e *Engine) checkRetest(st *State, in Input) (signal.Intent, bool) {
	if st.LastBreakoutBar == 0 || st.LastBreakoutDir == signal.Neutral {
		return signal.Intent{}, false
	}
	since := st.BarIndex - st.LastBreakoutBar
	if since < e.params.RetestMinDelayBars || since > retestWindowBars {
		return signal.Intent{}, false
	}
	if st.LastRetestBar != 0 && st.LastRetestBar >= st.LastBreakoutBar {
		return signal.Intent{}, false
	}

	bar, level, tick := in.Bar, st.BreakoutLevel, e.params.TickSize
	dir := st.LastBreakoutDir
	switch dir {
	case signal.Bullish:
		if !(bar.Low <= level+tick && bar.Close >= level) {
			return signal.Intent{}, false
		}
	case signal.Bearish:
		if !(bar.High >= level-tick && bar.Close <= level) {
			return signal.Intent{}, false
		}
	}

	st.LastRetestBar = st.BarIndex
	st.Retests++

	it := signal.Intent{
		Symbol:    bar.Symbol,
		Direction: dir,
		Score:     st.TrendScore,
		Ts:        bar.End,
	}
	sign := float64(signal.Bias(dir))
	if in.Position*sign > 0 {
		it.Kind = signal.Confirm
		it.Reason = fmt.Sprintf("%s RETEST CONFIRMED: retest of %s breakout at %.2f", dir, dir, level)
	} else {
		it.Kind = signal.Enter
		it.Target = sign * e.params.PositionSize * 0.5
		it.Reason = fmt.Sprintf("%s RETEST ENTRY: retest of %s breakout at %.2f", dir, dir, level)
	}
	e.log.Info().
		Str("sym", bar.Symbol).
		Str("direction", dir.String()).
		Str("kind", string(it.Kind)).
		Float64("level", level).
		Float64("low", bar.Low).
		Float64("high", bar.High).
		Float64("close", bar.Close).
		Int("bars_since_breakout", since).
		Msg("retest")
	return it, true
}

func (e *Engine) checkNeutralReset(st *State, bar signal.Bar) (signal.Intent, bool) {
	if st.Active == signal.Neutral || st.LastBreakoutBar == 0 {
		return signal.Intent{}, false
	}
	since := st.BarIndex - st.LastBreakoutBar
	if since <= e.params.NeutralResetBars {
		return signal.Intent{}, false
	}

	old := st.Active
	st.Active = signal.Neutral
	st.Resets++
	e.log.Info().
		Str("sym", bar.Symbol).
		Str("from", old.String()).
		Int("bars_since_breakout", since).
		Msg("neutral reset")
	return signal.Intent{
		Symbol:    bar.Symbol,
		Kind:      signal.Reset,
		Direction: signal.Neutral,
		Score:     st.TrendScore,
		Reason:    fmt.Sprintf("NEUTRAL RESET: %s -> NEUTRAL after %d bars", old, since),
		Ts:        bar.End,
	}, true
}
