package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/signal"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testParams() ChikouParams {
	p := DefaultChikouParams()
	p.UseVolume = false
	return p
}

// barAt builds the n-th (1-based) 4h bar.
func barAt(n int, open, high, low, close float64) signal.Bar {
	return signal.Bar{
		Symbol: "BTCUSD",
		Open:   open, High: high, Low: low, Close: close,
		Volume: 10,
		End:    epoch.Add(time.Duration(n) * 4 * time.Hour),
		Closed: true,
	}
}

func flat(n int) signal.Bar { return barAt(n, 100, 100, 100, 100) }

func readySnapshot() signal.Snapshot {
	return signal.Snapshot{Tenkan: 100, Kijun: 100, SenkouA: 100, SenkouB: 100, IchimokuReady: true}
}

type harness struct {
	t      *testing.T
	engine *Engine
	state  *State
	pos    float64
}

func newHarness(t *testing.T, p ChikouParams) *harness {
	e := NewEngine(p, zerolog.Nop())
	return &harness{t: t, engine: e, state: e.NewState()}
}

func (h *harness) feed(bar signal.Bar) []signal.Intent {
	return h.engine.Process(h.state, Input{Bar: bar, Snapshot: readySnapshot(), Position: h.pos})
}

// breakoutAt27 feeds 26 flat bars then a close of 105 on bar 27.
func (h *harness) breakoutAt27() []signal.Intent {
	for n := 1; n <= 26; n++ {
		if got := h.feed(flat(n)); len(got) != 0 {
			h.t.Fatalf("bar %d: unexpected intents %+v", n, got)
		}
	}
	return h.feed(barAt(27, 100, 105, 100, 105))
}

func TestBullishBreakoutOnBar27(t *testing.T) {
	h := newHarness(t, testParams())
	intents := h.breakoutAt27()

	if len(intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(intents))
	}
	it := intents[0]
	if it.Kind != signal.Enter || !it.LiquidateFirst {
		t.Fatalf("expected liquidate-then-enter, got %+v", it)
	}
	if it.Target != 0.8 {
		t.Fatalf("expected target 0.8, got %v", it.Target)
	}
	if h.state.Active != signal.Bullish || h.state.Breakouts != 1 {
		t.Fatalf("unexpected state active=%s breakouts=%d", h.state.Active, h.state.Breakouts)
	}
	if h.state.LastBreakoutBar != 27 || h.state.BreakoutLevel != 100 {
		t.Fatalf("unexpected breakout record bar=%d level=%v", h.state.LastBreakoutBar, h.state.BreakoutLevel)
	}
	if !h.state.LastSignal.Equal(barAt(27, 0, 0, 0, 0).End) {
		t.Fatalf("last signal not stamped")
	}
}

func TestBearishBreakout(t *testing.T) {
	h := newHarness(t, testParams())
	for n := 1; n <= 26; n++ {
		h.feed(flat(n))
	}
	intents := h.feed(barAt(27, 100, 100, 95, 95))
	if len(intents) != 1 || intents[0].Target != -0.8 {
		t.Fatalf("expected short entry, got %+v", intents)
	}
	if h.state.Active != signal.Bearish {
		t.Fatalf("expected bearish, got %s", h.state.Active)
	}
}

func TestNoCrossStaysNeutral(t *testing.T) {
	h := newHarness(t, testParams())
	for n := 1; n <= 200; n++ {
		close := 90 + float64(n%21)
		intents := h.feed(barAt(n, 100, 110, 90, close))
		if len(intents) != 0 {
			t.Fatalf("bar %d: unexpected intents %+v", n, intents)
		}
	}
	if h.state.Active != signal.Neutral || h.state.Breakouts != 0 {
		t.Fatalf("expected neutral with no breakouts, got %s/%d", h.state.Active, h.state.Breakouts)
	}
}

func TestCooldownSuppressesOppositeBreakout(t *testing.T) {
	p := testParams()
	p.MinSignalInterval = 24 * time.Hour
	h := newHarness(t, p)
	h.breakoutAt27()

	for n := 28; n <= 32; n++ {
		if intents := h.feed(barAt(n, 90, 90, 90, 90)); len(intents) != 0 {
			t.Fatalf("bar %d: breakout should be cooling down, got %+v", n, intents)
		}
		if h.state.Active != signal.Bullish {
			t.Fatalf("bar %d: direction changed during cooldown", n)
		}
	}

	intents := h.feed(barAt(33, 90, 90, 90, 90))
	if len(intents) != 1 || intents[0].Direction != signal.Bearish {
		t.Fatalf("expected bearish breakout after cooldown, got %+v", intents)
	}
	if h.state.Breakouts != 2 {
		t.Fatalf("expected 2 breakouts, got %d", h.state.Breakouts)
	}
}

func TestConfirmOnCloseSkipsOpenBars(t *testing.T) {
	h := newHarness(t, testParams())
	for n := 1; n <= 26; n++ {
		h.feed(flat(n))
	}
	open := barAt(27, 100, 105, 100, 105)
	open.Closed = false
	if intents := h.feed(open); len(intents) != 0 {
		t.Fatalf("expected no breakout on unclosed bar, got %+v", intents)
	}

	p := testParams()
	p.ConfirmOnClose = false
	h = newHarness(t, p)
	for n := 1; n <= 26; n++ {
		h.feed(flat(n))
	}
	if intents := h.feed(open); len(intents) != 1 {
		t.Fatalf("expected breakout when close confirmation is off, got %+v", intents)
	}
}

func TestBodiesReference(t *testing.T) {
	p := testParams()
	p.UseBodies = true
	h := newHarness(t, p)
	h.feed(barAt(1, 100, 120, 80, 101)) // body 100..101, wick 80..120
	for n := 2; n <= 26; n++ {
		h.feed(flat(n))
	}
	intents := h.feed(barAt(27, 100, 102, 100, 102))
	if len(intents) != 1 || h.state.BreakoutLevel != 101 {
		t.Fatalf("expected body-based breakout at 101, got %+v level=%v", intents, h.state.BreakoutLevel)
	}
}

func TestRetestFiresOncePerBreakout(t *testing.T) {
	h := newHarness(t, testParams())
	h.breakoutAt27()

	if intents := h.feed(flat(28)); len(intents) != 0 {
		t.Fatalf("bar 28 is inside the minimum delay, got %+v", intents)
	}

	intents := h.feed(barAt(29, 100, 100.5, 99.9, 100.5))
	if len(intents) != 1 {
		t.Fatalf("expected retest on bar 29, got %+v", intents)
	}
	it := intents[0]
	if it.Kind != signal.Enter || it.LiquidateFirst || it.Target != 0.4 {
		t.Fatalf("expected half-size entry, got %+v", it)
	}
	if h.state.Retests != 1 || h.state.LastRetestBar != 29 {
		t.Fatalf("unexpected retest record %d/%d", h.state.Retests, h.state.LastRetestBar)
	}

	for n := 30; n <= 34; n++ {
		h.feed(flat(n))
	}
	if intents := h.feed(barAt(35, 100, 100.5, 99.9, 100.5)); len(intents) != 0 {
		t.Fatalf("second dip must not retest, got %+v", intents)
	}
	if h.state.Retests != 1 {
		t.Fatalf("expected exactly one retest, got %d", h.state.Retests)
	}
	if h.state.LastRetestBar < h.state.LastBreakoutBar {
		t.Fatalf("retest bar precedes breakout bar")
	}
}

func TestRetestConfirmsExistingPosition(t *testing.T) {
	h := newHarness(t, testParams())
	h.breakoutAt27()
	h.pos = 1.5
	h.feed(flat(28))

	intents := h.feed(barAt(29, 100, 100.5, 99.9, 100.5))
	if len(intents) != 1 || intents[0].Kind != signal.Confirm {
		t.Fatalf("expected confirmation, got %+v", intents)
	}
	if intents[0].Actionable() {
		t.Fatalf("confirmation must be log only")
	}
}

func TestBearishRetest(t *testing.T) {
	h := newHarness(t, testParams())
	for n := 1; n <= 26; n++ {
		h.feed(flat(n))
	}
	h.feed(barAt(27, 100, 100, 95, 95))
	h.feed(flat(28))

	intents := h.feed(barAt(29, 99.5, 100.01, 99.5, 99.5))
	if len(intents) != 1 || intents[0].Target != -0.4 {
		t.Fatalf("expected bearish retest entry, got %+v", intents)
	}
}

func TestRetestOutsideWindow(t *testing.T) {
	h := newHarness(t, testParams())
	h.breakoutAt27()
	// hold above the level so nothing qualifies until the window has passed
	for n := 28; n <= 87; n++ {
		h.feed(barAt(n, 101, 101, 100.5, 101))
	}
	// bar 88 is 61 bars after the breakout
	intents := h.feed(barAt(88, 100, 100.5, 99.9, 100.5))
	for _, it := range intents {
		if it.Kind == signal.Enter || it.Kind == signal.Confirm {
			t.Fatalf("retest outside the window: %+v", it)
		}
	}
	if h.state.Retests != 0 {
		t.Fatalf("expected no retests, got %d", h.state.Retests)
	}
}

func TestNeutralResetAfterTimeout(t *testing.T) {
	h := newHarness(t, testParams())
	h.breakoutAt27()

	for n := 28; n <= 87; n++ {
		for _, it := range h.feed(flat(n)) {
			if it.Kind == signal.Reset {
				t.Fatalf("bar %d: reset fired before the threshold", n)
			}
		}
	}
	if h.state.Active != signal.Bullish {
		t.Fatalf("expected bullish until threshold, got %s", h.state.Active)
	}

	intents := h.feed(flat(88))
	if len(intents) == 0 || intents[len(intents)-1].Kind != signal.Reset {
		t.Fatalf("expected reset on bar 88, got %+v", intents)
	}
	if h.state.Active != signal.Neutral || h.state.Resets != 1 {
		t.Fatalf("unexpected state %s resets=%d", h.state.Active, h.state.Resets)
	}

	h.feed(flat(89))
	if h.state.Resets != 1 || h.state.Active != signal.Neutral {
		t.Fatalf("reset should be idempotent")
	}
}

func TestNeutralResetSkippedAfterNewBreakout(t *testing.T) {
	h := newHarness(t, testParams())
	h.breakoutAt27()
	for n := 28; n <= 49; n++ {
		h.feed(flat(n))
	}
	if intents := h.feed(barAt(50, 90, 90, 90, 90)); len(intents) != 1 || intents[0].Direction != signal.Bearish {
		t.Fatalf("expected bearish breakout on bar 50, got %+v", intents)
	}
	for n := 51; n <= 110; n++ {
		h.feed(barAt(n, 90, 90, 90, 90))
	}
	if h.state.Resets != 0 || h.state.Active != signal.Bearish {
		t.Fatalf("reset must count from the latest breakout, got %s/%d", h.state.Active, h.state.Resets)
	}
	h.feed(barAt(111, 90, 90, 90, 90))
	if h.state.Active != signal.Neutral {
		t.Fatalf("expected reset 61 bars after bar 50")
	}
}

func TestNotReadyDoesNothing(t *testing.T) {
	h := newHarness(t, testParams())
	for n := 1; n <= 26; n++ {
		h.feed(flat(n))
	}
	intents := h.engine.Process(h.state, Input{Bar: barAt(27, 100, 105, 100, 105)})
	if len(intents) != 0 || h.state.Breakouts != 0 {
		t.Fatalf("expected no evaluation without indicators")
	}
	if h.state.BarIndex != 27 {
		t.Fatalf("bar index should still advance, got %d", h.state.BarIndex)
	}
}

func TestScoreUnderfilledIsZero(t *testing.T) {
	e := NewEngine(testParams(), zerolog.Nop())
	st := e.NewState()
	st.Window.Push(flat(1))
	if got := e.Score(st, readySnapshot(), flat(1), flat(2)); got != 0 {
		t.Fatalf("expected 0 for underfilled window, got %v", got)
	}
}

func TestScoreComponents(t *testing.T) {
	p := DefaultChikouParams()
	e := NewEngine(p, zerolog.Nop())
	st := e.NewState()
	for n := 1; n <= 27; n++ {
		st.Window.Push(flat(n))
	}
	st.Active = signal.Bullish

	snap := signal.Snapshot{
		Tenkan: 110, Kijun: 100, SenkouA: 95, SenkouB: 90,
		VolumeMA: 10, IchimokuReady: true, VolumeReady: true,
	}
	cur := barAt(28, 100, 120, 100, 120)
	cur.Volume = 20
	ref := flat(1)

	// bias 35 + (25+20+20) * (1 + (2-1)*0.35)
	want := 35 + 65*1.35
	if got := e.Score(st, snap, ref, cur); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}

	snap.VolumeMA = 0
	if got := e.Score(st, snap, ref, cur); math.Abs(got-100) > 1e-9 {
		t.Fatalf("zero volume average should give neutral multiplier, got %v", got)
	}

	snap.VolumeMA = 10
	snap.LaggedReady = true
	snap.KijunLagged = 130
	snap.SenkouALagged, snap.SenkouBLagged = 110, 125
	// chikou below lagged kijun, inside lagged cloud
	want = 35 + (25-20)*1.35
	if got := e.Score(st, snap, ref, cur); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected lagged score %v, got %v", want, got)
	}
}

func TestScoreBounded(t *testing.T) {
	e := NewEngine(DefaultChikouParams(), zerolog.Nop())
	st := e.NewState()
	for n := 1; n <= 27; n++ {
		st.Window.Push(flat(n))
	}
	limit := e.MaxScore()
	if math.Abs(limit-(35+65*1.7)) > 1e-9 {
		t.Fatalf("unexpected max score %v", limit)
	}

	levels := []float64{50, 100, 150}
	volumes := []float64{0, 5, 10, 1e6}
	for _, dir := range []signal.Direction{signal.Neutral, signal.Bullish, signal.Bearish} {
		st.Active = dir
		for _, tenkan := range levels {
			for _, close := range levels {
				for _, vol := range volumes {
					snap := signal.Snapshot{
						Tenkan: tenkan, Kijun: 100, SenkouA: 90, SenkouB: 110,
						VolumeMA: 10, IchimokuReady: true, VolumeReady: true,
					}
					cur := barAt(28, close, close, close, close)
					cur.Volume = vol
					got := e.Score(st, snap, flat(1), cur)
					if got > limit || got < -limit {
						t.Fatalf("score %v outside ±%v", got, limit)
					}
				}
			}
		}
	}
}
