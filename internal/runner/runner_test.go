package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/execution"
	"chikoubot-go/internal/indicator"
	"chikoubot-go/internal/paper"
	"chikoubot-go/internal/risk"
	"chikoubot-go/internal/signal"
	"chikoubot-go/internal/store"
	"chikoubot-go/internal/strategy"
)

// scripted replays fixed intents keyed by evaluated bar number (1-based).
type scripted struct {
	script map[int][]signal.Intent
	bars   int
	warmed int
	seen   []signal.Bar
	stats  strategy.Stats
}

func (s *scripted) Name() string { return "Scripted" }

func (s *scripted) Warm(signal.Bar, signal.Snapshot) { s.warmed++ }

func (s *scripted) OnBar(bar signal.Bar, _ signal.Snapshot, _ float64) []signal.Intent {
	s.bars++
	s.seen = append(s.seen, bar)
	out := s.script[s.bars]
	for i := range out {
		out[i].Symbol = bar.Symbol
		out[i].Ts = bar.End
		if out[i].Kind == signal.Enter && out[i].LiquidateFirst {
			s.stats.Breakouts++
			s.stats.Direction = out[i].Direction
		}
	}
	s.stats.Bars = s.bars
	return out
}

func (s *scripted) Stats() strategy.Stats {
	st := s.stats
	st.Strategy = s.Name()
	return st
}

func (s *scripted) Checkpoint() ([]byte, error) { return json.Marshal(s.stats) }

func (s *scripted) Restore(data []byte) error { return json.Unmarshal(data, &s.stats) }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(n int, close float64) signal.Bar {
	return signal.Bar{
		Symbol: "BTCUSDT", Open: close, High: close, Low: close, Close: close, Volume: 1,
		End: t0.Add(time.Duration(n) * 4 * time.Hour), Closed: true,
	}
}

type fixture struct {
	runner  *Runner
	account *paper.Account
	ledger  *paper.Ledger
	strat   *scripted
}

func newFixture(log zerolog.Logger, script map[int][]signal.Intent, opts Options) *fixture {
	strat := &scripted{script: script}
	account := paper.NewAccount(10_000, 0)
	ledger := paper.NewLedger(8)
	exec := execution.NewExecutor(zerolog.Nop(), paper.NewVenue(account, 0), ledger)
	opts.Symbol = "BTCUSDT"
	r := New(log, strat, indicator.NewPipeline(indicator.DefaultIchimokuParams(), 20), account, exec, opts)
	return &fixture{runner: r, account: account, ledger: ledger, strat: strat}
}

func enter(target float64, liquidateFirst bool) signal.Intent {
	dir := signal.Bullish
	if target < 0 {
		dir = signal.Bearish
	}
	return signal.Intent{Kind: signal.Enter, Target: target, LiquidateFirst: liquidateFirst, Direction: dir, Reason: "scripted"}
}

func TestRunnerTradesIntents(t *testing.T) {
	f := newFixture(zerolog.Nop(), map[int][]signal.Intent{
		2: {enter(0.5, true)},
		4: {enter(-0.5, true)},
		6: {{Kind: signal.Liquidate, Reason: "exit"}},
	}, Options{LotSize: 0.001})

	ctx := context.Background()
	for n := 1; n <= 6; n++ {
		f.runner.Feed(ctx, bar(n, 100))
	}

	fills := f.ledger.Fills()
	if len(fills) != 4 {
		t.Fatalf("expected buy, sell, sell, buy fills, got %+v", fills)
	}
	want := []execution.Side{execution.Buy, execution.Sell, execution.Sell, execution.Buy}
	for i, fill := range fills {
		if fill.Side != want[i] || math.Abs(fill.Qty-50) > 1e-9 {
			t.Fatalf("fill %d: expected %s 50, got %s %v", i, want[i], fill.Side, fill.Qty)
		}
	}
	if f.account.Position("BTCUSDT") != 0 {
		t.Fatalf("expected flat after liquidation")
	}

	sum := f.runner.Summary()
	if sum.Bars != 6 || sum.Breakouts != 2 || sum.Trades != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if math.Abs(sum.FinalEquity-10_000) > 1e-6 || sum.ReturnPct != 0 {
		t.Fatalf("flat prices should keep equity, got %+v", sum)
	}
}

// rejecting fails every order on one side and counts the attempts.
type rejecting struct {
	next     execution.Venue
	side     execution.Side
	attempts int
}

func (v *rejecting) Execute(ctx context.Context, order execution.Order) (execution.Fill, error) {
	if order.Side != v.side {
		return v.next.Execute(ctx, order)
	}
	v.attempts++
	return execution.Fill{}, errors.New("venue offline")
}

func TestRunnerAbortsIntentAfterFailedOrder(t *testing.T) {
	var logs bytes.Buffer
	account := paper.NewAccount(10_000, 0)
	ledger := paper.NewLedger(8)
	venue := &rejecting{next: paper.NewVenue(account, 0), side: execution.Sell}
	exec := execution.NewExecutor(zerolog.Nop(), venue, ledger)
	strat := &scripted{script: map[int][]signal.Intent{
		2: {enter(0.5, true)},
		4: {enter(-0.5, true)},
	}}
	r := New(zerolog.New(&logs), strat, indicator.NewPipeline(indicator.DefaultIchimokuParams(), 20), account, exec,
		Options{Symbol: "BTCUSDT", LotSize: 0.001})

	ctx := context.Background()
	for n := 1; n <= 4; n++ {
		r.Feed(ctx, bar(n, 100))
	}

	if venue.attempts != 1 {
		t.Fatalf("expected the flip to stop after the failed liquidation, got %d sell attempts", venue.attempts)
	}
	if len(ledger.Fills()) != 1 || account.Position("BTCUSDT") != 50 {
		t.Fatalf("expected the long to survive untouched, fills %+v position %v", ledger.Fills(), account.Position("BTCUSDT"))
	}
	if !strings.Contains(logs.String(), "intent aborted after failed order") || !strings.Contains(logs.String(), "venue offline") {
		t.Fatalf("abort not logged: %s", logs.String())
	}
}

func TestRunnerSkipsStaleBars(t *testing.T) {
	f := newFixture(zerolog.Nop(), nil, Options{})
	ctx := context.Background()
	f.runner.Feed(ctx, bar(2, 100))
	f.runner.Feed(ctx, bar(1, 100))
	f.runner.Feed(ctx, bar(2, 100))
	f.runner.Feed(ctx, bar(3, 100))
	if f.strat.bars != 2 {
		t.Fatalf("expected 2 evaluated bars, got %d", f.strat.bars)
	}
}

func TestRunnerPrimeDoesNotTrade(t *testing.T) {
	f := newFixture(zerolog.Nop(), map[int][]signal.Intent{1: {enter(0.5, true)}}, Options{})
	used := f.runner.Prime([]signal.Bar{bar(1, 100), bar(2, 100), bar(2, 100)})
	if used != 2 || f.strat.warmed != 2 || f.strat.bars != 0 {
		t.Fatalf("unexpected priming used=%d warmed=%d bars=%d", used, f.strat.warmed, f.strat.bars)
	}
	// live bars overlapping the primed history are ignored
	f.runner.Feed(context.Background(), bar(2, 100))
	if f.strat.bars != 0 || f.ledger.Len() != 0 {
		t.Fatalf("overlapping bar should be skipped")
	}
}

func TestRunnerKillSwitch(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(zerolog.New(&buf), map[int][]signal.Intent{
		1: {enter(0.8, true)},
		3: {enter(0.4, false)},
		4: {enter(-0.8, true)},
	}, Options{LotSize: 0.001, Limits: risk.Limits{KillSwitchDrawdown: 0.3}})

	ctx := context.Background()
	f.runner.Feed(ctx, bar(1, 100))
	// 80 units long; a drop to 50 loses 4000 of 10000
	f.runner.Feed(ctx, bar(2, 50))
	if !f.runner.Summary().Halted {
		t.Fatalf("expected kill switch to trip")
	}

	f.runner.Feed(ctx, bar(3, 50))
	if pos := f.account.Position("BTCUSDT"); math.Abs(pos-80) > 1e-9 {
		t.Fatalf("entry without liquidation should be dropped, position %v", pos)
	}

	f.runner.Feed(ctx, bar(4, 50))
	if pos := f.account.Position("BTCUSDT"); pos != 0 {
		t.Fatalf("flip should only liquidate while halted, position %v", pos)
	}
	if !strings.Contains(buf.String(), "kill switch tripped") {
		t.Fatalf("expected kill switch log, got %s", buf.String())
	}
}

func TestRunnerClampsEntries(t *testing.T) {
	f := newFixture(zerolog.Nop(), map[int][]signal.Intent{1: {enter(0.8, true)}},
		Options{LotSize: 0.001, Limits: risk.Limits{MaxNotionalPerTrade: 1000}})
	f.runner.Feed(context.Background(), bar(1, 100))
	if pos := f.account.Position("BTCUSDT"); math.Abs(pos-10) > 1e-9 {
		t.Fatalf("expected entry clamped to 10 units, got %v", pos)
	}
}

func TestRunnerConsolidates(t *testing.T) {
	f := newFixture(zerolog.Nop(), nil, Options{Consolidate: 4 * time.Hour})
	ctx := context.Background()
	for h := 1; h <= 9; h++ {
		b := bar(0, 100+float64(h))
		b.End = t0.Add(time.Duration(h) * time.Hour)
		f.runner.Feed(ctx, b)
	}
	if len(f.strat.seen) != 2 {
		t.Fatalf("expected two 4h bars, got %d", len(f.strat.seen))
	}
	if got := f.strat.seen[0]; got.Open != 101 || got.Close != 104 || !got.Closed {
		t.Fatalf("unexpected consolidated bar %+v", got)
	}
}

func TestRunnerCheckpointRestore(t *testing.T) {
	mem := store.NewMemory()
	f := newFixture(zerolog.Nop(), map[int][]signal.Intent{1: {enter(0.5, true)}}, Options{Store: mem})
	f.runner.Feed(context.Background(), bar(1, 100))

	if _, found, _ := mem.Load(context.Background(), "BTCUSDT:Scripted"); !found {
		t.Fatalf("expected checkpoint under BTCUSDT:Scripted")
	}

	g := newFixture(zerolog.Nop(), nil, Options{Store: mem})
	ok, err := g.runner.Restore(context.Background())
	if err != nil || !ok {
		t.Fatalf("restore failed: ok=%v err=%v", ok, err)
	}
	if g.strat.Stats().Breakouts != 1 {
		t.Fatalf("restored stats lost: %+v", g.strat.Stats())
	}

	h := newFixture(zerolog.Nop(), nil, Options{})
	if ok, err := h.runner.Restore(context.Background()); ok || err != nil {
		t.Fatalf("runner without store should not restore")
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	f := newFixture(zerolog.Nop(), nil, Options{})
	bars := make(chan signal.Bar, 3)
	for n := 1; n <= 3; n++ {
		bars <- bar(n, 100)
	}
	close(bars)
	if err := f.runner.Run(context.Background(), bars); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.strat.bars != 3 {
		t.Fatalf("expected 3 bars, got %d", f.strat.bars)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.runner.Run(ctx, make(chan signal.Bar)); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(zerolog.New(&buf), nil, Options{})
	f.runner.Feed(context.Background(), bar(1, 100))
	f.runner.LogSummary()
	out := buf.String()
	for _, want := range []string{"ALGORITHM SUMMARY", "Final Portfolio Value: $10000.00", "Total Return: 0.00%", "Final Active Direction: NEUTRAL"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q: %s", want, out)
		}
	}
}
