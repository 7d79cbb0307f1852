// Package runner drives bars through indicators, a strategy and the paper venue.
package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/exchange"
	"chikoubot-go/internal/execution"
	"chikoubot-go/internal/indicator"
	"chikoubot-go/internal/metrics"
	"chikoubot-go/internal/paper"
	"chikoubot-go/internal/risk"
	"chikoubot-go/internal/signal"
	"chikoubot-go/internal/store"
	"chikoubot-go/internal/strategy"
)

// Options tunes a Runner. Zero values disable the optional pieces.
type Options struct {
	Symbol  string
	LotSize float64
	Limits  risk.Limits
	// Consolidate aggregates incoming bars to this period before evaluation.
	Consolidate time.Duration
	Store       store.Store
}

// Runner owns the strategy state and is driven by a single goroutine.
type Runner struct {
	log          zerolog.Logger
	symbol       string
	pipeline     *indicator.Pipeline
	strategy     strategy.Strategy
	account      *paper.Account
	executor     *execution.Executor
	limits       risk.Limits
	lotSize      float64
	consolidator *exchange.Consolidator
	store        store.Store

	bars     int
	lastBar  time.Time
	lastMark float64
	halted   bool
	prev     strategy.Stats
}

// New wires a runner. Orders placed by strat are routed through executor, whose
// venue must settle against account.
func New(log zerolog.Logger, strat strategy.Strategy, pipeline *indicator.Pipeline, account *paper.Account, executor *execution.Executor, opts Options) *Runner {
	r := &Runner{
		log:      log.With().Str("sym", opts.Symbol).Str("strategy", strat.Name()).Logger(),
		symbol:   opts.Symbol,
		pipeline: pipeline,
		strategy: strat,
		account:  account,
		executor: executor,
		limits:   opts.Limits,
		lotSize:  opts.LotSize,
		store:    opts.Store,
	}
	if opts.Consolidate > 0 {
		r.consolidator = exchange.NewConsolidator(opts.Consolidate)
	}
	r.prev = strat.Stats()
	return r
}

// CheckpointKey names the stored strategy state.
func (r *Runner) CheckpointKey() string {
	return fmt.Sprintf("%s:%s", r.symbol, r.strategy.Name())
}

// Restore loads the last checkpoint, if any, into the strategy.
func (r *Runner) Restore(ctx context.Context) (bool, error) {
	if r.store == nil {
		return false, nil
	}
	data, found, err := r.store.Load(ctx, r.CheckpointKey())
	if err != nil || !found {
		return false, err
	}
	if err := r.strategy.Restore(data); err != nil {
		return false, err
	}
	r.prev = r.strategy.Stats()
	r.log.Info().Str("key", r.CheckpointKey()).Str("direction", r.prev.Direction.String()).Msg("restored checkpoint")
	return true, nil
}

// WarmupBars is how many strategy-period bars Prime needs before the cloud is ready.
func (r *Runner) WarmupBars() int { return r.pipeline.WarmupBars() }

// Prime warms indicators and strategy history without trading. It returns how
// many bars were used.
func (r *Runner) Prime(bars []signal.Bar) int {
	used := 0
	for _, bar := range bars {
		if !r.accept(bar) {
			continue
		}
		snap := r.pipeline.Update(bar)
		r.strategy.Warm(bar, snap)
		used++
	}
	r.log.Info().Int("bars", used).Int("needed", r.pipeline.WarmupBars()).Msg("indicators primed")
	return used
}

// Run processes bars until the channel closes or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, bars <-chan signal.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				r.flush()
				return nil
			}
			r.Feed(ctx, bar)
		}
	}
}

// Feed processes one input bar, consolidating first when configured.
func (r *Runner) Feed(ctx context.Context, bar signal.Bar) {
	if r.consolidator == nil {
		r.step(ctx, bar)
		return
	}
	for _, out := range r.consolidator.Update(bar) {
		r.step(ctx, out)
	}
}

func (r *Runner) flush() {
	if r.consolidator == nil {
		return
	}
	if partial, ok := r.consolidator.Flush(); ok {
		r.log.Debug().Time("end", partial.End).Msg("dropping partial bar at end of stream")
	}
}

// accept drops bars at or before the newest processed bar.
func (r *Runner) accept(bar signal.Bar) bool {
	if !r.lastBar.IsZero() && !bar.End.After(r.lastBar) {
		return false
	}
	r.lastBar = bar.End
	r.lastMark = bar.Close
	return true
}

func (r *Runner) step(ctx context.Context, bar signal.Bar) {
	if !r.accept(bar) {
		r.log.Debug().Time("end", bar.End).Msg("skipping stale bar")
		return
	}
	r.bars++
	metrics.BarsTotal.WithLabelValues(r.symbol).Inc()

	snap := r.pipeline.Update(bar)
	intents := r.strategy.OnBar(bar, snap, r.account.Position(r.symbol))
	r.recordStats()

	for _, it := range intents {
		r.handle(ctx, it, bar)
	}

	equity := r.equity()
	metrics.Equity.WithLabelValues(r.symbol).Set(equity)
	if !r.halted && r.limits.Halted(equity, r.account.StartingCash()) {
		r.halted = true
		r.log.Error().Float64("equity", equity).Float64("start", r.account.StartingCash()).Msg("kill switch tripped, new entries disabled")
	}
	r.checkpoint(ctx)
}

func (r *Runner) recordStats() {
	st := r.strategy.Stats()
	dir := st.Direction.String()
	if d := st.Breakouts - r.prev.Breakouts; d > 0 {
		metrics.BreakoutsTotal.WithLabelValues(r.symbol, dir).Add(float64(d))
	}
	if d := st.Retests - r.prev.Retests; d > 0 {
		metrics.RetestsTotal.WithLabelValues(r.symbol, dir).Add(float64(d))
	}
	if d := st.Resets - r.prev.Resets; d > 0 {
		metrics.NeutralResetsTotal.WithLabelValues(r.symbol).Add(float64(d))
	}
	metrics.TrendScore.WithLabelValues(r.symbol).Set(st.Score)
	r.prev = st
}

func (r *Runner) handle(ctx context.Context, it signal.Intent, bar signal.Bar) {
	if !it.Actionable() {
		r.log.Info().Str("kind", string(it.Kind)).Str("direction", it.Direction.String()).Msg(it.Reason)
		return
	}
	if r.halted && it.Kind == signal.Enter {
		if !it.LiquidateFirst {
			r.log.Warn().Str("reason", it.Reason).Msg("kill switch active, entry dropped")
			return
		}
		r.log.Warn().Str("reason", it.Reason).Msg("kill switch active, liquidating only")
		it = signal.Intent{Symbol: it.Symbol, Kind: signal.Liquidate, Reason: it.Reason, Ts: it.Ts}
	}

	position := r.account.Position(r.symbol)
	orders := execution.Plan(it, position, r.equity(), bar.Close, r.lotSize)
	for i, order := range orders {
		next := position + order.Side.Sign()*order.Qty
		if math.Abs(next) > math.Abs(position) {
			// only exposure-increasing orders are capped
			order.Qty = r.limits.Clamp(order.Qty, order.Price)
		}
		if order.Qty <= 0 {
			continue
		}
		fill, err := r.executor.Submit(ctx, order)
		if err != nil {
			// later orders assume this one filled
			r.log.Warn().Err(err).Str("kind", string(it.Kind)).Int("skipped", len(orders)-i-1).Msg("intent aborted after failed order")
			return
		}
		position += fill.Side.Sign() * fill.Qty
	}
}

func (r *Runner) equity() float64 {
	return r.account.Snapshot(map[string]float64{r.symbol: r.lastMark}).Equity
}

func (r *Runner) checkpoint(ctx context.Context) {
	if r.store == nil {
		return
	}
	data, err := r.strategy.Checkpoint()
	if err != nil {
		r.log.Warn().Err(err).Msg("checkpoint encode failed")
		return
	}
	if err := r.store.Save(ctx, r.CheckpointKey(), data); err != nil {
		r.log.Warn().Err(err).Msg("checkpoint save failed")
	}
}
