package runner

import (
	"github.com/rs/zerolog"

	"chikoubot-go/internal/config"
	"chikoubot-go/internal/execution"
	"chikoubot-go/internal/indicator"
	"chikoubot-go/internal/paper"
	"chikoubot-go/internal/risk"
	"chikoubot-go/internal/store"
	"chikoubot-go/internal/strategy"
)

// StrategyParams maps the strategy config section onto constructor params.
func StrategyParams(cfg config.Strategy) strategy.Params {
	ch, mo := cfg.Chikou, cfg.Momentum
	return strategy.Params{
		Chikou: strategy.ChikouParams{
			Displacement:       ch.Displacement,
			UseBodies:          ch.UseBodies,
			ConfirmOnClose:     ch.ConfirmOnClose,
			Retests:            ch.Retests,
			RetestMinDelayBars: ch.RetestMinDelayBars,
			NeutralResetBars:   ch.NeutralResetBars,
			UseVolume:          ch.UseVolume,
			VolumeSensitivity:  ch.VolumeSensitivity,
			VolumeCap:          ch.VolumeCap,
			PositionSize:       ch.PositionSize,
			MinSignalInterval:  ch.MinSignalInterval,
			TickSize:           ch.TickSize,
		},
		Momentum: strategy.MomentumParams{
			ChikouPeriod:      mo.ChikouPeriod,
			BBPeriod:          mo.BBPeriod,
			BBStdDev:          mo.BBStdDev,
			PositionSize:      mo.PositionSize,
			MinSignalInterval: mo.MinSignalInterval,
		},
	}
}

// IchimokuParams maps the indicator config section.
func IchimokuParams(cfg config.Indicators) indicator.IchimokuParams {
	return indicator.IchimokuParams{
		Tenkan:       cfg.Tenkan,
		Kijun:        cfg.Kijun,
		SenkouB:      cfg.SenkouB,
		Displacement: cfg.Displacement,
	}
}

// Session is a runner plus the paper pieces it trades against.
type Session struct {
	Runner  *Runner
	Account *paper.Account
	Ledger  *paper.Ledger
}

// NewFromConfig assembles a paper-trading runner for the first configured symbol.
// st may be nil; extra recorders receive every fill alongside the in-memory ledger.
func NewFromConfig(cfg *config.Config, log zerolog.Logger, st store.Store, recorders ...execution.FillRecorder) *Session {
	symbol := cfg.Exchange.Symbols[0]
	strat := strategy.Build(cfg.Strategy.Mode, StrategyParams(cfg.Strategy), log)
	pipeline := indicator.NewPipeline(IchimokuParams(cfg.Indicators), cfg.Indicators.VolumeLookback)

	account := paper.NewAccount(cfg.Paper.StartingCash, cfg.Paper.MaxPositionPerSymbol)
	ledger := paper.NewLedger(64)
	executor := execution.NewExecutor(log, paper.NewVenue(account, cfg.Paper.SlippageBps), append([]execution.FillRecorder{ledger}, recorders...)...)

	consolidate := cfg.Exchange.Interval
	if cfg.Exchange.FeedInterval <= 0 || cfg.Exchange.FeedInterval == cfg.Exchange.Interval {
		consolidate = 0
	}

	r := New(log, strat, pipeline, account, executor, Options{
		Symbol:      symbol,
		LotSize:     cfg.Paper.LotSize,
		Limits:      risk.Limits{MaxNotionalPerTrade: cfg.Risk.MaxNotionalPerTrade, KillSwitchDrawdown: cfg.Risk.KillSwitchDrawdown},
		Consolidate: consolidate,
		Store:       st,
	})
	return &Session{Runner: r, Account: account, Ledger: ledger}
}
