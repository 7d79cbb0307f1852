package main

import (
	"context"
	"errors"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chikoubot-go/internal/exchange"
	"chikoubot-go/internal/metrics"
	"chikoubot-go/internal/paper"
	"chikoubot-go/internal/runner"
	sig "chikoubot-go/internal/signal"
	"chikoubot-go/internal/store"
)

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Trade the live feed on a paper account",
	Long: `Restore the last checkpoint, prime indicators from recent klines, then
evaluate every closed bar from the configured feed until interrupted.`,
	RunE: runPaper,
}

var paperNoPrime bool

func init() {
	rootCmd.AddCommand(paperCmd)
	paperCmd.Flags().BoolVar(&paperNoPrime, "no-prime", false, "Skip priming indicators from REST history")
}

func runPaper(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := metrics.Serve(cfg.App.MetricsAddr)
	defer srv.Close()
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	st, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	journal, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Error().Err(err).Msg("fill journal")
		}
	}()

	session := runner.NewFromConfig(cfg, log, st, journal)
	symbol := cfg.Exchange.Symbols[0]
	if _, err := session.Runner.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("checkpoint ignored, starting fresh")
	}

	if cfg.Exchange.Name == exchange.ProviderBinance && !paperNoPrime {
		history := exchange.NewHistoryClient(log,
			exchange.WithRESTURL(cfg.Exchange.RESTURL),
			exchange.WithRateLimit(cfg.Exchange.RateLimitRPS, 1),
		)
		need := session.Runner.WarmupBars() + cfg.Strategy.Chikou.Displacement + 1
		bars, err := history.Recent(ctx, symbol, cfg.Exchange.Interval, need)
		if err != nil {
			log.Warn().Err(err).Msg("priming failed, indicators warm up live")
		} else {
			session.Runner.Prime(bars)
		}
	}

	feed := exchange.NewFeed(cfg.Exchange.Name, []string{symbol}, log,
		exchange.WithInterval(feedInterval(cfg.Exchange)),
		exchange.WithBinanceURL(cfg.Exchange.WSURL),
		exchange.WithCSVPath(cfg.Exchange.CSVPath),
	)
	bars := make(chan sig.Bar, 1024)
	go func() {
		defer close(bars)
		if err := feed.Run(ctx, bars); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	log.Info().Str("sym", symbol).Str("feed", feed.Provider()).Msg("paper engine started")
	err = session.Runner.Run(ctx, bars)
	log.Info().Msg("shutting down")
	session.Runner.LogSummary()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
