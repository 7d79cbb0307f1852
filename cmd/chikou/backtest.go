package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chikoubot-go/internal/config"
	"chikoubot-go/internal/exchange"
	"chikoubot-go/internal/paper"
	"chikoubot-go/internal/runner"
	sig "chikoubot-go/internal/signal"
	"chikoubot-go/internal/store"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the engine on a paper account",
	Long: `Replay bars from a CSV file, or from Binance klines between --from and
--to, and print the end-of-run summary.`,
	RunE: runBacktest,
}

var (
	btCSV    string
	btFrom   string
	btTo     string
	btSymbol string
	btFills  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVar(&btCSV, "csv", "", "CSV of bars (time,open,high,low,close,volume); overrides exchange.csv_path")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "Start of the kline range (RFC3339 or YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "End of the kline range (default now)")
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "", "Symbol to replay (default first configured)")
	backtestCmd.Flags().StringVar(&btFills, "fills", "", "Write every fill to this CSV")
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if btSymbol != "" {
		cfg.Exchange.Symbols = []string{strings.ToUpper(strings.TrimSpace(btSymbol))}
	}
	if btCSV != "" {
		cfg.Exchange.CSVPath = btCSV
	}

	ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bars, err := historicalBars(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info().Int("bars", len(bars)).Str("sym", cfg.Exchange.Symbols[0]).Msg("backtest loaded")

	session := runner.NewFromConfig(cfg, log, store.NewMemory())
	ch := make(chan sig.Bar, len(bars))
	for _, bar := range bars {
		ch <- bar
	}
	close(ch)
	if err := session.Runner.Run(ctx, ch); err != nil {
		return err
	}
	session.Runner.LogSummary()

	if btFills != "" {
		if err := paper.WriteCSV(btFills, session.Ledger.Fills()); err != nil {
			return err
		}
		log.Info().Str("path", btFills).Int("fills", session.Ledger.Len()).Msg("fills written")
	}
	return nil
}

// historicalBars reads the CSV when one is configured and pages Binance klines
// otherwise.
func historicalBars(ctx context.Context, cfg *config.Config, log zerolog.Logger) ([]sig.Bar, error) {
	symbol := cfg.Exchange.Symbols[0]
	if cfg.Exchange.CSVPath != "" {
		return exchange.LoadCSV(cfg.Exchange.CSVPath, symbol)
	}
	if btFrom == "" {
		return nil, fmt.Errorf("backtest needs --csv or --from")
	}
	from, err := parseDate(btFrom)
	if err != nil {
		return nil, err
	}
	to := time.Now().UTC()
	if btTo != "" {
		if to, err = parseDate(btTo); err != nil {
			return nil, err
		}
	}

	client := exchange.NewHistoryClient(log,
		exchange.WithRESTURL(cfg.Exchange.RESTURL),
		exchange.WithRateLimit(cfg.Exchange.RateLimitRPS, 1),
	)
	return client.Klines(ctx, symbol, feedInterval(cfg.Exchange), from, to)
}

func feedInterval(ex config.Exchange) time.Duration {
	if ex.FeedInterval > 0 {
		return ex.FeedInterval
	}
	return ex.Interval
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: want RFC3339 or YYYY-MM-DD", s)
}
