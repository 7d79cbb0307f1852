package runner

import (
	"github.com/rs/zerolog"

	"chikoubot-go/internal/signal"
)

// Summary is the end-of-run report.
type Summary struct {
	Symbol         string
	Strategy       string
	Bars           int
	StartingEquity float64
	FinalEquity    float64
	ReturnPct      float64
	RealizedPnL    float64
	Position       float64
	Trades         int
	Wins           int
	Breakouts      int
	Retests        int
	Resets         int
	Exits          int
	Direction      signal.Direction
	TrendScore     float64
	Halted         bool
}

// Summary snapshots the account and strategy counters.
func (r *Runner) Summary() Summary {
	snap := r.account.Snapshot(map[string]float64{r.symbol: r.lastMark})
	st := r.strategy.Stats()
	start := r.account.StartingCash()
	var ret float64
	if start > 0 {
		ret = (snap.Equity - start) / start * 100
	}
	return Summary{
		Symbol:         r.symbol,
		Strategy:       st.Strategy,
		Bars:           r.bars,
		StartingEquity: start,
		FinalEquity:    snap.Equity,
		ReturnPct:      ret,
		RealizedPnL:    snap.RealizedPnL,
		Position:       snap.Positions[r.symbol].Qty,
		Trades:         snap.Trades,
		Wins:           snap.Wins,
		Breakouts:      st.Breakouts,
		Retests:        st.Retests,
		Resets:         st.Resets,
		Exits:          st.Exits,
		Direction:      st.Direction,
		TrendScore:     st.Score,
		Halted:         r.halted,
	}
}

// LogSummary writes the end-of-run report.
func (r *Runner) LogSummary() {
	s := r.Summary()
	s.Log(r.log)
}

// Log writes the report one line per figure.
func (s Summary) Log(log zerolog.Logger) {
	log.Info().Msg("=== ALGORITHM SUMMARY ===")
	log.Info().Float64("equity", s.FinalEquity).Msgf("Final Portfolio Value: $%.2f", s.FinalEquity)
	if s.ReturnPct >= 0 {
		log.Info().Float64("return_pct", s.ReturnPct).Msgf("Total Return: %.2f%%", s.ReturnPct)
	} else {
		log.Info().Float64("return_pct", s.ReturnPct).Msgf("Total Loss: %.2f%%", s.ReturnPct)
	}
	log.Info().Int("breakouts", s.Breakouts).Msgf("Breakout Signals Generated: %d", s.Breakouts)
	log.Info().Int("retests", s.Retests).Msgf("Retest Signals Generated: %d", s.Retests)
	log.Info().Int("resets", s.Resets).Int("exits", s.Exits).Int("trades", s.Trades).Int("wins", s.Wins).Msg("closed trades")
	log.Info().Str("direction", s.Direction.String()).Msgf("Final Active Direction: %s", s.Direction)
	log.Info().Float64("score", s.TrendScore).Msgf("Final Trend Score: %.1f", s.TrendScore)
}
