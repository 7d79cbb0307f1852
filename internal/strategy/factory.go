package strategy

import (
	"strings"

	"github.com/rs/zerolog"

	sig "chikoubot-go/internal/signal"
)

// Strategy defines behaviour shared by strategy implementations driven by the runner.
type Strategy interface {
	Name() string
	// Warm records history without evaluating signals.
	Warm(bar sig.Bar, snap sig.Snapshot)
	// OnBar evaluates one closed bar. position is the signed quantity held.
	OnBar(bar sig.Bar, snap sig.Snapshot, position float64) []sig.Intent
	Stats() Stats
	Checkpoint() ([]byte, error)
	Restore(data []byte) error
}

// Stats summarises what a strategy has done so far.
type Stats struct {
	Strategy  string
	Bars      int
	Breakouts int
	Retests   int
	Resets    int
	Exits     int
	Direction sig.Direction
	Score     float64
}

// Params bundles the tunable knobs for every strategy constructor.
type Params struct {
	Chikou   ChikouParams
	Momentum MomentumParams
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params, log zerolog.Logger) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "momentum", "chikou_momentum", "bollinger":
		return NewMomentum(params.Momentum, log)
	default:
		return NewChikou(params.Chikou, log)
	}
}
