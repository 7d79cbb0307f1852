// Package signal standardizes payloads shared between data ingestion, indicator, strategy and execution layers.
package signal

import (
	"fmt"
	"strings"
	"time"
)

// Bar models one aggregated OHLCV sample. End is the close time of the period.
type Bar struct {
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	End    time.Time `json:"end"`
	Closed bool      `json:"closed"` // true once the aggregation period is complete
}

// BodyHigh returns the top of the candle body.
func (b Bar) BodyHigh() float64 {
	if b.Open > b.Close {
		return b.Open
	}
	return b.Close
}

// BodyLow returns the bottom of the candle body.
func (b Bar) BodyLow() float64 {
	if b.Open < b.Close {
		return b.Open
	}
	return b.Close
}

// Direction is the directional stance of a strategy.
type Direction uint8

const (
	Neutral Direction = iota
	Bullish
	Bearish
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText decodes a direction name.
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "BULLISH":
		*d = Bullish
	case "BEARISH":
		*d = Bearish
	case "NEUTRAL", "":
		*d = Neutral
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}

// Bias maps a direction to its sign: +1 bullish, -1 bearish, 0 neutral.
func Bias(d Direction) int {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// Snapshot carries indicator values valid at the current bar.
type Snapshot struct {
	Tenkan  float64
	Kijun   float64
	SenkouA float64
	SenkouB float64
	// Lagged values sit at the Chikou reference point, displacement bars back.
	KijunLagged   float64
	SenkouALagged float64
	SenkouBLagged float64
	VolumeMA      float64

	IchimokuReady bool
	LaggedReady   bool
	VolumeReady   bool
}

// CloudTop returns the upper edge of the current cloud.
func (s Snapshot) CloudTop() float64 { return max(s.SenkouA, s.SenkouB) }

// CloudBottom returns the lower edge of the current cloud.
func (s Snapshot) CloudBottom() float64 { return min(s.SenkouA, s.SenkouB) }

// IntentKind enumerates what a strategy asks the execution layer to do.
type IntentKind string

const (
	Hold      IntentKind = "HOLD"
	Enter     IntentKind = "ENTER"
	Liquidate IntentKind = "LIQUIDATE"
	Confirm   IntentKind = "CONFIRM" // log only
	Reset     IntentKind = "RESET"   // log only
)

// Intent expresses a trade request produced by a strategy.
type Intent struct {
	Symbol string
	Kind   IntentKind
	// Target is the signed fraction of equity to hold after execution.
	Target         float64
	LiquidateFirst bool
	Direction      Direction
	Score          float64
	Reason         string
	Ts             time.Time
}

// Actionable reports whether the intent requires orders.
func (i Intent) Actionable() bool {
	return i.Kind == Enter || i.Kind == Liquidate
}
