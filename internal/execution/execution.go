// Package execution handles order lifecycle and interaction with venues.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chikoubot-go/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short order.
	Sell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// Order represents a placement request the executor can process.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Qty    float64 // always positive
	Price  float64 // reference price the order was sized at
	Reason string
	Ts     time.Time
}

// Fill is a completed order as reported by a venue.
type Fill struct {
	OrderID string    `json:"order_id" csv:"order_id"`
	Symbol  string    `json:"symbol" csv:"symbol"`
	Side    Side      `json:"side" csv:"side"`
	Qty     float64   `json:"qty" csv:"qty"`
	Price   float64   `json:"price" csv:"price"`
	Reason  string    `json:"reason" csv:"reason"`
	Ts      time.Time `json:"ts" csv:"ts"`
}

// Venue executes orders. Paper accounts and live connectors implement it.
type Venue interface {
	Execute(ctx context.Context, order Order) (Fill, error)
}

// FillRecorder captures fills for later inspection.
type FillRecorder interface {
	Record(Fill)
}

// ErrNoVenue is returned when an executor has nowhere to route orders.
var ErrNoVenue = errors.New("execution: no venue configured")

// Executor routes orders to a venue, records fills and counts submissions.
type Executor struct {
	log       zerolog.Logger
	venue     Venue
	recorders []FillRecorder
}

// NewExecutor wires a venue and optional fill recorders.
func NewExecutor(log zerolog.Logger, venue Venue, recorders ...FillRecorder) *Executor {
	return &Executor{log: log, venue: venue, recorders: recorders}
}

// Submit sends an order to the venue and records the resulting fill.
func (executor *Executor) Submit(ctx context.Context, order Order) (Fill, error) {
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	if executor.venue == nil {
		return Fill{}, ErrNoVenue
	}

	fill, err := executor.venue.Execute(ctx, order)
	if err != nil {
		executor.log.Warn().Err(err).Str("sym", order.Symbol).Str("side", string(order.Side)).Float64("qty", order.Qty).Msg("order rejected")
		return Fill{}, fmt.Errorf("submit %s %s: %w", order.Side, order.Symbol, err)
	}
	for _, r := range executor.recorders {
		r.Record(fill)
	}

	stance := "LONG"
	if fill.Side == Sell {
		stance = "SHORT"
	}
	executor.log.Info().
		Str("id", fill.OrderID).
		Str("sym", fill.Symbol).
		Str("side", string(fill.Side)).
		Float64("qty", fill.Qty).
		Float64("px", fill.Price).
		Str("reason", order.Reason).
		Msgf("ORDER FILLED: %s %.6f %s @ %.2f", stance, fill.Qty, fill.Symbol, fill.Price)
	return fill, nil
}
