// Package paper simulates a margin account so strategies can trade without a live venue.
package paper

import (
	"errors"
	"math"
	"sync"

	"chikoubot-go/internal/execution"
)

var (
	// ErrInsufficientCash rejects buys the account cannot pay for.
	ErrInsufficientCash = errors.New("paper: insufficient cash")
	// ErrPositionLimit rejects fills that grow a position past the per-symbol cap.
	ErrPositionLimit = errors.New("paper: position limit exceeded")
	// ErrInvalidOrder rejects non-positive quantities or prices and unknown sides.
	ErrInvalidOrder = errors.New("paper: invalid order")
)

const epsilon = 1e-9

type positionState struct {
	Qty     float64 // signed; negative is short
	AvgCost float64
}

// Account tracks virtual cash, realized PnL, and signed per-symbol positions while trading in paper mode.
type Account struct {
	mu                   sync.Mutex
	startingCash         float64
	cash                 float64
	realizedPnL          float64
	maxPositionPerSymbol float64
	positions            map[string]positionState
	trades               int
	wins                 int
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         float64
	AvgCost     float64
	MarketValue float64
	Unrealized  float64
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Trades      int
	Wins        int
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash and optional absolute position cap.
func NewAccount(startingCash, maxPositionPerSymbol float64) *Account {
	return &Account{
		startingCash:         startingCash,
		cash:                 startingCash,
		maxPositionPerSymbol: maxPositionPerSymbol,
		positions:            make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll used to compute drawdown.
func (a *Account) StartingCash() float64 { return a.startingCash }

// MarketFill executes a market order at the provided price, mutating balances if successful.
// Sells beyond the held quantity open a short.
func (a *Account) MarketFill(symbol string, side execution.Side, qty, price float64) error {
	if qty <= 0 || price <= 0 {
		return ErrInvalidOrder
	}
	if side != execution.Buy && side != execution.Sell {
		return ErrInvalidOrder
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	state := a.positions[symbol]
	delta := side.Sign() * qty
	newQty := state.Qty + delta
	notional := qty * price

	if side == execution.Buy && notional > a.cash+epsilon {
		return ErrInsufficientCash
	}
	if a.maxPositionPerSymbol > 0 && math.Abs(newQty) > a.maxPositionPerSymbol+epsilon && math.Abs(newQty) > math.Abs(state.Qty) {
		return ErrPositionLimit
	}

	avg := state.AvgCost
	switch {
	case state.Qty == 0 || sameSign(state.Qty, delta):
		avg = (math.Abs(state.Qty)*state.AvgCost + notional) / math.Abs(newQty)
	default:
		closed := math.Min(qty, math.Abs(state.Qty))
		realized := (price - state.AvgCost) * closed
		if state.Qty < 0 {
			realized = -realized
		}
		a.realizedPnL += realized
		a.trades++
		if realized > 0 {
			a.wins++
		}
		if !sameSign(state.Qty, newQty) {
			avg = price // flipped through zero
		}
	}
	a.cash -= delta * price

	if math.Abs(newQty) <= epsilon {
		delete(a.positions, symbol)
	} else {
		a.positions[symbol] = positionState{Qty: newQty, AvgCost: avg}
	}
	return nil
}

func sameSign(a, b float64) bool { return (a > 0 && b > 0) || (a < 0 && b < 0) }

// Snapshot returns a copy of balances, optionally marked using the supplied prices map.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		mark := prices[sym]
		if mark == 0 {
			// unmarked positions are carried at cost
			mark = pos.AvgCost
		}
		marketValue := pos.Qty * mark
		positions[sym] = PositionSnapshot{
			Qty:         pos.Qty,
			AvgCost:     pos.AvgCost,
			MarketValue: marketValue,
			Unrealized:  (mark - pos.AvgCost) * pos.Qty,
		}
		equity += marketValue
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Trades:      a.trades,
		Wins:        a.wins,
		Positions:   positions,
	}
}

// AvailableCash reports free cash that can be deployed into new longs.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}
