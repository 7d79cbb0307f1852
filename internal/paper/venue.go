package paper

import (
	"context"
	"fmt"

	"chikoubot-go/internal/execution"
)

// Venue fills orders against an Account at the order's reference price,
// worsened by a fixed slippage in basis points.
type Venue struct {
	account     *Account
	slippageBps float64
}

// NewVenue adapts account to execution.Venue.
func NewVenue(account *Account, slippageBps float64) *Venue {
	if slippageBps < 0 {
		slippageBps = 0
	}
	return &Venue{account: account, slippageBps: slippageBps}
}

// Account returns the backing account.
func (v *Venue) Account() *Account { return v.account }

// Execute fills the order immediately.
func (v *Venue) Execute(ctx context.Context, order execution.Order) (execution.Fill, error) {
	if err := ctx.Err(); err != nil {
		return execution.Fill{}, err
	}
	px := order.Price * (1 + order.Side.Sign()*v.slippageBps/10_000)
	if err := v.account.MarketFill(order.Symbol, order.Side, order.Qty, px); err != nil {
		return execution.Fill{}, fmt.Errorf("paper fill %s: %w", order.ID, err)
	}
	return execution.Fill{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Qty:     order.Qty,
		Price:   px,
		Reason:  order.Reason,
		Ts:      order.Ts,
	}, nil
}
