package execution

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chikoubot-go/internal/signal"
)

// Plan turns an intent into the orders that move position to the intent's target.
// Targets are signed fractions of equity sized at price. Sized quantities are
// rounded toward zero to lotSize; liquidations close the whole position. Zero
// quantities are dropped.
func Plan(it signal.Intent, position, equity, price, lotSize float64) []Order {
	if !it.Actionable() {
		return nil
	}

	var orders []Order
	add := func(delta float64) {
		if delta == 0 {
			return
		}
		side := Buy
		if delta < 0 {
			side = Sell
			delta = -delta
		}
		orders = append(orders, Order{
			ID:     uuid.NewString(),
			Symbol: it.Symbol,
			Side:   side,
			Qty:    delta,
			Price:  price,
			Reason: it.Reason,
			Ts:     it.Ts,
		})
	}

	pos := decimal.NewFromFloat(position)
	if it.Kind == signal.Liquidate || it.LiquidateFirst {
		add(pos.Neg().InexactFloat64())
		pos = decimal.Zero
	}
	if it.Kind == signal.Liquidate || price <= 0 {
		return orders
	}

	target := decimal.NewFromFloat(it.Target).
		Mul(decimal.NewFromFloat(equity)).
		Div(decimal.NewFromFloat(price))
	add(roundToLot(target.Sub(pos), lotSize).InexactFloat64())
	return orders
}

// roundToLot truncates qty toward zero to a multiple of lot.
func roundToLot(qty decimal.Decimal, lot float64) decimal.Decimal {
	if lot <= 0 {
		return qty
	}
	step := decimal.NewFromFloat(lot)
	return qty.Div(step).Truncate(0).Mul(step)
}
