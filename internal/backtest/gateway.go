package backtest

import (
	"context"
	"math"

	"frontrun/internal/book"
	"frontrun/internal/exec"
	"frontrun/internal/ops"
	"frontrun/internal/schema"
)

// SimGateway fills orders against the simulated book. Market orders walk the
// opposing side: the fill price moves away from the mark by
// alpha * (size / topN liquidity)^beta, and the commission is charged on the
// filled notional. There is no resting order state; everything fills or is
// rejected immediately.
type SimGateway struct {
	books    *book.MarketState
	sim      ops.Simulation
	scaleDiv int64

	submits uint64
	rejects uint64
}

// NewSimGateway builds a simulator over the shared market state.
func NewSimGateway(books *book.MarketState, sim ops.Simulation, qtyScale schema.Scale) *SimGateway {
	div := int64(1)
	for i := schema.Scale(0); i < qtyScale; i++ {
		div *= 10
	}
	return &SimGateway{books: books, sim: sim, scaleDiv: div}
}

// Submit implements exec.Gateway.
func (g *SimGateway) Submit(_ context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	g.submits++

	ack := schema.OrderAck{OrderID: intent.OrderID, SymbolID: intent.SymbolID}
	if intent.Price <= 0 {
		g.rejects++
		ack.Status = schema.OrderAckStatusRejected
		ack.Reason = schema.OrderAckReasonInvalidPrice
		return ack, nil
	}
	if intent.Qty <= 0 {
		g.rejects++
		ack.Status = schema.OrderAckStatusRejected
		ack.Reason = schema.OrderAckReasonInvalidQty
		return ack, nil
	}

	liquidity := g.books.Book(intent.SymbolID).Depth(intent.Side.Opposite(), g.sim.LiquidityTopLevels)
	if liquidity <= 0 {
		g.rejects++
		ack.Status = schema.OrderAckStatusRejected
		ack.Reason = schema.OrderAckReasonVenueReject
		return ack, nil
	}

	fill := FillPrice(intent.Price, intent.Side, intent.Qty, liquidity, g.sim.SlippageAlphaBps, g.sim.SlippageBeta)
	notional := int64(fill) * int64(intent.Qty) / g.scaleDiv
	fee := schema.Fee(notional * g.sim.CommissionBps / 10000)

	ack.Status = schema.OrderAckStatusFilled
	ack.Price = fill
	ack.Qty = intent.Qty
	ack.Fee = fee
	return ack, nil
}

// Cancel implements exec.Gateway. Fills are immediate, so there is never
// anything to cancel.
func (g *SimGateway) Cancel(context.Context, uint64) error { return nil }

// Account implements exec.Gateway.
func (g *SimGateway) Account(context.Context) (exec.AccountInfo, error) {
	return exec.AccountInfo{}, nil
}

// Rejects returns how many submissions the simulator turned away.
func (g *SimGateway) Rejects() uint64 { return g.rejects }

// FillPrice applies market impact to a requested price. A buy walks up, a
// sell walks down. The size/liquidity ratio is dimensionless, so the float
// exponent never touches the monetary value directly; the price delta is
// rounded back onto the scaled integer grid.
func FillPrice(price schema.Price, side schema.OrderSide, qty, liquidity schema.Quantity, alphaBps int64, beta float64) schema.Price {
	impact := float64(alphaBps) / 10000 * math.Pow(float64(qty)/float64(liquidity), beta)
	delta := schema.Price(float64(price)*impact + 0.5)
	if side == schema.OrderSideSell {
		fill := price - delta
		if fill < 1 {
			fill = 1
		}
		return fill
	}
	return price + delta
}
