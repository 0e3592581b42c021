// Package position implements FIFO weighted-average position aggregation:
// every fill applied in arrival order updates net quantity, average
// open/close price, and realized P&L without ever reordering the fill
// history.
package position

import (
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

// EntryDirection is the side of the fill that first opened the position.
// Realized P&L sign depends on whether the original entry was long or
// short, so it is kept separately from the current market_position.
type EntryDirection = types.OrderSide

// Position is a single venue position, built up fill by fill.
type Position struct {
	ID             types.PositionId
	FromOrderId    types.OrderId
	EntryDirection EntryDirection
	Symbol         types.Symbol
	Currency       types.Currency

	Quantity       types.Decimal // signed: positive long, negative short
	PeakQuantity   types.Decimal // max abs(Quantity) over history
	MarketPosition types.MarketPosition

	OpenedTime time.Time
	ClosedTime time.Time // zero while open

	AverageOpenPrice  types.Price
	AverageClosePrice types.Price

	closedSoFar types.Decimal // abs quantity closed so far, for the weighted avg_close mean

	RealizedPoints types.Decimal
	RealizedReturn types.Decimal
	RealizedPnl    types.Money

	Events       []types.OrderEvent
	OrderIds     []types.OrderId
	ExecutionIds []types.ExecutionId

	lastFillPrice types.Price
}

// New creates a Position from its first fill.
func New(id types.PositionId, fromOrderId types.OrderId, fill types.Fill, ts time.Time) *Position {
	p := &Position{
		ID:             id,
		FromOrderId:    fromOrderId,
		EntryDirection: fill.Side,
		Symbol:         fill.Symbol,
		Currency:       fill.Currency,
		Quantity:       types.DecimalFromFloat(0, 0),
		PeakQuantity:   types.DecimalFromFloat(0, 0),
		MarketPosition: types.Flat,
		closedSoFar:    types.DecimalFromFloat(0, fill.FillQuantity.Precision()),
		RealizedPoints: types.DecimalFromFloat(0, fill.Price.Precision()),
		RealizedReturn: types.DecimalFromFloat(0, fill.Price.Precision()),
		RealizedPnl:    types.ZeroMoney(fill.Currency),
	}
	p.Apply(fill, fromOrderId, ts)
	return p
}

// IsFlat reports whether the position has no net exposure.
func (p *Position) IsFlat() bool { return p.MarketPosition == types.Flat }

// IsOpen reports whether the position has not yet closed.
func (p *Position) IsOpen() bool { return p.ClosedTime.IsZero() }

// Clone returns an owned copy of p. Every query path through the execution
// database returns the result of Clone rather than the stored pointer, so a
// caller on another goroutine can read or hold onto the result without
// racing the reactor's in-place Apply calls on the original.
func (p *Position) Clone() *Position {
	clone := *p
	if p.Events != nil {
		clone.Events = make([]types.OrderEvent, len(p.Events))
		copy(clone.Events, p.Events)
	}
	if p.OrderIds != nil {
		clone.OrderIds = make([]types.OrderId, len(p.OrderIds))
		copy(clone.OrderIds, p.OrderIds)
	}
	if p.ExecutionIds != nil {
		clone.ExecutionIds = make([]types.ExecutionId, len(p.ExecutionIds))
		copy(clone.ExecutionIds, p.ExecutionIds)
	}
	return &clone
}

// OpenDuration returns how long the position has been (or was) open, or
// nil if it has not received its first fill yet. Grounded on the
// original's OpenDuration/TotalDuration-style derived accessors.
func (p *Position) OpenDuration(now time.Time) *time.Duration {
	if p.OpenedTime.IsZero() {
		return nil
	}
	end := now
	if !p.ClosedTime.IsZero() {
		end = p.ClosedTime
	}
	d := end.Sub(p.OpenedTime)
	return &d
}

// IDBroker derives the venue-side position id (P -> T), per the identifier
// string form rules.
func (p *Position) IDBroker() string { return p.ID.Broker() }

// Apply folds one fill into the position: opening leg, reducing leg, or a
// reducing leg followed by a flip into the opposite side, exactly per the
// aggregation rules. Fills are never reordered — Apply always advances the
// position's history forward from its current state.
func (p *Position) Apply(fill types.Fill, orderId types.OrderId, ts time.Time) {
	if p.OpenedTime.IsZero() {
		p.OpenedTime = ts
	}

	qty := fill.FillQuantity.Decimal
	delta := qty
	if fill.Side == types.Sell {
		delta = qty.Neg()
	}

	net := p.Quantity
	switch {
	case net.Sign() == 0 || sameSign(net, delta):
		p.applyOpeningLeg(net, delta, fill)
	default:
		p.applyReducingLeg(net, delta, fill, ts)
	}

	absNet := p.Quantity.Abs()
	if absNet.GreaterThan(p.PeakQuantity) {
		p.PeakQuantity = absNet
	}
	p.MarketPosition = marketPositionOf(p.Quantity)
	if p.MarketPosition == types.Flat {
		p.ClosedTime = ts
	} else {
		p.ClosedTime = time.Time{}
	}

	p.lastFillPrice = fill.Price
	p.recordHistory(fill, orderId)
}

func sameSign(a, b types.Decimal) bool { return a.Sign() == b.Sign() }

func marketPositionOf(net types.Decimal) types.MarketPosition {
	switch {
	case net.Sign() > 0:
		return types.Long
	case net.Sign() < 0:
		return types.Short
	default:
		return types.Flat
	}
}

// applyOpeningLeg extends the position in its current (or a fresh)
// direction: new net = net+delta, average_open_price is the quantity-
// weighted mean of |net| at avg_open and the fill quantity at fill_price.
func (p *Position) applyOpeningLeg(net, delta types.Decimal, fill types.Fill) {
	absNet := net.Abs()
	qty := fill.FillQuantity.Decimal

	if absNet.IsZero() {
		p.AverageOpenPrice = fill.Price
	} else {
		precision := maxPrec(p.AverageOpenPrice.Precision(), fill.Price.Precision())
		weighted := absNet.Mul(p.AverageOpenPrice.Decimal).Add(qty.Mul(fill.Price.Decimal))
		denom := absNet.Add(qty)
		p.AverageOpenPrice = types.Price{Decimal: weighted.Div(denom).Round(precision)}
	}
	p.Quantity = net.Add(delta)
}

// applyReducingLeg closes up to |net| of the position against fill_price,
// updates the weighted average_close_price and realized P&L, and — if the
// fill's delta overshoots net — re-applies the opening-leg formula to the
// excess with average_open_price reset to fill_price (the flip case).
func (p *Position) applyReducingLeg(net, delta types.Decimal, fill types.Fill, ts time.Time) {
	absNet := net.Abs()
	qty := fill.FillQuantity.Decimal
	closed := minDecimal(absNet, qty)

	precision := maxPrec(p.AverageClosePrice.Precision(), fill.Price.Precision())
	if p.closedSoFar.IsZero() {
		p.AverageClosePrice = fill.Price
	} else {
		weighted := p.closedSoFar.Mul(p.AverageClosePrice.Decimal).Add(closed.Mul(fill.Price.Decimal))
		denom := p.closedSoFar.Add(closed)
		p.AverageClosePrice = types.Price{Decimal: weighted.Div(denom).Round(precision)}
	}
	p.closedSoFar = p.closedSoFar.Add(closed)

	var points types.Decimal
	if p.EntryDirection == types.Buy {
		points = p.AverageClosePrice.Sub(p.AverageOpenPrice).Decimal
	} else {
		points = p.AverageOpenPrice.Sub(p.AverageClosePrice).Decimal
	}
	p.RealizedPoints = points
	if !p.AverageOpenPrice.IsZero() {
		p.RealizedReturn = points.Div(p.AverageOpenPrice.Decimal)
	}
	pnlAmount := points.Mul(p.closedSoFar)
	p.RealizedPnl = types.Money{Decimal: pnlAmount.Round(2), Currency: fill.Currency}

	newNet := net.Add(delta)
	p.Quantity = newNet

	overshoot := qty.Sub(absNet)
	if overshoot.Sign() > 0 {
		// Flip: the excess opens a fresh position in the fill's direction,
		// average_open_price resets to this fill's price.
		p.AverageOpenPrice = fill.Price
	}
}

func maxPrec(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minDecimal(a, b types.Decimal) types.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (p *Position) recordHistory(fill types.Fill, orderId types.OrderId) {
	foundExec := false
	for _, id := range p.ExecutionIds {
		if id.Equal(fill.ExecutionId) {
			foundExec = true
			break
		}
	}
	if !foundExec {
		p.ExecutionIds = append(p.ExecutionIds, fill.ExecutionId)
	}

	foundOrder := false
	for _, id := range p.OrderIds {
		if id.Equal(orderId) {
			foundOrder = true
			break
		}
	}
	if !foundOrder {
		p.OrderIds = append(p.OrderIds, orderId)
	}
}

// Unrealized computes unrealized metrics against the given quote tick.
type Unrealized struct {
	Points types.Decimal
	Return types.Decimal
	Pnl    types.Money
}

// UnrealizedAt computes unrealized_points/return/pnl against tick, per the
// spec's formulas: zero for a flat position.
func (p *Position) UnrealizedAt(tick types.QuoteTick) Unrealized {
	if p.MarketPosition == types.Flat {
		return Unrealized{
			Points: types.DecimalFromFloat(0, p.AverageOpenPrice.Precision()),
			Return: types.DecimalFromFloat(0, p.AverageOpenPrice.Precision()),
			Pnl:    types.ZeroMoney(p.Currency),
		}
	}

	var points types.Decimal
	if p.MarketPosition == types.Long {
		points = tick.Bid.Sub(p.AverageOpenPrice).Decimal
	} else {
		points = p.AverageOpenPrice.Sub(tick.Ask).Decimal
	}

	var ret types.Decimal
	if !p.AverageOpenPrice.IsZero() {
		ret = points.Div(p.AverageOpenPrice.Decimal)
	}

	pnlAmount := points.Mul(p.Quantity.Abs()).Round(2)
	return Unrealized{
		Points: points,
		Return: ret,
		Pnl:    types.Money{Decimal: pnlAmount, Currency: p.Currency},
	}
}

// TotalPnl returns realized + unrealized pnl at tick.
func (p *Position) TotalPnl(tick types.QuoteTick) (types.Money, error) {
	u := p.UnrealizedAt(tick)
	return p.RealizedPnl.Add(u.Pnl)
}
