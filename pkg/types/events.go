package types

import "time"

// OrderEvent is the closed set of event kinds an Order can apply. It is a
// marker interface over concrete structs rather than an enum-with-payload,
// so dispatch over it (Order.Apply) is a type switch the compiler can be
// made to check is total (see internal/order).
type OrderEvent interface {
	OrderID() OrderId
	OccurredAt() time.Time
}

type orderEventBase struct {
	ID        OrderId
	Timestamp time.Time
}

func (b orderEventBase) OrderID() OrderId      { return b.ID }
func (b orderEventBase) OccurredAt() time.Time { return b.Timestamp }

// OrderSubmitted reports the order was sent to the venue.
type OrderSubmitted struct{ orderEventBase }

func NewOrderSubmitted(id OrderId, ts time.Time) OrderSubmitted {
	return OrderSubmitted{orderEventBase{id, ts}}
}

// OrderAccepted reports the venue accepted the order.
type OrderAccepted struct{ orderEventBase }

func NewOrderAccepted(id OrderId, ts time.Time) OrderAccepted {
	return OrderAccepted{orderEventBase{id, ts}}
}

// OrderRejected reports the venue rejected the order.
type OrderRejected struct {
	orderEventBase
	Reason string
}

func NewOrderRejected(id OrderId, reason string, ts time.Time) OrderRejected {
	return OrderRejected{orderEventBase{id, ts}, reason}
}

// OrderWorking reports the order is live in the venue's book.
type OrderWorking struct{ orderEventBase }

func NewOrderWorking(id OrderId, ts time.Time) OrderWorking {
	return OrderWorking{orderEventBase{id, ts}}
}

// OrderCancelled reports the venue cancelled the order.
type OrderCancelled struct{ orderEventBase }

func NewOrderCancelled(id OrderId, ts time.Time) OrderCancelled {
	return OrderCancelled{orderEventBase{id, ts}}
}

// OrderExpired reports the order's time in force elapsed unfilled.
type OrderExpired struct{ orderEventBase }

func NewOrderExpired(id OrderId, ts time.Time) OrderExpired {
	return OrderExpired{orderEventBase{id, ts}}
}

// OrderCancelReject is advisory: the venue could not action a
// modify/cancel request. It never mutates order status (§4.2, §9).
type OrderCancelReject struct {
	orderEventBase
	Reason string
}

func NewOrderCancelReject(id OrderId, reason string, ts time.Time) OrderCancelReject {
	return OrderCancelReject{orderEventBase{id, ts}, reason}
}

// Fill is the common shape of a partial or full fill report, carrying
// everything both the order state machine and the position aggregator
// need: the execution id, the venue's own position id, and the economics
// of the trade (symbol/side/quantity/price/currency).
type Fill struct {
	ExecutionId      ExecutionId
	PositionIdBroker string
	Symbol           Symbol
	Side             OrderSide
	FillQuantity     Quantity
	Price            Price
	Currency         Currency
	Timestamp        time.Time
}

// OrderPartiallyFilled reports a fill that leaves quantity remaining.
// A LeavesQuantity of zero is treated as a Filled event (§9 open question,
// decided in SPEC_FULL.md §6): Order.Apply checks this inside its
// OrderPartiallyFilled case. Position.Apply takes only the embedded Fill,
// so the event kind does not reach it.
type OrderPartiallyFilled struct {
	orderEventBase
	Fill
	CumulativeQuantity Quantity
	LeavesQuantity     Quantity
	AveragePrice       Price
}

func NewOrderPartiallyFilled(id OrderId, fill Fill, cumQty, leavesQty Quantity, avgPrice Price, ts time.Time) OrderPartiallyFilled {
	return OrderPartiallyFilled{orderEventBase{id, ts}, fill, cumQty, leavesQty, avgPrice}
}

// IsEffectivelyFilled reports whether this partial fill left no quantity
// working, in which case it is semantically a Filled event.
func (e OrderPartiallyFilled) IsEffectivelyFilled() bool { return e.LeavesQuantity.IsZero() }

// OrderFilled reports the order is completely filled.
type OrderFilled struct {
	orderEventBase
	Fill
	CumulativeQuantity Quantity
	AveragePrice       Price
}

func NewOrderFilled(id OrderId, fill Fill, cumQty Quantity, avgPrice Price, ts time.Time) OrderFilled {
	return OrderFilled{orderEventBase{id, ts}, fill, cumQty, avgPrice}
}

// AccountStateEvent reports a balance/margin/pnl snapshot for one currency
// of an account. Account.Apply folds a sequence of these (§3, SPEC_FULL §9).
type AccountStateEvent struct {
	AccountId   AccountId
	Currency    Currency
	CashBalance Money
	Margin      Money
	RealizedPnl Money
	Timestamp   time.Time
}

// PositionEvent is the closed set of position lifecycle notifications
// routed to the owning strategy and the portfolio.
type PositionEvent interface {
	PositionID() PositionId
	OccurredAt() time.Time
}

type positionEventBase struct {
	ID         PositionId
	StrategyId StrategyId
	Timestamp  time.Time
}

func (b positionEventBase) PositionID() PositionId { return b.ID }
func (b positionEventBase) OccurredAt() time.Time  { return b.Timestamp }

// PositionOpened is emitted the first time a fill creates a position.
type PositionOpened struct{ positionEventBase }

func NewPositionOpened(id PositionId, strategyID StrategyId, ts time.Time) PositionOpened {
	return PositionOpened{positionEventBase{id, strategyID, ts}}
}

// PositionModified is emitted for every subsequent fill applied to an
// already-open position.
type PositionModified struct{ positionEventBase }

func NewPositionModified(id PositionId, strategyID StrategyId, ts time.Time) PositionModified {
	return PositionModified{positionEventBase{id, strategyID, ts}}
}

// PositionClosed is emitted when a fill brings a position to FLAT.
type PositionClosed struct{ positionEventBase }

func NewPositionClosed(id PositionId, strategyID StrategyId, ts time.Time) PositionClosed {
	return PositionClosed{positionEventBase{id, strategyID, ts}}
}
