// Package order implements the order entity and its state machine: a
// closed set of events folded one at a time via Order.Apply, exactly
// mirroring the trader's own venue acknowledgements.
package order

import (
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

// Order is a single order's full lifecycle: its immutable instructions
// plus the state accumulated by applying OrderEvents to it.
type Order struct {
	ID          types.OrderId
	Symbol      types.Symbol
	Side        types.OrderSide
	Type        types.OrderType
	Quantity    types.Quantity
	Price       types.Price // zero value unless Type.RequiresPrice()
	TimeInForce types.TimeInForce
	ExpireTime  time.Time // zero unless TimeInForce == GTD
	InitTime    time.Time

	Status         types.OrderStatus
	FilledQuantity types.Quantity
	AveragePrice   types.Price
	Events         []types.OrderEvent
}

// New constructs an Order in the Initialized state. It enforces the
// teacher's original precondition set: positive quantity, a price present
// iff the order type requires one, and an expire time present iff the
// time in force is GTD.
func New(id types.OrderId, symbol types.Symbol, side types.OrderSide, orderType types.OrderType,
	quantity types.Quantity, price types.Price, tif types.TimeInForce, expireTime time.Time, initTime time.Time) (*Order, error) {

	if err := quantity.RequirePositive(); err != nil {
		return nil, err
	}
	if orderType.RequiresPrice() && price.Sign() <= 0 {
		return nil, types.ErrInvalidArgument("price is required for this order type", "type", string(orderType))
	}
	if !orderType.RequiresPrice() && price.Sign() != 0 {
		return nil, types.ErrInvalidArgument("price is not allowed for this order type", "type", string(orderType))
	}
	if tif == types.GTD && expireTime.IsZero() {
		return nil, types.ErrInvalidArgument("expire time is required for GTD orders")
	}

	return &Order{
		ID:          id,
		Symbol:      symbol,
		Side:        side,
		Type:        orderType,
		Quantity:    quantity,
		Price:       price,
		TimeInForce: tif,
		ExpireTime:  expireTime,
		InitTime:    initTime,
		Status:      types.Initialized,
		FilledQuantity: types.QuantityFromInt(0),
	}, nil
}

// IsComplete reports whether the order has reached a terminal status.
func (o *Order) IsComplete() bool { return o.Status.IsTerminal() }

// Clone returns an owned copy of o. Every query path through the execution
// database returns the result of Clone rather than the stored pointer, so a
// caller on another goroutine can read or hold onto the result without
// racing the reactor's in-place Apply calls on the original.
func (o *Order) Clone() *Order {
	clone := *o
	if o.Events != nil {
		clone.Events = make([]types.OrderEvent, len(o.Events))
		copy(clone.Events, o.Events)
	}
	return &clone
}

// Apply folds one event into the order, advancing its status. Re-applying
// the terminal event that completed the order (a second OrderRejected,
// OrderCancelled or OrderExpired, or a fill carrying the last fill's
// ExecutionId) is an idempotent no-op; any other event on an order already
// in a terminal state is rejected rather than silently ignored, except for
// OrderCancelReject which never carries a status transition (it is
// advisory only, per the venue's inability to action a request already in
// flight).
func (o *Order) Apply(event types.OrderEvent) error {
	if !event.OrderID().Equal(o.ID) {
		return types.ErrInvariantViolation("event order id does not match this order",
			"order_id", o.ID.String(), "event_order_id", event.OrderID().String())
	}

	switch e := event.(type) {
	case types.OrderSubmitted:
		if o.Status != types.Initialized {
			return o.transitionErr(event, types.Submitted)
		}
		o.Status = types.Submitted

	case types.OrderAccepted:
		if o.Status != types.Submitted {
			return o.transitionErr(event, types.Accepted)
		}
		o.Status = types.Accepted

	case types.OrderRejected:
		if o.Status == types.Rejected {
			return nil // duplicate terminal event: idempotent no-op
		}
		if o.Status.IsTerminal() {
			return o.transitionErr(event, types.Rejected)
		}
		o.Status = types.Rejected

	case types.OrderWorking:
		if o.Status.IsTerminal() {
			return o.transitionErr(event, types.Working)
		}
		o.Status = types.Working

	case types.OrderCancelled:
		if o.Status == types.Cancelled {
			return nil
		}
		if o.Status.IsTerminal() {
			return o.transitionErr(event, types.Cancelled)
		}
		o.Status = types.Cancelled

	case types.OrderExpired:
		if o.Status == types.Expired {
			return nil
		}
		if o.Status.IsTerminal() {
			return o.transitionErr(event, types.Expired)
		}
		o.Status = types.Expired

	case types.OrderCancelReject:
		// Advisory only: never mutates status.

	case types.OrderPartiallyFilled:
		if o.Status.IsTerminal() {
			if o.Status == types.Filled && e.ExecutionId.Equal(lastExecutionId(o)) {
				return nil
			}
			return o.transitionErr(event, types.PartiallyFilled)
		}
		o.FilledQuantity = e.CumulativeQuantity
		o.AveragePrice = e.AveragePrice
		if e.IsEffectivelyFilled() {
			o.Status = types.Filled
		} else {
			o.Status = types.PartiallyFilled
		}

	case types.OrderFilled:
		if o.Status == types.Filled && e.ExecutionId.Equal(lastExecutionId(o)) {
			return nil
		}
		if o.Status.IsTerminal() {
			return o.transitionErr(event, types.Filled)
		}
		o.FilledQuantity = e.CumulativeQuantity
		o.AveragePrice = e.AveragePrice
		o.Status = types.Filled

	default:
		return types.ErrInvalidArgument("unrecognized order event type")
	}

	o.Events = append(o.Events, event)
	return nil
}

func (o *Order) transitionErr(event types.OrderEvent, attempted types.OrderStatus) error {
	return types.ErrStateTransitionNotAllowed("event not valid for order's current status",
		"order_id", o.ID.String(),
		"current_status", string(o.Status),
		"attempted_status", string(attempted),
		"event_type", eventTypeName(event))
}

func eventTypeName(event types.OrderEvent) string {
	switch event.(type) {
	case types.OrderSubmitted:
		return "OrderSubmitted"
	case types.OrderAccepted:
		return "OrderAccepted"
	case types.OrderRejected:
		return "OrderRejected"
	case types.OrderWorking:
		return "OrderWorking"
	case types.OrderCancelled:
		return "OrderCancelled"
	case types.OrderExpired:
		return "OrderExpired"
	case types.OrderCancelReject:
		return "OrderCancelReject"
	case types.OrderPartiallyFilled:
		return "OrderPartiallyFilled"
	case types.OrderFilled:
		return "OrderFilled"
	default:
		return "Unknown"
	}
}

// lastExecutionId returns the ExecutionId carried by the most recent fill
// event applied to o, or the zero value if none has been applied yet. Used
// to distinguish a genuine duplicate fill report (same execution id,
// idempotent no-op) from an attempt to fill an already-complete order
// (StateTransitionNotAllowed).
func lastExecutionId(o *Order) types.ExecutionId {
	for i := len(o.Events) - 1; i >= 0; i-- {
		switch e := o.Events[i].(type) {
		case types.OrderFilled:
			return e.ExecutionId
		case types.OrderPartiallyFilled:
			return e.ExecutionId
		}
	}
	return types.ExecutionId{}
}

// LeavesQuantity is the quantity still working (unfilled).
func (o *Order) LeavesQuantity() types.Quantity {
	return o.Quantity.Sub(o.FilledQuantity)
}
