package engine

import (
	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/pkg/types"
)

// Command is the closed set of operations a strategy can issue through
// Engine.ExecuteCommand (spec §4.5).
type Command interface {
	isCommand()
}

// SubmitOrder submits a single order, both adding it to the execution
// database under the given strategy/position and forwarding it to the
// registered ExecutionClient.
type SubmitOrder struct {
	Order      *order.Order
	StrategyId types.StrategyId
	PositionId types.PositionId
}

func (SubmitOrder) isCommand() {}

// SubmitBracketOrder submits an entry order together with its stop-loss
// and take-profit legs as one atomic database registration. Either leg
// may be nil if the bracket only has one of the two protective orders.
type SubmitBracketOrder struct {
	Entry      *order.Order
	StopLoss   *order.Order
	TakeProfit *order.Order
	StrategyId types.StrategyId
	PositionId types.PositionId
}

func (SubmitBracketOrder) isCommand() {}

// ModifyOrder requests a price/quantity amendment. Forwarded verbatim to
// the client: the database is not mutated until the resulting event
// arrives (spec §4.5 step 2).
type ModifyOrder struct {
	OrderId  types.OrderId
	Price    types.Price
	Quantity types.Quantity
}

func (ModifyOrder) isCommand() {}

// CancelOrder requests cancellation of a working order.
type CancelOrder struct {
	OrderId types.OrderId
}

func (CancelOrder) isCommand() {}

// AccountInquiry requests a fresh account snapshot from the venue.
type AccountInquiry struct {
	AccountId types.AccountId
}

func (AccountInquiry) isCommand() {}
