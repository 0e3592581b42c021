package engine

import (
	"context"

	"github.com/coriolis-trading/execore/pkg/types"
)

// ExecutionClient is the narrow venue boundary the engine forwards
// commands to. Exactly one is registered per Engine (spec §4.5/§6); the
// engine never blocks on it — every method here hands the request off and
// returns, with the result posted back asynchronously through
// Engine.HandleEvent.
type ExecutionClient interface {
	Connect(ctx context.Context) error
	Disconnect() error

	AccountInquiry(cmd AccountInquiry) error
	SubmitOrder(cmd SubmitOrder) error
	SubmitBracketOrder(cmd SubmitBracketOrder) error
	ModifyOrder(cmd ModifyOrder) error
	CancelOrder(cmd CancelOrder) error
}

// Strategy is the engine-facing half of a trading strategy: an identity
// and a single inbound event handler. Strategies issue commands through
// Engine.ExecuteCommand and receive order/position events through
// HandleEvent; the engine never inspects a strategy's internal state.
type Strategy interface {
	StrategyID() types.StrategyId
	HandleEvent(event any)
}

// Portfolio aggregates account and position state across every
// registered strategy (spec §4.5/§6). It is notified on every position
// lifecycle transition and every account state update, independent of
// which strategy owns the position.
type Portfolio interface {
	RegisterStrategy(id types.StrategyId)
	Update(event types.PositionEvent)
	HandleTransaction(event types.AccountStateEvent)
}
