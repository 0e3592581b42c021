// Package execdb implements the execution database contract: the single
// owner of orders, positions, and accounts, kept atomic with respect to
// readers and exposing the working/completed and open/closed indices the
// engine's reactor relies on.
package execdb

import (
	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// Strategy is the identifying record the database tracks for
// update_strategy/delete_strategy/get_strategy_ids; the database only
// ever needs the id, never strategy behavior.
type Strategy struct {
	ID types.StrategyId
}

// Account is derived from a sequence of AccountStateEvents: current
// balance/margin/pnl per currency.
type Account struct {
	ID       types.AccountId
	Balances map[types.Currency]types.Money
	Margins  map[types.Currency]types.Money
	PnL      map[types.Currency]types.Money
}

// NewAccount returns an empty account ready to fold AccountStateEvents.
func NewAccount(id types.AccountId) *Account {
	return &Account{
		ID:       id,
		Balances: make(map[types.Currency]types.Money),
		Margins:  make(map[types.Currency]types.Money),
		PnL:      make(map[types.Currency]types.Money),
	}
}

// Apply folds one AccountStateEvent into the account's per-currency
// snapshot, per the original's event-sourced account model.
func (a *Account) Apply(event types.AccountStateEvent) {
	a.Balances[event.Currency] = event.CashBalance
	a.Margins[event.Currency] = event.Margin
	a.PnL[event.Currency] = event.RealizedPnl
}

// Clone returns an owned copy of a, including its own per-currency maps, so
// a caller cannot observe or race a later Apply on the stored account.
func (a *Account) Clone() *Account {
	clone := &Account{
		ID:       a.ID,
		Balances: make(map[types.Currency]types.Money, len(a.Balances)),
		Margins:  make(map[types.Currency]types.Money, len(a.Margins)),
		PnL:      make(map[types.Currency]types.Money, len(a.PnL)),
	}
	for k, v := range a.Balances {
		clone.Balances[k] = v
	}
	for k, v := range a.Margins {
		clone.Margins[k] = v
	}
	for k, v := range a.PnL {
		clone.PnL[k] = v
	}
	return clone
}

// ExecutionDatabase is the execution core's sole persistence contract.
// Every backend below (in-memory, Postgres, SQLite, cached) satisfies it
// identically: a caller cannot tell which is wired in.
type ExecutionDatabase interface {
	// Mutations.
	AddOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error
	AddPosition(p *position.Position, strategyID types.StrategyId) error
	UpdateOrder(o *order.Order) error
	UpdatePosition(p *position.Position) error
	AddAccount(a *Account) error
	UpdateAccount(a *Account) error
	UpdateStrategy(s Strategy) error
	DeleteStrategy(id types.StrategyId) error
	CheckResiduals() []string
	Reset() error
	Flush() error

	// Order queries.
	OrderExists(id types.OrderId) bool
	GetOrder(id types.OrderId) (*order.Order, bool)
	GetOrderIds(strategyID *types.StrategyId) []types.OrderId
	GetOrders(strategyID *types.StrategyId) []*order.Order
	GetOrdersWorking(strategyID *types.StrategyId) []*order.Order
	GetOrdersCompleted(strategyID *types.StrategyId) []*order.Order

	// Position queries.
	PositionExists(id types.PositionId) bool
	PositionExistsForOrder(orderID types.OrderId) bool
	PositionIndexedForOrder(orderID types.OrderId) bool
	GetPosition(id types.PositionId) (*position.Position, bool)
	GetPositionForOrder(orderID types.OrderId) (*position.Position, bool)
	GetPositionId(orderID types.OrderId) (types.PositionId, bool)
	GetPositions(strategyID *types.StrategyId) []*position.Position
	GetPositionsOpen(strategyID *types.StrategyId) []*position.Position
	GetPositionsClosed(strategyID *types.StrategyId) []*position.Position
	GetPositionIds(strategyID *types.StrategyId) []types.PositionId
	IsPositionOpen(id types.PositionId) bool
	IsPositionClosed(id types.PositionId) bool

	// Counts.
	CountOrdersTotal(strategyID *types.StrategyId) int
	CountOrdersWorking(strategyID *types.StrategyId) int
	CountOrdersCompleted(strategyID *types.StrategyId) int
	CountPositionsTotal(strategyID *types.StrategyId) int
	CountPositionsOpen(strategyID *types.StrategyId) int
	CountPositionsClosed(strategyID *types.StrategyId) int

	GetStrategyIds() []types.StrategyId

	// Account queries.
	GetAccount(id types.AccountId) (*Account, bool)
}

func orderIsWorking(o *order.Order) bool {
	return o.Status == types.Working || o.Status == types.PartiallyFilled
}

func orderIsCompleted(o *order.Order) bool {
	return o.Status.IsTerminal()
}

// residualPositionMessage and residualOrderMessage format a
// check_residuals log line for a non-flat position or a working order,
// grounded on the teacher's structured
// zap-field logging convention, rendered here as a plain string because
// the database layer itself stays logger-agnostic (the caller decides
// how to emit it).
func residualPositionMessage(p *position.Position) string {
	return "residual open position " + p.ID.String() + " qty=" + p.Quantity.String()
}

func residualOrderMessage(o *order.Order) string {
	return "residual working order " + o.ID.String() + " status=" + string(o.Status)
}
