package execdb

import (
	"sync"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// MemoryDatabase is the reference ExecutionDatabase implementation: every
// entity and index lives in process memory, guarded by a single mutex so
// mutations are atomic with respect to readers (spec §4.4/§5).
type MemoryDatabase struct {
	mu sync.RWMutex

	orders    map[types.OrderId]*order.Order
	positions map[types.PositionId]*position.Position
	accounts  map[types.AccountId]*Account
	strategies map[types.StrategyId]Strategy

	orderStrategy   map[types.OrderId]types.StrategyId
	orderPosition   map[types.OrderId]types.PositionId
	positionStrategy map[types.PositionId]types.StrategyId

	strategyOrders    map[types.StrategyId]map[types.OrderId]struct{}
	strategyPositions map[types.StrategyId]map[types.PositionId]struct{}
}

// NewMemoryDatabase returns an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	db := &MemoryDatabase{}
	db.initLocked()
	return db
}

func (db *MemoryDatabase) initLocked() {
	db.orders = make(map[types.OrderId]*order.Order)
	db.positions = make(map[types.PositionId]*position.Position)
	db.accounts = make(map[types.AccountId]*Account)
	db.strategies = make(map[types.StrategyId]Strategy)
	db.orderStrategy = make(map[types.OrderId]types.StrategyId)
	db.orderPosition = make(map[types.OrderId]types.PositionId)
	db.positionStrategy = make(map[types.PositionId]types.StrategyId)
	db.strategyOrders = make(map[types.StrategyId]map[types.OrderId]struct{})
	db.strategyPositions = make(map[types.StrategyId]map[types.PositionId]struct{})
}

func (db *MemoryDatabase) AddOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.orders[o.ID]; exists {
		MutationErrorsTotal.WithLabelValues("order", "add", "duplicate_entity").Inc()
		return types.ErrDuplicateEntity("order already exists", "order_id", o.ID.String())
	}
	if existing, indexed := db.orderPosition[o.ID]; indexed && !existing.Equal(positionID) {
		MutationErrorsTotal.WithLabelValues("order", "add", "invariant_violation").Inc()
		return types.ErrInvariantViolation("order already indexed to a different position",
			"order_id", o.ID.String(), "existing_position_id", existing.String(), "new_position_id", positionID.String())
	}

	db.orders[o.ID] = o
	db.orderStrategy[o.ID] = strategyID
	db.orderPosition[o.ID] = positionID

	if db.strategyOrders[strategyID] == nil {
		db.strategyOrders[strategyID] = make(map[types.OrderId]struct{})
	}
	db.strategyOrders[strategyID][o.ID] = struct{}{}
	MutationsTotal.WithLabelValues("order", "add").Inc()
	return nil
}

func (db *MemoryDatabase) AddPosition(p *position.Position, strategyID types.StrategyId) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.positions[p.ID]; exists {
		MutationErrorsTotal.WithLabelValues("position", "add", "duplicate_entity").Inc()
		return types.ErrDuplicateEntity("position already exists", "position_id", p.ID.String())
	}
	db.positions[p.ID] = p
	db.positionStrategy[p.ID] = strategyID
	if db.strategyPositions[strategyID] == nil {
		db.strategyPositions[strategyID] = make(map[types.PositionId]struct{})
	}
	db.strategyPositions[strategyID][p.ID] = struct{}{}
	MutationsTotal.WithLabelValues("position", "add").Inc()
	return nil
}

func (db *MemoryDatabase) UpdateOrder(o *order.Order) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.orders[o.ID]; !exists {
		MutationErrorsTotal.WithLabelValues("order", "update", "unknown_entity").Inc()
		return types.ErrUnknownEntity("order does not exist", "order_id", o.ID.String())
	}
	db.orders[o.ID] = o
	MutationsTotal.WithLabelValues("order", "update").Inc()
	return nil
}

func (db *MemoryDatabase) UpdatePosition(p *position.Position) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.positions[p.ID]; !exists {
		MutationErrorsTotal.WithLabelValues("position", "update", "unknown_entity").Inc()
		return types.ErrUnknownEntity("position does not exist", "position_id", p.ID.String())
	}
	db.positions[p.ID] = p
	MutationsTotal.WithLabelValues("position", "update").Inc()
	return nil
}

func (db *MemoryDatabase) AddAccount(a *Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts[a.ID] = a
	return nil
}

func (db *MemoryDatabase) UpdateAccount(a *Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts[a.ID] = a
	return nil
}

func (db *MemoryDatabase) UpdateStrategy(s Strategy) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.strategies[s.ID] = s
	return nil
}

func (db *MemoryDatabase) DeleteStrategy(id types.StrategyId) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.strategies, id)
	return nil
}

// CheckResiduals logs (by returning message strings for the caller to log,
// keeping this package logger-agnostic) every non-flat position and every
// working order. It never fails.
func (db *MemoryDatabase) CheckResiduals() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var messages []string
	var residualPositions, residualOrders float64
	for _, p := range db.positions {
		if !p.IsFlat() {
			messages = append(messages, residualPositionMessage(p))
			residualPositions++
		}
	}
	for _, o := range db.orders {
		if orderIsWorking(o) {
			messages = append(messages, residualOrderMessage(o))
			residualOrders++
		}
	}
	ResidualsTotal.WithLabelValues("position").Set(residualPositions)
	ResidualsTotal.WithLabelValues("order").Set(residualOrders)
	return messages
}

// Reset clears every entity and index in memory.
func (db *MemoryDatabase) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.initLocked()
	return nil
}

// Flush is a no-op for the in-memory backend: there is no durable store
// beneath it to purge.
func (db *MemoryDatabase) Flush() error { return nil }

func (db *MemoryDatabase) OrderExists(id types.OrderId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.orders[id]
	return ok
}

func (db *MemoryDatabase) GetOrder(id types.OrderId) (*order.Order, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	o, ok := db.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (db *MemoryDatabase) GetOrderIds(strategyID *types.StrategyId) []types.OrderId {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var ids []types.OrderId
	if strategyID == nil {
		for id := range db.orders {
			ids = append(ids, id)
		}
		return ids
	}
	for id := range db.strategyOrders[*strategyID] {
		ids = append(ids, id)
	}
	return ids
}

func (db *MemoryDatabase) GetOrders(strategyID *types.StrategyId) []*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterOrdersLocked(strategyID, func(*order.Order) bool { return true })
}

func (db *MemoryDatabase) GetOrdersWorking(strategyID *types.StrategyId) []*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterOrdersLocked(strategyID, orderIsWorking)
}

func (db *MemoryDatabase) GetOrdersCompleted(strategyID *types.StrategyId) []*order.Order {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterOrdersLocked(strategyID, orderIsCompleted)
}

func (db *MemoryDatabase) filterOrdersLocked(strategyID *types.StrategyId, keep func(*order.Order) bool) []*order.Order {
	var result []*order.Order
	if strategyID == nil {
		for _, o := range db.orders {
			if keep(o) {
				result = append(result, o.Clone())
			}
		}
		return result
	}
	for id := range db.strategyOrders[*strategyID] {
		if o, ok := db.orders[id]; ok && keep(o) {
			result = append(result, o.Clone())
		}
	}
	return result
}

func (db *MemoryDatabase) PositionExists(id types.PositionId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.positions[id]
	return ok
}

func (db *MemoryDatabase) PositionExistsForOrder(orderID types.OrderId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	posID, ok := db.orderPosition[orderID]
	if !ok {
		return false
	}
	_, exists := db.positions[posID]
	return exists
}

func (db *MemoryDatabase) PositionIndexedForOrder(orderID types.OrderId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.orderPosition[orderID]
	return ok
}

func (db *MemoryDatabase) GetPosition(id types.PositionId) (*position.Position, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (db *MemoryDatabase) GetPositionForOrder(orderID types.OrderId) (*position.Position, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	posID, ok := db.orderPosition[orderID]
	if !ok {
		return nil, false
	}
	p, ok := db.positions[posID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func (db *MemoryDatabase) GetPositionId(orderID types.OrderId) (types.PositionId, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	id, ok := db.orderPosition[orderID]
	return id, ok
}

func (db *MemoryDatabase) GetPositions(strategyID *types.StrategyId) []*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterPositionsLocked(strategyID, func(*position.Position) bool { return true })
}

func (db *MemoryDatabase) GetPositionsOpen(strategyID *types.StrategyId) []*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterPositionsLocked(strategyID, func(p *position.Position) bool { return !p.IsFlat() })
}

func (db *MemoryDatabase) GetPositionsClosed(strategyID *types.StrategyId) []*position.Position {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.filterPositionsLocked(strategyID, func(p *position.Position) bool { return p.IsFlat() })
}

func (db *MemoryDatabase) filterPositionsLocked(strategyID *types.StrategyId, keep func(*position.Position) bool) []*position.Position {
	var result []*position.Position
	if strategyID == nil {
		for _, p := range db.positions {
			if keep(p) {
				result = append(result, p.Clone())
			}
		}
		return result
	}
	for id := range db.strategyPositions[*strategyID] {
		if p, ok := db.positions[id]; ok && keep(p) {
			result = append(result, p.Clone())
		}
	}
	return result
}

func (db *MemoryDatabase) GetPositionIds(strategyID *types.StrategyId) []types.PositionId {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var ids []types.PositionId
	if strategyID == nil {
		for id := range db.positions {
			ids = append(ids, id)
		}
		return ids
	}
	for id := range db.strategyPositions[*strategyID] {
		ids = append(ids, id)
	}
	return ids
}

func (db *MemoryDatabase) IsPositionOpen(id types.PositionId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.positions[id]
	return ok && !p.IsFlat()
}

func (db *MemoryDatabase) IsPositionClosed(id types.PositionId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.positions[id]
	return ok && p.IsFlat()
}

func (db *MemoryDatabase) CountOrdersTotal(strategyID *types.StrategyId) int {
	return len(db.GetOrders(strategyID))
}

func (db *MemoryDatabase) CountOrdersWorking(strategyID *types.StrategyId) int {
	return len(db.GetOrdersWorking(strategyID))
}

func (db *MemoryDatabase) CountOrdersCompleted(strategyID *types.StrategyId) int {
	return len(db.GetOrdersCompleted(strategyID))
}

func (db *MemoryDatabase) CountPositionsTotal(strategyID *types.StrategyId) int {
	return len(db.GetPositions(strategyID))
}

func (db *MemoryDatabase) CountPositionsOpen(strategyID *types.StrategyId) int {
	return len(db.GetPositionsOpen(strategyID))
}

func (db *MemoryDatabase) CountPositionsClosed(strategyID *types.StrategyId) int {
	return len(db.GetPositionsClosed(strategyID))
}

func (db *MemoryDatabase) GetStrategyIds() []types.StrategyId {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ids := make([]types.StrategyId, 0, len(db.strategies))
	for id := range db.strategies {
		ids = append(ids, id)
	}
	return ids
}

func (db *MemoryDatabase) GetAccount(id types.AccountId) (*Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	a, ok := db.accounts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

var _ ExecutionDatabase = (*MemoryDatabase)(nil)
