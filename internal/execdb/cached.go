package execdb

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/cache"
	"github.com/coriolis-trading/execore/pkg/types"
)

// CachedDatabase wraps any ExecutionDatabase with a Ristretto read-through
// cache on the single-entity query path (GetOrder/GetPosition/GetAccount),
// so a reporting surface outside the reactor (HTTP handlers, CLI
// inspection commands) can read hot entities without contending with the
// reactor's own index locks on the wrapped backend. Every mutation
// delegates first and then, on success, invalidates the corresponding
// cache entry, so the next read after a write goes to the backend.
type CachedDatabase struct {
	inner  ExecutionDatabase
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDatabase wraps inner with a Ristretto-backed read cache.
func NewCachedDatabase(inner ExecutionDatabase, ttl time.Duration, logger *zap.Logger) (*CachedDatabase, error) {
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("new ristretto cache: %w", err)
	}
	return &CachedDatabase{inner: inner, cache: c, ttl: ttl, logger: logger}, nil
}

func orderCacheKey(id types.OrderId) string       { return "order:" + id.String() }
func positionCacheKey(id types.PositionId) string { return "position:" + id.String() }
func accountCacheKey(id types.AccountId) string   { return "account:" + id.String() }

func (c *CachedDatabase) AddOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	if err := c.inner.AddOrder(o, strategyID, positionID); err != nil {
		return err
	}
	c.cache.Delete(orderCacheKey(o.ID))
	return nil
}

func (c *CachedDatabase) AddPosition(pos *position.Position, strategyID types.StrategyId) error {
	if err := c.inner.AddPosition(pos, strategyID); err != nil {
		return err
	}
	c.cache.Delete(positionCacheKey(pos.ID))
	return nil
}

func (c *CachedDatabase) UpdateOrder(o *order.Order) error {
	if err := c.inner.UpdateOrder(o); err != nil {
		return err
	}
	c.cache.Delete(orderCacheKey(o.ID))
	return nil
}

func (c *CachedDatabase) UpdatePosition(pos *position.Position) error {
	if err := c.inner.UpdatePosition(pos); err != nil {
		return err
	}
	c.cache.Delete(positionCacheKey(pos.ID))
	return nil
}

func (c *CachedDatabase) AddAccount(a *Account) error {
	if err := c.inner.AddAccount(a); err != nil {
		return err
	}
	c.cache.Delete(accountCacheKey(a.ID))
	return nil
}

func (c *CachedDatabase) UpdateAccount(a *Account) error {
	if err := c.inner.UpdateAccount(a); err != nil {
		return err
	}
	c.cache.Delete(accountCacheKey(a.ID))
	return nil
}

func (c *CachedDatabase) UpdateStrategy(s Strategy) error         { return c.inner.UpdateStrategy(s) }
func (c *CachedDatabase) DeleteStrategy(id types.StrategyId) error { return c.inner.DeleteStrategy(id) }
func (c *CachedDatabase) CheckResiduals() []string                { return c.inner.CheckResiduals() }

// Reset clears the wrapped backend's cache-layer state and this cache.
func (c *CachedDatabase) Reset() error {
	c.cache.Clear()
	return c.inner.Reset()
}

// Flush purges durable state on the wrapped backend and this cache.
func (c *CachedDatabase) Flush() error {
	c.cache.Clear()
	return c.inner.Flush()
}

// GetOrder serves from the read-through cache when possible. The cached
// entry is itself already an owned copy handed back by the wrapped
// backend, but the cache may return that same entry to many concurrent
// callers, so every return — cache hit or miss — is cloned again here.
// Without that second clone, one caller mutating its copy in place
// (the reactor's read-modify-write pattern) would corrupt what every
// other cached reader sees.
func (c *CachedDatabase) GetOrder(id types.OrderId) (*order.Order, bool) {
	key := orderCacheKey(id)
	if cached, found := c.cache.Get(key); found {
		o, ok := cached.(*order.Order)
		if !ok {
			return nil, false
		}
		return o.Clone(), true
	}
	o, found := c.inner.GetOrder(id)
	if found {
		c.cache.Set(key, o, c.ttl)
		return o.Clone(), true
	}
	return nil, false
}

func (c *CachedDatabase) GetPosition(id types.PositionId) (*position.Position, bool) {
	key := positionCacheKey(id)
	if cached, found := c.cache.Get(key); found {
		p, ok := cached.(*position.Position)
		if !ok {
			return nil, false
		}
		return p.Clone(), true
	}
	p, found := c.inner.GetPosition(id)
	if found {
		c.cache.Set(key, p, c.ttl)
		return p.Clone(), true
	}
	return nil, false
}

func (c *CachedDatabase) GetAccount(id types.AccountId) (*Account, bool) {
	key := accountCacheKey(id)
	if cached, found := c.cache.Get(key); found {
		a, ok := cached.(*Account)
		if !ok {
			return nil, false
		}
		return a.Clone(), true
	}
	a, found := c.inner.GetAccount(id)
	if found {
		c.cache.Set(key, a, c.ttl)
		return a.Clone(), true
	}
	return nil, false
}

func (c *CachedDatabase) OrderExists(id types.OrderId) bool { return c.inner.OrderExists(id) }
func (c *CachedDatabase) GetOrderIds(strategyID *types.StrategyId) []types.OrderId {
	return c.inner.GetOrderIds(strategyID)
}
func (c *CachedDatabase) GetOrders(strategyID *types.StrategyId) []*order.Order {
	return c.inner.GetOrders(strategyID)
}
func (c *CachedDatabase) GetOrdersWorking(strategyID *types.StrategyId) []*order.Order {
	return c.inner.GetOrdersWorking(strategyID)
}
func (c *CachedDatabase) GetOrdersCompleted(strategyID *types.StrategyId) []*order.Order {
	return c.inner.GetOrdersCompleted(strategyID)
}

func (c *CachedDatabase) PositionExists(id types.PositionId) bool { return c.inner.PositionExists(id) }
func (c *CachedDatabase) PositionExistsForOrder(orderID types.OrderId) bool {
	return c.inner.PositionExistsForOrder(orderID)
}
func (c *CachedDatabase) PositionIndexedForOrder(orderID types.OrderId) bool {
	return c.inner.PositionIndexedForOrder(orderID)
}
func (c *CachedDatabase) GetPositionForOrder(orderID types.OrderId) (*position.Position, bool) {
	return c.inner.GetPositionForOrder(orderID)
}
func (c *CachedDatabase) GetPositionId(orderID types.OrderId) (types.PositionId, bool) {
	return c.inner.GetPositionId(orderID)
}
func (c *CachedDatabase) GetPositions(strategyID *types.StrategyId) []*position.Position {
	return c.inner.GetPositions(strategyID)
}
func (c *CachedDatabase) GetPositionsOpen(strategyID *types.StrategyId) []*position.Position {
	return c.inner.GetPositionsOpen(strategyID)
}
func (c *CachedDatabase) GetPositionsClosed(strategyID *types.StrategyId) []*position.Position {
	return c.inner.GetPositionsClosed(strategyID)
}
func (c *CachedDatabase) GetPositionIds(strategyID *types.StrategyId) []types.PositionId {
	return c.inner.GetPositionIds(strategyID)
}
func (c *CachedDatabase) IsPositionOpen(id types.PositionId) bool   { return c.inner.IsPositionOpen(id) }
func (c *CachedDatabase) IsPositionClosed(id types.PositionId) bool { return c.inner.IsPositionClosed(id) }

func (c *CachedDatabase) CountOrdersTotal(strategyID *types.StrategyId) int {
	return c.inner.CountOrdersTotal(strategyID)
}
func (c *CachedDatabase) CountOrdersWorking(strategyID *types.StrategyId) int {
	return c.inner.CountOrdersWorking(strategyID)
}
func (c *CachedDatabase) CountOrdersCompleted(strategyID *types.StrategyId) int {
	return c.inner.CountOrdersCompleted(strategyID)
}
func (c *CachedDatabase) CountPositionsTotal(strategyID *types.StrategyId) int {
	return c.inner.CountPositionsTotal(strategyID)
}
func (c *CachedDatabase) CountPositionsOpen(strategyID *types.StrategyId) int {
	return c.inner.CountPositionsOpen(strategyID)
}
func (c *CachedDatabase) CountPositionsClosed(strategyID *types.StrategyId) int {
	return c.inner.CountPositionsClosed(strategyID)
}

func (c *CachedDatabase) GetStrategyIds() []types.StrategyId { return c.inner.GetStrategyIds() }

// Close releases the cache and closes the wrapped backend if it supports
// closing.
func (c *CachedDatabase) Close() error {
	c.cache.Close()
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

var _ ExecutionDatabase = (*CachedDatabase)(nil)
