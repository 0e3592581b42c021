// Package portfolio implements engine.Portfolio: the cross-strategy view
// of account state and position lifecycle the reactor notifies on every
// fill and every account update. Grounded on the teacher's
// internal/orderbook.Manager (an RWMutex-guarded registry fed by a single
// writer, read by many), generalized from order-book-per-token to
// account-balance-per-currency. Positions stay in the execution database;
// the portfolio only looks them up to log their transitions.
package portfolio

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/pkg/types"
)

// Portfolio tracks the strategies registered with the engine and each
// account's per-currency cash balance; it computes no net position
// exposure. It satisfies both
// engine.Portfolio (RegisterStrategy/Update/HandleTransaction) and
// riskgate.EquityFetcher (GetEquity), so the same instance wired into the
// engine also backs the risk gate's equity monitor.
type Portfolio struct {
	logger *zap.Logger
	db     execdb.ExecutionDatabase

	mu         sync.RWMutex
	strategies map[types.StrategyId]struct{}
	accounts   map[types.AccountId]map[types.Currency]types.Money
}

// New constructs a Portfolio backed by db for position lookups on
// Update.
func New(db execdb.ExecutionDatabase, logger *zap.Logger) *Portfolio {
	return &Portfolio{
		logger:     logger,
		db:         db,
		strategies: make(map[types.StrategyId]struct{}),
		accounts:   make(map[types.AccountId]map[types.Currency]types.Money),
	}
}

// RegisterStrategy adds id to the set of strategies this portfolio tracks.
func (p *Portfolio) RegisterStrategy(id types.StrategyId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategies[id] = struct{}{}
}

// Update handles a position lifecycle notification. The execution
// database already owns the authoritative position record; the portfolio
// only looks the position up and logs the transition, keeping no position
// state of its own.
func (p *Portfolio) Update(event types.PositionEvent) {
	pos, found := p.db.GetPosition(event.PositionID())
	if !found {
		p.logger.Warn("portfolio-update-unknown-position", zap.String("position_id", event.PositionID().String()))
		return
	}

	switch event.(type) {
	case types.PositionOpened:
		p.logger.Info("portfolio-position-opened",
			zap.String("position_id", pos.ID.String()),
			zap.String("symbol", pos.Symbol.String()),
			zap.String("quantity", pos.Quantity.String()))
	case types.PositionClosed:
		p.logger.Info("portfolio-position-closed",
			zap.String("position_id", pos.ID.String()),
			zap.String("realized_pnl", pos.RealizedPnl.String()))
	default:
		p.logger.Debug("portfolio-position-modified",
			zap.String("position_id", pos.ID.String()),
			zap.String("quantity", pos.Quantity.String()))
	}
}

// HandleTransaction folds an account state event into the portfolio's
// per-account, per-currency balance snapshot.
func (p *Portfolio) HandleTransaction(event types.AccountStateEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	balances, ok := p.accounts[event.AccountId]
	if !ok {
		balances = make(map[types.Currency]types.Money)
		p.accounts[event.AccountId] = balances
	}
	balances[event.Currency] = event.CashBalance

	p.logger.Debug("portfolio-account-state",
		zap.String("account_id", event.AccountId.String()),
		zap.String("currency", string(event.Currency)),
		zap.String("cash_balance", event.CashBalance.String()))
}

// GetEquity reports accountID's cash balance summed across every
// currency it holds, collapsed to a float64 by currency-naive addition —
// adequate for the risk gate's single-currency deployments (spec.md's
// execution core runs one account at a time); a multi-currency deployment
// would need an FX conversion layer this module doesn't build.
func (p *Portfolio) GetEquity(ctx context.Context, accountID types.AccountId) (float64, error) {
	p.mu.RLock()
	balances, ok := p.accounts[accountID]
	p.mu.RUnlock()
	if ok {
		var total float64
		for _, m := range balances {
			total += m.Float64()
		}
		return total, nil
	}

	// No account state event has arrived yet; fall back to the
	// execution database's last-known snapshot so the gate has a value
	// to check on its very first tick after startup.
	account, found := p.db.GetAccount(accountID)
	if !found {
		return 0, fmt.Errorf("account %s not found", accountID.String())
	}
	var total float64
	for _, m := range account.Balances {
		total += m.Float64()
	}
	return total, nil
}
