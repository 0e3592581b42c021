// Package engine implements the execution engine: a single-threaded
// cooperative reactor that serializes commands and events from strategies
// and venue clients into one queue, applying them against the execution
// database one at a time. Grounded on the teacher's Executor
// (internal/execution/executor.go): a dedicated goroutine draining a
// channel, metrics recorded at the same call sites, graceful shutdown via
// a WaitGroup — generalized from opportunity-execution to order-command
// and venue-event dispatch.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// RiskGate is the narrow gate the reactor consults before forwarding a new
// order to the venue. internal/riskgate.Gate satisfies this; tests and
// configurations that don't want gating simply leave Config.RiskGate nil.
type RiskGate interface {
	IsEnabled() bool
}

const defaultQueueSize = 256

// Config wires an Engine's dependencies, grounded on the teacher's
// execution.Config shape (mode-independent fields plus a logger and a
// channel-backed input).
type Config struct {
	Logger    *zap.Logger
	Database  execdb.ExecutionDatabase
	Portfolio Portfolio
	RiskGate  RiskGate
	QueueSize int
}

// Engine is the execution core's reactor. It owns exactly one registered
// ExecutionClient and a registry of strategies; per spec, the execution
// database is mutated only from inside the reactor's goroutine.
type Engine struct {
	logger    *zap.Logger
	db        execdb.ExecutionDatabase
	portfolio Portfolio
	riskGate  RiskGate

	mu         sync.RWMutex
	client     ExecutionClient
	strategies map[types.StrategyId]Strategy

	// orderStrategy remembers, for an order the reactor itself submitted
	// (including every leg of a bracket), which strategy it belongs to —
	// the database indexes order->position but has no reason to
	// know about strategy ownership beyond the add_order call, so the
	// reactor keeps this side table to route events back to the strategy
	// that issued the command.
	orderStrategy map[types.OrderId]types.StrategyId

	commands chan Command
	events   chan any

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs an Engine. Call RegisterClient before Start.
func New(cfg *Config) *Engine {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Engine{
		logger:        cfg.Logger,
		db:            cfg.Database,
		portfolio:     cfg.Portfolio,
		riskGate:      cfg.RiskGate,
		strategies:    make(map[types.StrategyId]Strategy),
		orderStrategy: make(map[types.OrderId]types.StrategyId),
		commands:      make(chan Command, queueSize),
		events:        make(chan any, queueSize),
		stop:          make(chan struct{}),
	}
}

// RegisterClient binds the single ExecutionClient the engine forwards
// commands to.
func (e *Engine) RegisterClient(client ExecutionClient) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if client == nil {
		return types.ErrInvalidArgument("client cannot be nil")
	}
	e.client = client
	return nil
}

// RegisterStrategy adds a strategy to the registry. Registering the same
// strategy id twice is a DuplicateEntity error.
func (e *Engine) RegisterStrategy(s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.strategies[s.StrategyID()]; exists {
		return types.ErrDuplicateEntity("strategy already registered", "strategy_id", s.StrategyID().String())
	}
	e.strategies[s.StrategyID()] = s
	if e.portfolio != nil {
		e.portfolio.RegisterStrategy(s.StrategyID())
	}
	return nil
}

// DeregisterStrategy removes a strategy from the registry.
func (e *Engine) DeregisterStrategy(id types.StrategyId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.strategies[id]; !exists {
		return types.ErrUnknownEntity("strategy not registered", "strategy_id", id.String())
	}
	delete(e.strategies, id)
	return nil
}

// RegisteredStrategies returns the currently registered strategy ids.
func (e *Engine) RegisteredStrategies() []types.StrategyId {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]types.StrategyId, 0, len(e.strategies))
	for id := range e.strategies {
		ids = append(ids, id)
	}
	return ids
}

// Start launches the reactor goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()
	if client == nil {
		return types.ErrInvalidArgument("no execution client registered")
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect execution client: %w", err)
	}

	e.logger.Info("engine-starting")
	e.wg.Add(1)
	go e.run(ctx)
	return nil
}

// Close stops the reactor and disconnects the execution client.
func (e *Engine) Close() error {
	close(e.stop)
	e.wg.Wait()

	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()
	if client != nil {
		if err := client.Disconnect(); err != nil {
			return fmt.Errorf("disconnect execution client: %w", err)
		}
	}
	e.logger.Info("engine-closed")
	return nil
}

// ExecuteCommand enqueues a command for the reactor. Safe to call from any
// goroutine.
func (e *Engine) ExecuteCommand(cmd Command) {
	CommandsReceivedTotal.WithLabelValues(commandKind(cmd)).Inc()
	select {
	case e.commands <- cmd:
	case <-e.stop:
	}
}

// HandleEvent enqueues an event for the reactor. This is the callback
// venue clients invoke from their own goroutine to post I/O completions
// back into the engine without touching engine state directly.
func (e *Engine) HandleEvent(event any) {
	EventsReceivedTotal.WithLabelValues(eventKind(event)).Inc()
	select {
	case e.events <- event:
	case <-e.stop:
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			e.dispatch(cmd)
		case event := <-e.events:
			e.route(event)
		}
	}
}

// dispatch handles one command to completion; no suspension points: the
// client call below hands I/O off to the client's own goroutine and
// returns immediately (per spec §5, the client converts completion into a
// posted event via HandleEvent).
func (e *Engine) dispatch(cmd Command) {
	e.mu.RLock()
	client := e.client
	e.mu.RUnlock()

	switch c := cmd.(type) {
	case SubmitOrder:
		if e.riskGate != nil && !e.riskGate.IsEnabled() {
			e.rejectOrder(c.Order, c.StrategyId, c.PositionId, "risk_gate_disabled")
			return
		}
		e.orderStrategy[c.Order.ID] = c.StrategyId
		if err := e.db.AddOrder(c.Order, c.StrategyId, c.PositionId); err != nil {
			e.logger.Error("submit-order-add-failed", zap.String("order_id", c.Order.ID.String()), zap.Error(err))
			return
		}
		if err := client.SubmitOrder(c); err != nil {
			e.logger.Error("submit-order-client-failed", zap.String("order_id", c.Order.ID.String()), zap.Error(err))
		}
	case SubmitBracketOrder:
		if e.riskGate != nil && !e.riskGate.IsEnabled() {
			if c.Entry != nil {
				e.rejectOrder(c.Entry, c.StrategyId, c.PositionId, "risk_gate_disabled")
			}
			return
		}
		for _, leg := range []*order.Order{c.Entry, c.StopLoss, c.TakeProfit} {
			if leg == nil {
				continue
			}
			e.orderStrategy[leg.ID] = c.StrategyId
			if err := e.db.AddOrder(leg, c.StrategyId, c.PositionId); err != nil {
				e.logger.Error("submit-bracket-add-failed", zap.String("order_id", leg.ID.String()), zap.Error(err))
				return
			}
		}
		if err := client.SubmitBracketOrder(c); err != nil {
			e.logger.Error("submit-bracket-client-failed", zap.Error(err))
		}
	case ModifyOrder:
		if err := client.ModifyOrder(c); err != nil {
			e.logger.Error("modify-order-client-failed", zap.String("order_id", c.OrderId.String()), zap.Error(err))
		}
	case CancelOrder:
		if err := client.CancelOrder(c); err != nil {
			e.logger.Error("cancel-order-client-failed", zap.String("order_id", c.OrderId.String()), zap.Error(err))
		}
	case AccountInquiry:
		if err := client.AccountInquiry(c); err != nil {
			e.logger.Error("account-inquiry-client-failed", zap.String("account_id", c.AccountId.String()), zap.Error(err))
		}
	}
}

// rejectOrder indexes the order and immediately applies a rejection,
// without ever forwarding it to the venue client. Used when the risk gate
// blocks new submissions (spec's command dispatch still needs a record of
// what was attempted and why it didn't go out).
func (e *Engine) rejectOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId, reason string) {
	e.orderStrategy[o.ID] = strategyID
	if err := e.db.AddOrder(o, strategyID, positionID); err != nil {
		e.logger.Error("reject-order-add-failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	rejected := types.NewOrderRejected(o.ID, reason, time.Now())
	if err := o.Apply(rejected); err != nil {
		e.logger.Error("reject-order-apply-failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	if err := e.db.UpdateOrder(o); err != nil {
		e.logger.Error("reject-order-update-failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	e.logger.Warn("order-rejected-by-risk-gate", zap.String("order_id", o.ID.String()), zap.String("reason", reason))
	e.notifyStrategy(o.ID, rejected)
}

// route handles one event to completion, per the three event families in
// spec §4.5.
func (e *Engine) route(event any) {
	switch ev := event.(type) {
	case types.OrderEvent:
		e.routeOrderEvent(ev)
	case types.AccountStateEvent:
		e.routeAccountEvent(ev)
	case types.PositionEvent:
		e.routePositionEvent(ev)
	default:
		e.logger.Warn("unrecognized-event-dropped")
	}
}

func (e *Engine) routeOrderEvent(ev types.OrderEvent) {
	o, found := e.db.GetOrder(ev.OrderID())
	if !found {
		// Out-of-order recovery (spec §4.5/§7): the venue may replay an
		// event for an order the reactor never indexed (restart, stale
		// replay). Log and drop rather than reconstructing state.
		e.logger.Warn("order-event-unknown-order-dropped", zap.String("order_id", ev.OrderID().String()))
		EventsDroppedTotal.WithLabelValues("unknown_order").Inc()
		return
	}
	if err := o.Apply(ev); err != nil {
		e.logger.Error("order-apply-failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}
	if err := e.db.UpdateOrder(o); err != nil {
		e.logger.Error("order-update-failed", zap.String("order_id", o.ID.String()), zap.Error(err))
		return
	}

	if fill, ok := fillFromEvent(ev); ok {
		e.applyFill(o, fill, ev.OccurredAt())
	}
	e.notifyStrategy(o.ID, ev)
}

func fillFromEvent(ev types.OrderEvent) (types.Fill, bool) {
	switch e := ev.(type) {
	case types.OrderFilled:
		return e.Fill, true
	case types.OrderPartiallyFilled:
		return e.Fill, true
	default:
		return types.Fill{}, false
	}
}

// applyFill implements spec §4.5 event-routing step 1: locate the
// position via the order->position index, create it if this is the first
// fill for that index, otherwise apply the fill to the existing position
// and emit PositionModified (plus PositionClosed if the fill brought it
// flat). The strategy and portfolio are notified in every branch.
func (e *Engine) applyFill(o *order.Order, fill types.Fill, ts time.Time) {
	strategyID, ok := e.orderStrategy[o.ID]
	if !ok {
		e.logger.Error("fill-with-unknown-strategy-owner", zap.String("order_id", o.ID.String()))
		return
	}

	posID, ok := e.db.GetPositionId(o.ID)
	if !ok {
		e.logger.Error("fill-order-not-indexed-to-position", zap.String("order_id", o.ID.String()))
		return
	}

	if !e.db.PositionExists(posID) {
		pos := position.New(posID, o.ID, fill, ts)
		if err := e.db.AddPosition(pos, strategyID); err != nil {
			e.logger.Error("position-add-failed", zap.String("position_id", posID.String()), zap.Error(err))
			return
		}
		e.emitPositionEvent(types.NewPositionOpened(posID, strategyID, ts), strategyID)
		PositionsOpenedTotal.Inc()
		return
	}

	pos, found := e.db.GetPosition(posID)
	if !found {
		e.logger.Error("position-exists-but-not-found", zap.String("position_id", posID.String()))
		return
	}
	pos.Apply(fill, o.ID, ts)
	if err := e.db.UpdatePosition(pos); err != nil {
		e.logger.Error("position-update-failed", zap.String("position_id", posID.String()), zap.Error(err))
		return
	}
	e.emitPositionEvent(types.NewPositionModified(posID, strategyID, ts), strategyID)
	if pos.IsFlat() {
		e.emitPositionEvent(types.NewPositionClosed(posID, strategyID, ts), strategyID)
		PositionsClosedTotal.Inc()
	}
}

// emitPositionEvent notifies the portfolio and the owning strategy of a
// position lifecycle event (spec §4.5 step 1.d, §6 Portfolio.update).
func (e *Engine) emitPositionEvent(ev types.PositionEvent, strategyID types.StrategyId) {
	if e.portfolio != nil {
		e.portfolio.Update(ev)
	}
	e.mu.RLock()
	s, ok := e.strategies[strategyID]
	e.mu.RUnlock()
	if ok {
		s.HandleEvent(ev)
	}
}

func (e *Engine) notifyStrategy(orderID types.OrderId, ev types.OrderEvent) {
	strategyID, ok := e.orderStrategy[orderID]
	if !ok {
		return
	}
	e.mu.RLock()
	s, ok := e.strategies[strategyID]
	e.mu.RUnlock()
	if ok {
		s.HandleEvent(ev)
	}
}

// routeAccountEvent upserts the account snapshot and notifies the
// portfolio (spec §4.5 step 2).
func (e *Engine) routeAccountEvent(ev types.AccountStateEvent) {
	acc, found := e.db.GetAccount(ev.AccountId)
	if !found {
		acc = execdb.NewAccount(ev.AccountId)
		acc.Apply(ev)
		if err := e.db.AddAccount(acc); err != nil {
			e.logger.Error("account-add-failed", zap.String("account_id", ev.AccountId.String()), zap.Error(err))
			return
		}
	} else {
		acc.Apply(ev)
		if err := e.db.UpdateAccount(acc); err != nil {
			e.logger.Error("account-update-failed", zap.String("account_id", ev.AccountId.String()), zap.Error(err))
			return
		}
	}
	if e.portfolio != nil {
		e.portfolio.HandleTransaction(ev)
	}
}

// routePositionEvent handles a PositionEvent posted directly onto the
// reactor (spec §4.5 step 3): route to the owning strategy, which the
// event itself names.
func (e *Engine) routePositionEvent(ev types.PositionEvent) {
	var strategyID types.StrategyId
	switch p := ev.(type) {
	case types.PositionOpened:
		strategyID = p.StrategyId
	case types.PositionModified:
		strategyID = p.StrategyId
	case types.PositionClosed:
		strategyID = p.StrategyId
	default:
		e.logger.Warn("unrecognized-position-event-dropped")
		return
	}
	if e.portfolio != nil {
		e.portfolio.Update(ev)
	}
	e.mu.RLock()
	s, ok := e.strategies[strategyID]
	e.mu.RUnlock()
	if ok {
		s.HandleEvent(ev)
	}
}

// IsStrategyFlat reports whether every position belonging to strategyID
// is flat (spec §4.5).
func (e *Engine) IsStrategyFlat(strategyID types.StrategyId) bool {
	for _, p := range e.db.GetPositions(&strategyID) {
		if !p.IsFlat() {
			return false
		}
	}
	return true
}

// IsFlat reports whether every registered strategy is flat.
func (e *Engine) IsFlat() bool {
	for _, id := range e.RegisteredStrategies() {
		if !e.IsStrategyFlat(id) {
			return false
		}
	}
	return true
}

// Reset clears the execution database's in-process cache and the
// reactor's order->strategy side table. It does not purge durable state
// (that is flush()'s job on the database).
func (e *Engine) Reset() error {
	e.orderStrategy = make(map[types.OrderId]types.StrategyId)
	return e.db.Reset()
}

func commandKind(cmd Command) string {
	switch cmd.(type) {
	case SubmitOrder:
		return "submit_order"
	case SubmitBracketOrder:
		return "submit_bracket_order"
	case ModifyOrder:
		return "modify_order"
	case CancelOrder:
		return "cancel_order"
	case AccountInquiry:
		return "account_inquiry"
	default:
		return "unknown"
	}
}

func eventKind(event any) string {
	switch event.(type) {
	case types.OrderFilled:
		return "order_filled"
	case types.OrderPartiallyFilled:
		return "order_partially_filled"
	case types.OrderEvent:
		return "order_event"
	case types.AccountStateEvent:
		return "account_state"
	case types.PositionEvent:
		return "position_event"
	default:
		return "unknown"
	}
}
