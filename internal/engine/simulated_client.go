package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/pkg/types"
)

// SimulatedExecutionClient is a reference ExecutionClient for tests and
// the CLI's paper-trading mode. It echoes every submitted order through
// Submitted->Accepted->Working->Filled on its own goroutine, posting each
// event back through the registered Engine's HandleEvent — exercising the
// reactor's ordering guarantees exactly as a real venue adapter would.
// Modeled on the teacher's paper/live executor split
// (internal/execution/executor.go): the client owns no engine state and
// never calls engine methods except HandleEvent.
type SimulatedExecutionClient struct {
	logger *zap.Logger
	engine *Engine
	fill   SimulatedFillPolicy
	delay  time.Duration

	mu        sync.Mutex
	connected bool
	wg        sync.WaitGroup
}

// SimulatedFillPolicy decides the fill price/currency for a simulated
// order. Tests can inject a fixed policy; the default marks every order
// filled at its own limit price (or a zero price for market orders,
// callers of NewSimulatedExecutionClient should supply a real quote
// source for anything beyond smoke tests).
type SimulatedFillPolicy func(o *order.Order) (types.Price, types.Currency)

var _ ExecutionClient = (*SimulatedExecutionClient)(nil)

// NewSimulatedExecutionClient builds a simulated client that posts events
// back to engine after delay (zero is valid: events are still posted from
// the client's own goroutine, just without sleeping first).
func NewSimulatedExecutionClient(engine *Engine, fill SimulatedFillPolicy, delay time.Duration, logger *zap.Logger) *SimulatedExecutionClient {
	if fill == nil {
		fill = func(o *order.Order) (types.Price, types.Currency) { return o.Price, "USD" }
	}
	return &SimulatedExecutionClient{logger: logger, engine: engine, fill: fill, delay: delay}
}

func (c *SimulatedExecutionClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.logger.Info("simulated-client-connected")
	return nil
}

func (c *SimulatedExecutionClient) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.wg.Wait()
	c.logger.Info("simulated-client-disconnected")
	return nil
}

func (c *SimulatedExecutionClient) AccountInquiry(cmd AccountInquiry) error {
	c.post(func() {
		c.engine.HandleEvent(types.AccountStateEvent{
			AccountId:   cmd.AccountId,
			Currency:    "USD",
			CashBalance: types.ZeroMoney("USD"),
			Margin:      types.ZeroMoney("USD"),
			RealizedPnl: types.ZeroMoney("USD"),
			Timestamp:   time.Now(),
		})
	})
	return nil
}

func (c *SimulatedExecutionClient) SubmitOrder(cmd SubmitOrder) error {
	c.post(func() { c.fillLifecycle(cmd.Order) })
	return nil
}

func (c *SimulatedExecutionClient) SubmitBracketOrder(cmd SubmitBracketOrder) error {
	c.post(func() {
		if cmd.Entry != nil {
			c.fillLifecycle(cmd.Entry)
		}
		// Protective legs stay Working until a later price move would
		// trigger them; a simulated client with no market-data feed has
		// no signal to trigger them on, so it only acks them.
		for _, leg := range []*order.Order{cmd.StopLoss, cmd.TakeProfit} {
			if leg == nil {
				continue
			}
			c.engine.HandleEvent(types.NewOrderSubmitted(leg.ID, time.Now()))
			c.engine.HandleEvent(types.NewOrderAccepted(leg.ID, time.Now()))
			c.engine.HandleEvent(types.NewOrderWorking(leg.ID, time.Now()))
		}
	})
	return nil
}

func (c *SimulatedExecutionClient) ModifyOrder(cmd ModifyOrder) error {
	c.post(func() { c.engine.HandleEvent(types.NewOrderWorking(cmd.OrderId, time.Now())) })
	return nil
}

func (c *SimulatedExecutionClient) CancelOrder(cmd CancelOrder) error {
	c.post(func() { c.engine.HandleEvent(types.NewOrderCancelled(cmd.OrderId, time.Now())) })
	return nil
}

// fillLifecycle echoes Submitted->Accepted->Working->Filled for a single
// order on the client's own goroutine.
func (c *SimulatedExecutionClient) fillLifecycle(o *order.Order) {
	now := time.Now()
	c.engine.HandleEvent(types.NewOrderSubmitted(o.ID, now))
	c.engine.HandleEvent(types.NewOrderAccepted(o.ID, now))
	c.engine.HandleEvent(types.NewOrderWorking(o.ID, now))

	price, currency := c.fill(o)
	execID, err := types.NewExecutionId(o.ID.Execution())
	if err != nil {
		c.logger.Error("simulated-client-execution-id-failed", zap.Error(err))
		return
	}
	fill := types.Fill{
		ExecutionId:      execID,
		PositionIdBroker: "",
		Symbol:           o.Symbol,
		Side:             o.Side,
		FillQuantity:     o.Quantity,
		Price:            price,
		Currency:         currency,
		Timestamp:        now,
	}
	c.engine.HandleEvent(types.NewOrderFilled(o.ID, fill, o.Quantity, price, now))
}

// post runs fn on its own goroutine while the client is connected,
// tracked by the client's WaitGroup so Disconnect can drain in-flight
// lifecycles before returning.
func (c *SimulatedExecutionClient) post(fn func()) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if c.delay > 0 {
			time.Sleep(c.delay)
		}
		fn()
	}()
}
