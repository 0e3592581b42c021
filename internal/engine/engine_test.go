package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/pkg/types"
)

func mustSymbol(t *testing.T) types.Symbol {
	t.Helper()
	sym, err := types.NewSymbol("EUR/USD", "FXCM")
	if err != nil {
		t.Fatalf("NewSymbol: %v", err)
	}
	return sym
}

func mustStrategyID(t *testing.T, tag string) types.StrategyId {
	t.Helper()
	id, err := types.NewStrategyId("SCALPER", types.IdTag(tag))
	if err != nil {
		t.Fatalf("NewStrategyId: %v", err)
	}
	return id
}

func newTestOrder(t *testing.T, idSuffix string) *order.Order {
	t.Helper()
	id, err := types.NewOrderId("O-" + idSuffix)
	if err != nil {
		t.Fatalf("NewOrderId: %v", err)
	}
	o, err := order.New(id, mustSymbol(t), types.Buy, types.Market, types.QuantityFromInt(100),
		types.Price{}, types.Day, time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("order.New: %v", err)
	}
	return o
}

// recordingStrategy captures every event handed to it on a channel so
// tests can wait deterministically for the reactor to finish routing,
// instead of sleeping.
type recordingStrategy struct {
	id     types.StrategyId
	events chan any
}

func newRecordingStrategy(id types.StrategyId) *recordingStrategy {
	return &recordingStrategy{id: id, events: make(chan any, 16)}
}

func (s *recordingStrategy) StrategyID() types.StrategyId { return s.id }
func (s *recordingStrategy) HandleEvent(event any)        { s.events <- event }

func (s *recordingStrategy) waitFor(t *testing.T, want func(any) bool, timeout time.Duration) any {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-s.events:
			if want(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for expected event")
			return nil
		}
	}
}

type recordingPortfolio struct {
	registered []types.StrategyId
	positions  chan types.PositionEvent
}

func newRecordingPortfolio() *recordingPortfolio {
	return &recordingPortfolio{positions: make(chan types.PositionEvent, 16)}
}

func (p *recordingPortfolio) RegisterStrategy(id types.StrategyId) {
	p.registered = append(p.registered, id)
}
func (p *recordingPortfolio) Update(event types.PositionEvent)            { p.positions <- event }
func (p *recordingPortfolio) HandleTransaction(types.AccountStateEvent) {}

func newTestEngine(t *testing.T, portfolio Portfolio) (*Engine, execdb.ExecutionDatabase) {
	t.Helper()
	db := execdb.NewMemoryDatabase()
	eng := New(&Config{
		Logger:    zap.NewNop(),
		Database:  db,
		Portfolio: portfolio,
	})
	client := NewSimulatedExecutionClient(eng, nil, 0, zap.NewNop())
	if err := eng.RegisterClient(client); err != nil {
		t.Fatalf("register_client: %v", err)
	}
	ctx := context.Background()
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng, db
}

func TestEngineSubmitOrderRunsFullLifecycleAndOpensPosition(t *testing.T) {
	portfolio := newRecordingPortfolio()
	eng, db := newTestEngine(t, portfolio)

	strategyID := mustStrategyID(t, "1")
	strategy := newRecordingStrategy(strategyID)
	if err := eng.RegisterStrategy(strategy); err != nil {
		t.Fatalf("register_strategy: %v", err)
	}

	o := newTestOrder(t, "1")
	posID, err := types.NewPositionId("P-1")
	if err != nil {
		t.Fatalf("NewPositionId: %v", err)
	}

	eng.ExecuteCommand(SubmitOrder{Order: o, StrategyId: strategyID, PositionId: posID})

	strategy.waitFor(t, func(ev any) bool {
		_, ok := ev.(types.OrderFilled)
		return ok
	}, 2*time.Second)

	select {
	case ev := <-portfolio.positions:
		if _, ok := ev.(types.PositionOpened); !ok {
			t.Fatalf("expected PositionOpened on portfolio, got %T", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for portfolio position-opened notification")
	}

	if !db.PositionExists(posID) {
		t.Fatal("expected position to exist in the execution database after fill")
	}
	pos, found := db.GetPosition(posID)
	if !found {
		t.Fatal("expected get_position to find the opened position")
	}
	if pos.Quantity.IsZero() {
		t.Fatal("expected opened position to carry nonzero quantity")
	}
}

type fakeRiskGate struct{ enabled bool }

func (g *fakeRiskGate) IsEnabled() bool { return g.enabled }

func TestEngineSubmitOrderRejectedWhenRiskGateDisabled(t *testing.T) {
	db := execdb.NewMemoryDatabase()
	gate := &fakeRiskGate{enabled: false}
	eng := New(&Config{
		Logger:   zap.NewNop(),
		Database: db,
		RiskGate: gate,
	})
	client := NewSimulatedExecutionClient(eng, nil, 0, zap.NewNop())
	if err := eng.RegisterClient(client); err != nil {
		t.Fatalf("register_client: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	strategyID := mustStrategyID(t, "1")
	strategy := newRecordingStrategy(strategyID)
	if err := eng.RegisterStrategy(strategy); err != nil {
		t.Fatalf("register_strategy: %v", err)
	}

	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	eng.ExecuteCommand(SubmitOrder{Order: o, StrategyId: strategyID, PositionId: posID})

	ev := strategy.waitFor(t, func(ev any) bool {
		_, ok := ev.(types.OrderRejected)
		return ok
	}, 2*time.Second)
	rejected := ev.(types.OrderRejected)
	if rejected.Reason != "risk_gate_disabled" {
		t.Fatalf("expected rejection reason risk_gate_disabled, got %q", rejected.Reason)
	}
	if !db.OrderExists(o.ID) {
		t.Fatal("expected rejected order to still be indexed in the database")
	}
}

func TestEngineOrderEventForUnknownOrderIsDroppedNotApplied(t *testing.T) {
	eng, _ := newTestEngine(t, nil)

	unknown, err := types.NewOrderId("O-999")
	if err != nil {
		t.Fatalf("NewOrderId: %v", err)
	}
	// Posted directly, bypassing submit-order, to simulate a stale/replayed
	// venue event for an order the reactor never indexed.
	eng.HandleEvent(types.NewOrderAccepted(unknown, time.Now()))

	// Give the reactor a turn to process and drop the event; there is no
	// success signal to wait on here since nothing should happen.
	time.Sleep(50 * time.Millisecond)
	if eng.db.OrderExists(unknown) {
		t.Fatal("expected unknown order to remain unindexed after a dropped event")
	}
}

func TestEngineIsFlatReflectsStrategyPositions(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	strategyID := mustStrategyID(t, "1")
	strategy := newRecordingStrategy(strategyID)
	if err := eng.RegisterStrategy(strategy); err != nil {
		t.Fatalf("register_strategy: %v", err)
	}

	if !eng.IsFlat() {
		t.Fatal("expected a strategy with no positions to be flat")
	}

	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	eng.ExecuteCommand(SubmitOrder{Order: o, StrategyId: strategyID, PositionId: posID})

	strategy.waitFor(t, func(ev any) bool {
		_, ok := ev.(types.OrderFilled)
		return ok
	}, 2*time.Second)

	// Give the position-open branch time to settle before asserting.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !eng.IsFlat() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected engine to be non-flat after an order opened a position")
}
