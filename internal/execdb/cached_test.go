package execdb

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

func TestCachedDatabaseGetOrderFindsAddedOrder(t *testing.T) {
	inner := NewMemoryDatabase()
	cached, err := NewCachedDatabase(inner, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCachedDatabase: %v", err)
	}
	t.Cleanup(func() { _ = cached.Close() })

	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := cached.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	got, found := cached.GetOrder(o.ID)
	if !found {
		t.Fatal("expected get_order to find the order")
	}
	if got.ID != o.ID {
		t.Fatalf("got order id %v, want %v", got.ID, o.ID)
	}
}

func TestCachedDatabaseInvalidatesOnUpdate(t *testing.T) {
	inner := NewMemoryDatabase()
	cached, err := NewCachedDatabase(inner, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCachedDatabase: %v", err)
	}
	t.Cleanup(func() { _ = cached.Close() })

	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := cached.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}
	if _, found := cached.GetOrder(o.ID); !found {
		t.Fatal("expected initial read to populate the cache")
	}

	if err := o.Apply(types.NewOrderSubmitted(o.ID, time.Now())); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := cached.UpdateOrder(o); err != nil {
		t.Fatalf("update_order: %v", err)
	}

	got, found := cached.GetOrder(o.ID)
	if !found {
		t.Fatal("expected get_order after update to find the order")
	}
	if got.Status != types.Submitted {
		t.Fatalf("expected cache to reflect the post-update status, got %v", got.Status)
	}
}

func TestCachedDatabaseResetClearsCacheAndInner(t *testing.T) {
	inner := NewMemoryDatabase()
	cached, err := NewCachedDatabase(inner, time.Minute, zap.NewNop())
	if err != nil {
		t.Fatalf("NewCachedDatabase: %v", err)
	}
	t.Cleanup(func() { _ = cached.Close() })

	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := cached.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}
	if _, found := cached.GetOrder(o.ID); !found {
		t.Fatal("expected initial read to populate the cache")
	}

	if err := cached.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, found := cached.GetOrder(o.ID); found {
		t.Fatal("expected order to be gone after reset")
	}
}
