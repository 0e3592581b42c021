package execdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

func newTestSQLiteDatabase(t *testing.T) *SQLiteDatabase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "execore.db")
	db, err := NewSQLiteDatabase(context.Background(), &SQLiteConfig{Path: path, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("NewSQLiteDatabase: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteAddOrderPersistsAndCaches(t *testing.T) {
	db := newTestSQLiteDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")

	if err := db.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}
	if !db.OrderExists(o.ID) {
		t.Fatal("expected order_exists = true via cache")
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM execore_orders WHERE id = ?", o.ID.String()).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 persisted row, got %d", count)
	}
}

func TestSQLiteResetLeavesTableIntact(t *testing.T) {
	db := newTestSQLiteDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := db.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	if err := db.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if db.OrderExists(o.ID) {
		t.Fatal("expected cache cleared after reset")
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM execore_orders WHERE id = ?", o.ID.String()).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatal("reset must not remove durable rows")
	}
}

func TestSQLiteFlushTruncatesAndClearsCache(t *testing.T) {
	db := newTestSQLiteDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := db.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	if err := db.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if db.OrderExists(o.ID) {
		t.Fatal("expected cache cleared after flush")
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM execore_orders").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 0 {
		t.Fatal("expected table truncated after flush")
	}
}

func TestSQLiteUpdateOrderRoundTripsThroughPayload(t *testing.T) {
	db := newTestSQLiteDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")
	if err := db.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	if err := o.Apply(types.NewOrderSubmitted(o.ID, time.Now())); err != nil {
		t.Fatalf("apply submitted: %v", err)
	}
	if err := db.UpdateOrder(o); err != nil {
		t.Fatalf("update_order: %v", err)
	}

	var payload []byte
	if err := db.db.QueryRow("SELECT payload FROM execore_orders WHERE id = ?", o.ID.String()).Scan(&payload); err != nil {
		t.Fatalf("query: %v", err)
	}
	decoded, err := decodeOrder(payload)
	if err != nil {
		t.Fatalf("decodeOrder: %v", err)
	}
	if decoded.Status != o.Status {
		t.Fatalf("decoded status = %v, want %v", decoded.Status, o.Status)
	}
}
