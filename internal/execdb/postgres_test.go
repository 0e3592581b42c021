package execdb

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

func newTestPostgresDatabase(t *testing.T) (*PostgresDatabase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PostgresDatabase{db: db, cache: NewMemoryDatabase(), logger: zap.NewNop()}, mock
}

func TestPostgresAddOrderPersistsAfterCaching(t *testing.T) {
	pdb, mock := newTestPostgresDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")

	mock.ExpectExec("INSERT INTO execore_orders").
		WithArgs(o.ID.String(), s1.String(), posID.String(), string(o.Status), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := pdb.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}
	if !pdb.OrderExists(o.ID) {
		t.Fatal("expected order cached after add")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresAddOrderDoesNotPersistOnCacheRejection(t *testing.T) {
	pdb, mock := newTestPostgresDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")

	mock.ExpectExec("INSERT INTO execore_orders").
		WithArgs(o.ID.String(), s1.String(), posID.String(), string(o.Status), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := pdb.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	// Re-adding the same order must fail in the cache before any SQL runs;
	// no second INSERT expectation is registered, so an unexpected exec
	// would fail this test.
	if err := pdb.AddOrder(o, s1, posID); err == nil {
		t.Fatal("expected duplicate add_order to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresResetLeavesDurableTablesUntouched(t *testing.T) {
	pdb, mock := newTestPostgresDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")

	mock.ExpectExec("INSERT INTO execore_orders").
		WithArgs(o.ID.String(), s1.String(), posID.String(), string(o.Status), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := pdb.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	// No TRUNCATE/DELETE expectation registered: reset must not touch SQL.
	if err := pdb.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if pdb.OrderExists(o.ID) {
		t.Fatal("expected cache cleared after reset")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresFlushTruncatesAllTables(t *testing.T) {
	pdb, mock := newTestPostgresDatabase(t)

	mock.ExpectExec("TRUNCATE TABLE execore_orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("TRUNCATE TABLE execore_positions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("TRUNCATE TABLE execore_accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := pdb.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresUpdateOrderPersistsCurrentStrategyAndPosition(t *testing.T) {
	pdb, mock := newTestPostgresDatabase(t)
	s1 := mustStrategyID(t, "1")
	o := newTestOrder(t, "1")
	posID, _ := types.NewPositionId("P-1")

	mock.ExpectExec("INSERT INTO execore_orders").
		WithArgs(o.ID.String(), s1.String(), posID.String(), string(o.Status), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := pdb.AddOrder(o, s1, posID); err != nil {
		t.Fatalf("add_order: %v", err)
	}

	if err := o.Apply(types.NewOrderSubmitted(o.ID, time.Now())); err != nil {
		t.Fatalf("apply: %v", err)
	}
	mock.ExpectExec("INSERT INTO execore_orders").
		WithArgs(o.ID.String(), s1.String(), posID.String(), string(types.Submitted), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := pdb.UpdateOrder(o); err != nil {
		t.Fatalf("update_order: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
