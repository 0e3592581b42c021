package execdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// SQLiteConfig configures the file-backed, CGO-free SQLite execution
// database used by the CLI's single-node deployment mode.
type SQLiteConfig struct {
	Path   string
	Logger *zap.Logger
}

// SQLiteDatabase is a second durable ExecutionDatabase backend, structured
// exactly like PostgresDatabase (write-through cache + durable table),
// proving the reset/flush contract generalizes across unrelated SQL
// engines rather than being Postgres-specific.
type SQLiteDatabase struct {
	db     *sql.DB
	cache  *MemoryDatabase
	logger *zap.Logger
}

// NewSQLiteDatabase opens (creating if necessary) the SQLite file at
// cfg.Path and ensures the execution-core tables exist.
func NewSQLiteDatabase(ctx context.Context, cfg *SQLiteConfig) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	sdb := &SQLiteDatabase{db: db, cache: NewMemoryDatabase(), logger: cfg.Logger}
	if err := sdb.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cfg.Logger.Info("execdb-sqlite-connected", zap.String("path", cfg.Path))
	return sdb, nil
}

func (s *SQLiteDatabase) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS execore_orders (
			id TEXT PRIMARY KEY, strategy_id TEXT NOT NULL, position_id TEXT NOT NULL,
			status TEXT NOT NULL, updated_at DATETIME NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execore_positions (
			id TEXT PRIMARY KEY, strategy_id TEXT NOT NULL, is_open INTEGER NOT NULL,
			updated_at DATETIME NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execore_accounts (
			id TEXT PRIMARY KEY, updated_at DATETIME NOT NULL, payload BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteDatabase) AddOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	if err := s.cache.AddOrder(o, strategyID, positionID); err != nil {
		return err
	}
	return s.persistOrder(o, strategyID, positionID)
}

func (s *SQLiteDatabase) persistOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	timer := prometheus.NewTimer(PersistDurationSeconds.WithLabelValues("sqlite", "order"))
	defer timer.ObserveDuration()

	rec, err := encodeOrder(o, strategyID, positionID, time.Now())
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO execore_orders (id, strategy_id, position_id, status, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at, payload = excluded.payload`,
		rec.ID, rec.StrategyID, rec.PositionID, rec.Status, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) AddPosition(pos *position.Position, strategyID types.StrategyId) error {
	if err := s.cache.AddPosition(pos, strategyID); err != nil {
		return err
	}
	return s.persistPosition(pos, strategyID)
}

func (s *SQLiteDatabase) persistPosition(pos *position.Position, strategyID types.StrategyId) error {
	timer := prometheus.NewTimer(PersistDurationSeconds.WithLabelValues("sqlite", "position"))
	defer timer.ObserveDuration()

	rec, err := encodePosition(pos, strategyID, time.Now())
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO execore_positions (id, strategy_id, is_open, updated_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET is_open = excluded.is_open, updated_at = excluded.updated_at, payload = excluded.payload`,
		rec.ID, rec.StrategyID, rec.IsOpen, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateOrder(o *order.Order) error {
	if err := s.cache.UpdateOrder(o); err != nil {
		return err
	}
	strategyID := s.cache.orderStrategy[o.ID]
	positionID := s.cache.orderPosition[o.ID]
	return s.persistOrder(o, strategyID, positionID)
}

func (s *SQLiteDatabase) UpdatePosition(pos *position.Position) error {
	if err := s.cache.UpdatePosition(pos); err != nil {
		return err
	}
	strategyID := s.cache.positionStrategy[pos.ID]
	return s.persistPosition(pos, strategyID)
}

func (s *SQLiteDatabase) AddAccount(a *Account) error    { return s.upsertAccount(a) }
func (s *SQLiteDatabase) UpdateAccount(a *Account) error { return s.upsertAccount(a) }

func (s *SQLiteDatabase) upsertAccount(a *Account) error {
	_ = s.cache.AddAccount(a)
	rec, err := encodeAccount(a, time.Now())
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO execore_accounts (id, updated_at, payload) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, payload = excluded.payload`,
		rec.ID, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateStrategy(st Strategy) error         { return s.cache.UpdateStrategy(st) }
func (s *SQLiteDatabase) DeleteStrategy(id types.StrategyId) error { return s.cache.DeleteStrategy(id) }
func (s *SQLiteDatabase) CheckResiduals() []string                 { return s.cache.CheckResiduals() }

// Reset clears only the in-process cache, leaving the SQLite file intact.
func (s *SQLiteDatabase) Reset() error { return s.cache.Reset() }

// Flush deletes every row from the SQLite tables and clears the cache.
func (s *SQLiteDatabase) Flush() error {
	for _, table := range []string{"execore_orders", "execore_positions", "execore_accounts"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return s.cache.Reset()
}

func (s *SQLiteDatabase) OrderExists(id types.OrderId) bool               { return s.cache.OrderExists(id) }
func (s *SQLiteDatabase) GetOrder(id types.OrderId) (*order.Order, bool) { return s.cache.GetOrder(id) }
func (s *SQLiteDatabase) GetOrderIds(strategyID *types.StrategyId) []types.OrderId {
	return s.cache.GetOrderIds(strategyID)
}
func (s *SQLiteDatabase) GetOrders(strategyID *types.StrategyId) []*order.Order {
	return s.cache.GetOrders(strategyID)
}
func (s *SQLiteDatabase) GetOrdersWorking(strategyID *types.StrategyId) []*order.Order {
	return s.cache.GetOrdersWorking(strategyID)
}
func (s *SQLiteDatabase) GetOrdersCompleted(strategyID *types.StrategyId) []*order.Order {
	return s.cache.GetOrdersCompleted(strategyID)
}

func (s *SQLiteDatabase) PositionExists(id types.PositionId) bool { return s.cache.PositionExists(id) }
func (s *SQLiteDatabase) PositionExistsForOrder(orderID types.OrderId) bool {
	return s.cache.PositionExistsForOrder(orderID)
}
func (s *SQLiteDatabase) PositionIndexedForOrder(orderID types.OrderId) bool {
	return s.cache.PositionIndexedForOrder(orderID)
}
func (s *SQLiteDatabase) GetPosition(id types.PositionId) (*position.Position, bool) {
	return s.cache.GetPosition(id)
}
func (s *SQLiteDatabase) GetPositionForOrder(orderID types.OrderId) (*position.Position, bool) {
	return s.cache.GetPositionForOrder(orderID)
}
func (s *SQLiteDatabase) GetPositionId(orderID types.OrderId) (types.PositionId, bool) {
	return s.cache.GetPositionId(orderID)
}
func (s *SQLiteDatabase) GetPositions(strategyID *types.StrategyId) []*position.Position {
	return s.cache.GetPositions(strategyID)
}
func (s *SQLiteDatabase) GetPositionsOpen(strategyID *types.StrategyId) []*position.Position {
	return s.cache.GetPositionsOpen(strategyID)
}
func (s *SQLiteDatabase) GetPositionsClosed(strategyID *types.StrategyId) []*position.Position {
	return s.cache.GetPositionsClosed(strategyID)
}
func (s *SQLiteDatabase) GetPositionIds(strategyID *types.StrategyId) []types.PositionId {
	return s.cache.GetPositionIds(strategyID)
}
func (s *SQLiteDatabase) IsPositionOpen(id types.PositionId) bool   { return s.cache.IsPositionOpen(id) }
func (s *SQLiteDatabase) IsPositionClosed(id types.PositionId) bool { return s.cache.IsPositionClosed(id) }

func (s *SQLiteDatabase) CountOrdersTotal(strategyID *types.StrategyId) int {
	return s.cache.CountOrdersTotal(strategyID)
}
func (s *SQLiteDatabase) CountOrdersWorking(strategyID *types.StrategyId) int {
	return s.cache.CountOrdersWorking(strategyID)
}
func (s *SQLiteDatabase) CountOrdersCompleted(strategyID *types.StrategyId) int {
	return s.cache.CountOrdersCompleted(strategyID)
}
func (s *SQLiteDatabase) CountPositionsTotal(strategyID *types.StrategyId) int {
	return s.cache.CountPositionsTotal(strategyID)
}
func (s *SQLiteDatabase) CountPositionsOpen(strategyID *types.StrategyId) int {
	return s.cache.CountPositionsOpen(strategyID)
}
func (s *SQLiteDatabase) CountPositionsClosed(strategyID *types.StrategyId) int {
	return s.cache.CountPositionsClosed(strategyID)
}

func (s *SQLiteDatabase) GetStrategyIds() []types.StrategyId { return s.cache.GetStrategyIds() }

func (s *SQLiteDatabase) GetAccount(id types.AccountId) (*Account, bool) { return s.cache.GetAccount(id) }

// Close closes the underlying SQLite file handle.
func (s *SQLiteDatabase) Close() error {
	s.logger.Info("execdb-sqlite-closing")
	return s.db.Close()
}

var _ ExecutionDatabase = (*SQLiteDatabase)(nil)
