package execdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/order"
	"github.com/coriolis-trading/execore/internal/position"
	"github.com/coriolis-trading/execore/pkg/types"
)

// PostgresConfig configures the Postgres-backed execution database,
// grounded on the teacher's internal/storage.PostgresConfig.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// PostgresDatabase is a durable ExecutionDatabase: every mutation is
// applied to an in-process MemoryDatabase (for the fast query path the
// reactor depends on) and write-through persisted to Postgres. reset()
// only clears the in-process cache; flush() truncates the backing
// tables (and, to keep the cache consistent with durable state, clears
// the cache too).
type PostgresDatabase struct {
	db     *sql.DB
	cache  *MemoryDatabase
	logger *zap.Logger
}

// NewPostgresDatabase opens the Postgres connection and ensures the
// execution-core tables exist.
func NewPostgresDatabase(ctx context.Context, cfg *PostgresConfig) (*PostgresDatabase, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pdb := &PostgresDatabase{db: db, cache: NewMemoryDatabase(), logger: cfg.Logger}
	if err := pdb.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cfg.Logger.Info("execdb-postgres-connected", zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	return pdb, nil
}

func (p *PostgresDatabase) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS execore_orders (
			id TEXT PRIMARY KEY, strategy_id TEXT NOT NULL, position_id TEXT NOT NULL,
			status TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL, payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execore_positions (
			id TEXT PRIMARY KEY, strategy_id TEXT NOT NULL, is_open BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL, payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS execore_accounts (
			id TEXT PRIMARY KEY, updated_at TIMESTAMPTZ NOT NULL, payload JSONB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresDatabase) AddOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	if err := p.cache.AddOrder(o, strategyID, positionID); err != nil {
		return err
	}
	return p.persistOrder(o, strategyID, positionID)
}

func (p *PostgresDatabase) persistOrder(o *order.Order, strategyID types.StrategyId, positionID types.PositionId) error {
	timer := prometheus.NewTimer(PersistDurationSeconds.WithLabelValues("postgres", "order"))
	defer timer.ObserveDuration()

	rec, err := encodeOrder(o, strategyID, positionID, time.Now())
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO execore_orders (id, strategy_id, position_id, status, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = $4, updated_at = $5, payload = $6`,
		rec.ID, rec.StrategyID, rec.PositionID, rec.Status, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) AddPosition(pos *position.Position, strategyID types.StrategyId) error {
	if err := p.cache.AddPosition(pos, strategyID); err != nil {
		return err
	}
	return p.persistPosition(pos, strategyID)
}

func (p *PostgresDatabase) persistPosition(pos *position.Position, strategyID types.StrategyId) error {
	timer := prometheus.NewTimer(PersistDurationSeconds.WithLabelValues("postgres", "position"))
	defer timer.ObserveDuration()

	rec, err := encodePosition(pos, strategyID, time.Now())
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO execore_positions (id, strategy_id, is_open, updated_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET is_open = $3, updated_at = $4, payload = $5`,
		rec.ID, rec.StrategyID, rec.IsOpen, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist position: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateOrder(o *order.Order) error {
	if err := p.cache.UpdateOrder(o); err != nil {
		return err
	}
	strategyID, _ := p.cache.orderStrategy[o.ID]
	positionID, _ := p.cache.orderPosition[o.ID]
	return p.persistOrder(o, strategyID, positionID)
}

func (p *PostgresDatabase) UpdatePosition(pos *position.Position) error {
	if err := p.cache.UpdatePosition(pos); err != nil {
		return err
	}
	strategyID := p.cache.positionStrategy[pos.ID]
	return p.persistPosition(pos, strategyID)
}

func (p *PostgresDatabase) AddAccount(a *Account) error  { return p.upsertAccount(a) }
func (p *PostgresDatabase) UpdateAccount(a *Account) error { return p.upsertAccount(a) }

func (p *PostgresDatabase) upsertAccount(a *Account) error {
	_ = p.cache.AddAccount(a)
	rec, err := encodeAccount(a, time.Now())
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO execore_accounts (id, updated_at, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET updated_at = $2, payload = $3`,
		rec.ID, rec.UpdatedAt, rec.Payload)
	if err != nil {
		return fmt.Errorf("persist account: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateStrategy(s Strategy) error { return p.cache.UpdateStrategy(s) }
func (p *PostgresDatabase) DeleteStrategy(id types.StrategyId) error { return p.cache.DeleteStrategy(id) }
func (p *PostgresDatabase) CheckResiduals() []string                { return p.cache.CheckResiduals() }

// Reset clears only the in-process cache; the durable Postgres tables are
// left intact, per the §4.4 reset/flush contract.
func (p *PostgresDatabase) Reset() error { return p.cache.Reset() }

// Flush truncates the durable tables and clears the cache to match.
func (p *PostgresDatabase) Flush() error {
	for _, table := range []string{"execore_orders", "execore_positions", "execore_accounts"} {
		if _, err := p.db.Exec("TRUNCATE TABLE " + table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return p.cache.Reset()
}

func (p *PostgresDatabase) OrderExists(id types.OrderId) bool { return p.cache.OrderExists(id) }
func (p *PostgresDatabase) GetOrder(id types.OrderId) (*order.Order, bool) { return p.cache.GetOrder(id) }
func (p *PostgresDatabase) GetOrderIds(strategyID *types.StrategyId) []types.OrderId {
	return p.cache.GetOrderIds(strategyID)
}
func (p *PostgresDatabase) GetOrders(strategyID *types.StrategyId) []*order.Order {
	return p.cache.GetOrders(strategyID)
}
func (p *PostgresDatabase) GetOrdersWorking(strategyID *types.StrategyId) []*order.Order {
	return p.cache.GetOrdersWorking(strategyID)
}
func (p *PostgresDatabase) GetOrdersCompleted(strategyID *types.StrategyId) []*order.Order {
	return p.cache.GetOrdersCompleted(strategyID)
}

func (p *PostgresDatabase) PositionExists(id types.PositionId) bool { return p.cache.PositionExists(id) }
func (p *PostgresDatabase) PositionExistsForOrder(orderID types.OrderId) bool {
	return p.cache.PositionExistsForOrder(orderID)
}
func (p *PostgresDatabase) PositionIndexedForOrder(orderID types.OrderId) bool {
	return p.cache.PositionIndexedForOrder(orderID)
}
func (p *PostgresDatabase) GetPosition(id types.PositionId) (*position.Position, bool) {
	return p.cache.GetPosition(id)
}
func (p *PostgresDatabase) GetPositionForOrder(orderID types.OrderId) (*position.Position, bool) {
	return p.cache.GetPositionForOrder(orderID)
}
func (p *PostgresDatabase) GetPositionId(orderID types.OrderId) (types.PositionId, bool) {
	return p.cache.GetPositionId(orderID)
}
func (p *PostgresDatabase) GetPositions(strategyID *types.StrategyId) []*position.Position {
	return p.cache.GetPositions(strategyID)
}
func (p *PostgresDatabase) GetPositionsOpen(strategyID *types.StrategyId) []*position.Position {
	return p.cache.GetPositionsOpen(strategyID)
}
func (p *PostgresDatabase) GetPositionsClosed(strategyID *types.StrategyId) []*position.Position {
	return p.cache.GetPositionsClosed(strategyID)
}
func (p *PostgresDatabase) GetPositionIds(strategyID *types.StrategyId) []types.PositionId {
	return p.cache.GetPositionIds(strategyID)
}
func (p *PostgresDatabase) IsPositionOpen(id types.PositionId) bool   { return p.cache.IsPositionOpen(id) }
func (p *PostgresDatabase) IsPositionClosed(id types.PositionId) bool { return p.cache.IsPositionClosed(id) }

func (p *PostgresDatabase) CountOrdersTotal(strategyID *types.StrategyId) int {
	return p.cache.CountOrdersTotal(strategyID)
}
func (p *PostgresDatabase) CountOrdersWorking(strategyID *types.StrategyId) int {
	return p.cache.CountOrdersWorking(strategyID)
}
func (p *PostgresDatabase) CountOrdersCompleted(strategyID *types.StrategyId) int {
	return p.cache.CountOrdersCompleted(strategyID)
}
func (p *PostgresDatabase) CountPositionsTotal(strategyID *types.StrategyId) int {
	return p.cache.CountPositionsTotal(strategyID)
}
func (p *PostgresDatabase) CountPositionsOpen(strategyID *types.StrategyId) int {
	return p.cache.CountPositionsOpen(strategyID)
}
func (p *PostgresDatabase) CountPositionsClosed(strategyID *types.StrategyId) int {
	return p.cache.CountPositionsClosed(strategyID)
}

func (p *PostgresDatabase) GetStrategyIds() []types.StrategyId { return p.cache.GetStrategyIds() }

func (p *PostgresDatabase) GetAccount(id types.AccountId) (*Account, bool) { return p.cache.GetAccount(id) }

// Close closes the underlying Postgres connection.
func (p *PostgresDatabase) Close() error {
	p.logger.Info("execdb-postgres-closing")
	return p.db.Close()
}

var _ ExecutionDatabase = (*PostgresDatabase)(nil)
