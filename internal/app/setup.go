package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/bar"
	"github.com/coriolis-trading/execore/internal/engine"
	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/internal/portfolio"
	"github.com/coriolis-trading/execore/internal/riskgate"
	"github.com/coriolis-trading/execore/pkg/config"
	"github.com/coriolis-trading/execore/pkg/healthprobe"
	"github.com/coriolis-trading/execore/pkg/httpserver"
	"github.com/coriolis-trading/execore/pkg/transport"
	"github.com/coriolis-trading/execore/pkg/types"
)

// New wires every component named in cfg into a not-yet-started App.
// Grounded on the teacher's internal/app/setup.go: one function building
// the full dependency graph bottom-up (database -> portfolio -> risk gate
// -> engine -> client -> bar manager -> HTTP server), failing fast on the
// first construction error.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	traderID, err := types.NewTraderId(cfg.TraderName, types.IdTag(cfg.TraderTag))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mint trader id: %w", err)
	}

	accountID := opts.AccountId
	if accountID == (types.AccountId{}) {
		var err error
		accountID, err = types.NewAccountId("SIM", cfg.TraderTag, types.AccountSimulated)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("mint default account id: %w", err)
		}
	}

	db, err := buildDatabase(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build database: %w", err)
	}

	pf := portfolio.New(db, logger)

	bus, err := buildBus(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build transport bus: %w", err)
	}

	var gate *riskgate.Gate
	if cfg.RiskGateEnabled {
		gate, err = riskgate.New(&riskgate.Config{
			AccountId:       accountID,
			CheckInterval:   cfg.RiskGateCheckInterval,
			EquityFetcher:   pf,
			Logger:          logger,
			TradeMultiplier: cfg.RiskGateTradeMultiplier,
			MinAbsolute:     cfg.RiskGateMinAbsolute,
			HysteresisRatio: cfg.RiskGateHysteresisRatio,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build risk gate: %w", err)
		}
	}

	eng := engine.New(&engine.Config{
		Logger:    logger,
		Database:  db,
		Portfolio: pf,
		RiskGate:  gateOrNil(gate),
		QueueSize: cfg.EngineQueueSize,
	})

	client := engine.NewSimulatedExecutionClient(eng, nil, cfg.SimulatedFillDelay, logger)
	if err := eng.RegisterClient(client); err != nil {
		cancel()
		return nil, fmt.Errorf("register execution client: %w", err)
	}

	marketData := newMarketDataAdapter(logger, bus, nil)

	barManager := bar.New(&bar.Config{
		Logger:   logger,
		TickFeed: marketData.TickFeed(),
	})

	healthChecker := healthprobe.New()
	httpSrv := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Database:      db,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpSrv,
		db:            db,
		bus:           bus,
		barManager:    barManager,
		riskGate:      gate,
		engine:        eng,
		client:        client,
		marketData:    marketData,
		traderID:      traderID,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func gateOrNil(g *riskgate.Gate) engine.RiskGate {
	if g == nil {
		return nil
	}
	return g
}

func buildDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (execdb.ExecutionDatabase, error) {
	var (
		db  execdb.ExecutionDatabase
		err error
	)

	switch cfg.StorageMode {
	case "postgres":
		db, err = execdb.NewPostgresDatabase(ctx, &execdb.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	case "sqlite":
		db, err = execdb.NewSQLiteDatabase(ctx, &execdb.SQLiteConfig{
			Path:   cfg.SQLitePath,
			Logger: logger,
		})
	default:
		db = execdb.NewMemoryDatabase()
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		cached, err := execdb.NewCachedDatabase(db, 5*time.Second, logger)
		if err != nil {
			return nil, fmt.Errorf("wrap cached database: %w", err)
		}
		return cached, nil
	}

	return db, nil
}

func buildBus(cfg *config.Config, logger *zap.Logger) (transport.Bus, error) {
	if cfg.TransportMode != "websocket" {
		return transport.NewChannelBus(logger), nil
	}

	bus := transport.NewWSBus(transport.PoolConfig{
		Size:                  cfg.WSPoolSize,
		URL:                   cfg.WSListenAddr,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
	return bus, nil
}
