// Package app wires the execution core's components into one running
// process: the execution database, the reactor engine, the bar manager,
// the data subscription bus, the risk gate, and the reporting HTTP
// server. Grounded on the teacher's internal/app (App struct plus
// setup.go/run.go/shutdown.go split), generalized from a Polymarket
// discovery/execution pipeline to the execution core's component graph.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/internal/bar"
	"github.com/coriolis-trading/execore/internal/engine"
	"github.com/coriolis-trading/execore/internal/execdb"
	"github.com/coriolis-trading/execore/internal/riskgate"
	"github.com/coriolis-trading/execore/pkg/config"
	"github.com/coriolis-trading/execore/pkg/healthprobe"
	"github.com/coriolis-trading/execore/pkg/httpserver"
	"github.com/coriolis-trading/execore/pkg/transport"
	"github.com/coriolis-trading/execore/pkg/types"
)

// App is the application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	db            execdb.ExecutionDatabase
	bus           transport.Bus
	barManager    *bar.Manager
	riskGate      *riskgate.Gate
	engine        *engine.Engine
	client        *engine.SimulatedExecutionClient
	marketData    *marketDataAdapter

	traderID types.TraderId

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	// AccountId is the single account this process tracks equity and
	// fills for. Left empty, a default simulated account is minted.
	AccountId types.AccountId
}
