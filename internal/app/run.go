package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coriolis-trading/execore/internal/engine"
	"github.com/coriolis-trading/execore/pkg/types"
)

// Engine returns the underlying execution engine, so a CLI command or a
// test harness can register strategies before or after Run starts.
func (a *App) Engine() *engine.Engine { return a.engine }

// TraderID returns the trader identity this process runs as.
func (a *App) TraderID() types.TraderId { return a.traderID }

// Run starts every component and blocks until a shutdown signal arrives
// or one of the components fails. Grounded on the teacher's
// run.go/startComponents split. A start error from any component is
// returned directly; after startup, the HTTP server runs under an errgroup
// whose failure cancels the root context and tears the whole process down
// instead of running degraded.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("trader", a.traderID.String()),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("transport-mode", a.cfg.TransportMode),
		zap.String("log-level", a.cfg.LogLevel))

	if err := a.startComponents(); err != nil {
		return err
	}

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready", zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	g, ctx := errgroup.WithContext(a.ctx)

	g.Go(func() error {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if err := a.barManager.Start(ctx); err != nil {
		return fmt.Errorf("start bar manager: %w", err)
	}

	if err := a.marketData.Start(ctx); err != nil {
		return fmt.Errorf("start market data adapter: %w", err)
	}

	if wsBus, ok := a.bus.(interface{ Start() error }); ok {
		if err := wsBus.Start(); err != nil {
			return fmt.Errorf("start transport bus: %w", err)
		}
	}

	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	if a.riskGate != nil {
		a.riskGate.Start(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := g.Wait(); err != nil {
			a.logger.Error("component-failed", zap.Error(err))
			a.cancel()
		}
	}()

	return nil
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
