package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops every component in reverse dependency order, grounded on
// the teacher's shutdown.go: mark not-ready, cancel the root context,
// close each owned component, log but don't abort on a single failure,
// then wait for every goroutine startComponents launched.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")
	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if err := a.engine.Close(); err != nil {
		a.logger.Error("engine-close-error", zap.Error(err))
	}

	if err := a.barManager.Close(); err != nil {
		a.logger.Error("bar-manager-close-error", zap.Error(err))
	}

	a.marketData.Close()

	if err := a.bus.Close(); err != nil {
		a.logger.Error("transport-bus-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
	return nil
}
