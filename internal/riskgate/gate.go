// Package riskgate implements an equity-based circuit breaker that gates
// new order submission on the execution engine's command dispatch path.
// Adapted from the teacher's internal/circuitbreaker (balance-threshold
// wallet monitor): the same dynamic-threshold, hysteresis-gated state
// machine, rebuilt around account equity pulled from the execution
// database instead of an on-chain wallet balance.
package riskgate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

// EquityFetcher reports an account's current equity as a single float64.
// internal/app wires in portfolio.Portfolio, whose GetEquity sums the
// account's cash balances and adds no unrealized pnl; tests supply a fake.
type EquityFetcher interface {
	GetEquity(ctx context.Context, accountID types.AccountId) (float64, error)
}

// Config wires a Gate's dependencies and thresholds.
type Config struct {
	AccountId       types.AccountId
	CheckInterval   time.Duration
	EquityFetcher   EquityFetcher
	Logger          *zap.Logger
	TradeMultiplier float64 // disable threshold = max(avg notional * multiplier, MinAbsolute)
	MinAbsolute     float64 // floor for the disable threshold
	HysteresisRatio float64 // enable threshold = disable threshold * ratio, ratio >= 1.0
}

// Gate is an equity circuit breaker: it monitors account equity on an
// interval and disables new order submission when equity falls under a
// dynamically computed threshold, re-enabling only once equity recovers
// past a higher threshold (hysteresis) to avoid flapping at the boundary.
type Gate struct {
	enabled atomic.Bool

	accountID       types.AccountId
	checkInterval   time.Duration
	fetcher         EquityFetcher
	logger          *zap.Logger
	tradeMultiplier float64
	minAbsolute     float64
	hysteresisRatio float64

	mu               sync.RWMutex
	lastEquity       float64
	lastCheck        time.Time
	recentNotionals  []float64
	disableThreshold float64
	enableThreshold  float64
}

// Status is a snapshot of the gate's current state, for reporting.
type Status struct {
	Enabled          bool
	LastEquity       float64
	LastCheck        time.Time
	DisableThreshold float64
	EnableThreshold  float64
	AvgNotional      float64
	RecentTradeCount int
}

const recentWindow = 20

// New constructs a Gate, starting enabled with thresholds at MinAbsolute.
func New(cfg *Config) (*Gate, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.EquityFetcher == nil {
		return nil, fmt.Errorf("equity fetcher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("check interval must be positive")
	}
	if cfg.TradeMultiplier <= 0 {
		return nil, fmt.Errorf("trade multiplier must be positive")
	}
	if cfg.MinAbsolute <= 0 {
		return nil, fmt.Errorf("min absolute must be positive")
	}
	if cfg.HysteresisRatio < 1.0 {
		return nil, fmt.Errorf("hysteresis ratio must be >= 1.0")
	}

	g := &Gate{
		accountID:        cfg.AccountId,
		checkInterval:    cfg.CheckInterval,
		fetcher:          cfg.EquityFetcher,
		logger:           cfg.Logger,
		tradeMultiplier:  cfg.TradeMultiplier,
		minAbsolute:      cfg.MinAbsolute,
		hysteresisRatio:  cfg.HysteresisRatio,
		recentNotionals:  make([]float64, 0, recentWindow),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}
	g.enabled.Store(true)

	GateEnabled.Set(1)
	GateDisableThreshold.Set(g.disableThreshold)
	GateEnableThreshold.Set(g.enableThreshold)
	GateAvgNotional.Set(0)

	return g, nil
}

// IsEnabled reports whether new order submission is currently allowed.
// Lock-free, safe on the engine's hot path.
func (g *Gate) IsEnabled() bool { return g.enabled.Load() }

// RecordNotional folds a filled order's notional value into the rolling
// window used to compute the disable/enable thresholds. Call this from
// the fill-routing path once a fill's notional is known.
func (g *Gate) RecordNotional(notional float64) {
	if notional <= 0 {
		g.logger.Warn("riskgate-invalid-notional", zap.Float64("notional", notional))
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.recentNotionals = append(g.recentNotionals, notional)
	if len(g.recentNotionals) > recentWindow {
		g.recentNotionals = g.recentNotionals[1:]
	}

	sum := 0.0
	for _, n := range g.recentNotionals {
		sum += n
	}
	avg := sum / float64(len(g.recentNotionals))

	g.disableThreshold = math.Max(avg*g.tradeMultiplier, g.minAbsolute)
	g.enableThreshold = g.disableThreshold * g.hysteresisRatio

	GateAvgNotional.Set(avg)
	GateDisableThreshold.Set(g.disableThreshold)
	GateEnableThreshold.Set(g.enableThreshold)
}

// CheckEquity fetches current equity and updates the enabled state
// against the hysteresis thresholds.
func (g *Gate) CheckEquity(ctx context.Context) error {
	start := time.Now()
	defer func() { GateCheckDuration.Observe(time.Since(start).Seconds()) }()

	equity, err := g.fetcher.GetEquity(ctx, g.accountID)
	if err != nil {
		g.logger.Error("riskgate-equity-check-failed", zap.Error(err), zap.String("account_id", g.accountID.String()))
		return fmt.Errorf("get equity: %w", err)
	}

	g.mu.RLock()
	disableThreshold := g.disableThreshold
	enableThreshold := g.enableThreshold
	g.mu.RUnlock()

	currentlyEnabled := g.enabled.Load()

	g.mu.Lock()
	g.lastEquity = equity
	g.lastCheck = time.Now()
	g.mu.Unlock()

	GateEquity.Set(equity)

	shouldDisable := currentlyEnabled && equity < disableThreshold
	shouldEnable := !currentlyEnabled && equity >= enableThreshold

	switch {
	case shouldDisable:
		g.enabled.Store(false)
		GateEnabled.Set(0)
		GateStateChanges.Inc()
		g.logger.Warn("riskgate-disabled",
			zap.Float64("equity", equity),
			zap.Float64("disable_threshold", disableThreshold))
	case shouldEnable:
		g.enabled.Store(true)
		GateEnabled.Set(1)
		GateStateChanges.Inc()
		g.logger.Info("riskgate-enabled",
			zap.Float64("equity", equity),
			zap.Float64("enable_threshold", enableThreshold))
	default:
		g.logger.Debug("riskgate-equity-checked",
			zap.Float64("equity", equity),
			zap.Bool("enabled", currentlyEnabled))
	}
	return nil
}

// Start begins the background equity-monitoring loop, checking
// immediately and then on every CheckInterval tick until ctx is done.
func (g *Gate) Start(ctx context.Context) {
	g.logger.Info("riskgate-started",
		zap.Duration("check_interval", g.checkInterval),
		zap.Float64("trade_multiplier", g.tradeMultiplier),
		zap.Float64("min_absolute", g.minAbsolute),
		zap.Float64("hysteresis_ratio", g.hysteresisRatio))

	if err := g.CheckEquity(ctx); err != nil {
		g.logger.Error("riskgate-initial-check-failed", zap.Error(err))
	}
	go g.monitorLoop(ctx)
}

func (g *Gate) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(g.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("riskgate-stopped")
			return
		case <-ticker.C:
			if err := g.CheckEquity(ctx); err != nil {
				g.logger.Error("riskgate-check-error", zap.Error(err))
			}
		}
	}
}

// GetStatus returns a snapshot of the gate's current state.
func (g *Gate) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sum := 0.0
	for _, n := range g.recentNotionals {
		sum += n
	}
	avg := 0.0
	if len(g.recentNotionals) > 0 {
		avg = sum / float64(len(g.recentNotionals))
	}

	return Status{
		Enabled:          g.enabled.Load(),
		LastEquity:       g.lastEquity,
		LastCheck:        g.lastCheck,
		DisableThreshold: g.disableThreshold,
		EnableThreshold:  g.enableThreshold,
		AvgNotional:      avg,
		RecentTradeCount: len(g.recentNotionals),
	}
}
