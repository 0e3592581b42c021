package bar

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

// aggregator is implemented by both TickBarAggregator and
// TimeBarAggregator.
type aggregator interface {
	Update(tick types.QuoteTick)
}

// Config wires a Manager's dependencies. Grounded on the teacher's
// orderbook.Config: a logger plus the inbound message channel.
type Config struct {
	Logger   *zap.Logger
	TickFeed <-chan types.QuoteTick
}

// Manager ingests a tick feed on a dedicated goroutine and fans each tick
// out to every aggregator registered for its symbol, delivering completed
// bars through each aggregator's own Handler. Adapted from the teacher's
// orderbook.Manager ingest loop (internal/orderbook/manager.go): one
// goroutine draining a channel, an RWMutex-guarded registry, metrics
// recorded at the same call sites.
type Manager struct {
	logger *zap.Logger
	feed   <-chan types.QuoteTick
	mu     sync.RWMutex
	bySpec map[string]aggregator
	bySym  map[types.Symbol][]aggregator
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Manager. Call RegisterTickBar/RegisterTimeBar before
// Start to pre-populate the registry, or concurrently afterward.
func New(cfg *Config) *Manager {
	return &Manager{
		logger: cfg.Logger,
		feed:   cfg.TickFeed,
		bySpec: make(map[string]aggregator),
		bySym:  make(map[types.Symbol][]aggregator),
	}
}

// RegisterTickBar creates and registers a TickBarAggregator for spec.
func (m *Manager) RegisterTickBar(spec types.BarSpec, handler Handler) error {
	agg, err := NewTickBarAggregator(spec, handler)
	if err != nil {
		return err
	}
	m.register(spec, agg)
	return nil
}

// RegisterTimeBar creates and registers a TimeBarAggregator for spec,
// driven by clock (nil selects RealClock).
func (m *Manager) RegisterTimeBar(spec types.BarSpec, clock Clock, handler Handler) error {
	agg, err := NewTimeBarAggregator(spec, clock, handler)
	if err != nil {
		return err
	}
	m.register(spec, agg)
	return nil
}

func (m *Manager) register(spec types.BarSpec, agg aggregator) {
	key := spec.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySpec[key] = agg
	m.bySym[spec.Symbol] = append(m.bySym[spec.Symbol], agg)
	RegisteredAggregators.Set(float64(len(m.bySpec)))
}

// Start launches the ingest loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("bar-manager-starting")
	m.wg.Add(1)
	go m.run()
	return nil
}

func (m *Manager) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("bar-manager-stopping")
			return
		case tick, ok := <-m.feed:
			if !ok {
				m.logger.Info("tick-feed-closed")
				return
			}
			m.handleTick(tick)
		}
	}
}

func (m *Manager) handleTick(tick types.QuoteTick) {
	timer := prometheus.NewTimer(TickProcessingDuration)
	defer timer.ObserveDuration()

	TicksReceivedTotal.WithLabelValues(tick.Symbol.String()).Inc()

	lockStart := time.Now()
	m.mu.RLock()
	LockContentionDuration.Observe(time.Since(lockStart).Seconds())
	aggs := m.bySym[tick.Symbol]
	m.mu.RUnlock()

	for _, agg := range aggs {
		agg.Update(tick)
	}
}

// Close stops the ingest loop and waits for it to exit.
func (m *Manager) Close() error {
	m.logger.Info("closing-bar-manager")
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("bar-manager-closed")
	return nil
}
