package transport

import (
	"context"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig configures a WSBus's pool of WebSocket connections.
type PoolConfig struct {
	Size                  int // number of connections (default 1)
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// WSBus is the WebSocket-backed implementation of Bus: topics are sharded
// by hash across a pool of connections for load distribution, mirroring
// the teacher's token-sharding pool but generalized from Polymarket asset
// ids to the data subscription service's request/publish topics.
type WSBus struct {
	cfg    PoolConfig
	conns  []*wsConn
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string][]*subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewWSBus creates a pool of cfg.Size WebSocket connections, none of them
// dialed yet; call Start to connect.
func NewWSBus(cfg PoolConfig) *WSBus {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &WSBus{
		cfg:         cfg,
		conns:       make([]*wsConn, cfg.Size),
		logger:      cfg.Logger,
		subscribers: make(map[string][]*subscription),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < cfg.Size; i++ {
		connCfg := ConnConfig{
			URL:                   cfg.URL,
			DialTimeout:           cfg.DialTimeout,
			PongTimeout:           cfg.PongTimeout,
			PingInterval:          cfg.PingInterval,
			ReconnectInitialDelay: cfg.ReconnectInitialDelay,
			ReconnectMaxDelay:     cfg.ReconnectMaxDelay,
			ReconnectBackoffMult:  cfg.ReconnectBackoffMult,
			MessageBufferSize:     cfg.MessageBufferSize,
			Logger:                cfg.Logger.With(zap.Int("conn-id", i)),
		}
		bus.conns[i] = newConn(connCfg)
	}

	return bus
}

// Start dials every connection in the pool and begins multiplexing
// incoming envelopes to local subscribers.
func (b *WSBus) Start() error {
	b.logger.Info("transport-wsbus-starting", zap.Int("pool-size", b.cfg.Size))

	var startWg sync.WaitGroup
	errCh := make(chan error, len(b.conns))

	for i, c := range b.conns {
		startWg.Add(1)
		go func(idx int, conn *wsConn) {
			defer startWg.Done()
			if err := conn.Start(); err != nil {
				errCh <- fmt.Errorf("conn %d start: %w", idx, err)
			}
		}(i, c)
	}

	startWg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to start %d of %d connections: %v", len(errs), len(b.conns), errs)
	}

	ActiveConnections.Set(float64(len(b.conns)))

	for _, c := range b.conns {
		b.wg.Add(1)
		go b.multiplex(c)
	}

	b.logger.Info("transport-wsbus-started")

	return nil
}

// connFor picks the connection owning topic via CRC32 sharding, so every
// Subscribe/Publish for the same topic consistently lands on one
// connection.
func (b *WSBus) connFor(topic string) *wsConn {
	idx := int(crc32.ChecksumIEEE([]byte(topic))) % len(b.conns)
	return b.conns[idx]
}

// Publish implements Bus.
func (b *WSBus) Publish(ctx context.Context, topic string, env *Envelope) error {
	PublishedTotal.WithLabelValues(topic).Inc()
	return b.connFor(topic).Publish(topic, env)
}

// Subscribe implements Bus: it registers a local fan-out subscription and
// asks the owning connection to subscribe on the wire.
func (b *WSBus) Subscribe(ctx context.Context, topics []string) (<-chan *Envelope, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &subscription{
		ch:     make(chan *Envelope, 256),
		topics: make(map[string]bool, len(topics)),
	}
	for _, topic := range topics {
		sub.topics[topic] = true
		b.subscribers[topic] = append(b.subscribers[topic], sub)
	}
	b.mu.Unlock()

	byConn := make(map[*wsConn][]string)
	for _, topic := range topics {
		c := b.connFor(topic)
		byConn[c] = append(byConn[c], topic)
	}
	for c, toks := range byConn {
		if err := c.Subscribe(ctx, toks); err != nil {
			return nil, fmt.Errorf("wire subscribe: %w", err)
		}
	}

	ActiveSubscriptions.Add(float64(len(topics)))
	b.observeDistribution()

	return sub.ch, nil
}

// observeDistribution records, per connection, how many topics it
// currently owns — grounded on the teacher's per-manager subscription
// count histogram.
func (b *WSBus) observeDistribution() {
	counts := make(map[*wsConn]int, len(b.conns))

	b.mu.RLock()
	for topic := range b.subscribers {
		counts[b.connFor(topic)]++
	}
	b.mu.RUnlock()

	for _, count := range counts {
		PoolSubscriptionDistribution.Observe(float64(count))
	}
}

// Unsubscribe implements Bus.
func (b *WSBus) Unsubscribe(ctx context.Context, topics []string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	for _, topic := range topics {
		remaining := b.subscribers[topic][:0]
		for _, sub := range b.subscribers[topic] {
			if sub.topics[topic] {
				delete(sub.topics, topic)
				continue
			}
			remaining = append(remaining, sub)
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
	b.mu.Unlock()

	byConn := make(map[*wsConn][]string)
	for _, topic := range topics {
		c := b.connFor(topic)
		byConn[c] = append(byConn[c], topic)
	}
	for c, toks := range byConn {
		if err := c.Unsubscribe(ctx, toks); err != nil {
			return fmt.Errorf("wire unsubscribe: %w", err)
		}
	}

	ActiveSubscriptions.Sub(float64(len(topics)))

	return nil
}

// Request implements Bus over the network: it subscribes to the reserved
// response topic, publishes env to topic, and waits for a correlated
// reply or ctx cancellation.
func (b *WSBus) Request(ctx context.Context, topic string, env *Envelope) (*Envelope, error) {
	replyTopic := responseTopic(env.MessageId)

	replyCh, err := b.Subscribe(ctx, []string{replyTopic})
	if err != nil {
		return nil, err
	}
	defer b.Unsubscribe(ctx, []string{replyTopic})

	if err := b.Publish(ctx, topic, env); err != nil {
		return nil, err
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s on topic %s: %w", env.MessageId, topic, ctx.Err())
	}
}

// multiplex drains one connection's topic-tagged envelopes and fans each
// to every local subscriber registered for its topic.
func (b *WSBus) multiplex(c *wsConn) {
	defer b.wg.Done()

	for te := range c.EnvelopeChan() {
		start := time.Now()

		b.mu.RLock()
		subs := b.subscribers[te.Topic]
		b.mu.RUnlock()

		for _, sub := range subs {
			select {
			case sub.ch <- te.Envelope:
			default:
				b.logger.Warn("transport-wsbus-subscriber-full", zap.String("topic", te.Topic))
				DroppedTotal.WithLabelValues(te.Topic).Inc()
			}
		}

		PoolMultiplexLatency.Observe(time.Since(start).Seconds())
	}
}

// Close implements Bus, closing every pooled connection and releasing
// local subscriber channels.
func (b *WSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()

	var closeWg sync.WaitGroup
	for i, c := range b.conns {
		closeWg.Add(1)
		go func(idx int, conn *wsConn) {
			defer closeWg.Done()
			if err := conn.Close(); err != nil {
				b.logger.Error("transport-wsbus-conn-close-failed", zap.Int("conn-id", idx), zap.Error(err))
			}
		}(i, c)
	}
	closeWg.Wait()

	b.wg.Wait()

	b.mu.Lock()
	seen := make(map[*subscription]bool)
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if !seen[sub] {
				close(sub.ch)
				seen[sub] = true
			}
		}
	}
	b.subscribers = nil
	b.mu.Unlock()

	ActiveConnections.Set(0)

	b.logger.Info("transport-wsbus-closed")

	return nil
}
