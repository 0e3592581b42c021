package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnConfig holds a single WebSocket connection's configuration.
type ConnConfig struct {
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

// topicEnvelope pairs an Envelope with the topic it was published to; it is
// the unit of delivery between a wsConn's read loop and its owning WSBus.
type topicEnvelope struct {
	Topic    string
	Envelope *Envelope
}

// wsConn manages a single WebSocket connection carrying Envelopes to and
// from the data subscription service. A WSBus shards topics across a pool
// of these.
type wsConn struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          ConnConfig
	envelopeChan    chan *topicEnvelope
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	subscribed      map[string]bool
	connected       atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64
}

func newConn(cfg ConnConfig) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &wsConn{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		envelopeChan: make(chan *topicEnvelope, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		subscribed:   make(map[string]bool),
	}
}

// Start dials the initial connection and launches the read/ping/reconnect
// loops.
func (c *wsConn) Start() error {
	c.logger.Info("transport-conn-starting", zap.String("url", c.url))

	if err := c.connect(c.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

func (c *wsConn) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}

	c.logger.Info("transport-conn-dialing", zap.String("url", c.url))

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		c.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	now := time.Now()
	c.connected.Store(true)
	c.lastPongTime.Store(now.Unix())
	c.connectionStart.Store(now.Unix())

	c.logger.Info("transport-conn-connected")

	return nil
}

type wireSubscription struct {
	Operation string   `json:"operation"`
	Topics    []string `json:"topics"`
}

// Subscribe adds topics to this connection's subscription set, notifying
// the remote end over the wire.
func (c *wsConn) Subscribe(ctx context.Context, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	c.mu.Lock()

	newTopics := make([]string, 0, len(topics))
	for _, topic := range topics {
		if !c.subscribed[topic] {
			newTopics = append(newTopics, topic)
			c.subscribed[topic] = true
		}
	}

	if len(newTopics) == 0 {
		c.mu.Unlock()
		return nil
	}

	conn := c.conn
	c.mu.Unlock()

	msg := wireSubscription{Operation: "subscribe", Topics: newTopics}
	if err := conn.WriteJSON(msg); err != nil {
		c.mu.Lock()
		for _, topic := range newTopics {
			delete(c.subscribed, topic)
		}
		c.mu.Unlock()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	c.logger.Info("transport-conn-subscribed", zap.Int("new-topics", len(newTopics)))

	return nil
}

// Unsubscribe removes topics from this connection's subscription set.
func (c *wsConn) Unsubscribe(ctx context.Context, topics []string) error {
	if len(topics) == 0 {
		return nil
	}

	c.mu.Lock()

	toRemove := make([]string, 0, len(topics))
	for _, topic := range topics {
		if c.subscribed[topic] {
			toRemove = append(toRemove, topic)
			delete(c.subscribed, topic)
		}
	}

	if len(toRemove) == 0 {
		c.mu.Unlock()
		return nil
	}

	conn := c.conn
	c.mu.Unlock()

	msg := wireSubscription{Operation: "unsubscribe", Topics: toRemove}
	if err := conn.WriteJSON(msg); err != nil {
		c.mu.Lock()
		for _, topic := range toRemove {
			c.subscribed[topic] = true
		}
		c.mu.Unlock()
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	return nil
}

// Publish writes env directly to the connection, addressed to topic.
func (c *wsConn) Publish(topic string, env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := struct {
		Topic    string          `json:"topic"`
		Envelope json.RawMessage `json:"envelope"`
	}{Topic: topic, Envelope: data}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("publish %s: not connected", topic)
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}

	return nil
}

func (c *wsConn) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("transport-conn-read-error", zap.Error(err))

			if startTime := c.connectionStart.Load(); startTime > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
			}

			c.connected.Store(false)
			return
		}

		if len(message) < 10 {
			c.logger.Debug("transport-conn-heartbeat", zap.Int("bytes", len(message)))
			continue
		}

		var wrapper struct {
			Topic    string          `json:"topic"`
			Envelope json.RawMessage `json:"envelope"`
		}
		if err := json.Unmarshal(message, &wrapper); err != nil || wrapper.Topic == "" {
			c.logger.Debug("transport-conn-unparseable-message", zap.Error(err), zap.Int("bytes", len(message)))
			continue
		}

		env, err := UnmarshalEnvelope(wrapper.Envelope)
		if err != nil {
			c.logger.Debug("transport-conn-bad-envelope", zap.Error(err))
			continue
		}

		MessagesReceivedTotal.Inc()

		select {
		case c.envelopeChan <- &topicEnvelope{Topic: wrapper.Topic, Envelope: env}:
		default:
			c.logger.Warn("transport-conn-channel-full")
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

func (c *wsConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
				c.logger.Warn("transport-conn-ping-error", zap.Error(err))
			}
		}
	}
}

func (c *wsConn) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("transport-conn-lost-reconnecting")

		if err := c.reconnectMgr.Reconnect(c.ctx, c.connect); err != nil {
			if err == context.Canceled {
				return
			}
			c.logger.Error("transport-conn-reconnect-failed", zap.Error(err))
			continue
		}

		if err := c.resubscribeAll(); err != nil {
			c.logger.Error("transport-conn-resubscribe-failed", zap.Error(err))
			c.connected.Store(false)
			continue
		}

		c.logger.Info("transport-conn-reconnected")

		c.wg.Add(1)
		go c.readLoop()
	}
}

func (c *wsConn) resubscribeAll() error {
	c.mu.RLock()
	topics := make([]string, 0, len(c.subscribed))
	for topic := range c.subscribed {
		topics = append(topics, topic)
	}
	conn := c.conn
	c.mu.RUnlock()

	if len(topics) == 0 {
		return nil
	}

	msg := wireSubscription{Operation: "subscribe", Topics: topics}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	return nil
}

// EnvelopeChan returns the channel receiving topic-tagged envelopes read
// off the wire.
func (c *wsConn) EnvelopeChan() <-chan *topicEnvelope {
	return c.envelopeChan
}

// Close tears down the connection and its goroutines.
func (c *wsConn) Close() error {
	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.wg.Wait()

	close(c.envelopeChan)

	return nil
}
