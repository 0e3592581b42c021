package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// responseTopic is the reserved publish topic a Request waits on for its
// reply: "_response:<correlation id>". Nothing outside this package
// subscribes to it directly.
func responseTopic(correlationId string) string {
	return "_response:" + correlationId
}

type subscription struct {
	ch     chan *Envelope
	topics map[string]bool
}

// ChannelBus is the in-process reference implementation of Bus: a
// request/response and publish channel backed entirely by Go channels, no
// network socket involved. Used by internal/app when running a single
// process end to end, and as the default in tests.
type ChannelBus struct {
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers map[string][]*subscription // topic -> subscriptions wanting it
	closed      bool
}

// NewChannelBus creates a new in-process bus.
func NewChannelBus(logger *zap.Logger) *ChannelBus {
	return &ChannelBus{
		logger:      logger,
		subscribers: make(map[string][]*subscription),
	}
}

// Publish implements Bus.
func (b *ChannelBus) Publish(ctx context.Context, topic string, env *Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	subs := b.subscribers[topic]
	PublishedTotal.WithLabelValues(topic).Inc()

	for _, sub := range subs {
		select {
		case sub.ch <- env:
		default:
			b.logger.Warn("channel-bus-subscriber-full", zap.String("topic", topic))
			DroppedTotal.WithLabelValues(topic).Inc()
		}
	}

	return nil
}

// Subscribe implements Bus.
func (b *ChannelBus) Subscribe(ctx context.Context, topics []string) (<-chan *Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
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

	ActiveSubscriptions.Add(float64(len(topics)))

	return sub.ch, nil
}

// Unsubscribe implements Bus. It removes every subscription registered
// under topics; subscribers of other topics on the same channel keep
// receiving those.
func (b *ChannelBus) Unsubscribe(ctx context.Context, topics []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
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

	ActiveSubscriptions.Sub(float64(len(topics)))

	return nil
}

// Request implements Bus using the responseTopic convention: it subscribes
// to the reserved response topic for env's message id, publishes env to
// topic, and waits for a correlated reply or ctx cancellation.
func (b *ChannelBus) Request(ctx context.Context, topic string, env *Envelope) (*Envelope, error) {
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

// Respond publishes env to the reserved response topic for correlationId,
// completing a pending Request. Responders obtain correlationId from the
// request Envelope's MessageId.
func (b *ChannelBus) Respond(ctx context.Context, correlationId string, env *Envelope) error {
	env.CorrelationId = correlationId
	return b.Publish(ctx, responseTopic(correlationId), env)
}

// Close implements Bus.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

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

	return nil
}
