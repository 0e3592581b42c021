package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Bus operations invoked after Close.
var ErrClosed = errors.New("transport: bus closed")

// Bus is the data subscription service's network boundary: a
// request/response and publish channel for tick, bar, and instrument data.
// channelbus is the in-process reference implementation; wsbus carries the
// same contract over a pool of WebSocket connections.
type Bus interface {
	// Publish delivers env to every current subscriber of topic. It does
	// not block waiting for a subscriber to consume the message.
	Publish(ctx context.Context, topic string, env *Envelope) error

	// Subscribe returns a channel that receives every Envelope published
	// to any of topics from this call until the returned channel is
	// dropped via Unsubscribe or the Bus is closed.
	Subscribe(ctx context.Context, topics []string) (<-chan *Envelope, error)

	// Unsubscribe stops delivery to the channel previously returned for
	// topics and releases it.
	Unsubscribe(ctx context.Context, topics []string) error

	// Request sends env to topic and waits for a correlated response, or
	// until ctx is done.
	Request(ctx context.Context, topic string, env *Envelope) (*Envelope, error)

	// Close releases every resource held by the bus, including any
	// network sockets acquired since the last Start.
	Close() error
}
