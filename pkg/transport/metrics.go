package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishedTotal tracks envelopes published by topic.
	PublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_transport_published_total",
			Help: "Total number of envelopes published, by topic",
		},
		[]string{"topic"},
	)

	// DroppedTotal tracks envelopes dropped because a subscriber's buffer
	// was full, by topic.
	DroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_transport_dropped_total",
			Help: "Total number of envelopes dropped due to a full subscriber buffer, by topic",
		},
		[]string{"topic"},
	)

	// ActiveSubscriptions tracks the number of live topic subscriptions
	// across every bus in the process.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_transport_active_subscriptions",
		Help: "Number of active topic subscriptions",
	})

	// ActiveConnections tracks active WebSocket connections held by a
	// WSBus's pool.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_transport_ws_active_connections",
		Help: "Number of active WebSocket connections in the transport pool",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts across every
	// pooled connection.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execore_transport_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execore_transport_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks envelopes received off the wire.
	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execore_transport_ws_messages_received_total",
		Help: "Total number of envelopes received over WebSocket connections",
	})

	// MessagesDroppedTotal tracks envelopes dropped on the read path
	// because a local channel was full.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_transport_ws_messages_dropped_total",
			Help: "Total number of WebSocket envelopes dropped due to channel full",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_transport_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// PoolSubscriptionDistribution tracks distribution of topic
	// subscriptions across pool connections.
	PoolSubscriptionDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_transport_ws_pool_subscription_distribution",
		Help:    "Distribution of topic subscriptions across WebSocket pool connections",
		Buckets: prometheus.LinearBuckets(0, 100, 10),
	})

	// PoolMultiplexLatency tracks latency added by fanning an incoming
	// envelope out to local subscribers.
	PoolMultiplexLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_transport_ws_pool_multiplex_latency_seconds",
		Help:    "Latency added by message multiplexing in the WebSocket pool",
		Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
	})
)
