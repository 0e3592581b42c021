package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsReceivedTotal tracks commands enqueued onto the reactor by
	// kind.
	CommandsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_engine_commands_received_total",
			Help: "Total number of commands enqueued onto the execution engine",
		},
		[]string{"kind"},
	)

	// EventsReceivedTotal tracks venue/client events enqueued onto the
	// reactor by kind.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_engine_events_received_total",
			Help: "Total number of events enqueued onto the execution engine",
		},
		[]string{"kind"},
	)

	// EventsDroppedTotal tracks events the reactor could not route, by
	// drop reason (e.g. unknown_order).
	EventsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_engine_events_dropped_total",
			Help: "Total number of events dropped by the execution engine without being applied",
		},
		[]string{"reason"},
	)

	// PositionsOpenedTotal counts positions opened by the first fill
	// against a previously unindexed position id.
	PositionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "execore_engine_positions_opened_total",
			Help: "Total number of positions opened by the execution engine",
		},
	)

	// PositionsClosedTotal counts positions that transitioned to flat.
	PositionsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "execore_engine_positions_closed_total",
			Help: "Total number of positions closed by the execution engine",
		},
	)
)
