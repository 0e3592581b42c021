package execdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal tracks execution-database mutations by entity and
	// operation.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_execdb_mutations_total",
			Help: "Total number of execution-database mutations",
		},
		[]string{"entity", "op"},
	)

	// MutationErrorsTotal tracks rejected mutations by entity, operation,
	// and error kind (duplicate entity, unknown entity, invariant
	// violation).
	MutationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_execdb_mutation_errors_total",
			Help: "Total number of rejected execution-database mutations",
		},
		[]string{"entity", "op", "kind"},
	)

	// PersistDurationSeconds tracks the latency of the durable-write leg
	// of a mutation on a SQL-backed database, separate from the
	// in-process cache update.
	PersistDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "execore_execdb_persist_duration_seconds",
			Help:    "Duration of the durable-store write for a mutation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "entity"},
	)

	// ResidualsTotal tracks the residual-report size at each check_residuals
	// call, split between orders still working and positions still open.
	ResidualsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "execore_execdb_residuals_total",
			Help: "Count of residual entities reported by the last check_residuals call",
		},
		[]string{"kind"},
	)
)
