package bar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksReceivedTotal tracks ticks ingested by the Manager, per symbol.
	TicksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_bar_ticks_received_total",
			Help: "Total number of ticks ingested by the bar manager",
		},
		[]string{"symbol"},
	)

	// BarsProducedTotal tracks completed bars delivered, per bar spec key.
	BarsProducedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execore_bar_bars_produced_total",
			Help: "Total number of bars produced by aggregators",
		},
		[]string{"spec"},
	)

	// RegisteredAggregators tracks the number of aggregators registered
	// with the Manager.
	RegisteredAggregators = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_bar_registered_aggregators",
		Help: "Number of bar aggregators currently registered",
	})

	// TickProcessingDuration tracks per-tick fan-out time.
	TickProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_bar_tick_processing_duration_seconds",
		Help:    "Time to fan a tick out to its registered aggregators",
		Buckets: []float64{0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	// LockContentionDuration tracks time waiting for the registry's
	// RWMutex.
	LockContentionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_bar_lock_contention_seconds",
		Help:    "Time waiting to acquire the bar manager's registry lock",
		Buckets: []float64{0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)
