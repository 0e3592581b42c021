package riskgate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateEnabled indicates whether the gate currently allows new order
	// submission (1=enabled, 0=disabled).
	GateEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_riskgate_enabled",
		Help: "Whether the risk gate allows new order submission (1=enabled, 0=disabled)",
	})

	// GateEquity tracks the last checked account equity.
	GateEquity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_riskgate_equity",
		Help: "Last checked account equity",
	})

	// GateDisableThreshold tracks the current threshold for disabling
	// submission.
	GateDisableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_riskgate_disable_threshold",
		Help: "Current equity threshold for disabling order submission",
	})

	// GateEnableThreshold tracks the current threshold for re-enabling
	// submission.
	GateEnableThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_riskgate_enable_threshold",
		Help: "Current equity threshold for re-enabling order submission",
	})

	// GateAvgNotional tracks the rolling average fill notional used to
	// compute the disable threshold.
	GateAvgNotional = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "execore_riskgate_avg_notional",
		Help: "Rolling average fill notional used to compute the disable threshold",
	})

	// GateStateChanges counts enabled/disabled transitions.
	GateStateChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execore_riskgate_state_changes_total",
		Help: "Total number of times the risk gate changed state",
	})

	// GateCheckDuration tracks the latency of an equity check.
	GateCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "execore_riskgate_check_duration_seconds",
		Help:    "Duration of an equity check",
		Buckets: prometheus.DefBuckets,
	})
)
