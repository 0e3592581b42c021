package bar

import (
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

// TimeBarAggregator closes a bar on a wall-clock boundary (spec.md §4.6):
// every Interval Unit, driven by an injected Clock rather than a bare
// ticker, so tests can advance time deterministically instead of sleeping.
// Not safe for concurrent use; Manager serializes updates per symbol.
type TimeBarAggregator struct {
	spec    types.BarSpec
	builder *BarBuilder
	handler Handler
	clock   Clock
	period  time.Duration
}

// NewTimeBarAggregator constructs an aggregator for spec, which must have
// Type=TimeBars and a positive Interval. clock drives boundary scheduling.
func NewTimeBarAggregator(spec types.BarSpec, clock Clock, handler Handler) (*TimeBarAggregator, error) {
	if spec.Type != types.TimeBars {
		return nil, types.ErrInvalidArgument("time bar aggregator requires a TimeBars spec")
	}
	if spec.Interval <= 0 {
		return nil, types.ErrInvalidArgument("time bar aggregator requires a positive interval")
	}
	period, err := intervalDuration(spec.Interval, spec.Unit)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = RealClock{}
	}
	a := &TimeBarAggregator{
		spec:    spec,
		builder: NewBarBuilder(spec, spec.UsePreviousClose),
		handler: handler,
		clock:   clock,
		period:  period,
	}
	a.scheduleNext()
	return a, nil
}

func intervalDuration(interval int, unit types.BarIntervalUnit) (time.Duration, error) {
	switch unit {
	case types.Second:
		return time.Duration(interval) * time.Second, nil
	case types.Minute:
		return time.Duration(interval) * time.Minute, nil
	case types.Hour:
		return time.Duration(interval) * time.Hour, nil
	default:
		return 0, types.ErrInvalidArgument("unknown bar interval unit: " + string(unit))
	}
}

// Update folds one tick into the current window. It never triggers a
// boundary itself; only the Clock's scheduled callback does, so a quiet
// period still closes bars on time rather than waiting for the next tick.
func (a *TimeBarAggregator) Update(tick types.QuoteTick) {
	a.builder.Update(tick)
}

func (a *TimeBarAggregator) scheduleNext() {
	a.clock.Schedule(a.period, a.onBoundary)
}

func (a *TimeBarAggregator) onBoundary() {
	defer a.scheduleNext()

	bar, err := a.builder.Build()
	if err != nil {
		// No ticks since the last boundary and no previous close to carry
		// forward yet (first window); skip emitting until a tick arrives.
		return
	}
	BarsProducedTotal.WithLabelValues(a.spec.String()).Inc()
	if a.handler != nil {
		a.handler(a.spec, bar)
	}
}
