package bar

import "github.com/coriolis-trading/execore/pkg/types"

// Handler receives a completed Bar.
type Handler func(spec types.BarSpec, bar types.Bar)

// TickBarAggregator closes a bar every TickCount ticks (spec.md §4.6).
// It is not safe for concurrent use; Manager serializes updates per
// symbol on its own ingest goroutine.
type TickBarAggregator struct {
	spec    types.BarSpec
	builder *BarBuilder
	handler Handler
	count   int
}

// NewTickBarAggregator constructs an aggregator for spec, which must have
// Type=TickBars and a positive TickCount.
func NewTickBarAggregator(spec types.BarSpec, handler Handler) (*TickBarAggregator, error) {
	if spec.Type != types.TickBars {
		return nil, types.ErrInvalidArgument("tick bar aggregator requires a TickBars spec")
	}
	if spec.TickCount <= 0 {
		return nil, types.ErrInvalidArgument("tick bar aggregator requires a positive tick count")
	}
	return &TickBarAggregator{
		spec:    spec,
		builder: NewBarBuilder(spec, false),
		handler: handler,
	}, nil
}

// Update folds one tick in; every TickCount'th call closes and delivers a
// bar.
func (a *TickBarAggregator) Update(tick types.QuoteTick) {
	a.builder.Update(tick)
	a.count++
	if a.count < a.spec.TickCount {
		return
	}
	a.count = 0
	// The feed always appends a synthetic last-trade print to the book
	// snapshot that closes this window; it carries one implied unit of
	// size but never arrives as its own QuoteTick (SPEC_FULL.md §6).
	a.builder.AddImpliedUnit()
	bar, err := a.builder.Build()
	if err != nil {
		// Build only fails with zero updates, which cannot happen here:
		// Update always runs immediately before this check.
		return
	}
	BarsProducedTotal.WithLabelValues(a.spec.String()).Inc()
	if a.handler != nil {
		a.handler(a.spec, bar)
	}
}
