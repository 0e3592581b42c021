// Package bar implements OHLCV bar aggregation over a tick stream: a
// shared partial-bar builder, tick-count and wall-clock boundary
// aggregators wrapping it, and a Manager that fans a tick feed out to
// every registered aggregator (spec.md §4.6).
package bar

import (
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

// BarBuilder maintains a single partial OHLCV bar. TickBarAggregator and
// TimeBarAggregator both wrap one; it has no notion of what triggers a
// boundary, only how to fold ticks and produce a finished Bar.
type BarBuilder struct {
	spec types.BarSpec

	open      types.Price
	high      types.Price
	low       types.Price
	close     types.Price
	volume    types.Quantity
	timestamp time.Time

	updates          int
	usePreviousClose bool
	havePrevClose    bool
}

// NewBarBuilder constructs an empty builder for the given spec.
// usePreviousClose controls build()'s idempotent-rebuild behavior (TimeBars
// only, per §4.6; TickBars never sets it).
func NewBarBuilder(spec types.BarSpec, usePreviousClose bool) *BarBuilder {
	return &BarBuilder{spec: spec, usePreviousClose: usePreviousClose}
}

// Update folds one tick into the partial bar: price selection follows
// spec.PriceType (BID/ASK/MID); volume accumulates bid_size+ask_size
// (SumBothSides, the only implemented VolumeRule).
func (b *BarBuilder) Update(tick types.QuoteTick) {
	price := tick.PriceFor(b.spec.PriceType)

	if b.updates == 0 {
		b.open = price
		b.high = price
		b.low = price
	} else {
		if price.GreaterThan(b.high.Decimal) {
			b.high = price
		}
		if price.LessThan(b.low.Decimal) {
			b.low = price
		}
	}
	b.close = price
	b.volume = b.volume.Add(tick.BidSize).Add(tick.AskSize)
	b.timestamp = tick.Timestamp
	b.updates++
}

// AddImpliedUnit adds one unit of volume without touching OHLC or the
// tick count — used by TickBarAggregator to account for the synthetic
// last-trade print a venue feed appends to every book snapshot, which
// carries size but isn't itself a QuoteTick (§6 decided open question).
func (b *BarBuilder) AddImpliedUnit() {
	b.volume = b.volume.Add(types.QuantityFromInt(1))
}

// Build returns the current bar and resets the builder for the next
// window. Building with no updates since the last build is an error
// unless usePreviousClose is set and a previous close exists, in which
// case it returns a zero-volume bar whose OHLC equal the prior close
// (§4.6, §8 bar-builder-idempotence).
func (b *BarBuilder) Build() (types.Bar, error) {
	if b.updates == 0 {
		if b.usePreviousClose && b.havePrevClose {
			bar := types.Bar{
				Open:      b.close,
				High:      b.close,
				Low:       b.close,
				Close:     b.close,
				Volume:    types.QuantityFromInt(0),
				Timestamp: b.timestamp,
			}
			return bar, nil
		}
		return types.Bar{}, types.ErrInvariantViolation("build called with no ticks since the last build")
	}

	bar := types.Bar{
		Open:      b.open,
		High:      b.high,
		Low:       b.low,
		Close:     b.close,
		Volume:    b.volume,
		Timestamp: b.timestamp,
	}

	b.havePrevClose = true
	b.volume = types.Quantity{}
	b.updates = 0
	return bar, nil
}
