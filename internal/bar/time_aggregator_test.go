package bar

import (
	"testing"
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

func TestTimeBarAggregatorClosesOnClockBoundary(t *testing.T) {
	spec := types.BarSpec{
		Symbol: mustTestSymbol(t), Type: types.TimeBars, PriceType: types.Mid,
		Interval: 1, Unit: types.Minute, UsePreviousClose: true,
	}
	clock := NewTestClock(time.Unix(0, 0))

	var bars []types.Bar
	agg, err := NewTimeBarAggregator(spec, clock, func(_ types.BarSpec, bar types.Bar) {
		bars = append(bars, bar)
	})
	if err != nil {
		t.Fatalf("NewTimeBarAggregator: %v", err)
	}

	// A quiet first minute with no ticks: nothing to carry forward yet, so
	// no bar should be emitted.
	clock.Advance(time.Minute)
	if len(bars) != 0 {
		t.Fatalf("expected no bar before any tick arrives, got %d", len(bars))
	}

	agg.Update(testTick(t, 1.1000, 1.1002, 1, clock.Now()))
	clock.Advance(time.Minute)
	if len(bars) != 1 {
		t.Fatalf("expected one bar after the first populated window, got %d", len(bars))
	}
	if bars[0].Volume.IsZero() {
		t.Fatal("expected the first populated bar to carry nonzero volume")
	}

	// A quiet second minute: use_previous_close should carry the prior
	// close forward as a zero-volume bar rather than erroring.
	clock.Advance(time.Minute)
	if len(bars) != 2 {
		t.Fatalf("expected a carried-forward bar during the quiet window, got %d", len(bars))
	}
	if !bars[1].Volume.IsZero() {
		t.Fatal("expected the carried-forward bar to have zero volume")
	}
	if !bars[1].Open.Equal(bars[0].Close.Decimal) {
		t.Fatal("expected the carried-forward bar's open to equal the prior close")
	}
}

func TestTimeBarAggregatorRejectsWrongSpec(t *testing.T) {
	spec := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TickBars, PriceType: types.Bid, TickCount: 1}
	if _, err := NewTimeBarAggregator(spec, NewTestClock(time.Unix(0, 0)), nil); err == nil {
		t.Fatal("expected a TickBars spec to be rejected")
	}

	badUnit := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TimeBars, PriceType: types.Bid, Interval: 1, Unit: types.BarIntervalUnit("FORTNIGHT")}
	if _, err := NewTimeBarAggregator(badUnit, NewTestClock(time.Unix(0, 0)), nil); err == nil {
		t.Fatal("expected an unknown interval unit to be rejected")
	}
}
