package bar

import (
	"testing"
	"time"

	"github.com/coriolis-trading/execore/pkg/types"
)

func mustTestSymbol(t *testing.T) types.Symbol {
	t.Helper()
	sym, err := types.NewSymbol("EUR/USD", "FXCM")
	if err != nil {
		t.Fatalf("NewSymbol: %v", err)
	}
	return sym
}

func testTick(t *testing.T, bid, ask float64, size int64, ts time.Time) types.QuoteTick {
	t.Helper()
	return types.QuoteTick{
		Symbol:    mustTestSymbol(t),
		Bid:       types.PriceFromFloat(bid, 5),
		Ask:       types.PriceFromFloat(ask, 5),
		BidSize:   types.QuantityFromInt(size),
		AskSize:   types.QuantityFromInt(size),
		Timestamp: ts,
	}
}

func TestBarBuilderTracksOHLCAcrossTicks(t *testing.T) {
	spec := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TickBars, PriceType: types.Bid, TickCount: 3}
	b := NewBarBuilder(spec, false)
	now := time.Unix(0, 0)

	b.Update(testTick(t, 1.1000, 1.1002, 1, now))
	b.Update(testTick(t, 1.1005, 1.1007, 1, now.Add(time.Second)))
	b.Update(testTick(t, 1.0998, 1.1000, 1, now.Add(2*time.Second)))

	bar, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bar.Open.Equal(types.PriceFromFloat(1.1000, 5).Decimal) {
		t.Fatalf("expected open 1.1000, got %s", bar.Open)
	}
	if !bar.High.Equal(types.PriceFromFloat(1.1005, 5).Decimal) {
		t.Fatalf("expected high 1.1005, got %s", bar.High)
	}
	if !bar.Low.Equal(types.PriceFromFloat(1.0998, 5).Decimal) {
		t.Fatalf("expected low 1.0998, got %s", bar.Low)
	}
	if !bar.Close.Equal(types.PriceFromFloat(1.0998, 5).Decimal) {
		t.Fatalf("expected close 1.0998, got %s", bar.Close)
	}
	// Three ticks, bid_size+ask_size=2 each, no implied unit added here.
	if !bar.Volume.Equal(types.QuantityFromInt(6).Decimal) {
		t.Fatalf("expected volume 6, got %s", bar.Volume)
	}
}

func TestBarBuilderIdempotenceWithoutPreviousClose(t *testing.T) {
	spec := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TimeBars, PriceType: types.Mid, Interval: 1, Unit: types.Minute}
	b := NewBarBuilder(spec, true)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected build with no prior ticks and no previous close to fail")
	}
}

func TestBarBuilderIdempotenceCarriesPreviousClose(t *testing.T) {
	spec := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TimeBars, PriceType: types.Mid, Interval: 1, Unit: types.Minute}
	b := NewBarBuilder(spec, true)
	now := time.Unix(0, 0)

	b.Update(testTick(t, 1.1000, 1.1002, 1, now))
	first, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	second, err := b.Build()
	if err != nil {
		t.Fatalf("expected idempotent build with use_previous_close to succeed, got %v", err)
	}
	if !second.Open.Equal(first.Close.Decimal) || !second.Close.Equal(first.Close.Decimal) {
		t.Fatalf("expected carried-forward bar to equal the prior close, got open=%s close=%s", second.Open, second.Close)
	}
	if !second.Volume.IsZero() {
		t.Fatalf("expected carried-forward bar to have zero volume, got %s", second.Volume)
	}
}
