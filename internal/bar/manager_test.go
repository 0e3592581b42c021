package bar

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/coriolis-trading/execore/pkg/types"
)

func TestManagerFansTicksOutToRegisteredAggregators(t *testing.T) {
	feed := make(chan types.QuoteTick, 8)
	mgr := New(&Config{Logger: zap.NewNop(), TickFeed: feed})

	spec := types.BarSpec{Symbol: mustTestSymbol(t), Type: types.TickBars, PriceType: types.Bid, TickCount: 2}
	done := make(chan types.Bar, 4)
	if err := mgr.RegisterTickBar(spec, func(_ types.BarSpec, bar types.Bar) { done <- bar }); err != nil {
		t.Fatalf("RegisterTickBar: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	now := time.Unix(0, 0)
	feed <- testTick(t, 1.10, 1.11, 1, now)
	feed <- testTick(t, 1.10, 1.11, 1, now.Add(time.Second))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the manager to fan ticks through to a completed bar")
	}
}

func TestManagerIgnoresTicksForUnregisteredSymbol(t *testing.T) {
	feed := make(chan types.QuoteTick, 1)
	mgr := New(&Config{Logger: zap.NewNop(), TickFeed: feed})

	other, err := types.NewSymbol("GBP/USD", "FXCM")
	if err != nil {
		t.Fatalf("NewSymbol: %v", err)
	}
	spec := types.BarSpec{Symbol: other, Type: types.TickBars, PriceType: types.Bid, TickCount: 1}
	done := make(chan types.Bar, 1)
	if err := mgr.RegisterTickBar(spec, func(_ types.BarSpec, bar types.Bar) { done <- bar }); err != nil {
		t.Fatalf("RegisterTickBar: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	feed <- testTick(t, 1.10, 1.11, 1, time.Unix(0, 0))

	select {
	case <-done:
		t.Fatal("expected no bar for a symbol with no registered aggregator")
	case <-time.After(100 * time.Millisecond):
	}
}
