package riskgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/coriolis-trading/execore/pkg/types"
)

type fakeEquityFetcher struct {
	mu       sync.Mutex
	equity   float64
	fetchErr error
}

func (f *fakeEquityFetcher) GetEquity(ctx context.Context, accountID types.AccountId) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return 0, f.fetchErr
	}
	return f.equity, nil
}

func (f *fakeEquityFetcher) setEquity(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.equity = v
}

func (f *fakeEquityFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func mustAccountID(t *testing.T) types.AccountId {
	t.Helper()
	id, err := types.NewAccountId("SIM", "001", "MARGIN")
	if err != nil {
		t.Fatalf("NewAccountId: %v", err)
	}
	return id
}

func floatEquals(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

func TestNewValidatesConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}

	base := func() *Config {
		return &Config{
			AccountId:       mustAccountID(t),
			CheckInterval:   time.Minute,
			EquityFetcher:   fetcher,
			Logger:          logger,
			TradeMultiplier: 3.0,
			MinAbsolute:     1000,
			HysteresisRatio: 1.5,
		}
	}

	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg := base()
	cfg.EquityFetcher = nil
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for nil equity fetcher")
	}

	cfg = base()
	cfg.CheckInterval = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for zero check interval")
	}

	cfg = base()
	cfg.HysteresisRatio = 0.9
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for hysteresis ratio below 1.0")
	}

	cfg = base()
	gate, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !gate.IsEnabled() {
		t.Fatal("expected gate to start enabled")
	}
	status := gate.GetStatus()
	if status.DisableThreshold != cfg.MinAbsolute {
		t.Fatalf("expected disable threshold %v, got %v", cfg.MinAbsolute, status.DisableThreshold)
	}
}

func TestRecordNotionalUpdatesThresholds(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}
	gate, err := New(&Config{
		AccountId:       mustAccountID(t),
		CheckInterval:   time.Minute,
		EquityFetcher:   fetcher,
		Logger:          logger,
		TradeMultiplier: 3.0,
		MinAbsolute:     100,
		HysteresisRatio: 1.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	gate.RecordNotional(1000)
	status := gate.GetStatus()
	if !floatEquals(status.DisableThreshold, 3000, 0.01) {
		t.Fatalf("expected disable threshold 3000, got %v", status.DisableThreshold)
	}
	if !floatEquals(status.EnableThreshold, 4500, 0.01) {
		t.Fatalf("expected enable threshold 4500, got %v", status.EnableThreshold)
	}
}

func TestRecordNotionalWindowCapsAtTwenty(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}
	gate, err := New(&Config{
		AccountId:       mustAccountID(t),
		CheckInterval:   time.Minute,
		EquityFetcher:   fetcher,
		Logger:          logger,
		TradeMultiplier: 1.0,
		MinAbsolute:     1,
		HysteresisRatio: 1.0,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 1; i <= 25; i++ {
		gate.RecordNotional(float64(i))
	}

	status := gate.GetStatus()
	if status.RecentTradeCount != 20 {
		t.Fatalf("expected window capped at 20, got %d", status.RecentTradeCount)
	}
	// average of 6..25 = 15.5
	if !floatEquals(status.AvgNotional, 15.5, 0.01) {
		t.Fatalf("expected avg notional 15.5, got %v", status.AvgNotional)
	}
}

func TestCheckEquityDisablesAndReenablesWithHysteresis(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}
	gate, err := New(&Config{
		AccountId:       mustAccountID(t),
		CheckInterval:   time.Minute,
		EquityFetcher:   fetcher,
		Logger:          logger,
		TradeMultiplier: 3.0,
		MinAbsolute:     10,
		HysteresisRatio: 1.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gate.RecordNotional(10) // disable=30, enable=45

	fetcher.setEquity(25)
	if err := gate.CheckEquity(context.Background()); err != nil {
		t.Fatalf("check_equity: %v", err)
	}
	if gate.IsEnabled() {
		t.Fatal("expected gate to disable below threshold")
	}

	// Equity recovers but not past the (higher) enable threshold: stays
	// disabled, exercising the hysteresis gap.
	fetcher.setEquity(35)
	if err := gate.CheckEquity(context.Background()); err != nil {
		t.Fatalf("check_equity: %v", err)
	}
	if gate.IsEnabled() {
		t.Fatal("expected gate to remain disabled inside the hysteresis gap")
	}

	fetcher.setEquity(50)
	if err := gate.CheckEquity(context.Background()); err != nil {
		t.Fatalf("check_equity: %v", err)
	}
	if !gate.IsEnabled() {
		t.Fatal("expected gate to re-enable above the enable threshold")
	}
}

func TestCheckEquityErrorLeavesStateUnchanged(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}
	fetcher.setErr(errors.New("rpc timeout"))

	gate, err := New(&Config{
		AccountId:       mustAccountID(t),
		CheckInterval:   time.Minute,
		EquityFetcher:   fetcher,
		Logger:          logger,
		TradeMultiplier: 3.0,
		MinAbsolute:     10,
		HysteresisRatio: 1.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := gate.CheckEquity(context.Background()); err == nil {
		t.Fatal("expected error from check_equity")
	}
	if !gate.IsEnabled() {
		t.Fatal("expected gate to remain enabled after a failed check")
	}
}

func TestConcurrentRecordNotionalAndCheckEquity(t *testing.T) {
	logger := zaptest.NewLogger(t)
	fetcher := &fakeEquityFetcher{}
	fetcher.setEquity(1000)

	gate, err := New(&Config{
		AccountId:       mustAccountID(t),
		CheckInterval:   time.Minute,
		EquityFetcher:   fetcher,
		Logger:          logger,
		TradeMultiplier: 3.0,
		MinAbsolute:     10,
		HysteresisRatio: 1.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			gate.RecordNotional(float64(n + 1))
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.CheckEquity(context.Background())
		}()
	}
	wg.Wait()

	if !gate.IsEnabled() {
		t.Fatal("expected gate to remain enabled with ample equity")
	}
}
