package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestReconnectManagerSucceedsOnFirstAttempt(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2,
		JitterPercent:     0,
	}, zap.NewNop())

	attempts := 0
	err := rm.Reconnect(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestReconnectManagerRetriesUntilSuccess(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
		JitterPercent:     0,
	}, zap.NewNop())

	attempts := 0
	err := rm.Reconnect(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("dial failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestReconnectManagerRespectsCancellation(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
		JitterPercent:     0,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rm.Reconnect(ctx, func(ctx context.Context) error {
		t.Fatal("connect func should not be called after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReconnectManagerCapsBackoffAtMaxDelay(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 10,
		JitterPercent:     0,
	}, zap.NewNop())

	rm.incrementBackoff()
	rm.incrementBackoff()
	rm.incrementBackoff()

	if rm.currentBackoff > rm.config.MaxDelay {
		t.Fatalf("backoff %v exceeds max delay %v", rm.currentBackoff, rm.config.MaxDelay)
	}
}
