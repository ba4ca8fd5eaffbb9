package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeBroker fails the first failCount submissions, then fills at fillPrice
type fakeBroker struct {
	mu        sync.Mutex
	failCount int
	calls     int
	fillPrice float64
}

func (b *fakeBroker) SubmitOrder(_ context.Context, _ string, _ Action, _, _ float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failCount {
		return 0, errors.New("gateway timeout")
	}
	return b.fillPrice, nil
}

func newTestExecutor(broker Broker) *Executor {
	cfg := Config{MaxAttempts: 3, RetryBackoff: time.Millisecond}
	return NewExecutor(broker, nil, cfg, zerolog.Nop())
}

func TestBuyRecordsFill(t *testing.T) {
	broker := &fakeBroker{fillPrice: 150.02}
	exec := newTestExecutor(broker)

	fill, err := exec.Buy(context.Background(), "ACME", 10, 150.00, "pattern-1")
	if err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}
	if fill.Price != 150.02 {
		t.Errorf("fill price = %v, want broker fill price 150.02", fill.Price)
	}
	if fill.Action != ActionBuy {
		t.Errorf("fill action = %s, want BUY", fill.Action)
	}
	if fill.PatternID != "pattern-1" {
		t.Errorf("fill pattern id = %q", fill.PatternID)
	}
	if fill.ID == "" {
		t.Error("fill missing id")
	}

	fills := exec.Fills()
	if len(fills) != 1 {
		t.Fatalf("expected 1 recorded fill, got %d", len(fills))
	}
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	broker := &fakeBroker{failCount: 2, fillPrice: 151.50}
	exec := newTestExecutor(broker)

	fill, err := exec.Sell(context.Background(), "ACME", 10, 151.50, 1.0, "CROSS")
	if err != nil {
		t.Fatalf("Sell should succeed on third attempt, got %v", err)
	}
	if broker.calls != 3 {
		t.Errorf("broker called %d times, want 3", broker.calls)
	}
	if fill.ExitReason != "CROSS" {
		t.Errorf("exit reason = %q, want CROSS", fill.ExitReason)
	}
	if fill.RealizedPnLPct != 1.0 {
		t.Errorf("realized pnl = %v, want 1.0", fill.RealizedPnLPct)
	}
}

func TestExhaustedExitReturnsSentinel(t *testing.T) {
	broker := &fakeBroker{failCount: 10}
	exec := newTestExecutor(broker)

	_, err := exec.Sell(context.Background(), "ACME", 10, 149.25, -0.5, "STOP_LOSS")
	if !errors.Is(err, ErrExitFailed) {
		t.Fatalf("expected ErrExitFailed, got %v", err)
	}
	if broker.calls != 3 {
		t.Errorf("broker called %d times, want MaxAttempts=3", broker.calls)
	}
	if len(exec.Fills()) != 0 {
		t.Error("failed exit must not record a fill")
	}
}

func TestExhaustedEntryReturnsSentinel(t *testing.T) {
	broker := &fakeBroker{failCount: 10}
	exec := newTestExecutor(broker)

	_, err := exec.Buy(context.Background(), "ACME", 10, 150.00, "pattern-1")
	if !errors.Is(err, ErrEntryFailed) {
		t.Fatalf("expected ErrEntryFailed, got %v", err)
	}
	if errors.Is(err, ErrExitFailed) {
		t.Error("entry failure must not carry the exit sentinel")
	}
}

func TestSubmitStopsOnCancelledContext(t *testing.T) {
	broker := &fakeBroker{failCount: 10}
	exec := newTestExecutor(broker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Buy(ctx, "ACME", 10, 150.00, "")
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
	if broker.calls >= 3 {
		t.Errorf("cancelled context should cut retries short, broker called %d times", broker.calls)
	}
}
