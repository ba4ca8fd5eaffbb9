package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vwap-trading-bot/config"
	"vwap-trading-bot/internal/events"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/orders"
	"vwap-trading-bot/internal/risk"
)

var t0 = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

type stubBroker struct {
	mu     sync.Mutex
	fail   bool
	orders int
}

func (s *stubBroker) SubmitOrder(_ context.Context, _ string, _ orders.Action, _, price float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders++
	if s.fail {
		return 0, errors.New("broker down")
	}
	return price, nil
}

func testConfig() *config.Config {
	return &config.Config{
		TradingConfig: config.TradingConfig{
			PortfolioSize: 8,
			ActivePreset:  "Experimental",
		},
	}
}

func newTestBot(t *testing.T, broker *stubBroker) (*TradingBot, *risk.Manager) {
	t.Helper()
	riskMgr := risk.NewManager(risk.DefaultConfig())
	riskMgr.StartSession(100_000, t0)

	exec := orders.NewExecutor(broker, nil, orders.Config{MaxAttempts: 1, RetryBackoff: time.Millisecond}, zerolog.Nop())

	b, err := NewTradingBot(testConfig(), events.NewEventBus(), riskMgr, exec, nil)
	if err != nil {
		t.Fatalf("NewTradingBot: %v", err)
	}
	b.SetWatchlist([]string{"ACME"}, map[string]*market.BarSeries{
		"ACME": market.NewBarSeries("ACME"),
	})
	return b, riskMgr
}

func tick(sec int, price float64) market.Tick {
	return market.Tick{
		Symbol:    "ACME",
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		Price:     price,
		VWAP:      100.0,
	}
}

// driveBreakoutEntry walks ACME through a full VWAP breakout, confirmation
// and entry: below VWAP, stabilize in the band for a minute, break out, then
// climb past the confirmation target.
func driveBreakoutEntry(b *TradingBot) {
	b.processTick(tick(0, 99.50))   // below VWAP
	b.processTick(tick(10, 99.90))  // stabilizing in the band
	b.processTick(tick(75, 100.21)) // stabilized, breakout holds above VWAP
	b.processTick(tick(80, 100.60)) // +0.5% over breakout level confirms entry
}

func TestBreakoutEntryOpensPosition(t *testing.T) {
	broker := &stubBroker{}
	b, riskMgr := newTestBot(t, broker)

	driveBreakoutEntry(b)

	positions := b.OpenPositions()
	pos, open := positions["ACME"]
	if !open {
		t.Fatal("expected an open position after confirmed breakout")
	}
	if pos.EntryPrice != 100.60 {
		t.Errorf("entry price = %v, want 100.60", pos.EntryPrice)
	}
	if pos.Quantity <= 0 {
		t.Errorf("quantity = %v, want > 0", pos.Quantity)
	}
	if broker.orders != 1 {
		t.Errorf("broker orders = %d, want 1 entry", broker.orders)
	}
	if riskMgr.Snapshot().OpenPositions != 1 {
		t.Errorf("risk open positions = %d, want 1", riskMgr.Snapshot().OpenPositions)
	}
}

func TestStopLossClosesPosition(t *testing.T) {
	broker := &stubBroker{}
	b, riskMgr := newTestBot(t, broker)

	driveBreakoutEntry(b)
	b.processTick(tick(90, 100.00)) // -0.6% from entry trips the stop

	if len(b.OpenPositions()) != 0 {
		t.Fatal("expected position closed after stop loss")
	}
	state := riskMgr.Snapshot()
	if state.OpenPositions != 0 {
		t.Errorf("risk open positions = %d, want 0", state.OpenPositions)
	}
	if state.CumulativeRealizedPnL >= 0 {
		t.Errorf("realized pnl = %v, want negative", state.CumulativeRealizedPnL)
	}
	if broker.orders != 2 {
		t.Errorf("broker orders = %d, want entry + exit", broker.orders)
	}
}

func TestFailedExitCountsAsExitFailure(t *testing.T) {
	broker := &stubBroker{}
	b, riskMgr := newTestBot(t, broker)

	driveBreakoutEntry(b)
	broker.mu.Lock()
	broker.fail = true
	broker.mu.Unlock()

	b.processTick(tick(90, 100.00))

	if len(b.OpenPositions()) != 0 {
		t.Fatal("stranded position must still leave the engine map")
	}
	state := riskMgr.Snapshot()
	if state.ExitFailures != 1 {
		t.Errorf("exit failures = %d, want 1", state.ExitFailures)
	}
	if state.CumulativeRealizedPnL >= 0 {
		t.Error("estimated pnl of the failed exit must still count")
	}
}

func TestHaltBlocksNewEntriesButPositionsClose(t *testing.T) {
	broker := &stubBroker{}
	b, riskMgr := newTestBot(t, broker)

	driveBreakoutEntry(b)

	// Force the session past the loss limit: 1.5% of 100k is 1500.
	riskMgr.RegisterExit(-2000, t0.Add(85*time.Second))
	if !riskMgr.Halted() {
		t.Fatal("expected halt after loss limit breach")
	}

	// The open position still runs to a terminal state.
	b.processTick(tick(90, 100.00))
	if len(b.OpenPositions()) != 0 {
		t.Fatal("open position must close even while halted")
	}

	// A fresh confirmed pattern must not open a new position.
	b.processTick(tick(120, 99.50))
	b.processTick(tick(130, 99.90))
	b.processTick(tick(195, 100.21))
	b.processTick(tick(200, 100.60))
	if len(b.OpenPositions()) != 0 {
		t.Error("halted session must not admit new entries")
	}
}

func TestEntryWithoutHistorySeries(t *testing.T) {
	// A watched symbol may have no lookback history at all; the entry path
	// must not touch bar data it does not have.
	broker := &stubBroker{}
	riskMgr := risk.NewManager(risk.DefaultConfig())
	riskMgr.StartSession(100_000, t0)
	exec := orders.NewExecutor(broker, nil, orders.Config{MaxAttempts: 1, RetryBackoff: time.Millisecond}, zerolog.Nop())

	b, err := NewTradingBot(testConfig(), events.NewEventBus(), riskMgr, exec, nil)
	if err != nil {
		t.Fatalf("NewTradingBot: %v", err)
	}
	b.SetWatchlist([]string{"ACME"}, nil)

	driveBreakoutEntry(b)
	if _, open := b.OpenPositions()["ACME"]; !open {
		t.Fatal("expected an open position despite missing history")
	}
}

func TestExcludedSymbolIgnored(t *testing.T) {
	broker := &stubBroker{}
	riskMgr := risk.NewManager(risk.DefaultConfig())
	riskMgr.StartSession(100_000, t0)
	exec := orders.NewExecutor(broker, nil, orders.DefaultConfig(), zerolog.Nop())

	cfg := testConfig()
	cfg.TradingConfig.ExcludeNews = []string{"ACME"}
	b, err := NewTradingBot(cfg, events.NewEventBus(), riskMgr, exec, nil)
	if err != nil {
		t.Fatalf("NewTradingBot: %v", err)
	}
	b.SetWatchlist([]string{"ACME"}, nil)

	driveBreakoutEntry(b)
	if len(b.OpenPositions()) != 0 {
		t.Error("news-excluded symbol must never trade")
	}
	if broker.orders != 0 {
		t.Errorf("broker orders = %d, want 0", broker.orders)
	}
}

func TestWatchlistRemovalDiscardsCandidates(t *testing.T) {
	broker := &stubBroker{}
	b, _ := newTestBot(t, broker)

	// Pattern in flight, not yet confirmed.
	b.processTick(tick(0, 99.50))
	b.processTick(tick(10, 99.90))
	b.processTick(tick(75, 100.21))

	b.SetWatchlist(nil, nil)

	// The confirming tick arrives after removal; nothing should trade.
	b.processTick(tick(80, 100.60))
	if len(b.OpenPositions()) != 0 {
		t.Error("candidate of a removed symbol must be discarded without side effects")
	}
}

func TestUnknownPresetRejected(t *testing.T) {
	cfg := testConfig()
	cfg.TradingConfig.ActivePreset = "NoSuchPreset"
	_, err := NewTradingBot(cfg, events.NewEventBus(), risk.NewManager(risk.DefaultConfig()), nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
