package risk

import (
	"testing"
	"time"
)

var sessionStart = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func TestHaltAtExactLimit(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.StartSession(100000, sessionStart)

	m.RegisterEntry()
	m.RegisterExit(-1000, sessionStart.Add(time.Hour))
	if m.Halted() {
		t.Fatal("-1.0% should not halt")
	}

	m.RegisterEntry()
	// Cumulative reaches exactly -1.5% of starting balance
	m.RegisterExit(-500, sessionStart.Add(2*time.Hour))
	if !m.Halted() {
		t.Fatal("Exactly -1.5% must halt")
	}

	ok, reason := m.CanEnter()
	if ok {
		t.Error("Halted session must block new entries")
	}
	if reason == "" {
		t.Error("Block should carry a reason")
	}

	st := m.Snapshot()
	if !st.DailyLossLimitBreached || !st.TradingHalted {
		t.Error("Breach flags should both be set")
	}
}

func TestHaltIsTerminalForSession(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.StartSession(100000, sessionStart)

	m.RegisterEntry()
	m.RegisterExit(-2000, sessionStart.Add(time.Hour))
	if !m.Halted() {
		t.Fatal("-2.0% must halt")
	}

	// Winning trades do not clear the halt
	m.RegisterExit(5000, sessionStart.Add(2*time.Hour))
	if !m.Halted() {
		t.Error("Halt must not auto-resume within the session")
	}

	// Only the next session's reset clears it
	m.StartSession(100000, sessionStart.Add(24*time.Hour))
	if m.Halted() {
		t.Error("New session should clear the halt")
	}
}

func TestOpenPositionsStillManagedAfterHalt(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.StartSession(100000, sessionStart)

	m.RegisterEntry()
	m.RegisterEntry()
	m.RegisterExit(-2000, sessionStart.Add(time.Hour)) // halts with one still open

	if ok, _ := m.CanEnter(); ok {
		t.Fatal("Entries must be blocked after halt")
	}
	// The remaining open position still exits and is accounted for
	m.RegisterExit(300, sessionStart.Add(2*time.Hour))
	st := m.Snapshot()
	if st.OpenPositions != 0 {
		t.Errorf("OpenPositions = %d, want 0", st.OpenPositions)
	}
	if st.CumulativeRealizedPnL != -1700 {
		t.Errorf("CumulativeRealizedPnL = %.0f, want -1700", st.CumulativeRealizedPnL)
	}
}

func TestMaxPositionsBlocksEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOpenPositions = 2
	m := NewManager(cfg)
	m.StartSession(100000, sessionStart)

	m.RegisterEntry()
	m.RegisterEntry()
	if ok, _ := m.CanEnter(); ok {
		t.Error("Full position slots must block entry")
	}
	m.RegisterExit(100, sessionStart.Add(time.Hour))
	if ok, _ := m.CanEnter(); !ok {
		t.Error("Freed slot should admit entry")
	}
}

func TestExitFailureCountsTowardLimit(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.StartSession(100000, sessionStart)

	m.RegisterEntry()
	m.RegisterExitFailure(-1500, sessionStart.Add(time.Hour))
	if !m.Halted() {
		t.Error("Escalated exit P&L must count toward the loss limit")
	}
	if m.Snapshot().ExitFailures != 1 {
		t.Error("Exit failure should be recorded")
	}
}

func TestPositionSize(t *testing.T) {
	m := NewManager(Config{DailyLossLimitPct: 1.5, MaxOpenPositions: 8, DeploymentRatio: 0.8})
	m.StartSession(100000, sessionStart)

	// 100000 * 0.8 / 8 slots = 10000 per slot, at $50 = 200 shares
	qty := m.PositionSize(50)
	if qty != 200 {
		t.Errorf("PositionSize = %.2f, want 200", qty)
	}
	if m.PositionSize(0) != 0 {
		t.Error("Non-positive price should size to zero")
	}
}
