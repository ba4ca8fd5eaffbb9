package exit

import (
	"testing"
	"time"
)

var entryTime = time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	pos := NewPosition("AAPL", 150.00, entryTime, 100, "three_step_reversal")
	return NewEngine(pos, DefaultThresholds())
}

func tick(sec int) time.Time {
	return entryTime.Add(time.Duration(sec) * time.Second)
}

// drive feeds a price path and returns the first exit decision
func drive(e *Engine, path []struct {
	sec   int
	price float64
}) *Decision {
	for _, p := range path {
		if d := e.OnPrice(tick(p.sec), p.price); d != nil && d.Exit {
			return d
		}
	}
	return nil
}

func TestFullSuccessT2(t *testing.T) {
	e := newTestEngine()

	d := drive(e, []struct {
		sec   int
		price float64
	}{
		{10, 151.13}, // +0.75%: T1 locked
		{20, 151.50}, // +1.00%: CROSS locked
		{30, 151.88}, // +1.25%: momentum confirmed
		{40, 152.63}, // +1.75%: T2
	})
	if d == nil {
		t.Fatal("Path through all milestones should exit")
	}
	if d.Reason != ReasonT2 {
		t.Errorf("Reason = %s, want T2", d.Reason)
	}
	if d.Price != 152.63 {
		t.Errorf("Exit price = %.2f, want 152.63", d.Price)
	}
}

func TestCrossFallback(t *testing.T) {
	e := newTestEngine()

	d := drive(e, []struct {
		sec   int
		price float64
	}{
		{10, 151.13},
		{20, 151.50},
		{30, 151.45}, // breaches the CROSS floor
	})
	if d == nil {
		t.Fatal("Floor breach should exit")
	}
	if d.Reason != ReasonCross {
		t.Errorf("Reason = %s, want CROSS", d.Reason)
	}
	if d.Price != 151.50 {
		t.Errorf("Exit price = %.2f, want the 151.50 floor", d.Price)
	}
}

func TestDeadZoneAtT1(t *testing.T) {
	e := newTestEngine()

	if d := e.OnPrice(tick(10), 151.13); d != nil {
		t.Fatal("T1 lock should not exit")
	}
	if e.State() != StateT1Locked {
		t.Fatalf("State = %s, want t1_locked", e.State())
	}

	// Chop inside [151.10, 151.15] for over four minutes
	var d *Decision
	for sec := 40; sec <= 10+250 && d == nil; sec += 30 {
		price := 151.10
		if sec%60 == 0 {
			price = 151.15
		}
		d = e.OnPrice(tick(sec), price)
	}
	if d == nil || !d.Exit {
		t.Fatal("Stalled T1 position should dead-zone exit")
	}
	if d.Reason != ReasonDeadZone {
		t.Errorf("Reason = %s, want DEAD_ZONE", d.Reason)
	}
	if d.Price != 151.13 {
		t.Errorf("Exit price = %.2f, want the 151.13 T1 level", d.Price)
	}
}

func TestStopLossFromAnyState(t *testing.T) {
	// From none
	e := newTestEngine()
	d := e.OnPrice(tick(10), 149.25)
	if d == nil || d.Reason != ReasonStopLoss {
		t.Fatal("Drop to -0.5% should stop out")
	}
	if d.Price != 149.25 {
		t.Errorf("Exit price = %.2f, want 149.25", d.Price)
	}
	if d.State != StateStoppedOut {
		t.Errorf("State = %s, want stopped_out", d.State)
	}

	// From a locked state on a gap tick
	e = newTestEngine()
	e.OnPrice(tick(10), 151.13)
	d = e.OnPrice(tick(20), 149.25)
	if d == nil || d.Reason != ReasonStopLoss {
		t.Error("Gap through the stop should stop out regardless of milestone")
	}
}

func TestBelowT1DeadZoneHoldsWhenNegative(t *testing.T) {
	e := newTestEngine()

	e.OnPrice(tick(10), 149.95) // -0.03%, above the stop
	if d := e.OnPrice(tick(200), 149.90); d != nil {
		t.Error("Stalled position with negative P&L should hold, not exit")
	}
	// Same stall with positive P&L exits at the traded price
	d := e.OnPrice(tick(230), 150.20)
	if d == nil || d.Reason != ReasonDeadZone {
		t.Fatal("Stalled position with positive P&L should dead-zone exit")
	}
	if d.Price != 150.20 {
		t.Errorf("Exit price = %.2f, want 150.20", d.Price)
	}
}

func TestT1FloorNotEnforcedBeforeCross(t *testing.T) {
	e := newTestEngine()

	e.OnPrice(tick(10), 151.13) // T1 locked, floor 151.13
	// Dipping below the T1 floor inside T1 state is not an immediate exit
	if d := e.OnPrice(tick(20), 151.05); d != nil {
		t.Error("Dip below T1 floor inside t1_locked should not exit immediately")
	}
	if e.State() != StateT1Locked {
		t.Errorf("State = %s, want t1_locked", e.State())
	}
}

func TestFloorMonotonicity(t *testing.T) {
	e := newTestEngine()

	e.OnPrice(tick(10), 151.13)
	if e.Floor() != 151.13 {
		t.Fatalf("T1 floor = %.2f, want 151.13", e.Floor())
	}
	e.OnPrice(tick(20), 151.50)
	if e.Floor() != 151.50 {
		t.Fatalf("CROSS floor = %.2f, want 151.50", e.Floor())
	}
	e.OnPrice(tick(30), 151.88)
	if e.Floor() != 151.50 {
		t.Error("Momentum confirmation must not move the floor")
	}
}

func TestMomentumDeadZone(t *testing.T) {
	e := newTestEngine()

	e.OnPrice(tick(10), 151.13)
	e.OnPrice(tick(20), 151.50)
	e.OnPrice(tick(30), 151.88) // momentum at t+30s

	if d := e.OnPrice(tick(330), 151.95); d != nil {
		t.Fatal("5 minutes post-momentum is inside the 6-minute window")
	}
	d := e.OnPrice(tick(395), 151.95)
	if d == nil || d.Reason != ReasonDeadZone {
		t.Fatal("Stalled momentum position should dead-zone exit")
	}
	if d.Price != 151.95 {
		t.Errorf("Exit price = %.2f, want the current 151.95", d.Price)
	}
}

func TestSingleTickClimbsMultipleRungs(t *testing.T) {
	e := newTestEngine()

	// One tick straight to +1.30%: should land in momentum with CROSS floor
	if d := e.OnPrice(tick(10), 151.95); d != nil {
		t.Fatal("Climb should not exit")
	}
	if e.State() != StateMomentumConfirmed {
		t.Errorf("State = %s, want momentum_confirmed", e.State())
	}
	if e.Floor() != 151.50 {
		t.Errorf("Floor = %.2f, want 151.50", e.Floor())
	}
}

func TestDeterministicSequence(t *testing.T) {
	path := []struct {
		sec   int
		price float64
	}{
		{10, 151.13}, {20, 151.50}, {30, 151.45},
	}
	a := drive(newTestEngine(), path)
	b := drive(newTestEngine(), path)
	if a == nil || b == nil {
		t.Fatal("Both runs should exit")
	}
	if a.Reason != b.Reason || a.Price != b.Price || a.State != b.State {
		t.Error("Identical price paths must produce identical decisions")
	}
}

func TestNoDecisionAfterTerminal(t *testing.T) {
	e := newTestEngine()
	e.OnPrice(tick(10), 149.25)
	if !e.Terminal() {
		t.Fatal("Engine should be terminal after stop out")
	}
	if d := e.OnPrice(tick(20), 152.00); d != nil {
		t.Error("Terminal engine must ignore further ticks")
	}
}
