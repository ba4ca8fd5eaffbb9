package patterns

import (
	"testing"
)

const testVWAP = 100.0

// feedBreakout walks a detector through a below / stabilize / breakout
// sequence against a flat VWAP of 100.
func feedBreakout(d *BreakoutDetector) *Pattern {
	steps := []struct {
		sec   int
		price float64
	}{
		{0, 99.50},   // below VWAP, under the band
		{10, 99.90},  // enters the ±0.2% band: stabilization starts
		{40, 100.05}, // holds inside the band
		{70, 100.10}, // 60s of stabilization reached
		{80, 100.25}, // holds ≥ +0.2% above VWAP: breakout
	}
	var got *Pattern
	for _, s := range steps {
		if p := d.Observe(at(s.sec), s.price, testVWAP); p != nil {
			got = p
		}
	}
	return got
}

func TestBreakoutDetected(t *testing.T) {
	d := NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil)

	p := feedBreakout(d)
	if p == nil {
		t.Fatal("Should detect VWAP breakout")
	}
	if p.Type != VWAPBreakout {
		t.Errorf("Wrong pattern type: %s", p.Type)
	}
	if p.BreakoutLevel != testVWAP {
		t.Errorf("BreakoutLevel = %.2f, want %.2f", p.BreakoutLevel, testVWAP)
	}
	if p.TerminalLow != testVWAP {
		t.Errorf("TerminalLow = %.2f, want breakout level %.2f", p.TerminalLow, testVWAP)
	}
	if p.VWAPAtDetection != testVWAP {
		t.Errorf("VWAPAtDetection = %.2f, want %.2f", p.VWAPAtDetection, testVWAP)
	}
	if !p.BelowStart.Equal(at(0)) {
		t.Errorf("BelowStart = %v, want %v", p.BelowStart, at(0))
	}
	if !p.StabilizationStart.Equal(at(10)) {
		t.Errorf("StabilizationStart = %v, want %v", p.StabilizationStart, at(10))
	}
}

func TestBreakoutRequiresStabilizationTime(t *testing.T) {
	d := NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil)

	d.Observe(at(0), 99.50, testVWAP)
	d.Observe(at(10), 99.90, testVWAP)
	// Pushes to the hold level only 20s into stabilization
	if p := d.Observe(at(30), 100.30, testVWAP); p != nil {
		t.Error("Breakout before 60s of stabilization should not complete")
	}
	if d.state != breakoutBelow {
		t.Error("Early band exit should reset the candidate")
	}
}

func TestBreakoutBandViolationResets(t *testing.T) {
	d := NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil)

	d.Observe(at(0), 99.50, testVWAP)
	d.Observe(at(10), 99.90, testVWAP)
	d.Observe(at(40), 99.70, testVWAP) // re-crosses below the band
	if d.state != breakoutBelow {
		t.Error("Re-cross below the band should reset to the below-VWAP state")
	}

	// A later full sequence still detects
	d.Observe(at(60), 99.85, testVWAP)
	d.Observe(at(130), 100.00, testVWAP)
	if p := d.Observe(at(140), 100.30, testVWAP); p == nil {
		t.Error("Fresh sequence after a reset should detect")
	}
}

func TestBreakoutNeverBelowVWAP(t *testing.T) {
	d := NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil)

	// Price never trades below VWAP, so no candidate can arm
	for i, price := range []float64{100.10, 100.05, 100.15, 100.40} {
		if p := d.Observe(at(i*30), price, testVWAP); p != nil {
			t.Fatal("Should not detect breakout without a below-VWAP phase")
		}
	}
}

func TestBreakoutDeterminism(t *testing.T) {
	a := feedBreakout(NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil))
	b := feedBreakout(NewBreakoutDetector("MSFT", DefaultBreakoutConfig(), nil))
	if a == nil || b == nil {
		t.Fatal("Both runs should detect the pattern")
	}
	if a.BreakoutLevel != b.BreakoutLevel || !a.DetectedAt.Equal(b.DetectedAt) {
		t.Error("Identical price paths should produce identical patterns")
	}
}
