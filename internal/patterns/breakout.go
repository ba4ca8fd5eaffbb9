package patterns

import (
	"time"

	"vwap-trading-bot/internal/market"
)

// BreakoutConfig holds the thresholds of the VWAP Breakout detector
type BreakoutConfig struct {
	BandPct           float64       `json:"band_pct"`           // Stabilization band around VWAP, percent
	HoldPct           float64       `json:"hold_pct"`           // Required hold above VWAP, percent
	StabilizationTime time.Duration `json:"stabilization_time"` // Continuous time inside the band
}

// DefaultBreakoutConfig returns the standard 0.2%/60s breakout thresholds
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		BandPct:           0.2,
		HoldPct:           0.2,
		StabilizationTime: 60 * time.Second,
	}
}

type breakoutState int

const (
	breakoutBelow breakoutState = iota
	breakoutStabilizing
	breakoutArmed // stabilization satisfied, waiting for the hold above VWAP
)

// BreakoutDetector is the streaming state machine for the VWAP Breakout
// pattern. One instance tracks one symbol; it is not safe for concurrent use.
type BreakoutDetector struct {
	symbol  string
	cfg     BreakoutConfig
	elapsed ElapsedFunc

	state      breakoutState
	belowStart time.Time
	belowSeen  bool
	stabStart  time.Time
	low        float64 // lowest price since the below-VWAP phase began
}

// NewBreakoutDetector creates a breakout detector for a symbol
func NewBreakoutDetector(symbol string, cfg BreakoutConfig, elapsed ElapsedFunc) *BreakoutDetector {
	if elapsed == nil {
		elapsed = WallClock
	}
	return &BreakoutDetector{
		symbol:  symbol,
		cfg:     cfg,
		elapsed: elapsed,
	}
}

// Reset discards any in-flight candidate
func (d *BreakoutDetector) Reset() {
	d.state = breakoutBelow
	d.belowSeen = false
	d.low = 0
}

// Observe feeds one price/VWAP observation into the state machine. It
// returns a completed Pattern when the breakout holds, else nil.
func (d *BreakoutDetector) Observe(ts time.Time, price, vwap float64) *Pattern {
	if vwap <= 0 {
		return nil
	}

	bandLow := vwap * (1 - d.cfg.BandPct/100)
	bandHigh := vwap * (1 + d.cfg.BandPct/100)
	holdLevel := vwap * (1 + d.cfg.HoldPct/100)

	if d.belowSeen && (d.low == 0 || price < d.low) {
		d.low = price
	}

	switch d.state {
	case breakoutBelow:
		if price < vwap && !d.belowSeen {
			d.belowSeen = true
			d.belowStart = ts
			d.low = price
		}
		if !d.belowSeen {
			return nil
		}
		switch {
		case price > bandHigh:
			// Jumped over the band without stabilizing; a fresh move below
			// VWAP is required before a new candidate can form.
			d.belowSeen = false
		case price >= bandLow:
			d.state = breakoutStabilizing
			d.stabStart = ts
		}

	case breakoutStabilizing:
		if price < bandLow {
			// Re-crossed below the band: reset to state one
			d.state = breakoutBelow
			return nil
		}
		if d.elapsed(d.stabStart, ts) >= d.cfg.StabilizationTime {
			d.state = breakoutArmed
			return d.checkBreakout(ts, price, vwap, holdLevel)
		}
		if price > bandHigh {
			// Left the band upward before stabilizing long enough
			d.state = breakoutBelow
			d.belowSeen = false
			return nil
		}

	case breakoutArmed:
		if price < bandLow {
			d.state = breakoutBelow
			d.belowSeen = true
			d.belowStart = ts
			return nil
		}
		return d.checkBreakout(ts, price, vwap, holdLevel)
	}
	return nil
}

func (d *BreakoutDetector) checkBreakout(ts time.Time, price, vwap, holdLevel float64) *Pattern {
	if price < holdLevel {
		return nil
	}

	p := newPattern(d.symbol, VWAPBreakout, ts)
	p.BelowStart = d.belowStart
	p.StabilizationStart = d.stabStart
	p.BreakoutLevel = vwap
	// Confirmation climbs are measured from the breakout level, not the
	// below-VWAP low, which the breakout itself has already left behind.
	p.TerminalLow = vwap
	p.EntryPrice = price
	p.VWAPAtDetection = vwap

	d.Reset()
	return p
}

// ScanSeries runs the detector over a full bar series using each bar's
// close against its running VWAP.
func (d *BreakoutDetector) ScanSeries(series *market.BarSeries) []*Pattern {
	var found []*Pattern
	for _, bar := range series.Bars() {
		if p := d.Observe(bar.Timestamp, bar.Close, bar.VWAP); p != nil {
			found = append(found, p)
		}
	}
	return found
}
