package patterns

import (
	"time"

	"vwap-trading-bot/internal/market"
)

// ReversalConfig holds the thresholds and stage windows of the 3-Step
// Geometric Reversal detector.
type ReversalConfig struct {
	DeclinePct     float64       `json:"decline_pct"`     // Min drop from window high, percent
	RecoveryRatio  float64       `json:"recovery_ratio"`  // Fraction of the decline to recover
	RetraceRatio   float64       `json:"retrace_ratio"`   // Fraction of the recovery to give back
	DeclineWindow  time.Duration `json:"decline_window"`  // Trailing window for the local high
	RecoveryWindow time.Duration `json:"recovery_window"` // Stage 2 timeout
	RetraceWindow  time.Duration `json:"retrace_window"`  // Stage 3 timeout
}

// DefaultReversalConfig returns the standard 1%/50%/50% W-shape thresholds
func DefaultReversalConfig() ReversalConfig {
	return ReversalConfig{
		DeclinePct:     1.0,
		RecoveryRatio:  0.5,
		RetraceRatio:   0.5,
		DeclineWindow:  3 * time.Minute,
		RecoveryWindow: 2 * time.Minute,
		RetraceWindow:  2 * time.Minute,
	}
}

type reversalState int

const (
	reversalIdle reversalState = iota
	reversalDeclined
	reversalRecovered
)

type observation struct {
	time  time.Time
	price float64
}

// ReversalDetector is the streaming state machine for the 3-Step Geometric
// Reversal ("W" shape). One instance tracks one symbol; it is not safe for
// concurrent use.
type ReversalDetector struct {
	symbol  string
	cfg     ReversalConfig
	elapsed ElapsedFunc

	state  reversalState
	window []observation // trailing price window while idle

	declineHigh     float64
	declineHighTime time.Time
	declineLow      float64
	declineStart    time.Time

	recoveryHigh  float64
	recoveryStart time.Time
}

// NewReversalDetector creates a reversal detector for a symbol
func NewReversalDetector(symbol string, cfg ReversalConfig, elapsed ElapsedFunc) *ReversalDetector {
	if elapsed == nil {
		elapsed = WallClock
	}
	return &ReversalDetector{
		symbol:  symbol,
		cfg:     cfg,
		elapsed: elapsed,
	}
}

// Reset discards any in-flight candidate
func (d *ReversalDetector) Reset() {
	d.state = reversalIdle
	d.window = d.window[:0]
}

// Observe feeds one price observation into the state machine. It returns a
// completed Pattern when the retracement target is reached, else nil.
func (d *ReversalDetector) Observe(ts time.Time, price float64) *Pattern {
	switch d.state {
	case reversalIdle:
		d.observeIdle(ts, price)
	case reversalDeclined:
		return d.observeDeclined(ts, price)
	case reversalRecovered:
		return d.observeRecovered(ts, price)
	}
	return nil
}

// observeIdle maintains the trailing window and flags a decline once price
// falls DeclinePct below the window high.
func (d *ReversalDetector) observeIdle(ts time.Time, price float64) {
	d.window = append(d.window, observation{time: ts, price: price})
	d.trimWindow(ts)

	high, highTime := d.windowHigh()
	if high <= 0 {
		return
	}
	dropPct := (high - price) / high * 100
	if dropPct < d.cfg.DeclinePct {
		return
	}

	d.state = reversalDeclined
	d.declineHigh = high
	d.declineHighTime = highTime
	d.declineLow = price
	d.declineStart = ts
}

// observeDeclined waits for the recovery target within the stage window.
// The decline low keeps tracking new lows until recovery begins.
func (d *ReversalDetector) observeDeclined(ts time.Time, price float64) *Pattern {
	if d.elapsed(d.declineStart, ts) > d.cfg.RecoveryWindow {
		d.resetTo(ts, price)
		return nil
	}
	if price < d.declineLow {
		d.declineLow = price
	}

	target := d.declineLow + d.cfg.RecoveryRatio*(d.declineHigh-d.declineLow)
	if price < target {
		return nil
	}

	d.state = reversalRecovered
	d.recoveryHigh = price
	d.recoveryStart = ts
	return nil
}

// observeRecovered waits for the retracement target, completing the pattern
func (d *ReversalDetector) observeRecovered(ts time.Time, price float64) *Pattern {
	if d.elapsed(d.recoveryStart, ts) > d.cfg.RetraceWindow {
		d.resetTo(ts, price)
		return nil
	}
	if price > d.recoveryHigh {
		d.recoveryHigh = price
	}
	// A fall through the original low is a fresh decline, not a retracement
	if price < d.declineLow {
		d.resetTo(ts, price)
		return nil
	}

	target := d.recoveryHigh - d.cfg.RetraceRatio*(d.recoveryHigh-d.declineLow)
	if price > target {
		return nil
	}

	p := newPattern(d.symbol, ThreeStepReversal, ts)
	p.DeclineStart = d.declineStart
	p.DeclineHighAt = d.declineHighTime
	p.RecoveryStart = d.recoveryStart
	p.RetraceStart = ts
	p.DeclineHigh = d.declineHigh
	p.DeclineLow = d.declineLow
	p.RecoveryHigh = d.recoveryHigh
	p.RecoveryLow = d.declineLow
	p.RetracementLow = price
	p.TerminalLow = price
	p.EntryPrice = price

	d.resetTo(ts, price)
	return p
}

func (d *ReversalDetector) resetTo(ts time.Time, price float64) {
	d.state = reversalIdle
	d.window = d.window[:0]
	d.window = append(d.window, observation{time: ts, price: price})
}

func (d *ReversalDetector) trimWindow(now time.Time) {
	cut := 0
	for cut < len(d.window) && d.elapsed(d.window[cut].time, now) > d.cfg.DeclineWindow {
		cut++
	}
	if cut > 0 {
		d.window = d.window[cut:]
	}
}

func (d *ReversalDetector) windowHigh() (float64, time.Time) {
	high := 0.0
	var highTime time.Time
	for _, o := range d.window {
		if o.price > high {
			high = o.price
			highTime = o.time
		}
	}
	return high, highTime
}

// ScanSeries runs the detector over a full bar series and returns every
// completed pattern. Each bar contributes its high, low, and close as
// observations so intra-bar extremes count toward stage targets.
func (d *ReversalDetector) ScanSeries(series *market.BarSeries) []*Pattern {
	var found []*Pattern
	for _, bar := range series.Bars() {
		for _, price := range []float64{bar.High, bar.Low, bar.Close} {
			if p := d.Observe(bar.Timestamp, price); p != nil {
				p.VWAPAtDetection = bar.VWAP
				found = append(found, p)
			}
		}
	}
	return found
}
