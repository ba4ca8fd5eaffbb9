package patterns

import (
	"time"

	"vwap-trading-bot/internal/market"
)

// ConfirmationConfig holds the entry-confirmation rule parameters
type ConfirmationConfig struct {
	ClimbPct float64       `json:"climb_pct"` // Required climb from the terminal low, percent
	Window   time.Duration `json:"window"`    // Confirmation deadline after detection
}

// DefaultConfirmationConfig returns the standard +0.5%/3min rule
func DefaultConfirmationConfig() ConfirmationConfig {
	return ConfirmationConfig{
		ClimbPct: 0.5,
		Window:   3 * time.Minute,
	}
}

// ConfirmationTracker validates a single completed pattern against the
// post-pattern climb rule on live observations.
type ConfirmationTracker struct {
	Pattern *Pattern
	cfg     ConfirmationConfig
	elapsed ElapsedFunc
	target  float64
	done    bool
}

// NewConfirmationTracker starts tracking confirmation for a pattern
func NewConfirmationTracker(p *Pattern, cfg ConfirmationConfig, elapsed ElapsedFunc) *ConfirmationTracker {
	if elapsed == nil {
		elapsed = WallClock
	}
	return &ConfirmationTracker{
		Pattern: p,
		cfg:     cfg,
		elapsed: elapsed,
		target:  p.TerminalLow * (1 + cfg.ClimbPct/100),
	}
}

// Observe feeds one live price. It returns (confirmed, done): done is true
// once the tracker has reached a verdict either way. Expired candidates are
// marked unconfirmed and kept for statistics only.
func (c *ConfirmationTracker) Observe(ts time.Time, price float64) (bool, bool) {
	if c.done {
		return c.Pattern.Outcome == OutcomeConfirmed, true
	}
	if c.elapsed(c.Pattern.DetectedAt, ts) > c.cfg.Window {
		c.Pattern.Outcome = OutcomeUnconfirmed
		c.done = true
		return false, true
	}
	if price >= c.target {
		c.Pattern.Outcome = OutcomeConfirmed
		c.Pattern.ConfirmedAt = ts
		c.Pattern.EntryPrice = price
		c.done = true
		return true, true
	}
	return false, false
}

// ConfirmHistorical annotates a pattern's outcome from the bars following
// its detection. Returns true when the pattern confirmed.
func ConfirmHistorical(p *Pattern, series *market.BarSeries, cfg ConfirmationConfig, elapsed ElapsedFunc) bool {
	if elapsed == nil {
		elapsed = WallClock
	}
	target := p.TerminalLow * (1 + cfg.ClimbPct/100)

	for _, bar := range series.Bars() {
		if !bar.Timestamp.After(p.DetectedAt) {
			continue
		}
		if elapsed(p.DetectedAt, bar.Timestamp) > cfg.Window {
			break
		}
		if bar.High >= target {
			p.Outcome = OutcomeConfirmed
			p.ConfirmedAt = bar.Timestamp
			p.EntryPrice = target
			return true
		}
	}
	p.Outcome = OutcomeUnconfirmed
	return false
}
