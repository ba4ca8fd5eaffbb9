package patterns

import (
	"sort"
	"time"

	"vwap-trading-bot/internal/market"
)

// DetectorConfig bundles the per-pattern configurations
type DetectorConfig struct {
	Reversal ReversalConfig `json:"reversal"`
	Breakout BreakoutConfig `json:"breakout"`
}

// DefaultDetectorConfig returns the standard thresholds for both patterns
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Reversal: DefaultReversalConfig(),
		Breakout: DefaultBreakoutConfig(),
	}
}

// Detector runs both pattern state machines for a single symbol. The two
// detectors are independent; a symbol may carry in-flight candidates of
// both types at once.
type Detector struct {
	Symbol   string
	reversal *ReversalDetector
	breakout *BreakoutDetector
}

// NewDetector creates a combined detector for a symbol
func NewDetector(symbol string, cfg DetectorConfig, elapsed ElapsedFunc) *Detector {
	return &Detector{
		Symbol:   symbol,
		reversal: NewReversalDetector(symbol, cfg.Reversal, elapsed),
		breakout: NewBreakoutDetector(symbol, cfg.Breakout, elapsed),
	}
}

// Observe feeds a live price/VWAP observation to both state machines and
// returns any patterns completed on this observation.
func (d *Detector) Observe(ts time.Time, price, vwap float64) []*Pattern {
	var out []*Pattern
	if p := d.reversal.Observe(ts, price); p != nil {
		p.VWAPAtDetection = vwap
		out = append(out, p)
	}
	if p := d.breakout.Observe(ts, price, vwap); p != nil {
		out = append(out, p)
	}
	return out
}

// Reset discards all in-flight candidates, e.g. when the symbol is removed
// from the active watchlist mid-session.
func (d *Detector) Reset() {
	d.reversal.Reset()
	d.breakout.Reset()
}

// ScanSeries runs both detectors over historical bars and returns all
// completed patterns in detection order.
func ScanSeries(series *market.BarSeries, cfg DetectorConfig, elapsed ElapsedFunc) ([]*Pattern, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	rev := NewReversalDetector(series.Symbol, cfg.Reversal, elapsed)
	brk := NewBreakoutDetector(series.Symbol, cfg.Breakout, elapsed)

	patterns := rev.ScanSeries(series)
	patterns = append(patterns, brk.ScanSeries(series)...)

	sortPatternsByTime(patterns)
	return patterns, nil
}

func sortPatternsByTime(ps []*Pattern) {
	sort.SliceStable(ps, func(i, j int) bool {
		return ps[i].DetectedAt.Before(ps[j].DetectedAt)
	})
}
