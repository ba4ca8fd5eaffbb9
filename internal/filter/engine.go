package filter

import (
	"fmt"
	"math"

	"vwap-trading-bot/internal/analysis"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/patterns"
)

// Engine applies one preset's predicates to confirmed patterns. Presets
// never mutate the shared pattern record: Apply returns an annotated clone.
type Engine struct {
	cfg       Config
	volPeriod int
}

// NewEngine creates a filter engine for a preset
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, volPeriod: 20}
}

// Config returns the preset this engine applies
func (e *Engine) Config() Config {
	return e.cfg
}

// Apply evaluates every predicate against a confirmed pattern. The returned
// clone carries outcome filtered_out with a reason when any predicate
// fails; the original pattern is untouched.
func (e *Engine) Apply(p *patterns.Pattern, series *market.BarSeries) (*patterns.Pattern, string) {
	out := p.Clone()
	if p.Outcome != patterns.OutcomeConfirmed {
		out.Outcome = patterns.OutcomeFilteredOut
		return out, "pattern not confirmed"
	}

	if reason := e.check(p, series); reason != "" {
		out.Outcome = patterns.OutcomeFilteredOut
		return out, reason
	}
	return out, ""
}

// ApplyAll filters a batch of patterns and returns only the passing clones
func (e *Engine) ApplyAll(ps []*patterns.Pattern, series *market.BarSeries) []*patterns.Pattern {
	var passed []*patterns.Pattern
	for _, p := range ps {
		if out, reason := e.Apply(p, series); reason == "" {
			passed = append(passed, out)
		}
	}
	return passed
}

func (e *Engine) check(p *patterns.Pattern, series *market.BarSeries) string {
	if len(e.cfg.AllowedPatterns) > 0 && !patternAllowed(p.Type, e.cfg.AllowedPatterns) {
		return fmt.Sprintf("pattern type %s not allowed", p.Type)
	}

	for _, h := range e.cfg.ExcludedHours {
		if p.DetectedAt.Hour() == h {
			return fmt.Sprintf("detection hour %d excluded", h)
		}
	}

	if e.cfg.VWAPProximityPct > 0 {
		// Live patterns carry the running VWAP from their detection tick;
		// historical patterns fall back to the detection bar.
		vwap := p.VWAPAtDetection
		if vwap <= 0 {
			if idx := barIndexAt(series, p); idx >= 0 {
				vwap = series.At(idx).VWAP
			}
		}
		if vwap <= 0 {
			return "no VWAP reference at detection time"
		}
		dist := math.Abs(p.EntryPrice-vwap) / vwap * 100
		if dist > e.cfg.VWAPProximityPct {
			return fmt.Sprintf("entry %.2f is %.2f%% from VWAP, limit %.2f%%",
				p.EntryPrice, dist, e.cfg.VWAPProximityPct)
		}
	}

	// The remaining predicates read bar history; locate the detection bar
	// only when one of them is enabled.
	if e.cfg.VolumeMultiple <= 0 && !e.cfg.RequireSupportResistance && e.cfg.RequiredTrend == "" {
		return ""
	}
	idx := barIndexAt(series, p)
	if idx < 0 {
		return "no bar data at detection time"
	}
	bar := series.At(idx)

	if e.cfg.VolumeMultiple > 0 {
		avg := series.AverageVolume(idx, e.volPeriod)
		if avg > 0 && bar.Volume < e.cfg.VolumeMultiple*avg {
			return fmt.Sprintf("volume %.0f below %.1fx trailing average %.0f",
				bar.Volume, e.cfg.VolumeMultiple, avg)
		}
	}

	if e.cfg.RequireSupportResistance {
		tol := e.cfg.SRTolerancePct
		if tol <= 0 {
			tol = 0.5
		}
		sub := market.NewBarSeriesFrom(series.Symbol, series.Bars()[:idx+1])
		if !analysis.NearSupportResistance(sub, p.EntryPrice, tol) {
			return "entry not near a support/resistance level"
		}
	}

	if e.cfg.RequiredTrend != "" {
		sub := market.NewBarSeriesFrom(series.Symbol, series.Bars()[:idx+1])
		snap := analysis.ClassifyTrend(sub)
		if snap.Direction != e.cfg.RequiredTrend {
			return fmt.Sprintf("trend %s does not match required %s",
				snap.Direction, e.cfg.RequiredTrend)
		}
	}

	return ""
}

func patternAllowed(typ patterns.PatternType, allowed []patterns.PatternType) bool {
	for _, a := range allowed {
		if a == typ {
			return true
		}
	}
	return false
}

// barIndexAt locates the last bar at or before the pattern's detection time
func barIndexAt(series *market.BarSeries, p *patterns.Pattern) int {
	if series == nil {
		return -1
	}
	bars := series.Bars()
	for i := len(bars) - 1; i >= 0; i-- {
		if !bars[i].Timestamp.After(p.DetectedAt) {
			return i
		}
	}
	return -1
}
