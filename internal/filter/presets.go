package filter

import (
	"vwap-trading-bot/internal/analysis"
	"vwap-trading-bot/internal/patterns"
)

// Preset names. Each preset is an independent filter regime; the same
// confirmed pattern may pass under one preset and fail under another.
const (
	PresetDefault      = "Default"
	PresetConservative = "Conservative"
	PresetAggressive   = "Aggressive"
	PresetChoppy       = "Choppy"
	PresetTrending     = "Trending"
	PresetExperimental = "Experimental"
	PresetAltPattern   = "AltPattern"
)

// Config holds the thresholds of one named filter preset. Zero values
// disable the corresponding predicate, which is how the user-supplied
// Experimental preset starts out.
type Config struct {
	Name                     string                   `json:"name"`
	VWAPProximityPct         float64                  `json:"vwap_proximity_pct"`
	VolumeMultiple           float64                  `json:"volume_multiple"`
	ExcludedHours            []int                    `json:"excluded_hours"`
	RequireSupportResistance bool                     `json:"require_support_resistance"`
	SRTolerancePct           float64                  `json:"sr_tolerance_pct"`
	RequiredTrend            analysis.TrendDirection  `json:"required_trend"` // empty = any
	AllowedPatterns          []patterns.PatternType   `json:"allowed_patterns"`
}

// BuiltinPresets returns the named filter regimes. The Experimental preset
// has no fixed thresholds; it is returned empty and is expected to be
// overridden from configuration.
func BuiltinPresets() []Config {
	return []Config{
		{
			Name:             PresetDefault,
			VWAPProximityPct: 1.0,
			VolumeMultiple:   1.5,
		},
		{
			Name:                     PresetConservative,
			VWAPProximityPct:         0.5,
			VolumeMultiple:           2.0,
			ExcludedHours:            []int{9, 15},
			RequireSupportResistance: true,
			SRTolerancePct:           0.5,
			RequiredTrend:            analysis.TrendUp,
		},
		{
			Name:             PresetAggressive,
			VWAPProximityPct: 2.0,
			VolumeMultiple:   1.2,
		},
		{
			Name:                     PresetChoppy,
			VWAPProximityPct:         0.8,
			VolumeMultiple:           1.8,
			ExcludedHours:            []int{12, 13},
			RequireSupportResistance: true,
			SRTolerancePct:           0.5,
			RequiredTrend:            analysis.TrendNeutral,
		},
		{
			Name:             PresetTrending,
			VWAPProximityPct: 1.5,
			VolumeMultiple:   1.5,
			RequiredTrend:    analysis.TrendUp,
		},
		{
			// Thresholds supplied by the operator, all predicates disabled
			// until configured
			Name: PresetExperimental,
		},
		{
			Name:             PresetAltPattern,
			VWAPProximityPct: 1.0,
			VolumeMultiple:   1.5,
			AllowedPatterns:  []patterns.PatternType{patterns.VWAPBreakout},
		},
	}
}

// PresetByName finds a preset in a list, falling back to Default semantics
func PresetByName(presets []Config, name string) (Config, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Config{}, false
}
