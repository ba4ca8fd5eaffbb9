package patterns

import (
	"time"

	"github.com/google/uuid"
)

// PatternType represents the supported geometric patterns
type PatternType string

const (
	ThreeStepReversal PatternType = "three_step_reversal"
	VWAPBreakout      PatternType = "vwap_breakout"
)

// Outcome represents the post-detection disposition of a pattern
type Outcome string

const (
	OutcomeUnconfirmed Outcome = "unconfirmed"
	OutcomeConfirmed   Outcome = "confirmed"
	OutcomeFilteredOut Outcome = "filtered_out"
)

// TradeResult holds the simulated trade outcome for a back-tested pattern
type TradeResult struct {
	Win          bool          `json:"win"`
	PnLPercent   float64       `json:"pnl_percent"`
	EntryPrice   float64       `json:"entry_price"`
	ExitPrice    float64       `json:"exit_price"`
	HoldDuration time.Duration `json:"hold_duration"`
	ExitReason   string        `json:"exit_reason"`
}

// Pattern represents a completed detection with full stage provenance.
// Fields for the stages of the other pattern type are left zero.
// Patterns are read-only after creation except for outcome annotation.
type Pattern struct {
	ID         string      `json:"id"`
	Symbol     string      `json:"symbol"`
	Type       PatternType `json:"type"`
	DetectedAt time.Time   `json:"detected_at"`

	// 3-Step Reversal stages
	DeclineStart   time.Time `json:"decline_start,omitempty"`
	DeclineHighAt  time.Time `json:"decline_high_at,omitempty"`
	RecoveryStart  time.Time `json:"recovery_start,omitempty"`
	RetraceStart   time.Time `json:"retrace_start,omitempty"`
	DeclineHigh    float64   `json:"decline_high,omitempty"`
	DeclineLow     float64   `json:"decline_low,omitempty"`
	RecoveryHigh   float64   `json:"recovery_high,omitempty"`
	RecoveryLow    float64   `json:"recovery_low,omitempty"`
	RetracementLow float64   `json:"retracement_low,omitempty"`

	// VWAP Breakout stages
	BelowStart         time.Time `json:"below_start,omitempty"`
	StabilizationStart time.Time `json:"stabilization_start,omitempty"`
	BreakoutLevel      float64   `json:"breakout_level,omitempty"`

	// TerminalLow is the reference low the entry confirmation climb is
	// measured from.
	TerminalLow float64 `json:"terminal_low"`
	EntryPrice  float64 `json:"entry_price"`

	// VWAPAtDetection is the running VWAP seen when the pattern completed.
	// Proximity filters read it directly so live patterns need no bar lookup.
	VWAPAtDetection float64 `json:"vwap_at_detection,omitempty"`

	Outcome     Outcome      `json:"outcome"`
	ConfirmedAt time.Time    `json:"confirmed_at,omitempty"`
	Result      *TradeResult `json:"result,omitempty"`
}

func newPattern(symbol string, typ PatternType, detectedAt time.Time) *Pattern {
	return &Pattern{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Type:       typ,
		DetectedAt: detectedAt,
		Outcome:    OutcomeUnconfirmed,
	}
}

// Clone returns a copy of the pattern so filter presets can annotate
// outcomes without mutating the shared record.
func (p *Pattern) Clone() *Pattern {
	cp := *p
	if p.Result != nil {
		r := *p.Result
		cp.Result = &r
	}
	return &cp
}

// ElapsedFunc measures the time between two observations. The default is
// wall-clock; a market-clock variant can exclude closed-session gaps.
type ElapsedFunc func(from, to time.Time) time.Duration

// WallClock is the default stage-window clock
func WallClock(from, to time.Time) time.Duration {
	return to.Sub(from)
}
