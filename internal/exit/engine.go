package exit

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// MilestoneState represents the profit-lock progression of a position.
// States only move forward; the sole path out of a locked state is an exit.
type MilestoneState string

const (
	StateNone              MilestoneState = "none"
	StateT1Locked          MilestoneState = "t1_locked"
	StateCrossLocked       MilestoneState = "cross_locked"
	StateMomentumConfirmed MilestoneState = "momentum_confirmed"
	StateExited            MilestoneState = "exited"
	StateStoppedOut        MilestoneState = "stopped_out"
)

// ExitReason identifies which rule closed the position
type ExitReason string

const (
	ReasonT1       ExitReason = "T1"
	ReasonCross    ExitReason = "CROSS"
	ReasonT2       ExitReason = "T2"
	ReasonDeadZone ExitReason = "DEAD_ZONE"
	ReasonStopLoss ExitReason = "STOP_LOSS"
)

// Thresholds holds the milestone and dead-zone parameters of the exit
// ladder, in percent P&L relative to entry.
type Thresholds struct {
	StopLossPct float64 `json:"stop_loss_pct"` // Exit at or below, negative
	T1Pct       float64 `json:"t1_pct"`        // First profit lock
	CrossPct    float64 `json:"cross_pct"`     // Second profit lock
	MomentumPct float64 `json:"momentum_pct"`  // T2 pursuit begins
	T2Pct       float64 `json:"t2_pct"`        // Full target exit

	BelowT1Timeout  time.Duration `json:"below_t1_timeout"`
	T1Timeout       time.Duration `json:"t1_timeout"`
	CrossTimeout    time.Duration `json:"cross_timeout"`
	MomentumTimeout time.Duration `json:"momentum_timeout"`
}

// DefaultThresholds returns the standard exit ladder
func DefaultThresholds() Thresholds {
	return Thresholds{
		StopLossPct:     -0.5,
		T1Pct:           0.75,
		CrossPct:        1.0,
		MomentumPct:     1.25,
		T2Pct:           1.75,
		BelowT1Timeout:  3 * time.Minute,
		T1Timeout:       4 * time.Minute,
		CrossTimeout:    4 * time.Minute,
		MomentumTimeout: 6 * time.Minute,
	}
}

// Position represents an open trade managed by an exit Engine
type Position struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	EntryPrice  float64   `json:"entry_price"`
	EntryTime   time.Time `json:"entry_time"`
	Quantity    float64   `json:"quantity"`
	EntryReason string    `json:"entry_reason"` // pattern type that triggered entry
}

// NewPosition creates a position record for a confirmed entry
func NewPosition(symbol string, entryPrice float64, entryTime time.Time, quantity float64, reason string) Position {
	return Position{
		ID:          uuid.New().String(),
		Symbol:      symbol,
		EntryPrice:  entryPrice,
		EntryTime:   entryTime,
		Quantity:    quantity,
		EntryReason: reason,
	}
}

// Decision is the engine's verdict for one price tick
type Decision struct {
	Exit   bool
	Reason ExitReason
	Price  float64
	State  MilestoneState
}

// Engine is the per-position tiered exit state machine. It is driven by
// price ticks and always runs to a terminal state; it is not safe for
// concurrent use (each open position owns one engine).
type Engine struct {
	pos        Position
	cfg        Thresholds
	state      MilestoneState
	floor      float64 // locked floor price, 0 until T1
	t1Floor    float64
	crossFloor float64
	stateSince time.Time
}

// NewEngine creates an exit engine for an open position
func NewEngine(pos Position, cfg Thresholds) *Engine {
	e := &Engine{
		pos:        pos,
		cfg:        cfg,
		state:      StateNone,
		stateSince: pos.EntryTime,
	}
	e.t1Floor = roundCents(pos.EntryPrice * (1 + cfg.T1Pct/100))
	e.crossFloor = roundCents(pos.EntryPrice * (1 + cfg.CrossPct/100))
	return e
}

// State returns the current milestone state
func (e *Engine) State() MilestoneState {
	return e.state
}

// Floor returns the currently locked floor price (0 before T1)
func (e *Engine) Floor() float64 {
	return e.floor
}

// Position returns the managed position record
func (e *Engine) Position() Position {
	return e.pos
}

// Terminal reports whether the engine has reached a terminal state
func (e *Engine) Terminal() bool {
	return e.state == StateExited || e.state == StateStoppedOut
}

// OnPrice advances the state machine with one tick. It returns a non-nil
// Decision with Exit=true exactly once, when the position closes.
func (e *Engine) OnPrice(ts time.Time, price float64) *Decision {
	if e.Terminal() {
		return nil
	}

	pnlPct := (price - e.pos.EntryPrice) / e.pos.EntryPrice * 100

	// Stop loss applies from every live state
	if pnlPct <= e.cfg.StopLossPct {
		e.state = StateStoppedOut
		return &Decision{Exit: true, Reason: ReasonStopLoss, Price: price, State: e.state}
	}

	// Locked-floor breach exits at the floor, not the traded price
	if (e.state == StateCrossLocked || e.state == StateMomentumConfirmed) && price < e.floor {
		reason := ReasonCross
		if e.floor == e.t1Floor {
			reason = ReasonT1
		}
		e.state = StateExited
		return &Decision{Exit: true, Reason: reason, Price: e.floor, State: e.state}
	}

	// Milestone promotions; a single tick may climb several rungs
	if e.state == StateNone && pnlPct >= e.cfg.T1Pct {
		e.advance(StateT1Locked, e.t1Floor, ts)
	}
	if e.state == StateT1Locked && pnlPct >= e.cfg.CrossPct {
		e.advance(StateCrossLocked, e.crossFloor, ts)
	}
	if e.state == StateCrossLocked && pnlPct >= e.cfg.MomentumPct {
		// T2 pursuit: no floor raise
		e.advance(StateMomentumConfirmed, e.floor, ts)
	}
	if e.state == StateMomentumConfirmed && pnlPct >= e.cfg.T2Pct {
		e.state = StateExited
		return &Decision{Exit: true, Reason: ReasonT2, Price: price, State: e.state}
	}

	return e.checkDeadZone(ts, price, pnlPct)
}

// advance moves to the next milestone, never lowering a locked floor
func (e *Engine) advance(next MilestoneState, floor float64, ts time.Time) {
	e.state = next
	if floor > e.floor {
		e.floor = floor
	}
	e.stateSince = ts
}

// checkDeadZone applies the per-state timeout for positions that stall
// without progressing to the next milestone.
func (e *Engine) checkDeadZone(ts time.Time, price, pnlPct float64) *Decision {
	inState := ts.Sub(e.stateSince)

	switch e.state {
	case StateNone:
		// Stalled below T1: exit only if there is anything to take
		if inState >= e.cfg.BelowT1Timeout && pnlPct > 0 {
			e.state = StateExited
			return &Decision{Exit: true, Reason: ReasonDeadZone, Price: price, State: e.state}
		}
	case StateT1Locked:
		if inState >= e.cfg.T1Timeout {
			e.state = StateExited
			return &Decision{Exit: true, Reason: ReasonDeadZone, Price: e.t1Floor, State: e.state}
		}
	case StateCrossLocked:
		if inState >= e.cfg.CrossTimeout {
			e.state = StateExited
			return &Decision{Exit: true, Reason: ReasonDeadZone, Price: e.crossFloor, State: e.state}
		}
	case StateMomentumConfirmed:
		if inState >= e.cfg.MomentumTimeout {
			e.state = StateExited
			return &Decision{Exit: true, Reason: ReasonDeadZone, Price: price, State: e.state}
		}
	}
	return nil
}

func roundCents(x float64) float64 {
	return math.Round(x*100) / 100
}
