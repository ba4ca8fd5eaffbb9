package risk

import (
	"fmt"
	"sync"
	"time"
)

// Config holds the account-level guardrail parameters
type Config struct {
	DailyLossLimitPct float64 `json:"daily_loss_limit_pct"` // Halt at this % of starting balance, positive
	MaxOpenPositions  int     `json:"max_open_positions"`
	DeploymentRatio   float64 `json:"deployment_ratio"` // Fraction of balance deployed across the portfolio
}

// DefaultConfig returns the standard guardrails
func DefaultConfig() Config {
	return Config{
		DailyLossLimitPct: 1.5,
		MaxOpenPositions:  8,
		DeploymentRatio:   0.9,
	}
}

// State is the process-wide risk snapshot for the trading session
type State struct {
	StartingBalance        float64   `json:"starting_balance"`
	CumulativeRealizedPnL  float64   `json:"cumulative_realized_pnl"`
	DailyLossLimitBreached bool      `json:"daily_loss_limit_breached"`
	TradingHalted          bool      `json:"trading_halted"`
	OpenPositions          int       `json:"open_positions"`
	SessionStart           time.Time `json:"session_start"`
	HaltedAt               time.Time `json:"halted_at,omitempty"`
	ExitFailures           int       `json:"exit_failures"`
}

// Manager is the single-writer aggregator for session risk state. Entries
// across symbols complete concurrently, so every mutation is serialized
// behind one mutex. A halt blocks new entries only; open positions are
// always managed to a terminal exit.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	state State
}

// NewManager creates a risk manager with no active session
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// StartSession resets the risk state for a new trading day. This is the
// only way a halt clears.
func (m *Manager) StartSession(startingBalance float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{
		StartingBalance: startingBalance,
		SessionStart:    now,
	}
}

// CanEnter reports whether a new entry is admissible
func (m *Manager) CanEnter() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.TradingHalted {
		return false, "trading halted: daily loss limit breached"
	}
	if m.state.OpenPositions >= m.cfg.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)",
			m.state.OpenPositions, m.cfg.MaxOpenPositions)
	}
	return true, ""
}

// RegisterEntry records a newly opened position
func (m *Manager) RegisterEntry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.OpenPositions++
}

// RegisterExit records a closed position's realized P&L and trips the halt
// when the session loss limit is reached. Halting is terminal for the
// session; it never auto-resumes.
func (m *Manager) RegisterExit(realizedPnL float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.OpenPositions > 0 {
		m.state.OpenPositions--
	}
	m.state.CumulativeRealizedPnL += realizedPnL
	m.checkLimitLocked(now)
}

// RegisterExitFailure records an escalated exit whose order could not be
// submitted. The estimated P&L is still counted so the session total does
// not drift from reality.
func (m *Manager) RegisterExitFailure(estimatedPnL float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.OpenPositions > 0 {
		m.state.OpenPositions--
	}
	m.state.ExitFailures++
	m.state.CumulativeRealizedPnL += estimatedPnL
	m.checkLimitLocked(now)
}

func (m *Manager) checkLimitLocked(now time.Time) {
	if m.state.TradingHalted || m.state.StartingBalance <= 0 {
		return
	}
	limit := -m.cfg.DailyLossLimitPct / 100 * m.state.StartingBalance
	if m.state.CumulativeRealizedPnL <= limit {
		m.state.DailyLossLimitBreached = true
		m.state.TradingHalted = true
		m.state.HaltedAt = now
	}
}

// Halted reports whether new entries are blocked
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TradingHalted
}

// Snapshot returns a copy of the current risk state
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PositionSize computes the share quantity for a new entry from the
// deployable balance split across the configured position slots.
func (m *Manager) PositionSize(entryPrice float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryPrice <= 0 || m.cfg.MaxOpenPositions <= 0 {
		return 0
	}
	deployable := m.state.StartingBalance * m.cfg.DeploymentRatio
	perSlot := deployable / float64(m.cfg.MaxOpenPositions)
	return perSlot / entryPrice
}
