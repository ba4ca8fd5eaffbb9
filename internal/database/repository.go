package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vwap-trading-bot/internal/forecast"
	"vwap-trading-bot/internal/orders"
	"vwap-trading-bot/internal/patterns"
	"vwap-trading-bot/internal/scoring"
)

// Repository provides data access for pattern history, forecasts, score
// cards and fills
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies the database connection is alive
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SavePattern stores a detected pattern. The full pattern struct is kept as
// a JSON payload alongside the queryable columns.
func (r *Repository) SavePattern(ctx context.Context, p *patterns.Pattern) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pattern: %w", err)
	}

	query := `
		INSERT INTO patterns (id, symbol, pattern_type, detected_at, confirmed_at, entry_price, terminal_low, outcome, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			confirmed_at = EXCLUDED.confirmed_at,
			entry_price = EXCLUDED.entry_price,
			outcome = EXCLUDED.outcome,
			payload = EXCLUDED.payload`

	var confirmedAt *time.Time
	if !p.ConfirmedAt.IsZero() {
		confirmedAt = &p.ConfirmedAt
	}

	_, err = r.db.Pool.Exec(ctx, query,
		p.ID, p.Symbol, string(p.Type), p.DetectedAt, confirmedAt,
		p.EntryPrice, p.TerminalLow, string(p.Outcome), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// GetPatterns returns patterns detected in [from, to) for a symbol, oldest
// first. An empty symbol returns all symbols.
func (r *Repository) GetPatterns(ctx context.Context, symbol string, from, to time.Time) ([]*patterns.Pattern, error) {
	query := `
		SELECT payload FROM patterns
		WHERE detected_at >= $1 AND detected_at < $2
		AND ($3 = '' OR symbol = $3)
		ORDER BY detected_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, from, to, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []*patterns.Pattern
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		var p patterns.Pattern
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pattern: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SaveForecast stores one preset's session forecast, replacing any earlier
// forecast for the same preset and session
func (r *Repository) SaveForecast(ctx context.Context, fc *forecast.Forecast) error {
	payload, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	query := `
		INSERT INTO forecasts (preset, session_date, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (preset, session_date) DO UPDATE SET payload = EXCLUDED.payload`

	_, err = r.db.Pool.Exec(ctx, query, fc.Preset, fc.GeneratedAt.Truncate(24*time.Hour), payload)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// GetForecasts returns all preset forecasts for a session date
func (r *Repository) GetForecasts(ctx context.Context, session time.Time) ([]forecast.Forecast, error) {
	query := `SELECT payload FROM forecasts WHERE session_date = $1 ORDER BY preset ASC`

	rows, err := r.db.Pool.Query(ctx, query, session.Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	defer rows.Close()

	var out []forecast.Forecast
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		var fc forecast.Forecast
		if err := json.Unmarshal(payload, &fc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal forecast: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// SaveScoreCard stores a symbol's daily score card
func (r *Repository) SaveScoreCard(ctx context.Context, card *scoring.ScoreCard) error {
	categories, err := json.Marshal(card.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	query := `
		INSERT INTO scorecards (symbol, session_date, composite, risk_class, categories)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, session_date) DO UPDATE SET
			composite = EXCLUDED.composite,
			risk_class = EXCLUDED.risk_class,
			categories = EXCLUDED.categories`

	_, err = r.db.Pool.Exec(ctx, query,
		card.Symbol, card.Session.Truncate(24*time.Hour), card.Composite, string(card.RiskClass), categories,
	)
	if err != nil {
		return fmt.Errorf("failed to save score card: %w", err)
	}
	return nil
}

// GetScoreCards returns all score cards for a session date, highest
// composite first
func (r *Repository) GetScoreCards(ctx context.Context, session time.Time) ([]scoring.ScoreCard, error) {
	query := `
		SELECT symbol, session_date, composite, risk_class, categories
		FROM scorecards WHERE session_date = $1
		ORDER BY composite DESC`

	rows, err := r.db.Pool.Query(ctx, query, session.Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to query score cards: %w", err)
	}
	defer rows.Close()

	var out []scoring.ScoreCard
	for rows.Next() {
		var (
			card       scoring.ScoreCard
			riskClass  string
			categories []byte
		)
		if err := rows.Scan(&card.Symbol, &card.Session, &card.Composite, &riskClass, &categories); err != nil {
			return nil, fmt.Errorf("failed to scan score card: %w", err)
		}
		if err := json.Unmarshal(categories, &card.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		card.RiskClass = scoring.RiskClass(riskClass)
		out = append(out, card)
	}
	return out, rows.Err()
}

// SaveFill stores an executed fill record
func (r *Repository) SaveFill(ctx context.Context, fill *orders.Fill) error {
	query := `
		INSERT INTO fills (id, symbol, action, quantity, price, executed_at, pattern_id, realized_pnl_pct, exit_reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	_, err := r.db.Pool.Exec(ctx, query,
		fill.ID, fill.Symbol, string(fill.Action), fill.Quantity, fill.Price,
		fill.Timestamp, fill.PatternID, fill.RealizedPnLPct, fill.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("failed to save fill: %w", err)
	}
	return nil
}

// GetFills returns fills executed in [from, to), oldest first
func (r *Repository) GetFills(ctx context.Context, from, to time.Time) ([]orders.Fill, error) {
	query := `
		SELECT id, symbol, action, quantity, price, executed_at, COALESCE(pattern_id::text, ''), realized_pnl_pct, exit_reason
		FROM fills
		WHERE executed_at >= $1 AND executed_at < $2
		ORDER BY executed_at ASC`

	rows, err := r.db.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var out []orders.Fill
	for rows.Next() {
		var (
			fill   orders.Fill
			action string
		)
		if err := rows.Scan(&fill.ID, &fill.Symbol, &action, &fill.Quantity, &fill.Price,
			&fill.Timestamp, &fill.PatternID, &fill.RealizedPnLPct, &fill.ExitReason); err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fill.Action = orders.Action(action)
		out = append(out, fill)
	}
	return out, rows.Err()
}
