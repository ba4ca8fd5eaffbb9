package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("Successfully connected to PostgreSQL database: %s", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Println("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log.Println("Running database migrations...")

	migrations := []string{
		// Detected patterns, one row per pattern per session
		`CREATE TABLE IF NOT EXISTS patterns (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			pattern_type VARCHAR(30) NOT NULL,
			detected_at TIMESTAMP NOT NULL,
			confirmed_at TIMESTAMP,
			entry_price DECIMAL(20, 8),
			terminal_low DECIMAL(20, 8),
			outcome VARCHAR(20) NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_symbol ON patterns(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_detected_at ON patterns(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_outcome ON patterns(outcome)`,

		// Per-preset session forecasts
		`CREATE TABLE IF NOT EXISTS forecasts (
			id SERIAL PRIMARY KEY,
			preset VARCHAR(30) NOT NULL,
			session_date DATE NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (preset, session_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_session ON forecasts(session_date)`,

		// Daily per-symbol score cards
		`CREATE TABLE IF NOT EXISTS scorecards (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			session_date DATE NOT NULL,
			composite DECIMAL(10, 4) NOT NULL,
			risk_class VARCHAR(15) NOT NULL,
			categories JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (symbol, session_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scorecards_session ON scorecards(session_date)`,

		// Executed fills, one row per entry/exit
		`CREATE TABLE IF NOT EXISTS fills (
			id UUID PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			action VARCHAR(4) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			pattern_id UUID,
			realized_pnl_pct DECIMAL(10, 4),
			exit_reason VARCHAR(20),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_fills_executed_at ON fills(executed_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}
