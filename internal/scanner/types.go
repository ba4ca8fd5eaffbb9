package scanner

import (
	"context"
	"time"

	"vwap-trading-bot/internal/forecast"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/scoring"
)

// ScanConfig controls the nightly scan
type ScanConfig struct {
	Enabled          bool `json:"enabled"`
	WorkerCount      int  `json:"worker_count"`      // Concurrent worker count
	LookbackSessions int  `json:"lookback_sessions"` // Sessions of history per symbol
	PortfolioSize    int  `json:"portfolio_size"`
}

// HistoryProvider supplies lookback bar series from the market-data
// collaborator
type HistoryProvider interface {
	GetBars(ctx context.Context, symbol string, sessions int) (*market.BarSeries, error)
}

// ScanResult is the outcome of one nightly scan cycle
type ScanResult struct {
	ScanID         string              `json:"scan_id"`
	StartTime      time.Time           `json:"start_time"`
	EndTime        time.Time           `json:"end_time"`
	Duration       time.Duration       `json:"duration"`
	SymbolsScanned int                 `json:"symbols_scanned"`
	TotalPatterns  int                 `json:"total_patterns"`
	Forecasts      []forecast.Forecast `json:"forecasts"`
	ScoreCards     []scoring.ScoreCard `json:"score_cards"`
}
