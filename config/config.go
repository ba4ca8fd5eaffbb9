package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MarketDataConfig MarketDataConfig `json:"market_data"`
	TradingConfig    TradingConfig    `json:"trading"`
	ScannerConfig    ScannerConfig    `json:"scanner"`
	ForecastConfig   ForecastConfig   `json:"forecast"`
	RiskConfig       RiskConfig       `json:"risk"`
	OrdersConfig     OrdersConfig     `json:"orders"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	ServerConfig     ServerConfig     `json:"server"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
}

// MarketDataConfig holds the market-data collaborator endpoints
type MarketDataConfig struct {
	StreamURL        string `json:"stream_url"`        // Websocket tick stream endpoint
	HistoryURL       string `json:"history_url"`       // REST endpoint for historical bars
	LookbackSessions int    `json:"lookback_sessions"` // Sessions of history per symbol
	MockMode         bool   `json:"mock_mode"`         // Use simulated data when the feed is unavailable
}

type TradingConfig struct {
	PortfolioSize int      `json:"portfolio_size"` // Symbols selected per session
	Watchlist     []string `json:"watchlist"`      // Daily symbol universe
	ExcludeNews   []string `json:"exclude_news"`   // Same-day news-excluded symbols
	DryRun        bool     `json:"dry_run"`        // Test mode without real orders
	ActivePreset  string   `json:"active_preset"`  // Filter preset driving live entries
}

type ScannerConfig struct {
	Enabled     bool `json:"enabled"`      // Enable/disable nightly scan
	WorkerCount int  `json:"worker_count"` // Concurrent worker count
	ScanHourUTC int  `json:"scan_hour_utc"`
}

// ForecastConfig tunes forecast generation
type ForecastConfig struct {
	TransactionCostPct  float64 `json:"transaction_cost_pct"`
	TradeCountTolerance float64 `json:"trade_count_tolerance"`
	RiskFreePctPerDay   float64 `json:"risk_free_pct_per_day"`
}

type RiskConfig struct {
	StartingBalance   float64 `json:"starting_balance"`
	DailyLossLimitPct float64 `json:"daily_loss_limit_pct"` // Session loss % that halts trading
	MaxOpenPositions  int     `json:"max_open_positions"`
	DeploymentRatio   float64 `json:"deployment_ratio"` // Fraction of balance deployed
}

type OrdersConfig struct {
	BrokerURL    string        `json:"broker_url"` // Brokerage gateway; empty means paper fills
	APIKey       string        `json:"api_key"`
	MaxAttempts  int           `json:"max_attempts"`
	RetryBackoff time.Duration `json:"retry_backoff"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis configuration for position snapshots
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Market data config
	cfg.MarketDataConfig.StreamURL = getEnvOrDefault("MARKET_STREAM_URL", cfg.MarketDataConfig.StreamURL)
	cfg.MarketDataConfig.HistoryURL = getEnvOrDefault("MARKET_HISTORY_URL", cfg.MarketDataConfig.HistoryURL)
	if cfg.MarketDataConfig.LookbackSessions == 0 {
		cfg.MarketDataConfig.LookbackSessions = getEnvIntOrDefault("MARKET_LOOKBACK_SESSIONS", 20)
	}
	cfg.MarketDataConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"

	// Trading config
	if cfg.TradingConfig.PortfolioSize == 0 {
		cfg.TradingConfig.PortfolioSize = getEnvIntOrDefault("TRADING_PORTFOLIO_SIZE", 8)
	}
	cfg.TradingConfig.DryRun = getEnvOrDefault("TRADING_DRY_RUN", "false") == "true"
	cfg.TradingConfig.ActivePreset = getEnvOrDefault("TRADING_ACTIVE_PRESET", defaultString(cfg.TradingConfig.ActivePreset, "Default"))

	// Scanner config
	cfg.ScannerConfig.Enabled = getEnvOrDefault("SCANNER_ENABLED", "true") == "true"
	if cfg.ScannerConfig.WorkerCount == 0 {
		cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKER_COUNT", 10)
	}
	if cfg.ScannerConfig.ScanHourUTC == 0 {
		cfg.ScannerConfig.ScanHourUTC = getEnvIntOrDefault("SCANNER_SCAN_HOUR_UTC", 1)
	}

	// Forecast config
	if cfg.ForecastConfig.TransactionCostPct == 0 {
		cfg.ForecastConfig.TransactionCostPct = getEnvFloatOrDefault("FORECAST_TRANSACTION_COST_PCT", 0.04)
	}
	if cfg.ForecastConfig.TradeCountTolerance == 0 {
		cfg.ForecastConfig.TradeCountTolerance = getEnvFloatOrDefault("FORECAST_TRADE_COUNT_TOLERANCE", 0.25)
	}
	if cfg.ForecastConfig.RiskFreePctPerDay == 0 {
		cfg.ForecastConfig.RiskFreePctPerDay = getEnvFloatOrDefault("FORECAST_RISK_FREE_PCT_PER_DAY", 0.016)
	}

	// Risk config
	if cfg.RiskConfig.StartingBalance == 0 {
		cfg.RiskConfig.StartingBalance = getEnvFloatOrDefault("RISK_STARTING_BALANCE", 100000)
	}
	if cfg.RiskConfig.DailyLossLimitPct == 0 {
		cfg.RiskConfig.DailyLossLimitPct = getEnvFloatOrDefault("RISK_DAILY_LOSS_LIMIT_PCT", 1.5)
	}
	if cfg.RiskConfig.MaxOpenPositions == 0 {
		cfg.RiskConfig.MaxOpenPositions = getEnvIntOrDefault("RISK_MAX_OPEN_POSITIONS", 8)
	}
	if cfg.RiskConfig.DeploymentRatio == 0 {
		cfg.RiskConfig.DeploymentRatio = getEnvFloatOrDefault("RISK_DEPLOYMENT_RATIO", 0.9)
	}

	// Orders config
	cfg.OrdersConfig.BrokerURL = getEnvOrDefault("ORDERS_BROKER_URL", cfg.OrdersConfig.BrokerURL)
	cfg.OrdersConfig.APIKey = getEnvOrDefault("ORDERS_API_KEY", cfg.OrdersConfig.APIKey)
	if cfg.OrdersConfig.MaxAttempts == 0 {
		cfg.OrdersConfig.MaxAttempts = getEnvIntOrDefault("ORDERS_MAX_ATTEMPTS", 3)
	}
	if cfg.OrdersConfig.RetryBackoff == 0 {
		cfg.OrdersConfig.RetryBackoff = getEnvDurationOrDefault("ORDERS_RETRY_BACKOFF", 250*time.Millisecond)
	}

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("WEB_ENABLED", "true") == "true"
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.DatabaseConfig.Database, "vwapbot"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Host = getEnvOrDefault("REDIS_HOST", cfg.RedisConfig.Host)
	cfg.RedisConfig.Port = getEnvIntOrDefault("REDIS_PORT", 6379)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func defaultString(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		MarketDataConfig: MarketDataConfig{
			StreamURL:        "wss://stream.example.com/ticks",
			HistoryURL:       "https://data.example.com/bars",
			LookbackSessions: 20,
			MockMode:         true,
		},
		TradingConfig: TradingConfig{
			PortfolioSize: 8,
			Watchlist:     []string{"AAPL", "MSFT", "NVDA", "AMD", "TSLA"},
			DryRun:        true,
			ActivePreset:  "Default",
		},
		ScannerConfig: ScannerConfig{
			Enabled:     true,
			WorkerCount: 10,
			ScanHourUTC: 1,
		},
		ForecastConfig: ForecastConfig{
			TransactionCostPct:  0.04,
			TradeCountTolerance: 0.25,
			RiskFreePctPerDay:   0.016,
		},
		RiskConfig: RiskConfig{
			StartingBalance:   100000,
			DailyLossLimitPct: 1.5,
			MaxOpenPositions:  8,
			DeploymentRatio:   0.9,
		},
		OrdersConfig: OrdersConfig{
			MaxAttempts:  3,
			RetryBackoff: 250 * time.Millisecond,
		},
		LoggingConfig: LoggingConfig{
			Level:       "INFO",
			Output:      "stdout",
			JSONFormat:  true,
			IncludeFile: false,
		},
		ServerConfig: ServerConfig{
			Enabled:        true,
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
			ReadTimeout:    30,
			WriteTimeout:   30,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
