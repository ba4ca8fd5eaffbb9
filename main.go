package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"vwap-trading-bot/config"
	"vwap-trading-bot/internal/api"
	"vwap-trading-bot/internal/bot"
	"vwap-trading-bot/internal/database"
	"vwap-trading-bot/internal/events"
	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/forecast"
	"vwap-trading-bot/internal/logging"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/orders"
	"vwap-trading-bot/internal/risk"
	"vwap-trading-bot/internal/scanner"
)

func main() {
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	// Initialize risk manager
	riskManager := risk.NewManager(risk.Config{
		DailyLossLimitPct: cfg.RiskConfig.DailyLossLimitPct,
		MaxOpenPositions:  cfg.RiskConfig.MaxOpenPositions,
		DeploymentRatio:   cfg.RiskConfig.DeploymentRatio,
	})
	logger.Info("Risk manager initialized",
		"loss_limit_pct", cfg.RiskConfig.DailyLossLimitPct,
		"max_positions", cfg.RiskConfig.MaxOpenPositions)

	// Initialize database (optional; the bot runs without persistence)
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(context.Background()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = database.NewRepository(db)
	} else {
		logger.Warn("Database disabled, running without persistence")
	}

	// Initialize Redis-backed position snapshots (falls back to memory)
	var redisCfg database.RedisConfig
	if cfg.RedisConfig.Enabled {
		redisCfg = database.RedisConfig{
			Host:     cfg.RedisConfig.Host,
			Port:     cfg.RedisConfig.Port,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		}
	}
	snapshots := database.NewRedisPositionStateRepository(database.NewRedisClient(redisCfg))

	// Initialize order execution
	var broker orders.Broker
	if cfg.OrdersConfig.BrokerURL != "" {
		broker = orders.NewRESTBroker(cfg.OrdersConfig.BrokerURL, cfg.OrdersConfig.APIKey)
		logger.Info("Broker gateway configured", "url", cfg.OrdersConfig.BrokerURL)
	} else {
		broker = orders.NewPaperBroker()
		logger.Warn("No broker gateway configured, using paper fills")
	}

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var fillRepo orders.FillRepository
	if repo != nil {
		fillRepo = repo
	}
	executor := orders.NewExecutor(broker, fillRepo, orders.Config{
		MaxAttempts:  cfg.OrdersConfig.MaxAttempts,
		RetryBackoff: cfg.OrdersConfig.RetryBackoff,
	}, zlog)

	// Initialize history provider
	var history scanner.HistoryProvider
	if cfg.MarketDataConfig.MockMode || cfg.MarketDataConfig.HistoryURL == "" {
		history = market.NewSyntheticHistory()
		logger.Warn("Using synthetic bar history")
	} else {
		history = market.NewHistoryClient(cfg.MarketDataConfig.HistoryURL)
	}

	// Initialize forecast generation and the scanner pipeline
	generator := forecast.NewGenerator(forecast.Config{
		PortfolioSize:       cfg.TradingConfig.PortfolioSize,
		TransactionCostPct:  cfg.ForecastConfig.TransactionCostPct,
		TradeCountTolerance: cfg.ForecastConfig.TradeCountTolerance,
		RiskFreePctPerDay:   cfg.ForecastConfig.RiskFreePctPerDay,
		TradingDaysPerYear:  252,
	}, exit.DefaultThresholds())

	symbolScanner := scanner.NewScanner(history, repo, generator, filter.BuiltinPresets(), scanner.ScanConfig{
		Enabled:          cfg.ScannerConfig.Enabled,
		WorkerCount:      cfg.ScannerConfig.WorkerCount,
		LookbackSessions: cfg.MarketDataConfig.LookbackSessions,
		PortfolioSize:    cfg.TradingConfig.PortfolioSize,
	})

	// Initialize the trading bot
	tradingBot, err := bot.NewTradingBot(cfg, eventBus, riskManager, executor, snapshots)
	if err != nil {
		log.Fatalf("Failed to initialize trading bot: %v", err)
	}

	// Initialize web server
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: true,
		Watchlist:      cfg.TradingConfig.Watchlist,
	}, repo, eventBus, tradingBot, symbolScanner, riskManager)

	if cfg.ServerConfig.Enabled {
		go func() {
			if err := server.Start(); err != nil {
				log.Fatalf("Failed to start web server: %v", err)
			}
		}()
		logger.Info("Web interface available", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run the opening scan, then start the live loop on its selection
	runScanCycle(ctx, cfg, symbolScanner, tradingBot, history, logger)
	tradingBot.Start(cfg.RiskConfig.StartingBalance)

	// Schedule the nightly re-scan
	if cfg.ScannerConfig.Enabled {
		go scanLoop(ctx, cfg, symbolScanner, tradingBot, history, logger)
	}

	// Connect the live tick stream
	var stream *market.TickStream
	if cfg.MarketDataConfig.StreamURL != "" {
		stream = market.NewTickStream(cfg.MarketDataConfig.StreamURL, cfg.TradingConfig.Watchlist)
		if err := stream.Start(ctx); err != nil {
			log.Fatalf("Failed to start tick stream: %v", err)
		}
		go func() {
			for tick := range stream.Ticks() {
				tradingBot.OnTick(tick)
			}
		}()
	} else {
		logger.Warn("No tick stream configured, live trading idle")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down web server: %v", err)
	}

	if stream != nil {
		stream.Stop()
	}
	tradingBot.Stop()

	log.Println("Shutdown complete")
}

// runScanCycle runs one scan over the watchlist and hands the active preset's
// selection to the live loop
func runScanCycle(
	ctx context.Context,
	cfg *config.Config,
	symbolScanner *scanner.Scanner,
	tradingBot *bot.TradingBot,
	history scanner.HistoryProvider,
	logger *logging.Logger,
) {
	if len(cfg.TradingConfig.Watchlist) == 0 {
		logger.Warn("Empty watchlist, skipping scan")
		return
	}

	result, err := symbolScanner.Scan(ctx, cfg.TradingConfig.Watchlist, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Error("Scan failed")
		return
	}

	for _, fc := range result.Forecasts {
		if fc.Preset != cfg.TradingConfig.ActivePreset {
			continue
		}
		// A symbol whose history cannot be loaded is skipped for the session
		selected := make([]string, 0, len(fc.Selected))
		seriesBySymbol := make(map[string]*market.BarSeries, len(fc.Selected))
		for _, symbol := range fc.Selected {
			series, err := history.GetBars(ctx, symbol, cfg.MarketDataConfig.LookbackSessions)
			if err != nil {
				logger.WithError(err).Warn("Failed to load history, skipping symbol", "symbol", symbol)
				continue
			}
			selected = append(selected, symbol)
			seriesBySymbol[symbol] = series
		}
		tradingBot.SetWatchlist(selected, seriesBySymbol)
		logger.Info("Watchlist updated from scan",
			"preset", fc.Preset, "selected", len(selected), "backups", len(fc.Backups))
		return
	}

	logger.Warn("No forecast for active preset", "preset", cfg.TradingConfig.ActivePreset)
}

// scanLoop re-runs the scan once a day at the configured UTC hour
func scanLoop(
	ctx context.Context,
	cfg *config.Config,
	symbolScanner *scanner.Scanner,
	tradingBot *bot.TradingBot,
	history scanner.HistoryProvider,
	logger *logging.Logger,
) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), cfg.ScannerConfig.ScanHourUTC, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			runScanCycle(ctx, cfg, symbolScanner, tradingBot, history, logger)
		}
	}
}
