package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"vwap-trading-bot/internal/bot"
	"vwap-trading-bot/internal/database"
	"vwap-trading-bot/internal/events"
	"vwap-trading-bot/internal/risk"
	"vwap-trading-bot/internal/scanner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// BotAPI is the surface the live trading loop exposes to the HTTP layer
type BotAPI interface {
	GetStatus() map[string]interface{}
	PositionStates() map[string]bot.PositionStatus
}

// ScannerAPI is the surface the nightly scanner exposes to the HTTP layer
type ScannerAPI interface {
	Scan(ctx context.Context, symbols []string, session time.Time) (*scanner.ScanResult, error)
	GetLastResult() *scanner.ScanResult
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	repo        *database.Repository // nil when running without PostgreSQL
	eventBus    *events.EventBus
	botAPI      BotAPI
	scannerAPI  ScannerAPI
	riskMgr     *risk.Manager
	config      ServerConfig
	rateLimiter *RateLimiter
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	Watchlist      []string // symbols offered to on-demand scans
}

// NewServer creates a new API server. repo, botAPI and scannerAPI may each be
// nil; the corresponding endpoints report unavailable.
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	botAPI BotAPI,
	scannerAPI ScannerAPI,
	riskMgr *risk.Manager,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		repo:        repo,
		eventBus:    eventBus,
		botAPI:      botAPI,
		scannerAPI:  scannerAPI,
		riskMgr:     riskMgr,
		config:      config,
		rateLimiter: NewRateLimiter(120, time.Minute),
	}

	server.setupRoutes()

	InitWebSocket(eventBus)

	return server
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		// Bot endpoints
		api.GET("/bot/status", s.handleBotStatus)

		// Position endpoints
		api.GET("/positions", s.handleGetPositions)

		// Risk endpoints
		api.GET("/risk", s.handleGetRiskState)

		// Forecast endpoints
		api.GET("/forecasts", s.handleGetForecasts)

		// Score card endpoints
		api.GET("/scorecards", s.handleGetScoreCards)

		// Pattern endpoints
		api.GET("/patterns", s.handleGetPatterns)

		// Fill endpoints
		api.GET("/fills", s.handleGetFills)

		// Filter preset endpoints
		api.GET("/presets", s.handleGetPresets)

		// Scanner endpoints (rate limited, a scan walks the full watchlist)
		scan := api.Group("/scan")
		scan.Use(s.rateLimitMiddleware())
		{
			scan.POST("", s.handleTriggerScan)
			scan.GET("/last", s.handleGetLastScan)
		}
	}

	// WebSocket endpoint for real-time event streaming
	s.router.GET("/ws", s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "disabled",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
