package api

import (
	"net/http"
	"strings"
	"time"

	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/forecast"

	"github.com/gin-gonic/gin"
)

// parseSessionDate reads the optional ?date=YYYY-MM-DD query parameter,
// defaulting to today
func parseSessionDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), true
	}
	session, err := time.Parse("2006-01-02", raw)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return session, true
}

// handleBotStatus returns the live loop status and the session risk state
func (s *Server) handleBotStatus(c *gin.Context) {
	if s.botAPI == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trading bot is not running")
		return
	}

	status := s.botAPI.GetStatus()
	if s.riskMgr != nil {
		status["risk"] = s.riskMgr.Snapshot()
	}
	successResponse(c, status)
}

// handleGetPositions returns the open positions with their exit state
func (s *Server) handleGetPositions(c *gin.Context) {
	if s.botAPI == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trading bot is not running")
		return
	}
	successResponse(c, s.botAPI.PositionStates())
}

// handleGetRiskState returns the session risk snapshot
func (s *Server) handleGetRiskState(c *gin.Context) {
	if s.riskMgr == nil {
		errorResponse(c, http.StatusServiceUnavailable, "risk manager is not running")
		return
	}
	successResponse(c, s.riskMgr.Snapshot())
}

// handleGetForecasts returns the stored per-preset forecasts for a session,
// optionally filtered to one preset with ?preset=Name
func (s *Server) handleGetForecasts(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database is disabled")
		return
	}
	session, ok := parseSessionDate(c)
	if !ok {
		return
	}

	forecasts, err := s.repo.GetForecasts(c.Request.Context(), session)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load forecasts: "+err.Error())
		return
	}

	if preset := c.Query("preset"); preset != "" {
		var filtered []forecast.Forecast
		for _, fc := range forecasts {
			if strings.EqualFold(fc.Preset, preset) {
				filtered = append(filtered, fc)
			}
		}
		forecasts = filtered
	}

	successResponse(c, forecasts)
}

// handleGetScoreCards returns the per-symbol score cards for a session,
// ordered by composite score
func (s *Server) handleGetScoreCards(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database is disabled")
		return
	}
	session, ok := parseSessionDate(c)
	if !ok {
		return
	}

	cards, err := s.repo.GetScoreCards(c.Request.Context(), session)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load score cards: "+err.Error())
		return
	}
	successResponse(c, cards)
}

// handleGetPatterns returns detected patterns, optionally filtered by
// ?symbol= and bounded by ?from=/?to= (RFC 3339)
func (s *Server) handleGetPatterns(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database is disabled")
		return
	}

	from := time.Now().UTC().Add(-24 * time.Hour)
	to := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid from timestamp, expected RFC 3339")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid to timestamp, expected RFC 3339")
			return
		}
		to = parsed
	}

	found, err := s.repo.GetPatterns(c.Request.Context(), c.Query("symbol"), from, to)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load patterns: "+err.Error())
		return
	}
	successResponse(c, found)
}

// handleGetFills returns executed fills bounded by ?from=/?to= (RFC 3339)
func (s *Server) handleGetFills(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "database is disabled")
		return
	}

	from := time.Now().UTC().Add(-24 * time.Hour)
	to := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid from timestamp, expected RFC 3339")
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "invalid to timestamp, expected RFC 3339")
			return
		}
		to = parsed
	}

	fills, err := s.repo.GetFills(c.Request.Context(), from, to)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "failed to load fills: "+err.Error())
		return
	}
	successResponse(c, fills)
}

// handleGetPresets returns the built-in filter presets
func (s *Server) handleGetPresets(c *gin.Context) {
	successResponse(c, filter.BuiltinPresets())
}

// handleTriggerScan runs a scan over the configured watchlist. The scan is
// synchronous; clients should expect it to take a while on large watchlists.
func (s *Server) handleTriggerScan(c *gin.Context) {
	if s.scannerAPI == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scanner is not running")
		return
	}
	if len(s.config.Watchlist) == 0 {
		errorResponse(c, http.StatusBadRequest, "no watchlist configured")
		return
	}

	result, err := s.scannerAPI.Scan(c.Request.Context(), s.config.Watchlist, time.Now().UTC())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "scan failed: "+err.Error())
		return
	}
	successResponse(c, result)
}

// handleGetLastScan returns the most recent scan result
func (s *Server) handleGetLastScan(c *gin.Context) {
	if s.scannerAPI == nil {
		errorResponse(c, http.StatusServiceUnavailable, "scanner is not running")
		return
	}

	result := s.scannerAPI.GetLastResult()
	if result == nil {
		errorResponse(c, http.StatusNotFound, "no scan has completed yet")
		return
	}
	successResponse(c, result)
}
