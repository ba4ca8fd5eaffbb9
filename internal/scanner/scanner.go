package scanner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"vwap-trading-bot/internal/backtest"
	"vwap-trading-bot/internal/database"
	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/forecast"
	"vwap-trading-bot/internal/logging"
	"vwap-trading-bot/internal/patterns"
	"vwap-trading-bot/internal/scoring"
)

// Scanner runs the offline pipeline: detect patterns over each symbol's
// lookback history, confirm and simulate them, score every symbol and
// produce one forecast per filter preset. Symbols are independent, so the
// detection stage fans out across a worker pool.
type Scanner struct {
	history     HistoryProvider
	repo        *database.Repository
	gen         *forecast.Generator
	presets     []filter.Config
	detectorCfg patterns.DetectorConfig
	confirmCfg  patterns.ConfirmationConfig
	config      ScanConfig

	mu         sync.RWMutex
	lastResult *ScanResult
}

// NewScanner creates a new scanner. repo may be nil to skip persistence.
func NewScanner(
	history HistoryProvider,
	repo *database.Repository,
	gen *forecast.Generator,
	presets []filter.Config,
	config ScanConfig,
) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 10
	}
	if config.LookbackSessions <= 0 {
		config.LookbackSessions = 20
	}
	return &Scanner{
		history:     history,
		repo:        repo,
		gen:         gen,
		presets:     presets,
		detectorCfg: patterns.DefaultDetectorConfig(),
		confirmCfg:  patterns.DefaultConfirmationConfig(),
		config:      config,
	}
}

// Scan executes one full scan cycle over the symbol universe
func (sc *Scanner) Scan(ctx context.Context, symbols []string, session time.Time) (*ScanResult, error) {
	startTime := time.Now()
	scanID := fmt.Sprintf("scan-%d", startTime.Unix())

	log.Printf("[Scanner] Starting scan %s over %d symbols", scanID, len(symbols))

	symbolData := sc.collectSymbolData(ctx, symbols)

	totalPatterns := 0
	for _, sd := range symbolData {
		totalPatterns += len(sd.Patterns)
	}

	forecasts := sc.gen.GenerateAll(sc.presets, symbolData, session)
	cards := sc.scoreSymbols(symbolData, session)

	result := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Duration:       time.Since(startTime),
		SymbolsScanned: len(symbolData),
		TotalPatterns:  totalPatterns,
		Forecasts:      forecasts,
		ScoreCards:     cards,
	}

	sc.mu.Lock()
	sc.lastResult = result
	sc.mu.Unlock()

	if sc.repo != nil {
		sc.persist(ctx, symbolData, result)
	}

	log.Printf("[Scanner] Scan %s completed in %v: %d patterns, %d forecasts",
		scanID, result.Duration, totalPatterns, len(forecasts))

	return result, nil
}

// collectSymbolData runs pattern detection and confirmation per symbol on a
// bounded worker pool
func (sc *Scanner) collectSymbolData(ctx context.Context, symbols []string) []forecast.SymbolData {
	symbolChan := make(chan string, len(symbols))
	resultChan := make(chan forecast.SymbolData, len(symbols))
	var wg sync.WaitGroup

	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, symbolChan, resultChan, &wg)
	}

	for _, symbol := range symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var out []forecast.SymbolData
	for sd := range resultChan {
		out = append(out, sd)
	}
	// Worker completion order is nondeterministic; keep output stable.
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (sc *Scanner) worker(
	ctx context.Context,
	symbolChan <-chan string,
	resultChan chan<- forecast.SymbolData,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for symbol := range symbolChan {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sd, err := sc.scanSymbol(ctx, symbol)
		if err != nil {
			log.Printf("[Scanner] Skipping %s: %v", symbol, err)
			continue
		}
		resultChan <- sd
	}
}

// scanSymbol detects and confirms patterns over one symbol's history
func (sc *Scanner) scanSymbol(ctx context.Context, symbol string) (forecast.SymbolData, error) {
	series, err := sc.history.GetBars(ctx, symbol, sc.config.LookbackSessions)
	if err != nil {
		return forecast.SymbolData{}, fmt.Errorf("failed to load history: %w", err)
	}

	detected, err := patterns.ScanSeries(series, sc.detectorCfg, patterns.WallClock)
	if err != nil {
		return forecast.SymbolData{}, fmt.Errorf("pattern scan failed: %w", err)
	}

	for _, p := range detected {
		patterns.ConfirmHistorical(p, series, sc.confirmCfg, patterns.WallClock)
	}

	return forecast.SymbolData{
		Symbol:   symbol,
		Series:   series,
		Patterns: detected,
		Sessions: sc.config.LookbackSessions,
	}, nil
}

// scoreSymbols produces the preset-independent score cards kept for
// reporting, from each symbol's unfiltered confirmed patterns
func (sc *Scanner) scoreSymbols(symbolData []forecast.SymbolData, session time.Time) []scoring.ScoreCard {
	scorer := scoring.NewScorer()
	sim := backtest.NewSimulator(exit.DefaultThresholds())

	cards := make([]scoring.ScoreCard, 0, len(symbolData))
	for _, sd := range symbolData {
		cloned := make([]*patterns.Pattern, len(sd.Patterns))
		for i, p := range sd.Patterns {
			cloned[i] = p.Clone()
		}
		sim.SimulateAll(cloned, sd.Series)
		stats := backtest.Aggregate(cloned, sd.Sessions)
		cards = append(cards, scorer.Score(sd.Symbol, session, stats, sd.Series))
	}

	sort.Slice(cards, func(i, j int) bool { return cards[i].Composite > cards[j].Composite })
	return cards
}

func (sc *Scanner) persist(ctx context.Context, symbolData []forecast.SymbolData, result *ScanResult) {
	for _, sd := range symbolData {
		for _, p := range sd.Patterns {
			if err := sc.repo.SavePattern(ctx, p); err != nil {
				logging.DatabaseContext("save", "patterns").WithError(err).Error("Failed to persist pattern", "id", p.ID)
			}
		}
	}
	for i := range result.Forecasts {
		if err := sc.repo.SaveForecast(ctx, &result.Forecasts[i]); err != nil {
			logging.DatabaseContext("save", "forecasts").WithError(err).Error("Failed to persist forecast", "preset", result.Forecasts[i].Preset)
		}
	}
	for i := range result.ScoreCards {
		if err := sc.repo.SaveScoreCard(ctx, &result.ScoreCards[i]); err != nil {
			logging.DatabaseContext("save", "scorecards").WithError(err).Error("Failed to persist score card", "symbol", result.ScoreCards[i].Symbol)
		}
	}
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}
