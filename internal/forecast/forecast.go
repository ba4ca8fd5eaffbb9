package forecast

import (
	"math"
	"sort"
	"sync"
	"time"

	"vwap-trading-bot/internal/backtest"
	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/patterns"
	"vwap-trading-bot/internal/scoring"
	"vwap-trading-bot/internal/selector"
)

// SymbolData bundles the three inputs a preset evaluation needs per symbol:
// the lookback bar series, the patterns detected and confirmed over it, and
// how many sessions the lookback spans.
type SymbolData struct {
	Symbol   string
	Series   *market.BarSeries
	Patterns []*patterns.Pattern
	Sessions int
}

// Config tunes forecast generation. Zero values fall back to defaults.
type Config struct {
	PortfolioSize       int     // symbols selected per forecast
	TransactionCostPct  float64 // modeled round-trip cost, percent of notional
	TradeCountTolerance float64 // half-width of the trade-count range, fraction of the mean
	RiskFreePctPerDay   float64 // daily risk-free return, percent
	TradingDaysPerYear  float64
}

func DefaultConfig() Config {
	return Config{
		PortfolioSize:       8,
		TransactionCostPct:  0.04,
		TradeCountTolerance: 0.25,
		RiskFreePctPerDay:   0.016, // ~4% annualized
		TradingDaysPerYear:  252,
	}
}

// Forecast is one preset's forward-looking session projection. Generated
// once per session and never mutated.
type Forecast struct {
	Preset      string    `json:"preset"`
	GeneratedAt time.Time `json:"generated_at"`

	Selected []string `json:"selected"`
	Backups  []string `json:"backups"`

	TradeCountLow  float64 `json:"trade_count_low"`
	TradeCountHigh float64 `json:"trade_count_high"`
	PnLLowPct      float64 `json:"pnl_low_pct"`
	PnLHighPct     float64 `json:"pnl_high_pct"`

	WinRate             float64 `json:"win_rate"`
	Sharpe              float64 `json:"sharpe"`
	Sortino             float64 `json:"sortino"`
	Calmar              float64 `json:"calmar"`
	DeadZoneProbability float64 `json:"dead_zone_probability"`
}

// Generator evaluates filter presets into forecasts. Each evaluation is a
// pure function over its inputs, so presets can run concurrently.
type Generator struct {
	cfg        Config
	thresholds exit.Thresholds
	scorer     *scoring.Scorer
}

func NewGenerator(cfg Config, thresholds exit.Thresholds) *Generator {
	if cfg.PortfolioSize <= 0 {
		cfg.PortfolioSize = 8
	}
	if cfg.TradeCountTolerance <= 0 {
		cfg.TradeCountTolerance = 0.25
	}
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = 252
	}
	return &Generator{
		cfg:        cfg,
		thresholds: thresholds,
		scorer:     scoring.NewScorer(),
	}
}

// Generate evaluates one preset: re-filter every symbol's confirmed
// patterns, re-simulate, re-score, re-rank and re-select, then project trade
// counts and P&L from the surviving trade sample. Inputs are not mutated.
func (g *Generator) Generate(preset filter.Config, symbols []SymbolData, session time.Time) Forecast {
	engine := filter.NewEngine(preset)
	sim := backtest.NewSimulator(g.thresholds)

	cards := make([]scoring.ScoreCard, 0, len(symbols))
	perSymbol := make(map[string]backtest.Stats, len(symbols))

	for _, sd := range symbols {
		kept := engine.ApplyAll(sd.Patterns, sd.Series)
		sim.SimulateAll(kept, sd.Series)
		stats := backtest.Aggregate(kept, sd.Sessions)
		stats.TotalPatterns = len(sd.Patterns)
		if stats.Sessions > 0 {
			stats.PatternsPerDay = float64(len(sd.Patterns)) / float64(stats.Sessions)
		}
		if stats.TotalPatterns > 0 {
			stats.ConfirmationRate = float64(stats.Confirmed) / float64(stats.TotalPatterns)
		}
		perSymbol[sd.Symbol] = stats
		cards = append(cards, g.scorer.Score(sd.Symbol, session, stats, sd.Series))
	}

	sel := selector.Select(cards, g.cfg.PortfolioSize)

	fc := Forecast{
		Preset:      preset.Name,
		GeneratedAt: session,
		Selected:    symbolNames(sel.Primary),
		Backups:     symbolNames(sel.Backups),
	}
	g.project(&fc, sel.Primary, perSymbol)
	return fc
}

// GenerateAll evaluates every preset concurrently. Results come back in
// preset order.
func (g *Generator) GenerateAll(presets []filter.Config, symbols []SymbolData, session time.Time) []Forecast {
	out := make([]Forecast, len(presets))
	var wg sync.WaitGroup
	for i, preset := range presets {
		wg.Add(1)
		go func(i int, preset filter.Config) {
			defer wg.Done()
			out[i] = g.Generate(preset, symbols, session)
		}(i, preset)
	}
	wg.Wait()
	return out
}

// project fills the statistical fields of a forecast from the pooled trade
// sample of the selected symbols.
func (g *Generator) project(fc *Forecast, primary []scoring.ScoreCard, perSymbol map[string]backtest.Stats) {
	var (
		pnls          []float64
		tradesPerDay  float64
		wins, trades  int
		deadZone      int
		sumWin        float64
		sumLossMag    float64
	)
	for _, card := range primary {
		stats := perSymbol[card.Symbol]
		if stats.Sessions > 0 {
			tradesPerDay += float64(stats.Trades) / float64(stats.Sessions)
		}
		trades += stats.Trades
		wins += stats.Wins
		sumWin += stats.AvgWinPct * float64(stats.Wins)
		sumLossMag += stats.AvgLossPct * float64(stats.Losses)
		deadZone += int(math.Round(stats.DeadZoneRate * float64(stats.Trades)))
		pnls = append(pnls, stats.PnLs...)
	}
	if trades == 0 {
		return
	}

	winRate := float64(wins) / float64(trades)
	lossRate := 1 - winRate
	avgWin := 0.0
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	}
	avgLoss := 0.0
	if losses := trades - wins; losses > 0 {
		avgLoss = sumLossMag / float64(losses)
	}

	fc.WinRate = winRate
	fc.DeadZoneProbability = float64(deadZone) / float64(trades)

	tol := g.cfg.TradeCountTolerance
	fc.TradeCountLow = tradesPerDay * (1 - tol)
	fc.TradeCountHigh = tradesPerDay * (1 + tol)

	evPerTrade := winRate*avgWin - lossRate*avgLoss - g.cfg.TransactionCostPct
	fc.PnLLowPct = evPerTrade * fc.TradeCountLow
	fc.PnLHighPct = evPerTrade * fc.TradeCountHigh
	if fc.PnLLowPct > fc.PnLHighPct {
		fc.PnLLowPct, fc.PnLHighPct = fc.PnLHighPct, fc.PnLLowPct
	}

	rf := g.cfg.RiskFreePctPerDay
	fc.Sharpe = sharpe(pnls, rf)
	fc.Sortino = sortino(pnls, rf)
	fc.Calmar = g.calmar(pnls)
}

func symbolNames(cards []scoring.ScoreCard) []string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.Symbol
	}
	return names
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	v := 0.0
	for _, x := range xs {
		d := x - m
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)-1))
}

func sharpe(pnls []float64, riskFree float64) float64 {
	sd := stdDev(pnls)
	if sd == 0 {
		return 0
	}
	return (mean(pnls) - riskFree) / sd
}

// sortino penalizes only downside variance: deviations are measured for
// returns below the risk-free rate.
func sortino(pnls []float64, riskFree float64) float64 {
	if len(pnls) < 2 {
		return 0
	}
	downside := 0.0
	for _, p := range pnls {
		if p < riskFree {
			d := p - riskFree
			downside += d * d
		}
	}
	dd := math.Sqrt(downside / float64(len(pnls)))
	if dd == 0 {
		return 0
	}
	return (mean(pnls) - riskFree) / dd
}

// calmar is annualized return over the max drawdown of the cumulative
// per-trade P&L path. Zero drawdown yields zero rather than infinity.
func (g *Generator) calmar(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}
	maxDD := maxDrawdown(pnls)
	if maxDD == 0 {
		return 0
	}
	annualized := mean(pnls) * g.cfg.TradingDaysPerYear
	return annualized / maxDD
}

func maxDrawdown(pnls []float64) float64 {
	cum, peak, maxDD := 0.0, 0.0, 0.0
	for _, p := range pnls {
		cum += p
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SortByPreset orders forecasts alphabetically by preset name, useful for
// stable reporting output.
func SortByPreset(fcs []Forecast) {
	sort.Slice(fcs, func(i, j int) bool { return fcs[i].Preset < fcs[j].Preset })
}
