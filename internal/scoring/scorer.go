package scoring

import (
	"math"
	"time"

	"vwap-trading-bot/internal/analysis"
	"vwap-trading-bot/internal/backtest"
	"vwap-trading-bot/internal/market"
)

// neutralScore is assigned to any category whose inputs are missing, so a
// thin sample neither rewards nor punishes a symbol.
const neutralScore = 50.0

// Scorer turns backtest statistics plus intraday series features into a
// 16-category ScoreCard.
type Scorer struct {
	weights map[Category]float64
}

func NewScorer() *Scorer {
	return &Scorer{weights: Weights}
}

// Score computes one symbol's card for a session. stats carries the
// multi-session simulation results, series the most recent session's bars.
func (s *Scorer) Score(symbol string, session time.Time, stats backtest.Stats, series *market.BarSeries) ScoreCard {
	cats := make(map[Category]float64, len(s.weights))

	hasTrades := stats.Trades > 0

	cats[CatFrequency] = scoreRange(stats.PatternsPerDay, 3.0, 5.0, stats.TotalPatterns > 0)
	cats[CatConfirmationRate] = scoreRange(stats.ConfirmationRate, 0.50, 0.80, stats.TotalPatterns > 0)
	cats[CatWinRate] = scoreRange(stats.WinRate, 0.55, 0.75, hasTrades)
	cats[CatExpectedValue] = scoreRange(stats.ExpectedValuePct, 0.30, 0.80, hasTrades)
	cats[CatAvgWin] = scoreRange(stats.AvgWinPct, 1.00, 1.75, stats.Wins > 0)
	cats[CatRiskReward] = scoreRange(stats.RiskReward, 2.5, 3.5, stats.Wins > 0 && stats.Losses > 0)
	cats[CatDeadZoneRisk] = scoreRangeInverted(stats.DeadZoneRate, 0.0, 0.25, hasTrades)
	cats[CatHaltRisk] = scoreRangeInverted(stats.StopLossRate, 0.0, 0.15, hasTrades)
	cats[CatExecutionEfficiency] = scoreRange(stats.AvgHold.Minutes(), 3.0, 8.0, hasTrades)
	cats[CatConsistency] = scoreRangeInverted(pnlStdDev(stats.PnLs), 0.0, 0.75, len(stats.PnLs) >= 2)

	atrPct := 0.0
	if series != nil && series.Len() > 0 {
		atrPct = analysis.ATRPercent(series, 14)
		cats[CatLiquidity] = scoreRange(dollarVolumePerBar(series), 500_000, 5_000_000, true)
		cats[CatVolatility] = scoreRange(atrPct, 1.5, 3.5, atrPct > 0)
		cats[CatSpreadQuality] = scoreRangeInverted(avgSpreadPct(series), 0.0, 0.05, true)
		cats[CatVWAPStability] = scoreRange(vwapAdherence(series), 0.60, 0.90, true)
		cats[CatTrendAlignment] = trendScore(analysis.ClassifyTrend(series))
	} else {
		cats[CatLiquidity] = neutralScore
		cats[CatVolatility] = neutralScore
		cats[CatSpreadQuality] = neutralScore
		cats[CatVWAPStability] = neutralScore
		cats[CatTrendAlignment] = neutralScore
	}

	// The tiebreak category is the unweighted mean of the other fifteen, so
	// two symbols with equal composites still rank deterministically.
	cats[CatRankTiebreak] = tiebreak(cats)

	composite := 0.0
	for _, cat := range Categories {
		composite += s.weights[cat] * cats[cat]
	}

	return ScoreCard{
		Symbol:     symbol,
		Session:    session,
		Categories: cats,
		Composite:  clamp(composite, 0, 100),
		RiskClass:  classifyRisk(atrPct),
	}
}

// classifyRisk buckets by session ATR as a percentage of price. A symbol
// with no series data lands in the medium bucket.
func classifyRisk(atrPct float64) RiskClass {
	switch {
	case atrPct <= 0:
		return RiskMedium
	case atrPct < 2.0:
		return RiskConservative
	case atrPct <= 3.0:
		return RiskMedium
	default:
		return RiskAggressive
	}
}

// scoreRange maps v onto 0-100 against a target band [lo, hi]. Values inside
// the band score 100; outside, the score decays linearly and hits zero one
// full band-width away from the nearer edge.
func scoreRange(v, lo, hi float64, haveSample bool) float64 {
	if !haveSample {
		return neutralScore
	}
	width := hi - lo
	if width <= 0 {
		return neutralScore
	}
	var dist float64
	switch {
	case v < lo:
		dist = lo - v
	case v > hi:
		dist = v - hi
	default:
		return 100
	}
	return clamp(100*(1-dist/width), 0, 100)
}

// scoreRangeInverted treats [lo, hi] as the acceptable band for a
// lower-is-better metric: at or below lo scores 100, the score decays to
// zero at hi.
func scoreRangeInverted(v, lo, hi float64, haveSample bool) float64 {
	if !haveSample {
		return neutralScore
	}
	if v <= lo {
		return 100
	}
	if v >= hi {
		return 0
	}
	return clamp(100*(hi-v)/(hi-lo), 0, 100)
}

func trendScore(snap analysis.TrendSnapshot) float64 {
	switch snap.Direction {
	case analysis.TrendUp:
		return clamp(75+25*snap.Strength, 0, 100)
	case analysis.TrendDown:
		return clamp(30*(1-snap.Strength), 0, 100)
	default:
		return neutralScore
	}
}

func tiebreak(cats map[Category]float64) float64 {
	sum, n := 0.0, 0
	for _, cat := range Categories {
		if cat == CatRankTiebreak {
			continue
		}
		sum += cats[cat]
		n++
	}
	if n == 0 {
		return neutralScore
	}
	return sum / float64(n)
}

func dollarVolumePerBar(series *market.BarSeries) float64 {
	bars := series.Bars()
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range bars {
		total += b.Close * b.Volume
	}
	return total / float64(len(bars))
}

func avgSpreadPct(series *market.BarSeries) float64 {
	bars := series.Bars()
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range bars {
		if b.Close > 0 {
			total += b.Spread / b.Close * 100
		}
	}
	return total / float64(len(bars))
}

// vwapAdherence is the fraction of bars whose close sits within 0.5% of the
// bar's VWAP. Choppy names that whipsaw far from VWAP score low here.
func vwapAdherence(series *market.BarSeries) float64 {
	bars := series.Bars()
	if len(bars) == 0 {
		return 0
	}
	near := 0
	for _, b := range bars {
		if b.VWAP <= 0 {
			continue
		}
		if math.Abs(b.Close-b.VWAP)/b.VWAP*100 <= 0.5 {
			near++
		}
	}
	return float64(near) / float64(len(bars))
}

func pnlStdDev(pnls []float64) float64 {
	n := len(pnls)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, p := range pnls {
		mean += p
	}
	mean /= float64(n)
	variance := 0.0
	for _, p := range pnls {
		d := p - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
