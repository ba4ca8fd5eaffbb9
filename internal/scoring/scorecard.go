package scoring

import "time"

// Category names the 16 scoring dimensions
type Category string

const (
	CatFrequency           Category = "frequency"
	CatConfirmationRate    Category = "confirmation_rate"
	CatWinRate             Category = "win_rate"
	CatExpectedValue       Category = "expected_value"
	CatAvgWin              Category = "avg_win"
	CatRiskReward          Category = "risk_reward"
	CatLiquidity           Category = "liquidity"
	CatVolatility          Category = "volatility"
	CatSpreadQuality       Category = "spread_quality"
	CatVWAPStability       Category = "vwap_stability"
	CatTrendAlignment      Category = "trend_alignment"
	CatDeadZoneRisk        Category = "dead_zone_risk"
	CatHaltRisk            Category = "halt_risk"
	CatExecutionEfficiency Category = "execution_efficiency"
	CatConsistency         Category = "backtest_consistency"
	CatRankTiebreak        Category = "rank_tiebreak"
)

// Categories lists the scoring dimensions in canonical order. Composite and
// tiebreak sums iterate this slice so floating-point addition order is fixed
// and recomputation always reproduces the same card.
var Categories = []Category{
	CatFrequency,
	CatConfirmationRate,
	CatWinRate,
	CatExpectedValue,
	CatAvgWin,
	CatRiskReward,
	CatLiquidity,
	CatVolatility,
	CatSpreadQuality,
	CatVWAPStability,
	CatTrendAlignment,
	CatDeadZoneRisk,
	CatHaltRisk,
	CatExecutionEfficiency,
	CatConsistency,
	CatRankTiebreak,
}

// Weights is the fixed linear combination behind the composite score.
// The values sum to 1.0.
var Weights = map[Category]float64{
	CatFrequency:           0.20,
	CatConfirmationRate:    0.10,
	CatWinRate:             0.08,
	CatExpectedValue:       0.06,
	CatAvgWin:              0.03,
	CatRiskReward:          0.03,
	CatLiquidity:           0.06,
	CatVolatility:          0.08,
	CatSpreadQuality:       0.05,
	CatVWAPStability:       0.08,
	CatTrendAlignment:      0.03,
	CatDeadZoneRisk:        0.05,
	CatHaltRisk:            0.05,
	CatExecutionEfficiency: 0.05,
	CatConsistency:         0.03,
	CatRankTiebreak:        0.02,
}

// RiskClass buckets a symbol by its volatility profile
type RiskClass string

const (
	RiskConservative RiskClass = "conservative"
	RiskMedium       RiskClass = "medium"
	RiskAggressive   RiskClass = "aggressive"
)

// ScoreCard is a symbol's daily quality assessment. It is computed once per
// session and never mutated intraday.
type ScoreCard struct {
	Symbol     string               `json:"symbol"`
	Session    time.Time            `json:"session"`
	Categories map[Category]float64 `json:"categories"`
	Composite  float64              `json:"composite"`
	RiskClass  RiskClass            `json:"risk_class"`
}

// Tiebreak returns the dedicated ranking tiebreak category score
func (sc ScoreCard) Tiebreak() float64 {
	return sc.Categories[CatRankTiebreak]
}
