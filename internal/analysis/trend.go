package analysis

import (
	talib "github.com/markcheno/go-talib"

	"vwap-trading-bot/internal/market"
)

// TrendDirection represents the prevailing market trend
type TrendDirection string

const (
	TrendUp      TrendDirection = "up"
	TrendDown    TrendDirection = "down"
	TrendNeutral TrendDirection = "neutral"
)

// Moving-average periods used for trend classification
const (
	FastMAPeriod = 20
	MidMAPeriod  = 50
	SlowMAPeriod = 200
)

// TrendSnapshot holds the moving-average state behind a trend classification
type TrendSnapshot struct {
	Direction TrendDirection
	MA20      float64
	MA50      float64
	MA200     float64
	Strength  float64 // 0.0 to 1.0, spread of price above/below the stack
}

// ClassifyTrend determines the trend from the 20/50/200-period moving
// averages of the series closes. With fewer than 200 bars the slow MA is
// dropped and the 20/50 pair decides; with fewer than 50 bars the trend is
// neutral.
func ClassifyTrend(series *market.BarSeries) TrendSnapshot {
	closes := series.Closes()
	snap := TrendSnapshot{Direction: TrendNeutral}
	if len(closes) < MidMAPeriod {
		return snap
	}

	price := closes[len(closes)-1]

	ma20 := talib.Sma(closes, FastMAPeriod)
	ma50 := talib.Sma(closes, MidMAPeriod)
	snap.MA20 = ma20[len(ma20)-1]
	snap.MA50 = ma50[len(ma50)-1]

	haveSlow := len(closes) >= SlowMAPeriod
	if haveSlow {
		ma200 := talib.Sma(closes, SlowMAPeriod)
		snap.MA200 = ma200[len(ma200)-1]
	}

	switch {
	case price > snap.MA20 && snap.MA20 > snap.MA50 && (!haveSlow || snap.MA50 > snap.MA200):
		snap.Direction = TrendUp
	case price < snap.MA20 && snap.MA20 < snap.MA50 && (!haveSlow || snap.MA50 < snap.MA200):
		snap.Direction = TrendDown
	default:
		snap.Direction = TrendNeutral
	}

	if snap.MA50 > 0 {
		spread := (price - snap.MA50) / snap.MA50
		if spread < 0 {
			spread = -spread
		}
		if spread > 0.05 {
			spread = 0.05
		}
		snap.Strength = spread / 0.05
	}

	return snap
}

// ATRPercent returns the average true range over period bars as a percentage
// of the last close. Returns 0 with insufficient data.
func ATRPercent(series *market.BarSeries, period int) float64 {
	if series.Len() <= period {
		return 0
	}
	atr := talib.Atr(series.Highs(), series.Lows(), series.Closes(), period)
	last, err := series.Last()
	if err != nil || last.Close <= 0 {
		return 0
	}
	return atr[len(atr)-1] / last.Close * 100
}
