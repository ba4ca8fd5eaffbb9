package analysis

import "vwap-trading-bot/internal/market"

// Pivot represents a confirmed local extreme in the bar history
type Pivot struct {
	Index int
	Price float64
}

// FindPivotLows identifies local lows with strictly higher lows on both
// sides of the window. Used as support levels.
func FindPivotLows(series *market.BarSeries, leftBars, rightBars int) []Pivot {
	lows := series.Lows()
	var pivots []Pivot

	for i := leftBars; i < len(lows)-rightBars; i++ {
		current := lows[i]
		isPivot := true
		for j := 1; j <= leftBars && isPivot; j++ {
			if lows[i-j] <= current {
				isPivot = false
			}
		}
		for j := 1; j <= rightBars && isPivot; j++ {
			if lows[i+j] <= current {
				isPivot = false
			}
		}
		if isPivot {
			pivots = append(pivots, Pivot{Index: i, Price: current})
		}
	}
	return pivots
}

// FindPivotHighs identifies local highs, used as resistance levels
func FindPivotHighs(series *market.BarSeries, leftBars, rightBars int) []Pivot {
	highs := series.Highs()
	var pivots []Pivot

	for i := leftBars; i < len(highs)-rightBars; i++ {
		current := highs[i]
		isPivot := true
		for j := 1; j <= leftBars && isPivot; j++ {
			if highs[i-j] >= current {
				isPivot = false
			}
		}
		for j := 1; j <= rightBars && isPivot; j++ {
			if highs[i+j] >= current {
				isPivot = false
			}
		}
		if isPivot {
			pivots = append(pivots, Pivot{Index: i, Price: current})
		}
	}
	return pivots
}

// NearSupportResistance reports whether price lies within tolerancePct of
// any pivot level (support or resistance) in the series.
func NearSupportResistance(series *market.BarSeries, price, tolerancePct float64) bool {
	if price <= 0 {
		return false
	}
	levels := FindPivotLows(series, 3, 3)
	levels = append(levels, FindPivotHighs(series, 3, 3)...)
	for _, p := range levels {
		dist := (price - p.Price) / price * 100
		if dist < 0 {
			dist = -dist
		}
		if dist <= tolerancePct {
			return true
		}
	}
	return false
}
