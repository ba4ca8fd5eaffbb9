package backtest

import (
	"time"

	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/patterns"
)

// Stats aggregates a symbol's simulated pattern history over the lookback
// window. It is the raw material for quality scoring and forecasting.
type Stats struct {
	Sessions      int
	TotalPatterns int
	Confirmed     int
	Trades        int
	Wins          int
	Losses        int

	PatternsPerDay   float64
	ConfirmationRate float64
	WinRate          float64
	AvgWinPct        float64 // mean winning P&L, percent
	AvgLossPct       float64 // mean losing P&L magnitude, percent
	ExpectedValuePct float64
	RiskReward       float64
	AvgHold          time.Duration
	DeadZoneRate     float64
	StopLossRate     float64

	PnLs []float64 // per-trade P&L percents, detection order
}

// Aggregate computes the simulated-trade statistics for one symbol's
// pattern history across the given number of sessions.
func Aggregate(ps []*patterns.Pattern, sessions int) Stats {
	st := Stats{Sessions: sessions}
	if sessions <= 0 {
		st.Sessions = 1
	}

	var winSum, lossSum float64
	var holdSum time.Duration
	var deadZones, stops int

	for _, p := range ps {
		st.TotalPatterns++
		if p.Outcome == patterns.OutcomeConfirmed {
			st.Confirmed++
		}
		r := p.Result
		if r == nil {
			continue
		}
		st.Trades++
		st.PnLs = append(st.PnLs, r.PnLPercent)
		holdSum += r.HoldDuration
		if r.Win {
			st.Wins++
			winSum += r.PnLPercent
		} else {
			st.Losses++
			lossSum += -r.PnLPercent
		}
		switch exit.ExitReason(r.ExitReason) {
		case exit.ReasonDeadZone:
			deadZones++
		case exit.ReasonStopLoss:
			stops++
		}
	}

	st.PatternsPerDay = float64(st.TotalPatterns) / float64(st.Sessions)
	if st.TotalPatterns > 0 {
		st.ConfirmationRate = float64(st.Confirmed) / float64(st.TotalPatterns)
	}
	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
		st.AvgHold = holdSum / time.Duration(st.Trades)
		st.DeadZoneRate = float64(deadZones) / float64(st.Trades)
		st.StopLossRate = float64(stops) / float64(st.Trades)
	}
	if st.Wins > 0 {
		st.AvgWinPct = winSum / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLossPct = lossSum / float64(st.Losses)
	}
	st.ExpectedValuePct = st.WinRate*st.AvgWinPct - (1-st.WinRate)*st.AvgLossPct
	if st.AvgLossPct > 0 {
		st.RiskReward = st.AvgWinPct / st.AvgLossPct
	}
	return st
}
