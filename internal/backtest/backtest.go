package backtest

import (
	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/market"
	"vwap-trading-bot/internal/patterns"
)

// Simulator replays confirmed patterns through the tiered exit ladder over
// the bars that followed detection, annotating each pattern with its
// simulated trade result. Results are deterministic for identical inputs.
type Simulator struct {
	thresholds exit.Thresholds
}

// NewSimulator creates a simulator using the given exit ladder
func NewSimulator(thresholds exit.Thresholds) *Simulator {
	return &Simulator{thresholds: thresholds}
}

// Simulate runs one confirmed pattern to its exit. Returns nil for
// patterns that never confirmed or have no bars after confirmation.
func (s *Simulator) Simulate(p *patterns.Pattern, series *market.BarSeries) *patterns.TradeResult {
	if p.Outcome != patterns.OutcomeConfirmed || p.ConfirmedAt.IsZero() {
		return nil
	}

	pos := exit.Position{
		ID:          p.ID,
		Symbol:      p.Symbol,
		EntryPrice:  p.EntryPrice,
		EntryTime:   p.ConfirmedAt,
		Quantity:    1,
		EntryReason: string(p.Type),
	}
	engine := exit.NewEngine(pos, s.thresholds)

	var decision *exit.Decision
	lastClose := p.EntryPrice
	lastTime := p.ConfirmedAt

	for _, bar := range series.Bars() {
		if !bar.Timestamp.After(p.ConfirmedAt) {
			continue
		}
		lastClose = bar.Close
		lastTime = bar.Timestamp

		// Low first: intra-bar ordering is unknown, so the stop is given
		// the first look.
		for _, price := range []float64{bar.Low, bar.High, bar.Close} {
			if d := engine.OnPrice(bar.Timestamp, price); d != nil && d.Exit {
				decision = d
				break
			}
		}
		if decision != nil {
			break
		}
	}

	exitPrice := lastClose
	reason := exit.ReasonDeadZone // ran out of session without a decision
	exitTime := lastTime
	if decision != nil {
		exitPrice = decision.Price
		reason = decision.Reason
	}

	pnlPct := (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	return &patterns.TradeResult{
		Win:          pnlPct > 0,
		PnLPercent:   pnlPct,
		EntryPrice:   p.EntryPrice,
		ExitPrice:    exitPrice,
		HoldDuration: exitTime.Sub(p.ConfirmedAt),
		ExitReason:   string(reason),
	}
}

// SimulateAll annotates every confirmed pattern in the batch with its
// simulated result.
func (s *Simulator) SimulateAll(ps []*patterns.Pattern, series *market.BarSeries) {
	for _, p := range ps {
		if r := s.Simulate(p, series); r != nil {
			p.Result = r
		}
	}
}
