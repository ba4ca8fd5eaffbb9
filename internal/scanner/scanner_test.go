package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"vwap-trading-bot/internal/exit"
	"vwap-trading-bot/internal/filter"
	"vwap-trading-bot/internal/forecast"
	"vwap-trading-bot/internal/market"
)

var session = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// fakeHistory serves a flat synthetic series per symbol and errors for
// symbols in the failing set
type fakeHistory struct {
	failing map[string]bool
}

func (f *fakeHistory) GetBars(_ context.Context, symbol string, _ int) (*market.BarSeries, error) {
	if f.failing[symbol] {
		return nil, errors.New("feed unavailable")
	}
	s := market.NewBarSeries(symbol)
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		bar := market.Bar{
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 100.3, Low: 99.8, Close: 100.1,
			Volume: 5000, VWAP: 100, Spread: 0.02,
		}
		if err := s.Append(bar); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newTestScanner(history HistoryProvider) *Scanner {
	gen := forecast.NewGenerator(forecast.DefaultConfig(), exit.DefaultThresholds())
	cfg := ScanConfig{Enabled: true, WorkerCount: 4, LookbackSessions: 5, PortfolioSize: 8}
	return NewScanner(history, nil, gen, filter.BuiltinPresets(), cfg)
}

func TestScanProducesForecastPerPreset(t *testing.T) {
	sc := newTestScanner(&fakeHistory{})

	result, err := sc.Scan(context.Background(), []string{"AAA", "BBB", "CCC"}, session)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.SymbolsScanned != 3 {
		t.Errorf("symbols scanned = %d, want 3", result.SymbolsScanned)
	}
	if len(result.Forecasts) != len(filter.BuiltinPresets()) {
		t.Errorf("forecasts = %d, want one per preset (%d)", len(result.Forecasts), len(filter.BuiltinPresets()))
	}
	if len(result.ScoreCards) != 3 {
		t.Errorf("score cards = %d, want 3", len(result.ScoreCards))
	}
}

func TestScanSkipsFailingSymbols(t *testing.T) {
	sc := newTestScanner(&fakeHistory{failing: map[string]bool{"BAD": true}})

	result, err := sc.Scan(context.Background(), []string{"AAA", "BAD", "CCC"}, session)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.SymbolsScanned != 2 {
		t.Errorf("symbols scanned = %d, want 2 after skipping the failing symbol", result.SymbolsScanned)
	}
}

func TestScanResultIsRetained(t *testing.T) {
	sc := newTestScanner(&fakeHistory{})

	if sc.GetLastResult() != nil {
		t.Fatal("expected no result before first scan")
	}
	result, err := sc.Scan(context.Background(), []string{"AAA"}, session)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if sc.GetLastResult() != result {
		t.Error("last result not retained")
	}
}

func TestScanScoreCardsSortedByComposite(t *testing.T) {
	sc := newTestScanner(&fakeHistory{})

	result, err := sc.Scan(context.Background(), []string{"AAA", "BBB", "CCC", "DDD"}, session)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	for i := 1; i < len(result.ScoreCards); i++ {
		if result.ScoreCards[i-1].Composite < result.ScoreCards[i].Composite {
			t.Errorf("score cards out of order at %d", i)
		}
	}
}
