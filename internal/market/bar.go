package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bar represents a single OHLCV bar with the running session VWAP and the
// prevailing bid-ask spread at close time. Bars are immutable once recorded.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	VWAP      float64   `json:"vwap"`
	Spread    float64   `json:"spread"`
}

// Tick represents a live quote update for a symbol
type Tick struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	VWAP      float64   `json:"vwap"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
}

// Spread returns the bid-ask spread of the tick
func (t Tick) SpreadValue() float64 {
	if t.Ask <= 0 || t.Bid <= 0 {
		return 0
	}
	return t.Ask - t.Bid
}

var (
	// ErrEmptySeries is returned when an operation needs at least one bar
	ErrEmptySeries = errors.New("market: empty bar series")

	// ErrMalformedBar is returned by Validate for unusable bar data
	ErrMalformedBar = errors.New("market: malformed bar data")
)

// BarSeries holds the normalized bar history for a single symbol.
// Bars are appended in timestamp order and never mutated afterward.
type BarSeries struct {
	Symbol string
	bars   []Bar
}

// NewBarSeries creates a bar series for a symbol
func NewBarSeries(symbol string) *BarSeries {
	return &BarSeries{
		Symbol: symbol,
		bars:   make([]Bar, 0, 512),
	}
}

// NewBarSeriesFrom creates a bar series from existing history
func NewBarSeriesFrom(symbol string, bars []Bar) *BarSeries {
	s := &BarSeries{Symbol: symbol, bars: make([]Bar, len(bars))}
	copy(s.bars, bars)
	return s
}

// Append adds a bar to the series. Out-of-order bars are rejected.
func (s *BarSeries) Append(bar Bar) error {
	if n := len(s.bars); n > 0 && !bar.Timestamp.After(s.bars[n-1].Timestamp) {
		return fmt.Errorf("market: bar %s not after last bar %s",
			bar.Timestamp.Format(time.RFC3339), s.bars[len(s.bars)-1].Timestamp.Format(time.RFC3339))
	}
	s.bars = append(s.bars, bar)
	return nil
}

// Len returns the number of bars in the series
func (s *BarSeries) Len() int {
	return len(s.bars)
}

// Bars returns the underlying bar slice. Callers must not modify it.
func (s *BarSeries) Bars() []Bar {
	return s.bars
}

// At returns the bar at index i
func (s *BarSeries) At(i int) Bar {
	return s.bars[i]
}

// Last returns the most recent bar
func (s *BarSeries) Last() (Bar, error) {
	if len(s.bars) == 0 {
		return Bar{}, ErrEmptySeries
	}
	return s.bars[len(s.bars)-1], nil
}

// Window returns the bars with timestamps in [from, to]
func (s *BarSeries) Window(from, to time.Time) []Bar {
	var out []Bar
	for _, b := range s.bars {
		if b.Timestamp.Before(from) {
			continue
		}
		if b.Timestamp.After(to) {
			break
		}
		out = append(out, b)
	}
	return out
}

// TrailingWindow returns the bars within dur before (and including) the bar
// at index end.
func (s *BarSeries) TrailingWindow(end int, dur time.Duration) []Bar {
	if end < 0 || end >= len(s.bars) {
		return nil
	}
	cutoff := s.bars[end].Timestamp.Add(-dur)
	start := end
	for start > 0 && !s.bars[start-1].Timestamp.Before(cutoff) {
		start--
	}
	return s.bars[start : end+1]
}

// Closes returns the close prices of all bars
func (s *BarSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices of all bars
func (s *BarSeries) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices of all bars
func (s *BarSeries) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}

// AverageVolume returns the mean volume of the trailing n bars before
// (not including) the bar at index end.
func (s *BarSeries) AverageVolume(end, n int) float64 {
	start := end - n
	if start < 0 {
		start = 0
	}
	if start >= end {
		return 0
	}
	sum := 0.0
	for _, b := range s.bars[start:end] {
		sum += b.Volume
	}
	return sum / float64(end-start)
}

// Validate checks the series for unusable data: non-positive prices, NaN
// values, or inverted high/low. A failing series is skipped for the session.
func (s *BarSeries) Validate() error {
	if len(s.bars) == 0 {
		return ErrEmptySeries
	}
	for i, b := range s.bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 || b.VWAP <= 0 {
			return fmt.Errorf("%w: non-positive price at index %d", ErrMalformedBar, i)
		}
		if math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) ||
			math.IsNaN(b.Close) || math.IsNaN(b.Volume) || math.IsNaN(b.VWAP) {
			return fmt.Errorf("%w: NaN value at index %d", ErrMalformedBar, i)
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: high below low at index %d", ErrMalformedBar, i)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: negative volume at index %d", ErrMalformedBar, i)
		}
	}
	return nil
}
