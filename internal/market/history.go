package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HistoryClient fetches historical minute bars from the market-data
// collaborator's REST API.
type HistoryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHistoryClient creates a history client for the given base URL
func NewHistoryClient(baseURL string) *HistoryClient {
	return &HistoryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetBars fetches the last n sessions of minute bars for a symbol
func (c *HistoryClient) GetBars(ctx context.Context, symbol string, sessions int) (*BarSeries, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("sessions", strconv.Itoa(sessions))

	endpoint := fmt.Sprintf("%s/api/v1/bars?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building bars request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching bars for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bars request for %s failed with status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var bars []Bar
	if err := json.NewDecoder(resp.Body).Decode(&bars); err != nil {
		return nil, fmt.Errorf("error decoding bars for %s: %w", symbol, err)
	}

	series := NewBarSeries(symbol)
	for _, bar := range bars {
		if err := series.Append(bar); err != nil {
			return nil, fmt.Errorf("out-of-order bar for %s at %s: %w", symbol, bar.Timestamp, err)
		}
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("malformed bars for %s: %w", symbol, err)
	}
	return series, nil
}

// SyntheticHistory generates deterministic random-walk bar history. It stands
// in for the live history feed in mock mode and in local development.
type SyntheticHistory struct {
	BasePrice  float64
	BarsPerDay int
}

// NewSyntheticHistory creates a synthetic history source
func NewSyntheticHistory() *SyntheticHistory {
	return &SyntheticHistory{BasePrice: 100.0, BarsPerDay: 390}
}

// GetBars builds sessions of synthetic minute bars, seeded by symbol so
// repeated scans see identical data
func (s *SyntheticHistory) GetBars(_ context.Context, symbol string, sessions int) (*BarSeries, error) {
	seed := int64(0)
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	rng := rand.New(rand.NewSource(seed))

	series := NewBarSeries(symbol)
	price := s.BasePrice * (0.5 + rng.Float64())
	start := time.Now().UTC().AddDate(0, 0, -sessions).Truncate(24 * time.Hour)

	for day := 0; day < sessions; day++ {
		open := start.AddDate(0, 0, day).Add(14*time.Hour + 30*time.Minute)
		cumPV, cumVol := 0.0, 0.0

		for i := 0; i < s.BarsPerDay; i++ {
			drift := price * 0.0008 * rng.NormFloat64()
			o := price
			c := price + drift
			h := math.Max(o, c) * (1 + 0.0003*rng.Float64())
			l := math.Min(o, c) * (1 - 0.0003*rng.Float64())
			vol := 8000 + rng.Float64()*4000

			typical := (h + l + c) / 3
			cumPV += typical * vol
			cumVol += vol

			bar := Bar{
				Timestamp: open.Add(time.Duration(i) * time.Minute),
				Open:      o,
				High:      h,
				Low:       l,
				Close:     c,
				Volume:    vol,
				VWAP:      cumPV / cumVol,
				Spread:    price * 0.0002,
			}
			if err := series.Append(bar); err != nil {
				return nil, err
			}
			price = c
		}
	}
	return series, nil
}
