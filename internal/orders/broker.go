package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// RESTBroker submits orders to the brokerage gateway's REST API
type RESTBroker struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTBroker creates a broker client for the given gateway URL
func NewRESTBroker(baseURL, apiKey string) *RESTBroker {
	return &RESTBroker{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Type     string  `json:"type"`
}

type orderResponse struct {
	OrderID  string  `json:"order_id"`
	Status   string  `json:"status"`
	AvgPrice float64 `json:"avg_price"`
}

// SubmitOrder places a marketable limit order and returns the average fill
// price. A non-FILLED status is an error; the executor decides whether to
// retry.
func (b *RESTBroker) SubmitOrder(ctx context.Context, symbol string, action Action, quantity, price float64) (float64, error) {
	payload, err := json.Marshal(orderRequest{
		Symbol:   symbol,
		Action:   string(action),
		Quantity: quantity,
		Price:    price,
		Type:     "LIMIT",
	})
	if err != nil {
		return 0, fmt.Errorf("error encoding order: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/orders", b.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("error building order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error submitting %s order for %s: %w", action, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("order for %s rejected with status %d: %s", symbol, resp.StatusCode, string(body))
	}

	var result orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("error decoding order response for %s: %w", symbol, err)
	}
	if result.Status != "FILLED" {
		return 0, fmt.Errorf("order %s for %s not filled: status %s", result.OrderID, symbol, result.Status)
	}
	return result.AvgPrice, nil
}

// PaperBroker fills every order at the requested price. Used in dry-run mode
// and in local development when no gateway is configured.
type PaperBroker struct {
	mu     sync.Mutex
	orders int
}

// NewPaperBroker creates a paper broker
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{}
}

// SubmitOrder fills immediately at the requested price
func (b *PaperBroker) SubmitOrder(_ context.Context, _ string, _ Action, _, price float64) (float64, error) {
	b.mu.Lock()
	b.orders++
	b.mu.Unlock()
	return price, nil
}

// OrderCount returns the number of simulated fills
func (b *PaperBroker) OrderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders
}
