package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vwap-trading-bot/internal/bot"
	"vwap-trading-bot/internal/events"
	"vwap-trading-bot/internal/risk"
	"vwap-trading-bot/internal/scanner"
)

type fakeBot struct {
	positions map[string]bot.PositionStatus
}

func (f *fakeBot) GetStatus() map[string]interface{} {
	return map[string]interface{}{"preset": "Default", "open_positions": len(f.positions)}
}

func (f *fakeBot) PositionStates() map[string]bot.PositionStatus {
	return f.positions
}

type fakeScanner struct {
	result *scanner.ScanResult
	err    error
	calls  int
}

func (f *fakeScanner) Scan(_ context.Context, _ []string, _ time.Time) (*scanner.ScanResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeScanner) GetLastResult() *scanner.ScanResult {
	return f.result
}

func newTestServer(botAPI BotAPI, scannerAPI ScannerAPI) *Server {
	return NewServer(
		ServerConfig{Port: 0, ProductionMode: true, Watchlist: []string{"AAPL"}},
		nil,
		events.NewEventBus(),
		botAPI,
		scannerAPI,
		risk.NewManager(risk.DefaultConfig()),
	)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthWithoutDatabase(t *testing.T) {
	s := newTestServer(nil, nil)

	w := doRequest(s, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["database"] != "disabled" {
		t.Errorf("database = %q, want disabled", body["database"])
	}
}

func TestBotStatusUnavailableWithoutBot(t *testing.T) {
	s := newTestServer(nil, nil)

	w := doRequest(s, http.MethodGet, "/api/bot/status")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestBotStatusIncludesRiskSnapshot(t *testing.T) {
	s := newTestServer(&fakeBot{}, nil)

	w := doRequest(s, http.MethodGet, "/api/bot/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := body.Data["risk"]; !ok {
		t.Error("expected risk snapshot in bot status")
	}
	if _, ok := body.Data["preset"]; !ok {
		t.Error("expected preset in bot status")
	}
}

func TestGetPositions(t *testing.T) {
	fb := &fakeBot{positions: map[string]bot.PositionStatus{
		"AAPL": {State: "t1_locked", FloorPrice: 150.0},
	}}
	s := newTestServer(fb, nil)

	w := doRequest(s, http.MethodGet, "/api/positions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Data map[string]bot.PositionStatus `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := body.Data["AAPL"].State; got != "t1_locked" {
		t.Errorf("state = %q, want t1_locked", got)
	}
}

func TestGetPresets(t *testing.T) {
	s := newTestServer(nil, nil)

	w := doRequest(s, http.MethodGet, "/api/presets")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 7 {
		t.Errorf("preset count = %d, want 7", len(body.Data))
	}
}

func TestForecastsUnavailableWithoutDatabase(t *testing.T) {
	s := newTestServer(nil, nil)

	for _, path := range []string{"/api/forecasts", "/api/scorecards", "/api/patterns", "/api/fills"} {
		w := doRequest(s, http.MethodGet, path)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, w.Code)
		}
	}
}

func TestTriggerScan(t *testing.T) {
	fs := &fakeScanner{result: &scanner.ScanResult{SymbolsScanned: 1}}
	s := newTestServer(nil, fs)

	w := doRequest(s, http.MethodPost, "/api/scan")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if fs.calls != 1 {
		t.Errorf("scan calls = %d, want 1", fs.calls)
	}
}

func TestTriggerScanFailure(t *testing.T) {
	fs := &fakeScanner{err: errors.New("history feed down")}
	s := newTestServer(nil, fs)

	w := doRequest(s, http.MethodPost, "/api/scan")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestLastScanNotFoundBeforeFirstScan(t *testing.T) {
	s := newTestServer(nil, &fakeScanner{})

	w := doRequest(s, http.MethodGet, "/api/scan/last")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("k") {
		t.Error("third request within the window must be rejected")
	}
	if !rl.Allow("other") {
		t.Error("limits are per key")
	}
}
