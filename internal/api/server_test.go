package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradecoach/internal/models"
	"tradecoach/internal/performance"
	"tradecoach/internal/pipeline"
	"tradecoach/internal/resilience"
	"tradecoach/internal/security"
)

const tradeBody = `{"tradeData":{"symbol":"EURUSD","direction":"long","stopLoss":"1.2000","setupGrade":2,"emotion":"fearful","pnl":-50,"rMultiple":-1}}`

func newTestServer(opts ...Option) *Server {
	return NewServer(":0", pipeline.New(nil, []string{"gpt-4o-mini"}), opts...)
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) models.AnalysisResponse {
	t.Helper()
	var resp models.AnalysisResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestHandleAnalyze_Fallback(t *testing.T) {
	s := newTestServer()
	w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a generated request ID header")
	}

	resp := decodeEnvelope(t, w)
	if !resp.Success || resp.Analysis.Model != models.ModelFallbackEnhanced {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if resp.Analysis.Sections.TraderScore.Overall != 53 {
		t.Errorf("overall = %d, want 53", resp.Analysis.Sections.TraderScore.Overall)
	}
	if _, err := time.Parse(time.RFC3339, resp.Analysis.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", resp.Analysis.Timestamp, err)
	}
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"missing tradeData", `{"allTradeData":{"totalTrades":3}}`},
		{"null tradeData", `{"tradeData":null}`},
		{"not json", `trade please`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, "/api/trades/analyze", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["success"] != false || body["error"] == "" {
				t.Errorf("unexpected error body %v", body)
			}
		})
	}
}

func TestHandleAnalyze_NonObjectAccountContextIgnored(t *testing.T) {
	s := newTestServer()
	trade := `{"symbol":"EURUSD","stopLoss":"1.2000","setupGrade":2,"emotion":"fearful","pnl":-50}`

	for _, account := range []string{`[{"pnl":5}]`, `[]`, `"recent"`, `12`} {
		t.Run(account, func(t *testing.T) {
			body := `{"tradeData":` + trade + `,"allTradeData":` + account + `}`
			w := do(s, http.MethodPost, "/api/trades/analyze", body, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			resp := decodeEnvelope(t, w)
			if !resp.Success || resp.Analysis.Sections.TraderScore.Overall != 53 {
				t.Errorf("unexpected envelope %+v", resp)
			}
		})
	}
}

func TestHandleAnalyze_DegradedIsOK(t *testing.T) {
	s := newTestServer()
	w := do(s, http.MethodPost, "/api/trades/analyze", `{"tradeData":42}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a degraded analysis, got %d", w.Code)
	}
	resp := decodeEnvelope(t, w)
	if resp.Success || resp.Analysis.Model != models.ModelFallback || resp.Analysis.FullAnalysis != models.DegradedMessage {
		t.Errorf("unexpected degraded envelope %+v", resp)
	}
}

func TestHandleAnalyze_Auth(t *testing.T) {
	s := newTestServer(WithAuth(security.NewTokenChecker("s3cret")))

	if w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
	if w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", w.Code)
	}
	if w := do(s, http.MethodPost, "/api/trades/analyze", `{}`, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("auth must be checked before the body: got %d", w.Code)
	}
	if w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Errorf("valid token: expected 200, got %d", w.Code)
	}
	if w := do(s, http.MethodGet, "/api/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health must not require auth, got %d", w.Code)
	}
}

func TestHandleAnalyze_RateLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := performance.NewRateLimiter(0.25, 1).WithClock(func() time.Time { return now })
	s := newTestServer(WithRateLimiter(limiter))

	if w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "4" {
		t.Errorf("Retry-After = %q, want 4", got)
	}

	now = now.Add(4 * time.Second)
	if w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, nil); w.Code != http.StatusOK {
		t.Errorf("after refill: expected 200, got %d", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	s := newTestServer()
	w := do(s, http.MethodPost, "/api/trades/analyze", tradeBody, map[string]string{RequestIDHeader: "req-42"})
	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Errorf("request ID = %q, want req-42", got)
	}
}

func TestHandleHealth(t *testing.T) {
	reg := resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig())
	reg.Get("gpt-4o-mini")
	s := newTestServer(WithBreakers(reg))

	w := do(s, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["ok"] != true {
		t.Error("expected ok=true")
	}
	listed, _ := resp["models"].([]any)
	if len(listed) != 1 || listed[0] != "gpt-4o-mini" {
		t.Errorf("models = %v", resp["models"])
	}
	breakers, _ := resp["circuit_breakers"].([]any)
	if len(breakers) != 1 {
		t.Errorf("circuit_breakers = %v", resp["circuit_breakers"])
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer()
	if w := do(s, http.MethodGet, "/api/trades/analyze", "", nil); w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET analyze: expected 404 or 405, got %d", w.Code)
	}
}
