// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/dvermeer/linguacache/internal/forecast"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/predictor"
	"github.com/dvermeer/linguacache/internal/recommend"
)

// newTestRouter builds the full route tree over a fresh prediction engine.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ensemble := forecast.NewEnsemble(forecast.DefaultEnsembleConfig(), zerolog.Nop())
	analyzer := network.NewAnalyzer(network.DefaultAnalyzerConfig(), zerolog.Nop())
	aggregator := predictor.New(predictor.DefaultConfig(), ensemble, recommend.NewRecommender(), analyzer, zerolog.Nop())
	return NewRouter(NewHandler(aggregator, analyzer), nil).Setup()
}

// doJSON performs one request against the router and decodes the envelope.
func doJSON(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var resp APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: response is not an envelope: %v (%q)", method, target, err, rr.Body.String())
	}
	return rr, resp
}

const trainBody = `{
	"timeSeriesData": [10,11,12,13,14,15,16,17,18,19,20,21,22,23,24,25,
		26,27,28,29,30,31,32,33,10,11,12,13,14,15,16,17,18,19,20,21,
		22,23,24,25,26,27,28,29,30,31,32,33],
	"contentItems": {"phrase-pack-medical": {"medical": 1, "es": 1}},
	"interactions": [{"userId": "clinic-1", "itemId": "phrase-pack-medical", "weight": 2}],
	"languagePairs": {"en-es": 12, "en-fr": 3}
}`

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !resp.Success {
		t.Error("Success = false, want true")
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want object", resp.Data)
	}
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["initialized"] != false {
		t.Errorf("initialized = %v, want false before training", data["initialized"])
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("Meta.RequestID is empty, want a generated correlation ID")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID response header missing")
	}
}

func TestRequestIDPreserved(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "edge-device-42")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "edge-device-42" {
		t.Errorf("X-Request-ID = %q, want the incoming ID preserved", got)
	}
	var resp APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if resp.Meta == nil || resp.Meta.RequestID != "edge-device-42" {
		t.Errorf("Meta.RequestID = %+v, want edge-device-42", resp.Meta)
	}
}

func TestTrainEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/train", trainBody)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	if !resp.Success {
		t.Fatal("Success = false, want true")
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want a status snapshot", resp.Data)
	}
	if data["initialized"] != true {
		t.Errorf("initialized = %v, want true after training", data["initialized"])
	}
	if n, _ := data["trainCount"].(float64); n != 1 {
		t.Errorf("trainCount = %v, want 1", data["trainCount"])
	}
}

func TestTrainEndpointRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"empty body", "", ErrCodeBadRequest},
		{"malformed JSON", `{"timeSeriesData": [1,`, ErrCodeBadRequest},
		{"empty record", `{}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)
			rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/train", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if resp.Success {
				t.Error("Success = true on error response")
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("Error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestPredictionsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	if rr, _ := doJSON(t, router, http.MethodPost, "/api/v1/train", trainBody); rr.Code != http.StatusOK {
		t.Fatalf("training setup failed: %d", rr.Code)
	}

	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/predictions",
		`{"sourceLanguage": "en", "targetLanguage": "es", "horizon": 12}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want object", resp.Data)
	}
	preds, ok := data["predictions"].([]interface{})
	if !ok {
		t.Fatalf("predictions is %T, want array", data["predictions"])
	}
	if len(preds) == 0 {
		t.Fatal("no predictions from a trained engine")
	}
	count, _ := data["count"].(float64)
	if int(count) != len(preds) {
		t.Errorf("count = %v, want %d", data["count"], len(preds))
	}
	first, ok := preds[0].(map[string]interface{})
	if !ok {
		t.Fatalf("prediction entry is %T, want object", preds[0])
	}
	for _, field := range []string{"source", "sourceLanguage", "targetLanguage", "score", "reason", "priority"} {
		if _, present := first[field]; !present {
			t.Errorf("prediction entry missing field %q", field)
		}
	}
}

func TestPredictionsEndpointDefaultsWithoutBody(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/predictions", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for an absent body", rr.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want object", resp.Data)
	}
	// Untrained engine with no language pair has nothing to say.
	if count, _ := data["count"].(float64); count != 0 {
		t.Errorf("count = %v, want 0 for an untrained engine", data["count"])
	}
}

func TestPredictionsEndpointFallback(t *testing.T) {
	router := newTestRouter(t)
	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/predictions",
		`{"sourceLanguage": "en", "targetLanguage": "es"}`)

	data := resp.Data.(map[string]interface{})
	preds, ok := data["predictions"].([]interface{})
	if !ok || len(preds) != 1 {
		t.Fatalf("predictions = %v, want exactly the fallback entry", data["predictions"])
	}
	first := preds[0].(map[string]interface{})
	if first["reason"] != "fallback_prediction" {
		t.Errorf("reason = %v, want fallback_prediction", first["reason"])
	}
	if score, _ := first["score"].(float64); score != 0.5 {
		t.Errorf("score = %v, want 0.5", first["score"])
	}
}

func TestPredictionsEndpointRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/predictions", `{"horizon": "soon"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeBadRequest)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodGet, "/api/v1/status", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want object", resp.Data)
	}
	if data["memoryTier"] != "medium" {
		t.Errorf("memoryTier = %v, want medium", data["memoryTier"])
	}
	if data["initialized"] != false {
		t.Errorf("initialized = %v, want false", data["initialized"])
	}
	weights, ok := data["sourceWeights"].(map[string]interface{})
	if !ok {
		t.Fatalf("sourceWeights is %T, want object", data["sourceWeights"])
	}
	if ts, _ := weights["timeSeries"].(float64); ts != 0.5 {
		t.Errorf("sourceWeights.timeSeries = %v, want 0.5", weights["timeSeries"])
	}
}

func TestNetworkRiskEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodGet, "/api/v1/network/risk", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want a risk forecast", resp.Data)
	}
	// Nothing recorded yet, so the forecast is the fixed low-risk answer.
	if risk, _ := data["risk"].(float64); risk != 0.1 {
		t.Errorf("risk = %v, want 0.1 with no samples", data["risk"])
	}
}

func TestNetworkRiskEndpointQueryValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"valid window", "/api/v1/network/risk?window=48", http.StatusOK},
		{"window zero", "/api/v1/network/risk?window=0", http.StatusBadRequest},
		{"window too large", "/api/v1/network/risk?window=200", http.StatusBadRequest},
		{"window not a number", "/api/v1/network/risk?window=soon", http.StatusBadRequest},
		{"valid location", "/api/v1/network/risk?lat=40.7128&lon=-74.0060", http.StatusOK},
		{"bad latitude", "/api/v1/network/risk?lat=north&lon=-74", http.StatusBadRequest},
		{"lat without lon ignored", "/api/v1/network/risk?lat=40.7128", http.StatusOK},
		{"connection type", "/api/v1/network/risk?connectionType=cellular", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t)
			rr, _ := doJSON(t, router, http.MethodGet, tt.target, "")
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/feedback",
		`{"performance": {"time_series": 2, "content": 1, "network": 1}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want object", resp.Data)
	}
	weights, ok := data["sourceWeights"].(map[string]interface{})
	if !ok {
		t.Fatalf("sourceWeights is %T, want object", data["sourceWeights"])
	}
	if ts, _ := weights["timeSeries"].(float64); ts != 0.5 {
		t.Errorf("timeSeries weight = %v, want 0.5", weights["timeSeries"])
	}
	if c, _ := weights["content"].(float64); c != 0.25 {
		t.Errorf("content weight = %v, want 0.25", weights["content"])
	}
}

func TestFeedbackEndpointRequiresScores(t *testing.T) {
	router := newTestRouter(t)
	rr, resp := doJSON(t, router, http.MethodPost, "/api/v1/feedback", `{"performance": {}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Error = %+v, want code %s", resp.Error, ErrCodeValidationFailed)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	ensemble := forecast.NewEnsemble(forecast.DefaultEnsembleConfig(), zerolog.Nop())
	analyzer := network.NewAnalyzer(network.DefaultAnalyzerConfig(), zerolog.Nop())
	aggregator := predictor.New(predictor.DefaultConfig(), ensemble, recommend.NewRecommender(), analyzer, zerolog.Nop())
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	router := NewRouter(NewHandler(aggregator, analyzer), mw).Setup()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}

	// Operational surfaces stay reachable when the API is throttled.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("/health status = %d during throttling, want 200", rr.Code)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("metrics output missing standard collectors")
	}
}
