// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/dvermeer/linguacache/internal/logging"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/predictor"
)

// maxBodyBytes caps training and prediction request bodies. Usage
// records from the device are small; anything larger is malformed.
const maxBodyBytes = 10 << 20 // 10 MiB

// Handler implements the HTTP endpoints backed by the prediction engine.
type Handler struct {
	aggregator *predictor.Aggregator
	analyzer   *network.Analyzer
	startedAt  time.Time
}

// NewHandler creates an API handler over the given prediction engine.
func NewHandler(aggregator *predictor.Aggregator, analyzer *network.Analyzer) *Handler {
	return &Handler{
		aggregator: aggregator,
		analyzer:   analyzer,
		startedAt:  time.Now(),
	}
}

// decodeBody reads and decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return err
	}
	return nil
}

// Train handles POST /api/v1/train.
// Accepts a usage record and retrains all upstream models.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var rec predictor.UsageRecord
	if err := decodeBody(w, r, &rec); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), start)
		return
	}

	if err := h.aggregator.Train(r.Context(), rec); err != nil {
		if errors.Is(err, predictor.ErrEmptyUsageRecord) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), start)
			return
		}
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("Training failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Training failed", start)
		return
	}

	respondSuccess(w, r, h.aggregator.Status(), start)
}

// Predictions handles POST /api/v1/predictions.
// Returns ranked prefetch candidates for the requested horizon.
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req predictor.Request
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, ErrEmptyBody) {
		// An absent body means "use defaults"; anything else malformed.
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), start)
		return
	}

	preds := h.aggregator.Predict(r.Context(), req)

	respondSuccess(w, r, map[string]interface{}{
		"predictions": preds,
		"count":       len(preds),
	}, start)
}

// Status handles GET /api/v1/status.
// Returns the read-only engine snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, h.aggregator.Status(), time.Now())
}

// NetworkRisk handles GET /api/v1/network/risk.
// Query parameters: window (hours, default 24), lat, lon, connectionType.
func (h *Handler) NetworkRisk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	window := 24
	if s := q.Get("window"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 || parsed > 168 {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"window must be an integer between 1 and 168", start)
			return
		}
		window = parsed
	}

	var loc *network.Location
	if latStr, lonStr := q.Get("lat"), q.Get("lon"); latStr != "" && lonStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr != nil || lonErr != nil {
			respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest,
				"lat and lon must be decimal degrees", start)
			return
		}
		loc = &network.Location{Latitude: lat, Longitude: lon}
	}

	forecast := h.analyzer.PredictRisk(window, loc, q.Get("connectionType"))
	respondSuccess(w, r, forecast, start)
}

// feedbackRequest is the body of POST /api/v1/feedback: observed
// per-source performance scores used to rebalance source weights.
type feedbackRequest struct {
	Performance map[string]float64 `json:"performance"`
}

// Feedback handles POST /api/v1/feedback.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req feedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), start)
		return
	}
	if len(req.Performance) == 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed,
			"performance scores are required", start)
		return
	}

	h.aggregator.UpdateWeights(req.Performance)

	respondSuccess(w, r, map[string]interface{}{
		"sourceWeights": h.aggregator.Weights(),
	}, start)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := h.aggregator.Status()

	respondSuccess(w, r, map[string]interface{}{
		"status":        "ok",
		"initialized":   status.Initialized,
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
	}, start)
}
