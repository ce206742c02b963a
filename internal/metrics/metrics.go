// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package metrics provides Prometheus instrumentation for the predictor:
// training runs, ensemble weights, prediction serving, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Training Metrics
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "predictor_training_duration_seconds",
			Help:    "Duration of aggregator training runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TrainingRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictor_training_runs_total",
			Help: "Total number of aggregator training runs",
		},
	)

	TrainingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictor_training_failures_total",
			Help: "Total number of per-model training failures",
		},
		[]string{"model"},
	)

	EnsembleWeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "predictor_ensemble_weight",
			Help: "Current ensemble weight per member model",
		},
		[]string{"model"},
	)

	// Prediction Metrics
	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "predictor_prediction_duration_seconds",
			Help:    "Duration of prediction aggregation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PredictionsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictor_predictions_served_total",
			Help: "Total number of prediction entries returned",
		},
	)

	PredictionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictor_prediction_errors_total",
			Help: "Total number of aggregation failures converted to diagnostic entries",
		},
	)

	FallbackPredictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictor_fallback_predictions_total",
			Help: "Total number of synthetic fallback predictions emitted",
		},
	)

	// Network Analyzer Metrics
	NetworkSamplesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "predictor_network_samples_total",
			Help: "Total number of connectivity samples recorded",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTraining records one completed training run.
func RecordTraining(duration time.Duration) {
	TrainingRuns.Inc()
	TrainingDuration.Observe(duration.Seconds())
}

// RecordTrainingFailure records a training failure for one model.
func RecordTrainingFailure(model string) {
	TrainingFailures.WithLabelValues(model).Inc()
}

// SetEnsembleWeight publishes a member's current ensemble weight.
func SetEnsembleWeight(model string, weight float64) {
	EnsembleWeight.WithLabelValues(model).Set(weight)
}

// RecordPrediction records one served prediction request.
func RecordPrediction(duration time.Duration, entries int) {
	PredictionDuration.Observe(duration.Seconds())
	PredictionsServed.Add(float64(entries))
}

// RecordPredictionError records an aggregation failure.
func RecordPredictionError() {
	PredictionErrors.Inc()
}

// RecordNetworkSample records one ingested connectivity sample.
func RecordNetworkSample() {
	NetworkSamplesIngested.Inc()
}

// RecordFallbackPrediction records an emitted synthetic fallback entry.
func RecordFallbackPrediction() {
	FallbackPredictions.Inc()
}

// RecordAPIRequest records one HTTP API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
