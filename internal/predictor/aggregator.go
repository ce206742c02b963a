// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package predictor implements the hybrid prediction aggregator: it merges
// ensemble demand forecasts, content-similarity recommendations, and
// network offline-risk predictions into one ranked, confidence-filtered
// prefetch candidate list, with adaptive inter-source weighting from
// external feedback.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvermeer/linguacache/internal/forecast"
	"github.com/dvermeer/linguacache/internal/logging"
	"github.com/dvermeer/linguacache/internal/metrics"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/recommend"
)

// ErrEmptyUsageRecord indicates a training call carried no usable signal.
var ErrEmptyUsageRecord = errors.New("predictor: usage record carries no trainable data")

// ErrNoTrainingData indicates a retrain was requested before any usage
// record with a demand series was ingested.
var ErrNoTrainingData = errors.New("predictor: no demand series available for retraining")

// Config contains aggregator configuration.
type Config struct {
	// Weights is the initial per-source weighting; normalized to sum to 1.
	Weights SourceWeights

	// MaxPredictions is the default output truncation. Default: 10.
	MaxPredictions int

	// ConfidenceThreshold is the default score filter. Default: 0.1.
	ConfidenceThreshold float64

	// DefaultHorizon is the forecast length when a request leaves it
	// unset. Default: 24.
	DefaultHorizon int

	// TopPairCount is how many most-requested language pairs to retain
	// from training data. Default: 5.
	TopPairCount int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultSourceWeights(),
		MaxPredictions:      10,
		ConfidenceThreshold: 0.1,
		DefaultHorizon:      24,
		TopPairCount:        5,
	}
}

// fallbackScore is the fixed score of the synthetic fallback prediction.
const fallbackScore = 0.5

// Aggregator owns the sub-model instances and merges their signals. It is
// constructed once per process and passed by reference; there is no
// ambient global state.
//
// Training calls are serialized behind an internal mutex, so two
// overlapping Train calls queue instead of interleaving model mutation.
// Predictions take shared locks and are safe to run concurrently with
// each other.
type Aggregator struct {
	cfg    Config
	logger zerolog.Logger

	ensemble    *forecast.Ensemble
	recommender *recommend.Recommender
	analyzer    *network.Analyzer

	trainMu sync.Mutex

	// lastSeries is the most recent demand series, kept for scheduled
	// retraining. Guarded by trainMu.
	lastSeries []float64

	stateMu           sync.RWMutex
	weights           SourceWeights
	topPairs          []string
	initialized       bool
	lastTrainedAt     time.Time
	lastTrainDuration time.Duration
	trainCount        int64
	predictionCount   int64
}

// New creates an aggregator owning the given sub-models.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, ensemble *forecast.Ensemble, recommender *recommend.Recommender, analyzer *network.Analyzer, logger zerolog.Logger) *Aggregator {
	if cfg.MaxPredictions <= 0 {
		cfg.MaxPredictions = 10
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.1
	}
	if cfg.DefaultHorizon <= 0 {
		cfg.DefaultHorizon = 24
	}
	if cfg.TopPairCount <= 0 {
		cfg.TopPairCount = 5
	}
	return &Aggregator{
		cfg:         cfg,
		logger:      logger.With().Str("component", "predictor").Logger(),
		ensemble:    ensemble,
		recommender: recommender,
		analyzer:    analyzer,
		weights:     cfg.Weights.normalized(),
	}
}

// Train feeds a usage record into every sub-model. An individual
// sub-model failing is not fatal: the failure is logged and the remaining
// signals still serve predictions. Only a record with no usable data at
// all is an error.
func (a *Aggregator) Train(ctx context.Context, rec UsageRecord) error {
	a.trainMu.Lock()
	defer a.trainMu.Unlock()

	if rec.Empty() {
		return ErrEmptyUsageRecord
	}

	start := time.Now()

	for id, features := range rec.ContentItems {
		a.recommender.SetContentProfile(id, features)
	}
	for _, inter := range rec.Interactions {
		a.recommender.RecordInteraction(inter)
	}
	for _, sample := range rec.NetworkSamples {
		a.analyzer.Record(sample)
	}

	if len(rec.TimeSeriesData) > 0 {
		a.lastSeries = append(a.lastSeries[:0], rec.TimeSeriesData...)
		if err := a.ensemble.Train(ctx, rec.TimeSeriesData); err != nil {
			// Degrade rather than abort: the other signal sources still work.
			a.logger.Warn().Err(err).Msg("ensemble training failed, serving remaining signals")
			metrics.RecordTrainingFailure("ensemble")
		}
	}

	a.stateMu.Lock()
	a.topPairs = topLanguagePairs(rec.LanguagePairs, a.cfg.TopPairCount)
	a.initialized = true
	a.lastTrainedAt = time.Now()
	a.lastTrainDuration = time.Since(start)
	a.trainCount++
	a.stateMu.Unlock()

	report := a.ensemble.Report()
	for _, m := range report.Members {
		metrics.SetEnsembleWeight(m.Name, m.Weight)
		if !m.Trained {
			metrics.RecordTrainingFailure(m.Name)
		}
	}
	metrics.RecordTraining(a.lastTrainDuration)

	a.logger.Info().
		Int("series_points", len(rec.TimeSeriesData)).
		Int("content_items", len(rec.ContentItems)).
		Int("interactions", len(rec.Interactions)).
		Int("network_samples", len(rec.NetworkSamples)).
		Dur("duration", a.lastTrainDuration).
		Msg("training complete")
	return nil
}

// Retrain replays the most recent demand series through the ensemble.
// It is used by the scheduled retraining service: the recommender and
// network analyzer accumulate state incrementally, so only the forecast
// ensemble benefits from a full refit.
func (a *Aggregator) Retrain(ctx context.Context) error {
	a.trainMu.Lock()
	defer a.trainMu.Unlock()

	if len(a.lastSeries) == 0 {
		return ErrNoTrainingData
	}

	start := time.Now()
	if err := a.ensemble.Train(ctx, a.lastSeries); err != nil {
		metrics.RecordTrainingFailure("ensemble")
		return err
	}

	a.stateMu.Lock()
	a.lastTrainedAt = time.Now()
	a.lastTrainDuration = time.Since(start)
	a.trainCount++
	a.stateMu.Unlock()

	report := a.ensemble.Report()
	for _, m := range report.Members {
		metrics.SetEnsembleWeight(m.Name, m.Weight)
	}
	metrics.RecordTraining(a.lastTrainDuration)

	a.logger.Info().
		Int("series_points", len(a.lastSeries)).
		Dur("duration", a.lastTrainDuration).
		Msg("scheduled retraining complete")
	return nil
}

// topLanguagePairs returns up to n pair keys sorted by descending count.
func topLanguagePairs(counts map[string]int, n int) []string {
	pairs := make([]string, 0, len(counts))
	for pair := range counts {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if counts[pairs[i]] == counts[pairs[j]] {
			return pairs[i] < pairs[j]
		}
		return counts[pairs[i]] > counts[pairs[j]]
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// Predict merges all sub-model signals into one ranked, filtered list. An
// unexpected failure during aggregation is converted into a single
// diagnostic prediction entry rather than an error, so the cache manager
// always receives a decision.
func (a *Aggregator) Predict(ctx context.Context, req Request) (preds []Prediction) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("prediction aggregation failed")
			metrics.RecordPredictionError()
			preds = []Prediction{{
				Source:       SourceTimeSeries,
				Score:        0,
				Reason:       ReasonError,
				Error:        true,
				ErrorMessage: fmt.Sprintf("aggregation failed: %v", r),
			}}
		}
		metrics.RecordPrediction(time.Since(start), len(preds))
	}()

	req = a.prepareRequest(req)

	a.stateMu.RLock()
	weights := a.weights
	topPairs := a.topPairs
	a.stateMu.RUnlock()
	a.stateMu.Lock()
	a.predictionCount++
	a.stateMu.Unlock()

	candidates := make([]Prediction, 0, req.MaxPredictions+req.Horizon)
	candidates = append(candidates, a.timeSeriesPredictions(req, weights, topPairs)...)
	candidates = append(candidates, a.contentPredictions(req, weights)...)
	candidates = append(candidates, a.networkPredictions(req, weights)...)

	filtered := make([]Prediction, 0, len(candidates))
	for _, p := range candidates {
		if !validPrediction(p) {
			continue
		}
		if p.Score < req.ConfidenceThreshold {
			continue
		}
		filtered = append(filtered, p)
	}

	// Downstream cache logic always receives at least a neutral signal.
	if len(filtered) == 0 && req.SourceLanguage != "" && req.TargetLanguage != "" {
		metrics.RecordFallbackPrediction()
		filtered = append(filtered, Prediction{
			Source:         SourceTimeSeries,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			Context:        req.Context,
			Score:          fallbackScore,
			Reason:         ReasonFallback,
			Priority:       priorityFor(fallbackScore),
		})
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > req.MaxPredictions {
		filtered = filtered[:req.MaxPredictions]
	}

	logger := logging.Ctx(ctx)
	event := logger.Debug()
	if len(filtered) > 0 {
		event = event.Float64("top_score", filtered[0].Score)
	}
	event.
		Int("candidates", len(candidates)).
		Int("returned", len(filtered)).
		Msg("prediction request served")
	return filtered
}

func (a *Aggregator) prepareRequest(req Request) Request {
	if req.Context == "" {
		req.Context = "general"
	}
	if req.Horizon <= 0 {
		req.Horizon = a.cfg.DefaultHorizon
	}
	if req.MaxPredictions <= 0 {
		req.MaxPredictions = a.cfg.MaxPredictions
	}
	if req.ConfidenceThreshold <= 0 {
		req.ConfidenceThreshold = a.cfg.ConfidenceThreshold
	}
	return req
}

// timeSeriesPredictions scores ensemble forecast steps. Raw forecast
// magnitudes are unbounded, so values are normalized by the horizon
// maximum before the source weight is applied, keeping scores comparable
// with similarity and risk.
func (a *Aggregator) timeSeriesPredictions(req Request, weights SourceWeights, topPairs []string) []Prediction {
	if !a.ensemble.IsTrained() {
		return nil
	}
	fc := a.ensemble.Predict(req.Horizon, req.Battery)

	maxVal := 0.0
	for _, v := range fc {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return nil
	}

	srcLang, tgtLang := req.SourceLanguage, req.TargetLanguage
	if srcLang == "" || tgtLang == "" {
		if len(topPairs) == 0 {
			return nil
		}
		srcLang, tgtLang = splitPair(topPairs[0])
		if srcLang == "" {
			return nil
		}
	}

	out := make([]Prediction, 0, len(fc))
	for k, v := range fc {
		if v <= 0 {
			continue
		}
		score := clampScore(v / maxVal * weights.TimeSeries)
		out = append(out, Prediction{
			Source:         SourceTimeSeries,
			SourceLanguage: srcLang,
			TargetLanguage: tgtLang,
			Context:        req.Context,
			Score:          score,
			Reason:         ReasonDemandForecast,
			Priority:       priorityFor(score),
			TimeStep:       k + 1,
		})
	}
	return out
}

// contentPredictions scores content recommendations for the requesting user.
func (a *Aggregator) contentPredictions(req Request, weights SourceWeights) []Prediction {
	if req.UserID == "" {
		return nil
	}
	recs := a.recommender.Recommend(req.UserID, req.MaxPredictions)
	out := make([]Prediction, 0, len(recs))
	for _, rec := range recs {
		if rec.Similarity <= 0 {
			continue
		}
		score := clampScore(rec.Similarity * weights.Content)
		out = append(out, Prediction{
			Source:         SourceContent,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			Context:        req.Context,
			Score:          score,
			Reason:         ReasonContentSimilarity,
			Priority:       priorityFor(score),
			ItemID:         rec.ItemID,
		})
	}
	return out
}

// networkPredictions scores the offline-risk forecast.
func (a *Aggregator) networkPredictions(req Request, weights SourceWeights) []Prediction {
	rf := a.analyzer.PredictRisk(req.Horizon, req.Location, req.ConnectionType)
	if rf.Risk <= 0 {
		return nil
	}
	score := clampScore(rf.Risk * weights.Network)
	return []Prediction{{
		Source:         SourceNetwork,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Context:        req.Context,
		Score:          score,
		Reason:         ReasonOfflineRisk,
		Priority:       priorityFor(score),
		OfflineRisk:    rf.Risk,
		Confidence:     rf.Confidence,
	}}
}

// validPrediction drops entries missing required fields: a language pair
// and a finite, non-negative score.
func validPrediction(p Prediction) bool {
	if p.SourceLanguage == "" || p.TargetLanguage == "" {
		return false
	}
	if math.IsNaN(p.Score) || math.IsInf(p.Score, 0) || p.Score < 0 {
		return false
	}
	return true
}

// UpdateWeights adapts the per-source weighting from external performance
// feedback; new weights are proportional to the supplied scores. Feedback
// summing to zero is ignored.
func (a *Aggregator) UpdateWeights(performance map[string]float64) {
	w := SourceWeights{
		TimeSeries: performance[SourceTimeSeries],
		Content:    performance[SourceContent],
		Network:    performance[SourceNetwork],
	}
	if w.sum() <= 0 {
		a.logger.Warn().Msg("ignoring non-positive performance feedback")
		return
	}
	a.stateMu.Lock()
	a.weights = w.normalized()
	updated := a.weights
	a.stateMu.Unlock()

	a.logger.Info().
		Float64("time_series", updated.TimeSeries).
		Float64("content", updated.Content).
		Float64("network", updated.Network).
		Msg("source weights updated from feedback")
}

// Weights returns the current normalized source weights.
func (a *Aggregator) Weights() SourceWeights {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.weights
}

// Status returns the read-only observability snapshot.
func (a *Aggregator) Status() StatusSnapshot {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()

	report := a.ensemble.Report()
	weights := make(map[string]float64, len(report.Members))
	for _, m := range report.Members {
		weights[m.Name] = m.Weight
	}

	return StatusSnapshot{
		Initialized:          a.initialized,
		LastTrainedAt:        a.lastTrainedAt,
		LastTrainDurationMs:  a.lastTrainDuration.Milliseconds(),
		TrainCount:           a.trainCount,
		PredictionCount:      a.predictionCount,
		MemoryTier:           a.ensemble.MemoryTier(),
		EstimatedMemoryBytes: a.ensemble.EstimatedMemoryBytes(),
		ActiveModels:         a.ensemble.MemberNames(),
		ModelWeights:         weights,
		SourceWeights:        a.weights,
		TrainingFailures:     report.Failures,
		MemberReports:        report.Members,
		NetworkSamples:       a.analyzer.SampleCount(),
		ContentItems:         a.recommender.ContentCount(),
		TopLanguagePairs:     append([]string(nil), a.topPairs...),
	}
}

// splitPair splits an "en-es"-style pair key.
func splitPair(pair string) (src, tgt string) {
	parts := strings.SplitN(pair, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}

// priorityFor maps a score to the coarse priority consumed by the cache
// manager.
func priorityFor(score float64) string {
	switch {
	case score >= 0.7:
		return "high"
	case score >= 0.4:
		return "medium"
	default:
		return "low"
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

