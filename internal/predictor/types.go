// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package predictor

import (
	"time"

	"github.com/dvermeer/linguacache/internal/forecast"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/recommend"
)

// UsageRecord is the external training input: an hourly demand series,
// content profiles, user interactions, and network samples collected by
// the device.
type UsageRecord struct {
	// TimeSeriesData is the hourly translation-demand series.
	TimeSeriesData []float64 `json:"timeSeriesData"`

	// ContentItems maps content-item id to its feature vector.
	ContentItems map[string]recommend.FeatureVector `json:"contentItems"`

	// Interactions are user-content interactions with preference weights.
	Interactions []recommend.Interaction `json:"interactions"`

	// NetworkSamples are connectivity observations.
	NetworkSamples []network.Sample `json:"networkSamples"`

	// LanguagePairs maps "en-es"-style pair keys to request counts, used
	// to attach concrete language pairs to demand forecasts.
	LanguagePairs map[string]int `json:"languagePairs,omitempty"`
}

// Empty reports whether the record carries no trainable signal.
func (r UsageRecord) Empty() bool {
	return len(r.TimeSeriesData) == 0 &&
		len(r.ContentItems) == 0 &&
		len(r.Interactions) == 0 &&
		len(r.NetworkSamples) == 0
}

// Prediction sources.
const (
	SourceTimeSeries = "time_series"
	SourceContent    = "content"
	SourceNetwork    = "network"
)

// Prediction reasons.
const (
	ReasonDemandForecast    = "demand_forecast"
	ReasonContentSimilarity = "content_similarity"
	ReasonOfflineRisk       = "offline_risk"
	ReasonFallback          = "fallback_prediction"
	ReasonError             = "error_in_prediction"
)

// Prediction is one ranked prefetch candidate. Created per aggregation
// call and consumed immediately by the cache manager; never persisted.
type Prediction struct {
	Source         string  `json:"source"`
	SourceLanguage string  `json:"sourceLanguage"`
	TargetLanguage string  `json:"targetLanguage"`
	Context        string  `json:"context"`
	Score          float64 `json:"score"`
	Reason         string  `json:"reason"`
	Priority       string  `json:"priority"`

	// Optional, source-specific payload.
	ItemID      string  `json:"itemId,omitempty"`
	TimeStep    int     `json:"timeStep,omitempty"`
	OfflineRisk float64 `json:"offlineRisk,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`

	// Error indicators, set only on the diagnostic entry emitted when
	// aggregation itself fails.
	Error        bool   `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Request describes one prediction call.
type Request struct {
	// SourceLanguage and TargetLanguage form the language pair of
	// interest ("en", "es"). Optional; when absent, demand forecasts use
	// the most-requested trained pair.
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`

	// Context is the translation context. Default: "general".
	Context string `json:"context,omitempty"`

	// UserID selects the preference vector for content recommendations.
	UserID string `json:"userId,omitempty"`

	// Horizon is the forecast length in hours. Default: 24.
	Horizon int `json:"horizon,omitempty"`

	// MaxPredictions truncates the ranked output. Default: 10.
	MaxPredictions int `json:"maxPredictions,omitempty"`

	// ConfidenceThreshold drops predictions scoring below it.
	ConfidenceThreshold float64 `json:"confidenceThreshold,omitempty"`

	// Battery enables battery-aware roster restriction in the ensemble.
	Battery forecast.BatteryState `json:"battery,omitempty"`

	// Location and ConnectionType feed the network risk boosts.
	Location       *network.Location `json:"location,omitempty"`
	ConnectionType string            `json:"connectionType,omitempty"`
}

// SourceWeights is the per-upstream-source weighting, normalized to sum
// to 1.
type SourceWeights struct {
	TimeSeries float64 `json:"timeSeries"`
	Content    float64 `json:"content"`
	Network    float64 `json:"network"`
}

// DefaultSourceWeights returns the default weighting.
func DefaultSourceWeights() SourceWeights {
	return SourceWeights{TimeSeries: 0.5, Content: 0.3, Network: 0.2}
}

// sum returns the weight total, used for normalization.
func (w SourceWeights) sum() float64 {
	return w.TimeSeries + w.Content + w.Network
}

// normalized returns the weights scaled to sum to 1. Zero weights
// normalize to the defaults.
func (w SourceWeights) normalized() SourceWeights {
	total := w.sum()
	if total <= 0 {
		return DefaultSourceWeights()
	}
	return SourceWeights{
		TimeSeries: w.TimeSeries / total,
		Content:    w.Content / total,
		Network:    w.Network / total,
	}
}

// StatusSnapshot is the read-only observability surface: initialization
// state, training recency, active roster, weights, and coarse performance
// metrics. It is not a control surface.
type StatusSnapshot struct {
	Initialized          bool                    `json:"initialized"`
	LastTrainedAt        time.Time               `json:"lastTrainedAt,omitempty"`
	LastTrainDurationMs  int64                   `json:"lastTrainDurationMs"`
	TrainCount           int64                   `json:"trainCount"`
	PredictionCount      int64                   `json:"predictionCount"`
	MemoryTier           forecast.MemoryTier     `json:"memoryTier"`
	EstimatedMemoryBytes int64                   `json:"estimatedMemoryBytes"`
	ActiveModels         []string                `json:"activeModels"`
	ModelWeights         map[string]float64      `json:"modelWeights"`
	SourceWeights        SourceWeights           `json:"sourceWeights"`
	TrainingFailures     int                     `json:"trainingFailures"`
	MemberReports        []forecast.MemberReport `json:"memberReports,omitempty"`
	NetworkSamples       int                     `json:"networkSamples"`
	ContentItems         int                     `json:"contentItems"`
	TopLanguagePairs     []string                `json:"topLanguagePairs,omitempty"`
}
