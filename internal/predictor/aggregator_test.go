// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package predictor

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvermeer/linguacache/internal/forecast"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/recommend"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	ensemble := forecast.NewEnsemble(forecast.DefaultEnsembleConfig(), zerolog.Nop())
	analyzer := network.NewAnalyzer(network.DefaultAnalyzerConfig(), zerolog.Nop())
	return New(DefaultConfig(), ensemble, recommend.NewRecommender(), analyzer, zerolog.Nop())
}

func trainingRecord() UsageRecord {
	series := make([]float64, 72)
	for i := range series {
		series[i] = 10 + float64(i%24) + 0.1*float64(i)
	}
	samples := make([]network.Sample, 0, 6)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		samples = append(samples, network.Sample{
			Online:    i%2 == 0,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Quality:   0.9,
		})
	}
	return UsageRecord{
		TimeSeriesData: series,
		ContentItems: map[string]recommend.FeatureVector{
			"phrase-pack-medical": {"medical": 1, "es": 1},
			"phrase-pack-legal":   {"legal": 1, "fr": 1},
		},
		Interactions: []recommend.Interaction{
			{UserID: "clinic-1", ItemID: "phrase-pack-medical", Weight: 2, Timestamp: base},
		},
		NetworkSamples: samples,
		LanguagePairs:  map[string]int{"en-es": 12, "en-fr": 4},
	}
}

func TestAggregatorTrainEmptyRecord(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Train(context.Background(), UsageRecord{}); !errors.Is(err, ErrEmptyUsageRecord) {
		t.Fatalf("Train(empty) error = %v, want ErrEmptyUsageRecord", err)
	}
	if a.Status().Initialized {
		t.Error("aggregator reported initialized after rejected training")
	}
}

func TestAggregatorRetrainWithoutData(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Retrain(context.Background()); !errors.Is(err, ErrNoTrainingData) {
		t.Fatalf("Retrain() error = %v, want ErrNoTrainingData", err)
	}
}

func TestAggregatorTrainAndStatus(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Train(context.Background(), trainingRecord()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	st := a.Status()
	if !st.Initialized {
		t.Error("Initialized = false after training")
	}
	if st.TrainCount != 1 {
		t.Errorf("TrainCount = %d, want 1", st.TrainCount)
	}
	if st.LastTrainedAt.IsZero() {
		t.Error("LastTrainedAt is zero after training")
	}
	if st.ContentItems != 2 {
		t.Errorf("ContentItems = %d, want 2", st.ContentItems)
	}
	if st.NetworkSamples != 6 {
		t.Errorf("NetworkSamples = %d, want 6", st.NetworkSamples)
	}
	if want := []string{"en-es", "en-fr"}; !reflect.DeepEqual(st.TopLanguagePairs, want) {
		t.Errorf("TopLanguagePairs = %v, want %v", st.TopLanguagePairs, want)
	}
	if len(st.ActiveModels) == 0 {
		t.Error("ActiveModels is empty after training")
	}

	// Retrain replays the stored series and bumps the train counter.
	if err := a.Retrain(context.Background()); err != nil {
		t.Fatalf("Retrain() error = %v", err)
	}
	if got := a.Status().TrainCount; got != 2 {
		t.Errorf("TrainCount after retrain = %d, want 2", got)
	}
}

func TestAggregatorPredictUsesTopTrainedPair(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Train(context.Background(), trainingRecord()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	preds := a.Predict(context.Background(), Request{})
	if len(preds) == 0 {
		t.Fatal("Predict() returned no predictions for a trained aggregator")
	}
	if len(preds) > 10 {
		t.Errorf("got %d predictions, want at most the default cap of 10", len(preds))
	}
	for i, p := range preds {
		if p.Reason != ReasonDemandForecast {
			continue
		}
		if p.SourceLanguage != "en" || p.TargetLanguage != "es" {
			t.Errorf("prediction %d pair = %s-%s, want the most-requested pair en-es",
				i, p.SourceLanguage, p.TargetLanguage)
		}
		if p.Context != "general" {
			t.Errorf("prediction %d context = %q, want default %q", i, p.Context, "general")
		}
		if p.TimeStep < 1 {
			t.Errorf("prediction %d time step = %d, want >= 1", i, p.TimeStep)
		}
	}
	for i := 1; i < len(preds); i++ {
		if preds[i].Score > preds[i-1].Score {
			t.Fatalf("predictions not sorted by descending score at %d: %.4f > %.4f",
				i, preds[i].Score, preds[i-1].Score)
		}
	}
	for i, p := range preds {
		if p.Score < 0 || p.Score > 1 || math.IsNaN(p.Score) {
			t.Errorf("prediction %d score = %v, want within [0, 1]", i, p.Score)
		}
	}
}

func TestAggregatorPredictContentSignal(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Train(context.Background(), trainingRecord()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	preds := a.Predict(context.Background(), Request{
		SourceLanguage: "en",
		TargetLanguage: "es",
		UserID:         "clinic-1",
	})

	var content *Prediction
	for i := range preds {
		if preds[i].Reason == ReasonContentSimilarity {
			content = &preds[i]
			break
		}
	}
	if content == nil {
		t.Fatal("no content-similarity prediction for a user with interactions")
	}
	if content.ItemID != "phrase-pack-medical" {
		t.Errorf("content ItemID = %q, want %q", content.ItemID, "phrase-pack-medical")
	}
	// The user's preference vector is a scaled copy of the item profile,
	// so similarity is 1 and the score is exactly the content weight.
	if math.Abs(content.Score-0.3) > 1e-9 {
		t.Errorf("content score = %v, want 0.3", content.Score)
	}
}

func TestAggregatorPredictMaxPredictions(t *testing.T) {
	a := newTestAggregator(t)
	if err := a.Train(context.Background(), trainingRecord()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	preds := a.Predict(context.Background(), Request{MaxPredictions: 3})
	if len(preds) > 3 {
		t.Errorf("got %d predictions, want at most 3", len(preds))
	}
}

func TestAggregatorFallbackPrediction(t *testing.T) {
	// An untrained aggregator with a high threshold filters every
	// candidate, but a known language pair still earns the neutral
	// fallback signal.
	a := newTestAggregator(t)
	preds := a.Predict(context.Background(), Request{
		SourceLanguage:      "en",
		TargetLanguage:      "es",
		ConfidenceThreshold: 0.9,
	})
	if len(preds) != 1 {
		t.Fatalf("got %d predictions, want exactly the fallback", len(preds))
	}
	p := preds[0]
	if p.Reason != ReasonFallback {
		t.Errorf("Reason = %q, want %q", p.Reason, ReasonFallback)
	}
	if p.Score != fallbackScore {
		t.Errorf("Score = %v, want %v", p.Score, fallbackScore)
	}
	if p.Priority != "medium" {
		t.Errorf("Priority = %q, want %q", p.Priority, "medium")
	}
	if p.SourceLanguage != "en" || p.TargetLanguage != "es" {
		t.Errorf("pair = %s-%s, want en-es", p.SourceLanguage, p.TargetLanguage)
	}
	if p.Context != "general" {
		t.Errorf("Context = %q, want default %q", p.Context, "general")
	}
}

func TestAggregatorNoFallbackWithoutPair(t *testing.T) {
	a := newTestAggregator(t)
	preds := a.Predict(context.Background(), Request{ConfidenceThreshold: 0.9})
	if preds == nil {
		t.Fatal("Predict() returned nil, want an empty slice")
	}
	if len(preds) != 0 {
		t.Errorf("got %d predictions without a language pair, want 0", len(preds))
	}
}

func TestAggregatorPredictRecoversFromPanic(t *testing.T) {
	// Nil sub-models make the first dereference panic; the aggregator
	// converts that into a single diagnostic entry instead of crashing.
	a := New(DefaultConfig(), nil, nil, nil, zerolog.Nop())
	preds := a.Predict(context.Background(), Request{SourceLanguage: "en", TargetLanguage: "es"})
	if len(preds) != 1 {
		t.Fatalf("got %d predictions after panic, want 1 diagnostic entry", len(preds))
	}
	p := preds[0]
	if !p.Error {
		t.Error("diagnostic entry Error = false, want true")
	}
	if p.Reason != ReasonError {
		t.Errorf("Reason = %q, want %q", p.Reason, ReasonError)
	}
	if p.ErrorMessage == "" {
		t.Error("diagnostic entry has empty ErrorMessage")
	}
	if p.Score != 0 {
		t.Errorf("Score = %v, want 0", p.Score)
	}
}

func TestAggregatorUpdateWeights(t *testing.T) {
	a := newTestAggregator(t)

	a.UpdateWeights(map[string]float64{
		SourceTimeSeries: 2,
		SourceContent:    1,
		SourceNetwork:    1,
	})
	got := a.Weights()
	want := SourceWeights{TimeSeries: 0.5, Content: 0.25, Network: 0.25}
	if math.Abs(got.TimeSeries-want.TimeSeries) > 1e-9 ||
		math.Abs(got.Content-want.Content) > 1e-9 ||
		math.Abs(got.Network-want.Network) > 1e-9 {
		t.Errorf("Weights() = %+v, want %+v", got, want)
	}

	// Non-positive feedback leaves the current weights untouched.
	a.UpdateWeights(map[string]float64{SourceTimeSeries: 0})
	if after := a.Weights(); after != got {
		t.Errorf("weights changed on non-positive feedback: %+v", after)
	}
}

func TestSourceWeightsNormalized(t *testing.T) {
	tests := []struct {
		name string
		in   SourceWeights
		want SourceWeights
	}{
		{
			name: "already normalized",
			in:   SourceWeights{TimeSeries: 0.5, Content: 0.3, Network: 0.2},
			want: SourceWeights{TimeSeries: 0.5, Content: 0.3, Network: 0.2},
		},
		{
			name: "scaled input",
			in:   SourceWeights{TimeSeries: 5, Content: 3, Network: 2},
			want: SourceWeights{TimeSeries: 0.5, Content: 0.3, Network: 0.2},
		},
		{
			name: "zero falls back to defaults",
			in:   SourceWeights{},
			want: DefaultSourceWeights(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.normalized()
			if math.Abs(got.TimeSeries-tt.want.TimeSeries) > 1e-9 ||
				math.Abs(got.Content-tt.want.Content) > 1e-9 ||
				math.Abs(got.Network-tt.want.Network) > 1e-9 {
				t.Errorf("normalized() = %+v, want %+v", got, tt.want)
			}
			if sum := got.sum(); math.Abs(sum-1) > 1e-9 {
				t.Errorf("normalized weights sum to %v, want 1", sum)
			}
		})
	}
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		pair    string
		wantSrc string
		wantTgt string
	}{
		{"en-es", "en", "es"},
		{"en-es-MX", "en", "es-MX"},
		{"en", "", ""},
		{"-es", "", ""},
		{"en-", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.pair, func(t *testing.T) {
			src, tgt := splitPair(tt.pair)
			if src != tt.wantSrc || tgt != tt.wantTgt {
				t.Errorf("splitPair(%q) = (%q, %q), want (%q, %q)",
					tt.pair, src, tgt, tt.wantSrc, tt.wantTgt)
			}
		})
	}
}

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, "high"},
		{0.7, "high"},
		{0.69, "medium"},
		{0.5, "medium"},
		{0.4, "medium"},
		{0.39, "low"},
		{0.1, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		if got := priorityFor(tt.score); got != tt.want {
			t.Errorf("priorityFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestTopLanguagePairs(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		n      int
		want   []string
	}{
		{
			name:   "sorted by descending count",
			counts: map[string]int{"en-es": 10, "en-fr": 3, "en-de": 7},
			n:      5,
			want:   []string{"en-es", "en-de", "en-fr"},
		},
		{
			name:   "ties break by key",
			counts: map[string]int{"en-fr": 5, "en-de": 5, "en-es": 5},
			n:      5,
			want:   []string{"en-de", "en-es", "en-fr"},
		},
		{
			name:   "truncated to n",
			counts: map[string]int{"en-es": 3, "en-fr": 2, "en-de": 1},
			n:      2,
			want:   []string{"en-es", "en-fr"},
		},
		{
			name:   "empty input",
			counts: nil,
			n:      5,
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topLanguagePairs(tt.counts, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("topLanguagePairs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidPrediction(t *testing.T) {
	tests := []struct {
		name string
		p    Prediction
		want bool
	}{
		{"complete", Prediction{SourceLanguage: "en", TargetLanguage: "es", Score: 0.4}, true},
		{"zero score", Prediction{SourceLanguage: "en", TargetLanguage: "es"}, true},
		{"missing source language", Prediction{TargetLanguage: "es", Score: 0.4}, false},
		{"missing target language", Prediction{SourceLanguage: "en", Score: 0.4}, false},
		{"negative score", Prediction{SourceLanguage: "en", TargetLanguage: "es", Score: -0.1}, false},
		{"NaN score", Prediction{SourceLanguage: "en", TargetLanguage: "es", Score: math.NaN()}, false},
		{"infinite score", Prediction{SourceLanguage: "en", TargetLanguage: "es", Score: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validPrediction(tt.p); got != tt.want {
				t.Errorf("validPrediction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrepareRequestDefaults(t *testing.T) {
	a := newTestAggregator(t)
	got := a.prepareRequest(Request{})
	if got.Context != "general" {
		t.Errorf("Context = %q, want %q", got.Context, "general")
	}
	if got.Horizon != 24 {
		t.Errorf("Horizon = %d, want 24", got.Horizon)
	}
	if got.MaxPredictions != 10 {
		t.Errorf("MaxPredictions = %d, want 10", got.MaxPredictions)
	}
	if got.ConfidenceThreshold != 0.1 {
		t.Errorf("ConfidenceThreshold = %v, want 0.1", got.ConfidenceThreshold)
	}

	explicit := a.prepareRequest(Request{
		Context:             "medical",
		Horizon:             6,
		MaxPredictions:      2,
		ConfidenceThreshold: 0.25,
	})
	if explicit.Context != "medical" || explicit.Horizon != 6 ||
		explicit.MaxPredictions != 2 || explicit.ConfidenceThreshold != 0.25 {
		t.Errorf("explicit request was rewritten: %+v", explicit)
	}
}
