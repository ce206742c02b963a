// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// MemoryTier selects the ensemble roster for a device memory constraint.
type MemoryTier string

// Memory tiers, from most constrained to least.
const (
	MemoryTierLow    MemoryTier = "low"
	MemoryTierMedium MemoryTier = "medium"
	MemoryTierHigh   MemoryTier = "high"
)

// Valid reports whether the tier is one of the defined values.
func (t MemoryTier) Valid() bool {
	switch t {
	case MemoryTierLow, MemoryTierMedium, MemoryTierHigh:
		return true
	}
	return false
}

// BatteryState describes the device power situation at prediction time.
type BatteryState struct {
	// Level is the battery charge fraction in [0, 1].
	Level float64 `json:"level"`

	// Charging reports whether the device is on external power.
	Charging bool `json:"charging"`
}

// EnsembleConfig contains configuration for the ensemble forecaster.
type EnsembleConfig struct {
	// MemoryTier selects the roster composition. Default: medium.
	MemoryTier MemoryTier

	// MinTrainLength is the minimum series length; shorter input is
	// augmented with synthetic points. Default: 48.
	MinTrainLength int

	// TrainSplit is the fraction of data used for training, with the
	// remainder held out for validation. Default: 0.8.
	TrainSplit float64

	// BatteryAware restricts the active roster to the cheapest members
	// when the battery is low and not charging. Default: false.
	BatteryAware bool

	// BatteryThreshold is the battery level below which the restricted
	// roster applies. Default: 0.2.
	BatteryThreshold float64

	// Seed makes synthetic-data generation deterministic. Default: 42.
	Seed int64
}

// DefaultEnsembleConfig returns the default ensemble configuration.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		MemoryTier:       MemoryTierMedium,
		MinTrainLength:   48,
		TrainSplit:       0.8,
		BatteryAware:     false,
		BatteryThreshold: 0.2,
		Seed:             42,
	}
}

// penaltyMSE is the validation error assigned to members that failed to
// train, driving their ensemble weight toward zero.
const penaltyMSE = 1e12

// weightEpsilon keeps the inverse-error weighting finite for perfect fits.
const weightEpsilon = 1e-6

// MemberReport summarizes one member's last training outcome.
type MemberReport struct {
	Name          string  `json:"name"`
	Trained       bool    `json:"trained"`
	ValidationMSE float64 `json:"validation_mse"`
	Weight        float64 `json:"weight"`
	Error         string  `json:"error,omitempty"`
}

// TrainingReport summarizes the last ensemble training run.
type TrainingReport struct {
	Members       []MemberReport `json:"members"`
	Augmented     bool           `json:"augmented"`
	InputLength   int            `json:"input_length"`
	TrainedLength int            `json:"trained_length"`
	Failures      int            `json:"failures"`
	Duration      time.Duration  `json:"duration"`
}

// Ensemble owns a roster of forecasting models, adapts the roster to the
// device memory tier, trains all members, weights them by inverse
// validation error, and serves battery-aware blended forecasts.
//
// An individual member failing to train is not fatal: the member gets the
// penalty error and effectively zero weight. Training fails only when
// every member fails.
type Ensemble struct {
	cfg     EnsembleConfig
	logger  zerolog.Logger
	members []Forecaster
	weights []float64
	report  TrainingReport
	trained bool
	rng     *rand.Rand
	mu      sync.RWMutex
}

// NewEnsemble creates an ensemble with a roster matching the memory tier.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEnsemble(cfg EnsembleConfig, logger zerolog.Logger) *Ensemble {
	if !cfg.MemoryTier.Valid() {
		cfg.MemoryTier = MemoryTierMedium
	}
	if cfg.MinTrainLength <= 0 {
		cfg.MinTrainLength = 48
	}
	if cfg.TrainSplit <= 0 || cfg.TrainSplit >= 1 {
		cfg.TrainSplit = 0.8
	}
	if cfg.BatteryThreshold <= 0 {
		cfg.BatteryThreshold = 0.2
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	e := &Ensemble{
		cfg:     cfg,
		logger:  logger.With().Str("component", "ensemble").Logger(),
		members: rosterForTier(cfg.MemoryTier, cfg.Seed),
		rng:     rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // synthetic augmentation, not security-sensitive
	}
	e.weights = make([]float64, len(e.members))
	return e
}

// rosterForTier builds the member list for a memory tier, trading model
// count and per-model complexity against the constraint.
func rosterForTier(tier MemoryTier, seed int64) []Forecaster {
	switch tier {
	case MemoryTierLow:
		return []Forecaster{
			NewSimpleSmoothing(SimpleSmoothingConfig{}),
			NewHolt(HoltConfig{}),
			NewARIMA(ARIMAConfig{P: 1, D: 1, Q: 0}),
			NewSeasonalDecomposition(SeasonalConfig{Periods: []int{24}, Changepoints: 3}),
		}
	case MemoryTierHigh:
		return []Forecaster{
			NewSimpleSmoothing(SimpleSmoothingConfig{}),
			NewHolt(HoltConfig{}),
			NewHoltWinters(HoltWintersConfig{Period: 24}),
			NewARIMA(DefaultARIMAConfig()),
			NewSeasonalDecomposition(SeasonalConfig{Periods: []int{24, 168}, Changepoints: 10}),
			NewGatedSequence(GatedConfig{WindowSize: 24, HiddenSize: 16, Seed: seed}),
		}
	default: // medium
		return []Forecaster{
			NewHolt(HoltConfig{}),
			NewHoltWinters(HoltWintersConfig{Period: 24}),
			NewARIMA(DefaultARIMAConfig()),
			NewSeasonalDecomposition(SeasonalConfig{Periods: []int{24, 168}, Changepoints: 5}),
			NewGatedSequence(GatedConfig{WindowSize: 12, HiddenSize: 8, Seed: seed}),
		}
	}
}

// GenerateSyntheticData extends a short series to targetLength by blending
// a random historical sample (0.3), a short moving average (0.4), trend
// continuation from the last point (0.2), and Gaussian-like noise scaled
// by the series standard deviation (0.1). A series already at or beyond
// targetLength is returned unchanged.
func (e *Ensemble) GenerateSyntheticData(series []float64, targetLength int) []float64 {
	if len(series) == 0 || len(series) >= targetLength {
		return series
	}

	out := append([]float64(nil), series...)
	stddev := 0.0
	if len(series) > 1 {
		stddev = stat.StdDev(series, nil)
	}

	for len(out) < targetLength {
		n := len(out)
		historical := out[e.rng.Intn(n)]

		maWindow := 5
		if n < maWindow {
			maWindow = n
		}
		movingAvg := stat.Mean(out[n-maWindow:], nil)

		trend := out[n-1]
		if n >= 2 {
			trend = out[n-1] + (out[n-1] - out[n-2])
		}

		noise := e.rng.NormFloat64() * stddev

		out = append(out, 0.3*historical+0.4*movingAvg+0.2*trend+0.1*noise)
	}
	return out
}

// Train augments short input, splits it into train/validation sets, trains
// every roster member, and derives ensemble weights from inverse
// validation error. Weights always sum to 1 after a successful call.
func (e *Ensemble) Train(ctx context.Context, series []float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	if len(series) == 0 {
		return ErrInsufficientData
	}

	inputLen := len(series)
	data := e.GenerateSyntheticData(series, e.cfg.MinTrainLength)
	augmented := len(data) > inputLen

	splitAt := int(float64(len(data)) * e.cfg.TrainSplit)
	if splitAt < 1 {
		splitAt = 1
	}
	if splitAt >= len(data) {
		splitAt = len(data) - 1
	}
	trainSet := data[:splitAt]
	valSet := data[splitAt:]

	reports := make([]MemberReport, len(e.members))
	mses := make([]float64, len(e.members))
	failures := 0
	for i, m := range e.members {
		err := trainMember(ctx, m, trainSet)
		reports[i] = MemberReport{Name: m.Name(), Trained: err == nil}
		if err != nil {
			failures++
			mses[i] = penaltyMSE
			reports[i].ValidationMSE = penaltyMSE
			reports[i].Error = err.Error()
			e.logger.Warn().Err(err).Str("model", m.Name()).Msg("ensemble member failed to train")
			continue
		}
		mses[i] = validationMSE(m, valSet)
		reports[i].ValidationMSE = mses[i]
	}

	if failures == len(e.members) {
		e.report = TrainingReport{
			Members:     reports,
			Augmented:   augmented,
			InputLength: inputLen,
			Failures:    failures,
			Duration:    time.Since(start),
		}
		return ErrAllModelsFailed
	}

	// Inverse validation error, normalized to sum to 1.
	var total float64
	for i := range mses {
		e.weights[i] = 1 / (mses[i] + weightEpsilon)
		total += e.weights[i]
	}
	for i := range e.weights {
		e.weights[i] /= total
		reports[i].Weight = e.weights[i]
	}

	e.report = TrainingReport{
		Members:       reports,
		Augmented:     augmented,
		InputLength:   inputLen,
		TrainedLength: len(data),
		Failures:      failures,
		Duration:      time.Since(start),
	}
	e.trained = true

	e.logger.Info().
		Int("members", len(e.members)).
		Int("failures", failures).
		Bool("augmented", augmented).
		Dur("duration", e.report.Duration).
		Msg("ensemble training complete")
	return nil
}

// trainMember isolates a member's training, converting panics into errors
// so a misbehaving model cannot abort the ensemble.
func trainMember(ctx context.Context, m Forecaster, series []float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model %s panicked during training: %v", m.Name(), r)
		}
	}()
	return m.Train(ctx, series)
}

// validationMSE scores a trained member against the held-out set.
func validationMSE(m Forecaster, valSet []float64) float64 {
	if len(valSet) == 0 {
		return weightEpsilon
	}
	forecast := m.Predict(len(valSet))
	var sumSq float64
	for i, actual := range valSet {
		diff := forecast[i] - actual
		sumSq += diff * diff
	}
	return sumSq / float64(len(valSet))
}

// Predict returns the weighted blend of every active member's forecast.
// Under battery-aware mode with a low, discharging battery the active
// roster is restricted to the cheapest members and weights are
// renormalized over that subset. An untrained ensemble returns zeros.
func (e *Ensemble) Predict(steps int, battery BatteryState) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := zeroForecast(steps)
	if !e.trained || steps <= 0 {
		return out
	}

	active := e.activeMembers(battery)
	if len(active) == 0 {
		return out
	}

	var totalWeight float64
	for _, idx := range active {
		totalWeight += e.weights[idx]
	}
	if totalWeight == 0 {
		return out
	}

	for _, idx := range active {
		forecast := e.members[idx].Predict(steps)
		w := e.weights[idx] / totalWeight
		for k := range out {
			out[k] += w * forecast[k]
		}
	}
	return out
}

// lowPowerRosterSize is how many of the cheapest members stay active when
// the battery-aware restriction applies.
const lowPowerRosterSize = 2

// activeMembers returns indices of trained members, restricted to the
// cheapest subset under low power.
func (e *Ensemble) activeMembers(battery BatteryState) []int {
	active := make([]int, 0, len(e.members))
	for i, m := range e.members {
		if m.IsTrained() {
			active = append(active, i)
		}
	}

	lowPower := e.cfg.BatteryAware && battery.Level < e.cfg.BatteryThreshold && !battery.Charging
	if !lowPower || len(active) <= lowPowerRosterSize {
		return active
	}

	sort.Slice(active, func(a, b int) bool {
		return e.members[active[a]].Cost() < e.members[active[b]].Cost()
	})
	restricted := append([]int(nil), active[:lowPowerRosterSize]...)
	sort.Ints(restricted)
	return restricted
}

// Weights returns a copy of the current ensemble weight vector.
func (e *Ensemble) Weights() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]float64(nil), e.weights...)
}

// MemberNames returns the roster member names in order.
func (e *Ensemble) MemberNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.Name()
	}
	return names
}

// IsTrained reports whether the last training call succeeded.
func (e *Ensemble) IsTrained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trained
}

// Report returns the last training report.
func (e *Ensemble) Report() TrainingReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	report := e.report
	report.Members = append([]MemberReport(nil), e.report.Members...)
	return report
}

// MemoryTier returns the configured roster tier.
func (e *Ensemble) MemoryTier() MemoryTier {
	return e.cfg.MemoryTier
}

// EstimatedMemoryBytes returns a coarse per-tier memory estimate for the
// status surface.
func (e *Ensemble) EstimatedMemoryBytes() int64 {
	switch e.cfg.MemoryTier {
	case MemoryTierLow:
		return 64 << 10
	case MemoryTierHigh:
		return 512 << 10
	default:
		return 192 << 10
	}
}
