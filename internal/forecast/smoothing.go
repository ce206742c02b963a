// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/dvermeer/linguacache/internal/logging"
)

// SimpleSmoothingConfig contains configuration for simple exponential smoothing.
type SimpleSmoothingConfig struct {
	// Alpha is the smoothing factor in (0, 1). Higher values weight recent
	// observations more heavily. Default: 0.3.
	Alpha float64
}

// SimpleSmoothing implements simple exponential smoothing:
//
//	forecast_t = alpha*x_t + (1-alpha)*forecast_{t-1}
//
// seeded with the first observation. The multi-step forecast repeats the
// last level (flat).
type SimpleSmoothing struct {
	BaseModel
	alpha float64
	level float64
}

// NewSimpleSmoothing creates a simple exponential smoothing model.
func NewSimpleSmoothing(cfg SimpleSmoothingConfig) *SimpleSmoothing {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.3
	}
	return &SimpleSmoothing{
		BaseModel: NewBaseModel("simple_smoothing"),
		alpha:     cfg.Alpha,
	}
}

// Train fits the smoothing level to the series.
func (s *SimpleSmoothing) Train(_ context.Context, series []float64) error {
	s.acquireTrainLock()
	defer s.releaseTrainLock()

	if len(series) == 0 {
		return ErrInsufficientData
	}

	level := series[0]
	for i := 1; i < len(series); i++ {
		level = s.alpha*series[i] + (1-s.alpha)*level
	}
	s.level = level
	s.markTrained()
	return nil
}

// Predict returns a flat forecast at the current level.
func (s *SimpleSmoothing) Predict(steps int) []float64 {
	s.acquirePredictLock()
	defer s.releasePredictLock()

	out := zeroForecast(steps)
	if !s.trained {
		return out
	}
	for i := range out {
		out[i] = s.level
	}
	return out
}

// Level returns the fitted smoothing level.
func (s *SimpleSmoothing) Level() float64 {
	s.acquirePredictLock()
	defer s.releasePredictLock()
	return s.level
}

// Cost implements Forecaster. Simple smoothing is the cheapest model.
func (s *SimpleSmoothing) Cost() float64 { return 1 }

// HoltConfig contains configuration for Holt's linear trend method.
type HoltConfig struct {
	// Alpha is the level smoothing factor. Default: 0.3.
	Alpha float64
	// Beta is the trend smoothing factor. Default: 0.1.
	Beta float64
}

// Holt implements double exponential smoothing with a level and a trend
// component. The k-step forecast is level + k*trend.
type Holt struct {
	BaseModel
	alpha float64
	beta  float64
	level float64
	trend float64
}

// NewHolt creates a Holt linear trend model.
func NewHolt(cfg HoltConfig) *Holt {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.3
	}
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.1
	}
	return &Holt{
		BaseModel: NewBaseModel("holt"),
		alpha:     cfg.Alpha,
		beta:      cfg.Beta,
	}
}

// Train fits level and trend. A single-point series fits a flat level.
func (h *Holt) Train(_ context.Context, series []float64) error {
	h.acquireTrainLock()
	defer h.releaseTrainLock()

	if len(series) == 0 {
		return ErrInsufficientData
	}
	if len(series) == 1 {
		h.level = series[0]
		h.trend = 0
		h.markTrained()
		return nil
	}

	level := series[0]
	trend := series[1] - series[0]
	for i := 1; i < len(series); i++ {
		prevLevel := level
		level = h.alpha*series[i] + (1-h.alpha)*(level+trend)
		trend = h.beta*(level-prevLevel) + (1-h.beta)*trend
	}
	h.level = level
	h.trend = trend
	h.markTrained()
	return nil
}

// Predict extrapolates the fitted linear trend.
func (h *Holt) Predict(steps int) []float64 {
	h.acquirePredictLock()
	defer h.releasePredictLock()

	out := zeroForecast(steps)
	if !h.trained {
		return out
	}
	for k := range out {
		out[k] = h.level + float64(k+1)*h.trend
	}
	return out
}

// Cost implements Forecaster.
func (h *Holt) Cost() float64 { return 1 }

// HoltWintersConfig contains configuration for triple exponential smoothing.
type HoltWintersConfig struct {
	// Alpha is the level smoothing factor. Default: 0.3.
	Alpha float64
	// Beta is the trend smoothing factor. Default: 0.1.
	Beta float64
	// Gamma is the seasonal smoothing factor. Default: 0.1.
	Gamma float64
	// Period is the seasonal cycle length in observations. Default: 24
	// (hourly series with a daily cycle).
	Period int
}

// HoltWinters implements multiplicative triple exponential smoothing with
// level, trend, and a repeating seasonal pattern.
//
// Seasonal components are initialized from grouped period averages
// normalized to mean 1. When the series is shorter than two full periods
// the model degrades to a flat level with a neutral seasonal pattern; this
// is a defined fallback, not an error.
type HoltWinters struct {
	BaseModel
	alpha    float64
	beta     float64
	gamma    float64
	period   int
	level    float64
	trend    float64
	seasonal []float64
	fallback bool
}

// NewHoltWinters creates a multiplicative Holt-Winters model.
func NewHoltWinters(cfg HoltWintersConfig) *HoltWinters {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = 0.3
	}
	if cfg.Beta <= 0 || cfg.Beta >= 1 {
		cfg.Beta = 0.1
	}
	if cfg.Gamma <= 0 || cfg.Gamma >= 1 {
		cfg.Gamma = 0.1
	}
	if cfg.Period <= 0 {
		cfg.Period = 24
	}
	return &HoltWinters{
		BaseModel: NewBaseModel("holt_winters"),
		alpha:     cfg.Alpha,
		beta:      cfg.Beta,
		gamma:     cfg.Gamma,
		period:    cfg.Period,
	}
}

// Train fits level, trend, and seasonal components.
func (hw *HoltWinters) Train(_ context.Context, series []float64) error {
	hw.acquireTrainLock()
	defer hw.releaseTrainLock()

	if len(series) == 0 {
		return ErrInsufficientData
	}

	if len(series) < 2*hw.period {
		// Short-series fallback: flat level, neutral seasonality.
		hw.level = series[0]
		hw.trend = 0
		hw.seasonal = make([]float64, hw.period)
		for i := range hw.seasonal {
			hw.seasonal[i] = 1
		}
		hw.fallback = true
		logging.Warn().
			Str("model", hw.name).
			Int("observations", len(series)).
			Int("required", 2*hw.period).
			Msg("series shorter than two seasonal periods, using neutral seasonal pattern")
		hw.markTrained()
		return nil
	}
	hw.fallback = false

	hw.seasonal = initialSeasonal(series, hw.period)
	firstPeriod := stat.Mean(series[:hw.period], nil)
	secondPeriod := stat.Mean(series[hw.period:2*hw.period], nil)
	level := firstPeriod
	trend := (secondPeriod - firstPeriod) / float64(hw.period)

	for i := 0; i < len(series); i++ {
		s := hw.seasonal[i%hw.period]
		if s == 0 {
			s = 1
		}
		prevLevel := level
		level = hw.alpha*(series[i]/s) + (1-hw.alpha)*(level+trend)
		trend = hw.beta*(level-prevLevel) + (1-hw.beta)*trend
		if level != 0 {
			hw.seasonal[i%hw.period] = hw.gamma*(series[i]/level) + (1-hw.gamma)*s
		}
	}
	hw.level = level
	hw.trend = trend
	hw.markTrained()
	return nil
}

// initialSeasonal computes seasonal components from grouped period averages
// normalized to mean 1.
func initialSeasonal(series []float64, period int) []float64 {
	seasonal := make([]float64, period)
	counts := make([]int, period)
	for i, v := range series {
		seasonal[i%period] += v
		counts[i%period]++
	}
	overall := stat.Mean(series, nil)
	for i := range seasonal {
		if counts[i] > 0 && overall != 0 {
			seasonal[i] = (seasonal[i] / float64(counts[i])) / overall
		} else {
			seasonal[i] = 1
		}
	}
	return seasonal
}

// Predict extrapolates trend and seasonal components:
//
//	forecast_k = (level + k*trend) * seasonal[(k-1) mod period]
func (hw *HoltWinters) Predict(steps int) []float64 {
	hw.acquirePredictLock()
	defer hw.releasePredictLock()

	out := zeroForecast(steps)
	if !hw.trained {
		return out
	}
	for k := 1; k <= steps; k++ {
		out[k-1] = (hw.level + float64(k)*hw.trend) * hw.seasonal[(k-1)%hw.period]
	}
	return out
}

// Seasonal returns a copy of the fitted seasonal components.
func (hw *HoltWinters) Seasonal() []float64 {
	hw.acquirePredictLock()
	defer hw.releasePredictLock()
	out := make([]float64, len(hw.seasonal))
	copy(out, hw.seasonal)
	return out
}

// FallbackUsed reports whether the short-series fallback produced the fit.
func (hw *HoltWinters) FallbackUsed() bool {
	hw.acquirePredictLock()
	defer hw.releasePredictLock()
	return hw.fallback
}

// Cost implements Forecaster.
func (hw *HoltWinters) Cost() float64 { return 2 }
