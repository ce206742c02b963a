// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SeasonalConfig contains configuration for the decomposition model.
type SeasonalConfig struct {
	// Periods are the seasonal cycle lengths to model. Default: [24, 168]
	// (daily and weekly cycles on an hourly series).
	Periods []int

	// Changepoints is the number of trend changepoints to detect.
	// Default: 5.
	Changepoints int
}

// DefaultSeasonalConfig returns the default daily+weekly configuration.
func DefaultSeasonalConfig() SeasonalConfig {
	return SeasonalConfig{
		Periods:      []int{24, 168},
		Changepoints: 5,
	}
}

// SeasonalDecomposition models a series as a linear trend plus additive
// per-period seasonal components, with residual-driven changepoint
// detection. When the series is shorter than a configured period, a small
// synthetic sinusoidal pattern substitutes for the learned seasonality.
type SeasonalDecomposition struct {
	BaseModel
	cfg SeasonalConfig

	slope       float64
	intercept   float64
	changepoints []int
	seasonal    map[int][]float64
	n           int
}

// syntheticAmplitude is the amplitude of the substituted sinusoidal
// pattern when the series is shorter than a seasonal period.
const syntheticAmplitude = 0.1

// NewSeasonalDecomposition creates a seasonal decomposition model.
func NewSeasonalDecomposition(cfg SeasonalConfig) *SeasonalDecomposition {
	if len(cfg.Periods) == 0 {
		cfg.Periods = []int{24, 168}
	}
	if cfg.Changepoints <= 0 {
		cfg.Changepoints = 5
	}
	return &SeasonalDecomposition{
		BaseModel: NewBaseModel("seasonal_decomposition"),
		cfg:       cfg,
		seasonal:  make(map[int][]float64),
	}
}

// Train fits trend, changepoints, and per-period seasonal components.
func (sd *SeasonalDecomposition) Train(ctx context.Context, series []float64) error {
	sd.acquireTrainLock()
	defer sd.releaseTrainLock()

	if len(series) == 0 {
		return ErrInsufficientData
	}
	if contextCancelled(ctx) {
		return ctx.Err()
	}

	sd.n = len(series)
	sd.fitTrend(series)

	residuals := make([]float64, len(series))
	for i, v := range series {
		residuals[i] = v - sd.trendAt(i)
	}

	sd.changepoints = detectChangepoints(residuals, sd.cfg.Changepoints)

	sd.seasonal = make(map[int][]float64, len(sd.cfg.Periods))
	for _, period := range sd.cfg.Periods {
		sd.seasonal[period] = seasonalPattern(residuals, period)
	}

	sd.markTrained()
	return nil
}

// fitTrend computes the OLS slope and intercept over index vs. value.
func (sd *SeasonalDecomposition) fitTrend(series []float64) {
	if len(series) < 2 {
		sd.intercept = series[0]
		sd.slope = 0
		return
	}
	idx := make([]float64, len(series))
	for i := range idx {
		idx[i] = float64(i)
	}
	sd.intercept, sd.slope = stat.LinearRegression(idx, series, nil, false)
}

func (sd *SeasonalDecomposition) trendAt(i int) float64 {
	return sd.intercept + sd.slope*float64(i)
}

// detectChangepoints iteratively picks the index with the largest absolute
// residual, then removes a symmetric window around it from the candidate
// pool so changepoints spread across the series.
func detectChangepoints(residuals []float64, target int) []int {
	n := len(residuals)
	if n == 0 || target == 0 {
		return nil
	}
	window := n / (2 * target)
	if window < 1 {
		window = 1
	}

	available := make([]bool, n)
	for i := range available {
		available[i] = true
	}

	points := make([]int, 0, target)
	for len(points) < target {
		best := -1
		bestAbs := -1.0
		for i := 0; i < n; i++ {
			if !available[i] {
				continue
			}
			if abs := math.Abs(residuals[i]); abs > bestAbs {
				bestAbs = abs
				best = i
			}
		}
		if best < 0 {
			break
		}
		points = append(points, best)
		for i := best - window; i <= best+window; i++ {
			if i >= 0 && i < n {
				available[i] = false
			}
		}
	}
	sort.Ints(points)
	return points
}

// seasonalPattern averages detrended values at each phase position and
// zero-mean-normalizes across the period. Series shorter than the period
// get a small synthetic sinusoidal pattern instead.
func seasonalPattern(residuals []float64, period int) []float64 {
	pattern := make([]float64, period)
	if len(residuals) < period {
		for i := range pattern {
			pattern[i] = syntheticAmplitude * math.Sin(2*math.Pi*float64(i)/float64(period))
		}
		return pattern
	}

	counts := make([]int, period)
	for i, v := range residuals {
		pattern[i%period] += v
		counts[i%period]++
	}
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
	}
	mean := stat.Mean(pattern, nil)
	for i := range pattern {
		pattern[i] -= mean
	}
	return pattern
}

// Predict extrapolates trend plus the sum of seasonal components:
//
//	forecast_k = intercept + slope*(n+k) + sum over periods of seasonal[(n+k) mod period]
func (sd *SeasonalDecomposition) Predict(steps int) []float64 {
	sd.acquirePredictLock()
	defer sd.releasePredictLock()

	out := zeroForecast(steps)
	if !sd.trained {
		return out
	}
	for k := 1; k <= steps; k++ {
		idx := sd.n + k
		v := sd.intercept + sd.slope*float64(idx)
		for period, pattern := range sd.seasonal {
			v += pattern[idx%period]
		}
		out[k-1] = v
	}
	return out
}

// Changepoints returns the detected changepoint indices in ascending order.
func (sd *SeasonalDecomposition) Changepoints() []int {
	sd.acquirePredictLock()
	defer sd.releasePredictLock()
	return append([]int(nil), sd.changepoints...)
}

// Trend returns the fitted OLS slope and intercept.
func (sd *SeasonalDecomposition) Trend() (slope, intercept float64) {
	sd.acquirePredictLock()
	defer sd.releasePredictLock()
	return sd.slope, sd.intercept
}

// Cost implements Forecaster. Cost scales with the number of periods.
func (sd *SeasonalDecomposition) Cost() float64 {
	return 3 + float64(len(sd.cfg.Periods))
}
