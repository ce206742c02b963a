// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"

	"gonum.org/v1/gonum/stat"
)

// ARIMAConfig contains the model order.
type ARIMAConfig struct {
	// P is the autoregressive order. Default: 2.
	P int
	// D is the differencing order. Default: 1.
	D int
	// Q is the moving-average order. Default: 1.
	Q int
}

// DefaultARIMAConfig returns the default (p=2, d=1, q=1) configuration.
func DefaultARIMAConfig() ARIMAConfig {
	return ARIMAConfig{P: 2, D: 1, Q: 1}
}

// ARIMA implements an approximate AutoRegressive Integrated Moving Average
// model sized for an edge device.
//
// The coefficient estimators are deliberately simplified:
//
//   - AR coefficients are the ratio of lag-k to lag-0 autocorrelation
//     (Yule-Walker-style, not a full linear solve for p > 1).
//   - MA coefficients are residual autocovariance normalized by the squared
//     residual variance (not a proper innovations algorithm).
//
// These approximations are intentional; the ensemble's validation-error
// weighting compensates for their bias. Do not replace them with exact
// estimators without also revisiting the ensemble weighting.
//
// Series shorter than max(p,q)+d+1 switch to an AR(1) fallback on the raw
// series. The reported state keeps the configured (p,d,q) labels even when
// the fallback produced the coefficients; FallbackUsed makes the path
// visible.
type ARIMA struct {
	BaseModel
	cfg ARIMAConfig

	ar        []float64
	ma        []float64
	residuals []float64
	// diffTails[level] is the last original-scale value at each
	// differencing level, used to re-integrate forecasts.
	diffTails []float64
	diffed    []float64
	history   []float64
	fallback  bool
	// fallbackCoef is the single AR(1) coefficient used on the fallback path.
	fallbackCoef float64
	seriesMean   float64
}

// ARIMAState is a read-only snapshot of the fitted parameters.
type ARIMAState struct {
	P            int       `json:"p"`
	D            int       `json:"d"`
	Q            int       `json:"q"`
	AR           []float64 `json:"ar"`
	MA           []float64 `json:"ma"`
	FallbackUsed bool      `json:"fallback_used"`
}

// NewARIMA creates an ARIMA model with the given order.
func NewARIMA(cfg ARIMAConfig) *ARIMA {
	if cfg.P < 0 {
		cfg.P = 0
	}
	if cfg.D < 0 {
		cfg.D = 0
	}
	if cfg.Q < 0 {
		cfg.Q = 0
	}
	if cfg.P == 0 && cfg.Q == 0 {
		cfg.P = 1
	}
	return &ARIMA{
		BaseModel: NewBaseModel("arima"),
		cfg:       cfg,
	}
}

// minObservations is the shortest series the full (p,d,q) fit accepts.
func (a *ARIMA) minObservations() int {
	pq := a.cfg.P
	if a.cfg.Q > pq {
		pq = a.cfg.Q
	}
	return pq + a.cfg.D + 1
}

// Train fits the model, falling back to AR(1) for short series.
func (a *ARIMA) Train(ctx context.Context, series []float64) error {
	a.acquireTrainLock()
	defer a.releaseTrainLock()

	if len(series) < 2 {
		return ErrInsufficientData
	}
	if contextCancelled(ctx) {
		return ctx.Err()
	}

	a.history = append(a.history[:0], series...)

	if len(series) < a.minObservations() {
		a.trainFallback(series)
		a.markTrained()
		return nil
	}
	a.fallback = false

	diffed, tails := difference(series, a.cfg.D)
	a.diffed = diffed
	a.diffTails = tails

	a.ar = estimateARCoefficients(diffed, a.cfg.P)
	a.residuals = arResiduals(diffed, a.ar)
	a.ma = estimateMACoefficients(a.residuals, a.cfg.Q)

	a.markTrained()
	return nil
}

// trainFallback estimates a single AR(1) coefficient from the lag-1
// autocovariance of the mean-centered series. The configured (p,d,q) labels
// are preserved in the reported state.
func (a *ARIMA) trainFallback(series []float64) {
	a.fallback = true
	a.seriesMean = stat.Mean(series, nil)

	var num, den float64
	for i := 0; i < len(series); i++ {
		dev := series[i] - a.seriesMean
		den += dev * dev
		if i > 0 {
			num += dev * (series[i-1] - a.seriesMean)
		}
	}
	if den != 0 {
		a.fallbackCoef = num / den
	} else {
		a.fallbackCoef = 0
	}
	a.ar = []float64{a.fallbackCoef}
	a.ma = nil
	a.residuals = nil
	a.diffed = nil
	a.diffTails = nil
}

// difference applies d rounds of first differencing, recording the final
// value at each level for later re-integration.
func difference(series []float64, d int) (diffed, tails []float64) {
	diffed = append([]float64(nil), series...)
	tails = make([]float64, 0, d)
	for level := 0; level < d; level++ {
		if len(diffed) < 2 {
			break
		}
		tails = append(tails, diffed[len(diffed)-1])
		next := make([]float64, len(diffed)-1)
		for i := 1; i < len(diffed); i++ {
			next[i-1] = diffed[i] - diffed[i-1]
		}
		diffed = next
	}
	return diffed, tails
}

// estimateARCoefficients returns phi_k = autocorr(k) for k=1..p, the
// simplified ratio-of-autocorrelations estimate.
func estimateARCoefficients(series []float64, p int) []float64 {
	if p == 0 || len(series) < 2 {
		return nil
	}
	mean := stat.Mean(series, nil)
	var c0 float64
	for _, v := range series {
		c0 += (v - mean) * (v - mean)
	}
	if c0 == 0 {
		return make([]float64, p)
	}
	ar := make([]float64, p)
	for k := 1; k <= p; k++ {
		if k >= len(series) {
			break
		}
		var ck float64
		for i := k; i < len(series); i++ {
			ck += (series[i] - mean) * (series[i-k] - mean)
		}
		ar[k-1] = ck / c0
	}
	return ar
}

// arResiduals computes one-step-ahead residuals of the AR fit.
func arResiduals(series, ar []float64) []float64 {
	p := len(ar)
	if len(series) <= p {
		return nil
	}
	residuals := make([]float64, 0, len(series)-p)
	for t := p; t < len(series); t++ {
		var pred float64
		for i, phi := range ar {
			pred += phi * series[t-1-i]
		}
		residuals = append(residuals, series[t]-pred)
	}
	return residuals
}

// estimateMACoefficients returns theta_k = residual autocovariance at lag k
// normalized by the squared residual variance. This is a documented
// approximation, not an innovations-algorithm solve.
func estimateMACoefficients(residuals []float64, q int) []float64 {
	if q == 0 || len(residuals) < 2 {
		return nil
	}
	variance := stat.Variance(residuals, nil)
	if variance == 0 {
		return make([]float64, q)
	}
	mean := stat.Mean(residuals, nil)
	ma := make([]float64, q)
	for k := 1; k <= q; k++ {
		if k >= len(residuals) {
			break
		}
		var ck float64
		for i := k; i < len(residuals); i++ {
			ck += (residuals[i] - mean) * (residuals[i-k] - mean)
		}
		ck /= float64(len(residuals) - k)
		ma[k-1] = ck / (variance * variance)
	}
	return ma
}

// Predict returns a steps-element forecast. Future residuals are assumed to
// be zero; the differenced forecast is re-integrated by adding back the most
// recent original-scale values. An untrained model returns zeros.
func (a *ARIMA) Predict(steps int) []float64 {
	a.acquirePredictLock()
	defer a.releasePredictLock()

	out := zeroForecast(steps)
	if !a.trained || steps <= 0 {
		return out
	}

	if a.fallback {
		// AR(1) recursion around the series mean.
		last := a.history[len(a.history)-1]
		for k := range out {
			last = a.seriesMean + a.fallbackCoef*(last-a.seriesMean)
			out[k] = last
		}
		return out
	}

	// Forecast on the differenced scale.
	work := append([]float64(nil), a.diffed...)
	resid := append([]float64(nil), a.residuals...)
	diffPreds := make([]float64, 0, steps)
	for k := 0; k < steps; k++ {
		var pred float64
		for i, phi := range a.ar {
			idx := len(work) - 1 - i
			if idx >= 0 {
				pred += phi * work[idx]
			}
		}
		for j, theta := range a.ma {
			idx := len(resid) - 1 - j
			if idx >= 0 {
				pred += theta * resid[idx]
			}
		}
		work = append(work, pred)
		resid = append(resid, 0) // future residuals assumed zero
		diffPreds = append(diffPreds, pred)
	}

	// Re-integrate from the differenced scale back to the original.
	integrated := diffPreds
	for level := len(a.diffTails) - 1; level >= 0; level-- {
		running := a.diffTails[level]
		next := make([]float64, len(integrated))
		for i, v := range integrated {
			running += v
			next[i] = running
		}
		integrated = next
	}
	copy(out, integrated)
	return out
}

// State returns a snapshot of the fitted parameters. The configured order
// is reported even when the AR(1) fallback produced the coefficients.
func (a *ARIMA) State() ARIMAState {
	a.acquirePredictLock()
	defer a.releasePredictLock()
	return ARIMAState{
		P:            a.cfg.P,
		D:            a.cfg.D,
		Q:            a.cfg.Q,
		AR:           append([]float64(nil), a.ar...),
		MA:           append([]float64(nil), a.ma...),
		FallbackUsed: a.fallback,
	}
}

// Cost implements Forecaster. Cost scales with model order.
func (a *ARIMA) Cost() float64 {
	return 2 + float64(a.cfg.P+a.cfg.Q)
}
