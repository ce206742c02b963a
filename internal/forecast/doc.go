// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package forecast implements the time-series models behind the prefetch
// predictor: an exponential smoothing family, an approximate ARIMA, a
// decomposition-based seasonal model, a small gated recurrent model, and the
// adaptive ensemble that combines them under device resource constraints.
//
// # Model Roster
//
//   - Smoothing: Simple Exponential Smoothing, Holt, Holt-Winters
//   - ARIMA: differencing plus approximate AR/MA coefficient estimation
//   - SeasonalDecomposition: OLS trend, changepoint detection, per-period seasonality
//   - GatedSequence: sliding-window gated recurrent predictor
//
// The estimators are intentionally simplified approximations sized for an
// edge device, not maximum-likelihood fits. The ensemble compensates by
// weighting members by inverse validation error.
//
// # Thread Safety
//
// All models are safe for concurrent use. Training acquires an exclusive
// lock while prediction uses a shared lock, so predictions may run
// concurrently with each other but serialize against training.
package forecast
