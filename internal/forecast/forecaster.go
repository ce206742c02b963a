// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package forecast

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sentinel errors for the training taxonomy. Insufficient data is only
// returned when a model refuses to train at all; internally handled
// fallback paths (Holt-Winters short series, ARIMA AR(1)) succeed and mark
// their state instead.
var (
	// ErrInsufficientData indicates the series is too short for the model
	// to produce any usable fit.
	ErrInsufficientData = errors.New("forecast: insufficient data")

	// ErrAllModelsFailed indicates every ensemble member failed to train.
	ErrAllModelsFailed = errors.New("forecast: all ensemble members failed to train")
)

// Forecaster is the capability interface shared by all time-series models.
// The ensemble holds a list of Forecaster values and never inspects
// concrete types.
type Forecaster interface {
	// Name returns the model identifier.
	Name() string

	// Train fits the model to an ordered series of hourly observations.
	Train(ctx context.Context, series []float64) error

	// Predict returns a forecast of exactly steps elements. An untrained
	// model returns a zero-filled forecast rather than an error.
	Predict(steps int) []float64

	// IsTrained reports whether the model has been trained.
	IsTrained() bool

	// Cost returns a relative compute-cost estimate used for
	// battery-aware roster restriction. Higher is more expensive.
	Cost() float64
}

// BaseModel provides common identity and lock discipline for all models.
type BaseModel struct {
	name          string
	trained       bool
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

// NewBaseModel creates a new base model with the given name.
func NewBaseModel(name string) BaseModel {
	return BaseModel{
		name: name,
	}
}

// Name returns the model identifier.
func (b *BaseModel) Name() string {
	return b.name
}

// IsTrained returns whether the model has been trained.
func (b *BaseModel) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// Version returns the model version, incremented on every training run.
func (b *BaseModel) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LastTrainedAt returns when the model was last trained.
func (b *BaseModel) LastTrainedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTrainedAt
}

// markTrained updates the trained state.
// Must be called while holding the training lock (acquireTrainLock).
func (b *BaseModel) markTrained() {
	b.trained = true
	b.version++
	b.lastTrainedAt = time.Now()
}

// acquireTrainLock acquires the exclusive training lock.
func (b *BaseModel) acquireTrainLock() {
	b.mu.Lock()
}

// releaseTrainLock releases the exclusive training lock.
func (b *BaseModel) releaseTrainLock() {
	b.mu.Unlock()
}

// acquirePredictLock acquires the shared prediction lock.
func (b *BaseModel) acquirePredictLock() {
	b.mu.RLock()
}

// releasePredictLock releases the shared prediction lock.
func (b *BaseModel) releasePredictLock() {
	b.mu.RUnlock()
}

// zeroForecast returns the neutral forecast for untrained models: exactly
// steps elements, all zero.
func zeroForecast(steps int) []float64 {
	if steps <= 0 {
		return []float64{}
	}
	return make([]float64, steps)
}

// contextCancelled reports whether ctx has been cancelled without blocking.
func contextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
