// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package config provides layered configuration for Linguacache: built-in
// defaults, an optional YAML file, and environment variable overrides,
// loaded with Koanf v2.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Ensemble  EnsembleConfig  `koanf:"ensemble"`
	Network   NetworkConfig   `koanf:"network"`
	Predictor PredictorConfig `koanf:"predictor"`
	Training  TrainingConfig  `koanf:"training"`
	API       APIConfig       `koanf:"api"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0.
	Host string `koanf:"host" validate:"required"`

	// Port is the listen port. Default: 8095.
	Port int `koanf:"port" validate:"gte=1,lte=65535"`

	// Timeout bounds request read/write. Default: 30s.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	// Default: info.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`

	// Format is json or console. Default: json.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file:line in log output. Default: false.
	Caller bool `koanf:"caller"`
}

// EnsembleConfig configures the forecasting ensemble.
type EnsembleConfig struct {
	// MemoryTier selects the roster: low, medium, high. Default: medium.
	MemoryTier string `koanf:"memory_tier" validate:"oneof=low medium high"`

	// MinTrainLength is the minimum series length before synthetic
	// augmentation kicks in. Default: 48.
	MinTrainLength int `koanf:"min_train_length" validate:"gte=2"`

	// BatteryAware restricts the roster under low power. Default: true.
	BatteryAware bool `koanf:"battery_aware"`

	// BatteryThreshold is the level below which the restriction applies.
	// Default: 0.2.
	BatteryThreshold float64 `koanf:"battery_threshold" validate:"gt=0,lte=1"`

	// Seed makes augmentation and weight init deterministic. Default: 42.
	Seed int64 `koanf:"seed"`
}

// NetworkConfig configures the pattern analyzer.
type NetworkConfig struct {
	// HistoryCap bounds event and quality histories. Default: 1000.
	HistoryCap int `koanf:"history_cap" validate:"gte=10"`

	// MinEvents gates non-trivial pattern extraction. Default: 10.
	MinEvents int `koanf:"min_events" validate:"gte=1"`

	// ConfidenceThreshold gates risk forecasts. Default: 0.3.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" validate:"gt=0,lt=1"`
}

// PredictorConfig configures the aggregator.
type PredictorConfig struct {
	// TimeSeriesWeight, ContentWeight, and NetworkWeight are the initial
	// source weights; normalized at construction.
	// Defaults: 0.5 / 0.3 / 0.2.
	TimeSeriesWeight float64 `koanf:"time_series_weight" validate:"gte=0"`
	ContentWeight    float64 `koanf:"content_weight" validate:"gte=0"`
	NetworkWeight    float64 `koanf:"network_weight" validate:"gte=0"`

	// MaxPredictions is the default output truncation. Default: 10.
	MaxPredictions int `koanf:"max_predictions" validate:"gte=1"`

	// ConfidenceThreshold is the default score filter. Default: 0.1.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" validate:"gt=0,lt=1"`

	// DefaultHorizon is the forecast length in hours. Default: 24.
	DefaultHorizon int `koanf:"default_horizon" validate:"gte=1,lte=168"`
}

// TrainingConfig configures the periodic retraining service.
type TrainingConfig struct {
	// Interval between scheduled retraining runs. Default: 1h.
	Interval time.Duration `koanf:"interval"`

	// OnStartup triggers one training run when the service starts,
	// replaying the most recent usage record. Default: false.
	OnStartup bool `koanf:"on_startup"`

	// MinSpacing rate-limits back-to-back training runs. Default: 1m.
	MinSpacing time.Duration `koanf:"min_spacing"`
}

// APIConfig configures API middleware.
type APIConfig struct {
	// RateLimitRequests per RateLimitWindow per client IP. Default: 120.
	RateLimitRequests int `koanf:"rate_limit_requests" validate:"gte=1"`

	// RateLimitWindow is the rate-limit window. Default: 1m.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins is the allowed-origin list. Default: empty (no
	// cross-origin access until explicitly configured).
	CORSOrigins []string `koanf:"cors_origins"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8095,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Ensemble: EnsembleConfig{
			MemoryTier:       "medium",
			MinTrainLength:   48,
			BatteryAware:     true,
			BatteryThreshold: 0.2,
			Seed:             42,
		},
		Network: NetworkConfig{
			HistoryCap:          1000,
			MinEvents:           10,
			ConfidenceThreshold: 0.3,
		},
		Predictor: PredictorConfig{
			TimeSeriesWeight:    0.5,
			ContentWeight:       0.3,
			NetworkWeight:       0.2,
			MaxPredictions:      10,
			ConfidenceThreshold: 0.1,
			DefaultHorizon:      24,
		},
		Training: TrainingConfig{
			Interval:   time.Hour,
			OnStartup:  false,
			MinSpacing: time.Minute,
		},
		API: APIConfig{
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
	}
}

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Predictor.TimeSeriesWeight+c.Predictor.ContentWeight+c.Predictor.NetworkWeight <= 0 {
		return fmt.Errorf("config validation: predictor source weights must not all be zero")
	}
	if c.Training.Interval > 0 && c.Training.MinSpacing > c.Training.Interval {
		return fmt.Errorf("config validation: training.min_spacing %s exceeds training.interval %s",
			c.Training.MinSpacing, c.Training.Interval)
	}
	return nil
}
