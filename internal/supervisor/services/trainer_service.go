// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dvermeer/linguacache/internal/predictor"
)

// Retrainer is the slice of the prediction engine the trainer needs.
type Retrainer interface {
	// Retrain refits the forecast models on the most recent demand
	// series.
	Retrain(ctx context.Context) error
}

// TrainerServiceConfig holds configuration for the retraining service.
type TrainerServiceConfig struct {
	// Interval is how often to retrain. Default: 1h.
	Interval time.Duration

	// OnStartup triggers one training run when the service starts.
	OnStartup bool

	// MinSpacing rate-limits back-to-back runs, covering the case where
	// a startup run and the first tick land close together. Default: 1m.
	MinSpacing time.Duration
}

// TrainerService periodically refits the forecast models so that
// demand patterns ingested since the last explicit training call are
// reflected in predictions.
type TrainerService struct {
	retrainer Retrainer
	config    TrainerServiceConfig
	limiter   *rate.Limiter
	logger    zerolog.Logger
	name      string
}

// NewTrainerService creates a retraining service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainerService(retrainer Retrainer, cfg TrainerServiceConfig, logger zerolog.Logger) *TrainerService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = time.Minute
	}
	return &TrainerService{
		retrainer: retrainer,
		config:    cfg,
		limiter:   rate.NewLimiter(rate.Every(cfg.MinSpacing), 1),
		logger:    logger.With().Str("service", "trainer").Logger(),
		name:      "trainer-service",
	}
}

// Serve implements the suture.Service interface.
func (s *TrainerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("retraining service starting")

	if s.config.OnStartup {
		s.train(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retraining service shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.train(ctx)
		}
	}
}

// train performs one rate-limited training cycle. Failures are logged,
// not returned: a bad cycle must not crash the service and discard the
// models already serving predictions.
func (s *TrainerService) train(ctx context.Context) {
	if !s.limiter.Allow() {
		s.logger.Debug().Msg("retraining skipped, minimum spacing not elapsed")
		return
	}

	trainCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	err := s.retrainer.Retrain(trainCtx)
	switch {
	case err == nil:
		s.logger.Info().Dur("duration", time.Since(start)).Msg("scheduled retraining complete")
	case errors.Is(err, predictor.ErrNoTrainingData):
		s.logger.Debug().Msg("retraining skipped, no demand series ingested yet")
	default:
		s.logger.Warn().Err(err).Msg("scheduled retraining failed")
	}
}

// String returns the service name for supervisor logging.
func (s *TrainerService) String() string {
	return s.name
}
