// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package main is the entry point for the Linguacache prediction server.
//
// Linguacache predicts which translation content an edge device should
// prefetch while connectivity is available. It blends three signals:
//
//  1. Demand forecasting: an ensemble of time-series models over the
//     hourly translation-demand series
//  2. Content similarity: cosine-similarity recommendations from user
//     interaction history
//  3. Network risk: offline-risk forecasts from observed connectivity
//     patterns
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, config file, and env vars (Koanf v2)
//  2. Logging: global zerolog logger
//  3. Models: forecast ensemble, content recommender, network analyzer,
//     and the aggregator that merges their signals
//  4. Supervisor tree: the retraining service and the HTTP server under
//     Suture supervision
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (SERVER_PORT, ENSEMBLE_MEMORY_TIER, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests up to the
// configured shutdown timeout, and stops the retraining service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvermeer/linguacache/internal/api"
	"github.com/dvermeer/linguacache/internal/config"
	"github.com/dvermeer/linguacache/internal/forecast"
	"github.com/dvermeer/linguacache/internal/logging"
	"github.com/dvermeer/linguacache/internal/network"
	"github.com/dvermeer/linguacache/internal/predictor"
	"github.com/dvermeer/linguacache/internal/recommend"
	"github.com/dvermeer/linguacache/internal/supervisor"
	"github.com/dvermeer/linguacache/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so this goes through the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("memory_tier", cfg.Ensemble.MemoryTier).
		Int("port", cfg.Server.Port).
		Dur("train_interval", cfg.Training.Interval).
		Msg("Starting Linguacache")

	// Model layer.
	ensemble := forecast.NewEnsemble(forecast.EnsembleConfig{
		MemoryTier:       forecast.MemoryTier(cfg.Ensemble.MemoryTier),
		MinTrainLength:   cfg.Ensemble.MinTrainLength,
		BatteryAware:     cfg.Ensemble.BatteryAware,
		BatteryThreshold: cfg.Ensemble.BatteryThreshold,
		Seed:             cfg.Ensemble.Seed,
	}, logging.Get())

	recommender := recommend.NewRecommender()

	analyzer := network.NewAnalyzer(network.AnalyzerConfig{
		HistoryCap:          cfg.Network.HistoryCap,
		MinEvents:           cfg.Network.MinEvents,
		ConfidenceThreshold: cfg.Network.ConfidenceThreshold,
	}, logging.Get())

	aggregator := predictor.New(predictor.Config{
		Weights: predictor.SourceWeights{
			TimeSeries: cfg.Predictor.TimeSeriesWeight,
			Content:    cfg.Predictor.ContentWeight,
			Network:    cfg.Predictor.NetworkWeight,
		},
		MaxPredictions:      cfg.Predictor.MaxPredictions,
		ConfidenceThreshold: cfg.Predictor.ConfidenceThreshold,
		DefaultHorizon:      cfg.Predictor.DefaultHorizon,
	}, ensemble, recommender, analyzer, logging.Get())

	// HTTP layer.
	handler := api.NewHandler(aggregator, analyzer)
	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.API.RateLimitRequests,
		RateLimitWindow:    cfg.API.RateLimitWindow,
	})
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Supervisor tree: the zerolog-backed slog logger feeds sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddTrainingService(services.NewTrainerService(aggregator, services.TrainerServiceConfig{
		Interval:   cfg.Training.Interval,
		OnStartup:  cfg.Training.OnStartup,
		MinSpacing: cfg.Training.MinSpacing,
	}, logging.Get()))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Linguacache stopped gracefully")
}
