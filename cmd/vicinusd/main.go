// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package main is the entry point for the Vicinus daemon.
//
// Vicinus recommends items through collaborative filtering over user
// interaction history stored in DuckDB. The daemon keeps the
// item-similarity model fresh with a supervised training loop and
// exposes an operational HTTP listener for health and metrics;
// recommendations themselves are served to embedding applications
// through the recommend package.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, YAML, and environment (Koanf v2)
//  2. Database: DuckDB interaction store, optionally seeded with mock data
//  3. Circuit breaker: guard around store reads (enabled by default)
//  4. Recommendation service: strategy registry with fallback chain and artifact store
//  5. Supervisor tree: training loop and ops listener under suture v4
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (DUCKDB_PATH, ITEMCF_TOP_N, LOG_LEVEL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The daemon handles graceful shutdown on SIGINT and SIGTERM:
//   - The supervisor tree stops the training loop and ops listener
//   - In-flight ops requests get 10s to complete
//   - The DuckDB store is checkpointed and closed
//
// # Example Usage
//
// Development with an ephemeral store and mock data:
//
//	export DUCKDB_PATH=:memory:
//	export SEED_MOCK_DATA=true
//	export TRAIN_ENABLED=true
//	export TRAIN_ON_STARTUP=true
//	./vicinusd
//
// Production with periodic retraining:
//
//	export DUCKDB_PATH=/data/vicinus.duckdb
//	export ARTIFACT_DIR=/data/artifacts
//	export TRAIN_ENABLED=true
//	export TRAIN_INTERVAL=6h
//	./vicinusd
//
// The ops listener defaults to :9565 and serves /healthz, /readyz, and
// /metrics (Prometheus exposition).
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmarkell/vicinus/internal/config"
	"github.com/tmarkell/vicinus/internal/database"
	"github.com/tmarkell/vicinus/internal/logging"
	"github.com/tmarkell/vicinus/internal/ops"
	"github.com/tmarkell/vicinus/internal/recommend"
	"github.com/tmarkell/vicinus/internal/recommend/artifact"
	"github.com/tmarkell/vicinus/internal/recommend/strategy"
	"github.com/tmarkell/vicinus/internal/supervisor"
	"github.com/tmarkell/vicinus/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Msg("Starting Vicinus daemon")
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("artifact_dir", cfg.Artifact.Dir).
		Bool("training_enabled", cfg.Training.Enabled).
		Bool("ops_enabled", cfg.Ops.Enabled).
		Msg("Configuration loaded")

	logger := logging.Logger()

	db, err := database.New(cfg.Database, cfg.Loader.QueryTimeout, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open interaction store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing interaction store")
		}
	}()

	// Seed mock data if enabled (for development and CI)
	if cfg.Database.SeedMockData {
		logging.Info().Msg("Mock data seeding enabled (SEED_MOCK_DATA=true)")
		if err := db.SeedMockData(context.Background()); err != nil {
			// Close the store before fatal exit so the checkpoint runs
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing interaction store")
			}
			logging.Fatal().Err(err).Msg("Failed to seed mock data")
		}
	}

	// Store reads go through the circuit breaker unless disabled.
	var source recommend.InteractionSource = db
	if cfg.Breaker.Enabled {
		source = database.NewResilientSource(db, cfg.Breaker, logger)
		logging.Info().Msg("Interaction store circuit breaker enabled")
	}

	loader := recommend.NewLoader(source, recommend.Filters{EventTypes: cfg.Loader.EventTypes}, logger)

	artifacts, err := artifact.NewStore(cfg.Artifact.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open artifact store")
	}

	svc := recommend.NewService(recommend.ServiceConfig{
		DefaultAlgorithm: cfg.Service.DefaultAlgorithm,
		DefaultK:         cfg.Service.DefaultK,
		MaxK:             cfg.Service.MaxK,
	}, loader, logger)

	err = strategy.RegisterDefaults(svc, strategy.Config{
		ItemCF: strategy.ItemCFConfig{
			MinInteractions: cfg.ItemCF.MinInteractions,
			TopN:            cfg.ItemCF.TopN,
			MinSimilarity:   cfg.ItemCF.MinSimilarity,
			Method:          cfg.ItemCF.Method,
			KeepVersions:    cfg.Artifact.KeepVersions,
		},
		Random: strategy.RandomConfig{Seed: cfg.Random.Seed},
	}, artifacts, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to register strategies")
	}

	svc.SetDetailSource(db)

	// Load the first snapshot now so the daemon can serve before the
	// first training tick. Failure is not fatal: the trainer retries and
	// readiness reports not_ready meanwhile.
	if err := svc.RefreshData(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Initial dataset load failed")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Training.Enabled {
		tree.AddTrainingService(services.NewTrainerService(svc, services.TrainerConfig{
			OnStartup: cfg.Training.OnStartup,
			Interval:  cfg.Training.Interval,
			Timeout:   cfg.Training.Timeout,
		}, logger))
		logging.Info().Dur("interval", cfg.Training.Interval).Msg("Training loop added to supervisor tree")
	}

	if cfg.Ops.Enabled {
		handler := ops.NewHandler(db, svc, logger)
		server := ops.NewServer(cfg.Ops, handler.Router())
		tree.AddOpsService(services.NewHTTPService(server, "ops-http", 10*time.Second))
		logging.Info().Str("addr", cfg.Ops.Addr).Msg("Ops listener added to supervisor tree")
	}

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, stuck := range unstopped {
			logging.Warn().Str("service", stuck.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Daemon stopped gracefully")
}
