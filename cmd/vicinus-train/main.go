// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package main is the Vicinus one-shot training CLI.
//
// vicinus-train loads interactions from the configured DuckDB store,
// runs one training pass for the selected algorithm, prints the run
// statistics as JSON on stdout, and exits:
//
//	0  training succeeded
//	1  training failed
//	2  not enough interactions to train
//
// Configuration comes from the same sources as the daemon (defaults,
// YAML file, environment); flags override the training parameters for
// this run only:
//
//	vicinus-train -algorithm itemcf -top-n 100 -method jaccard
//
// Use it from cron or a pipeline job when the daemon's built-in
// training loop is disabled.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/goccy/go-json"

	"github.com/tmarkell/vicinus/internal/config"
	"github.com/tmarkell/vicinus/internal/database"
	"github.com/tmarkell/vicinus/internal/logging"
	"github.com/tmarkell/vicinus/internal/recommend"
	"github.com/tmarkell/vicinus/internal/recommend/artifact"
	"github.com/tmarkell/vicinus/internal/recommend/strategy"
)

// Exit codes. Insufficient data is distinguished so schedulers can
// treat a sparse store as "retry later" rather than a hard failure.
const (
	exitOK               = 0
	exitFailure          = 1
	exitInsufficientData = 2
)

func main() {
	os.Exit(run())
}

//nolint:gocyclo // sequential CLI setup steps
func run() int {
	var (
		configPath      = flag.String("config", "", "config file path (overrides CONFIG_PATH)")
		algorithm       = flag.String("algorithm", "itemcf", "algorithm to train")
		minInteractions = flag.Int("min-interactions", 0, "items with fewer interactions are excluded (0 = configured default)")
		topN            = flag.Int("top-n", 0, "neighbors kept per item (0 = configured default)")
		minSimilarity   = flag.Float64("min-similarity", 0, "similarity floor for neighbors (0 = configured default)")
		method          = flag.String("method", "", "similarity measure: cosine or jaccard (empty = configured default)")
	)
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, *configPath); err != nil {
			logging.Error().Err(err).Msg("Failed to set config path")
			return exitFailure
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitFailure
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logger := logging.Logger()

	db, err := database.New(cfg.Database, cfg.Loader.QueryTimeout, logger)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open interaction store")
		return exitFailure
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing interaction store")
		}
	}()

	artifacts, err := artifact.NewStore(cfg.Artifact.Dir)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open artifact store")
		return exitFailure
	}

	loader := recommend.NewLoader(db, recommend.Filters{EventTypes: cfg.Loader.EventTypes}, logger)

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
		logging.Error().Err(err).Msg("Failed to register strategies")
		return exitFailure
	}

	// TrainModel reloads the dataset before building, so the run always
	// sees the current store state.
	params := recommend.TrainParams{
		MinInteractions: *minInteractions,
		TopN:            *topN,
		MinSimilarity:   *minSimilarity,
		Method:          *method,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Training.Timeout)
	defer cancel()

	res, err := svc.TrainModel(ctx, *algorithm, params)
	if err != nil {
		if errors.Is(err, recommend.ErrInsufficientData) {
			logging.Warn().Err(err).Msg("Not enough interactions to train")
			return exitInsufficientData
		}
		logging.Error().Err(err).Msg("Training failed")
		return exitFailure
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logging.Error().Err(err).Msg("Failed to encode training result")
		return exitFailure
	}

	return exitOK
}
