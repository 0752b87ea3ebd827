// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package services provides suture service wrappers for the daemon's
// long-running components.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/recommend"
)

// Trainer is the subset of the recommendation service the training
// loop drives.
type Trainer interface {
	RefreshData(ctx context.Context) error
	TrainModel(ctx context.Context, algorithm string, params recommend.TrainParams) (*recommend.TrainResult, error)
}

// TrainerConfig holds the training loop settings.
type TrainerConfig struct {
	// Algorithm is the strategy retrained each cycle. Default: itemcf.
	Algorithm string

	// Params tune each run. Zero values defer to the strategy's config.
	Params recommend.TrainParams

	// OnStartup triggers one run when the service starts.
	OnStartup bool

	// Interval is the retraining period. Default: 24h.
	Interval time.Duration

	// Timeout bounds a single run. Default: 30m.
	Timeout time.Duration
}

// TrainerService retrains the model on a schedule under supervision.
// Every cycle trains on a freshly loaded snapshot, so the model sees
// events recorded since the previous run.
type TrainerService struct {
	trainer Trainer
	config  TrainerConfig
	logger  zerolog.Logger
	name    string
}

// NewTrainerService creates the training loop service.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func NewTrainerService(trainer Trainer, cfg TrainerConfig, logger zerolog.Logger) *TrainerService {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "itemcf"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}

	return &TrainerService{
		trainer: trainer,
		config:  cfg,
		logger:  logger.With().Str("component", "trainer").Logger(),
		name:    "trainer",
	}
}

// Serve implements suture.Service. Failed runs are logged and retried
// on the next tick rather than crashing the service.
func (s *TrainerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("algorithm", s.config.Algorithm).
		Bool("on_startup", s.config.OnStartup).
		Dur("interval", s.config.Interval).
		Msg("training loop starting")

	if s.config.OnStartup {
		if err := s.runOnce(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup training failed, will retry on schedule")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("training loop shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled training failed")
			}
		}
	}
}

// runOnce retrains within the run timeout. TrainModel reloads the
// dataset before building, so trained cycles pick up new interactions;
// for a strategy that does not train, the cycle falls back to a plain
// refresh. Insufficient data is expected on sparse stores and does not
// count as a failure.
func (s *TrainerService) runOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()

	res, err := s.trainer.TrainModel(runCtx, s.config.Algorithm, s.config.Params)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrInsufficientData):
			s.logger.Warn().Err(err).Msg("not enough interactions to train")
			return nil
		case errors.Is(err, recommend.ErrTrainingInProgress):
			s.logger.Info().Msg("another training run is already in flight")
			return nil
		default:
			return err
		}
	}

	if !res.Success {
		// The strategy has no model to build. Refresh so the cycle
		// still picks up new interactions.
		if err := s.trainer.RefreshData(runCtx); err != nil {
			return err
		}
		s.logger.Info().Str("algorithm", res.Algorithm).Msg("dataset refreshed without training")
		return nil
	}

	evt := s.logger.Info().
		Str("algorithm", res.Algorithm).
		Str("run_id", res.RunID).
		Dur("duration", time.Since(start))
	if res.Stats != nil {
		evt = evt.Int("users", res.Stats.Users).Int("items", res.Stats.Items)
	}
	evt.Msg("training cycle complete")

	return nil
}

// String returns the service name for supervisor logs.
func (s *TrainerService) String() string {
	return s.name
}
