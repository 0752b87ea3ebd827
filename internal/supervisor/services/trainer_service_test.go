// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tmarkell/vicinus/internal/recommend"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// mockTrainer records calls and returns configured results.
type mockTrainer struct {
	mu           sync.Mutex
	refreshed    int
	trained      int
	refreshErr   error
	trainErr     error
	nonTrainable bool
}

func (m *mockTrainer) RefreshData(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed++
	return m.refreshErr
}

func (m *mockTrainer) TrainModel(_ context.Context, algorithm string, _ recommend.TrainParams) (*recommend.TrainResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trained++
	if m.trainErr != nil {
		return nil, m.trainErr
	}
	return &recommend.TrainResult{Algorithm: algorithm, Success: !m.nonTrainable}, nil
}

func (m *mockTrainer) counts() (refreshed, trained int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshed, m.trained
}

func TestTrainerServiceInterface(t *testing.T) {
	var _ suture.Service = (*TrainerService)(nil)
}

func TestNewTrainerServiceDefaults(t *testing.T) {
	svc := NewTrainerService(&mockTrainer{}, TrainerConfig{}, testLogger())

	if svc.config.Algorithm != "itemcf" {
		t.Errorf("Algorithm = %q, want %q", svc.config.Algorithm, "itemcf")
	}
	if svc.config.Interval != 24*time.Hour {
		t.Errorf("Interval = %v, want %v", svc.config.Interval, 24*time.Hour)
	}
	if svc.config.Timeout != 30*time.Minute {
		t.Errorf("Timeout = %v, want %v", svc.config.Timeout, 30*time.Minute)
	}
	if got := svc.String(); got != "trainer" {
		t.Errorf("String() = %q, want %q", got, "trainer")
	}
}

func TestTrainerServeStartupRun(t *testing.T) {
	t.Run("trains on startup when configured", func(t *testing.T) {
		trainer := &mockTrainer{}
		svc := NewTrainerService(trainer, TrainerConfig{
			OnStartup: true,
			Interval:  time.Hour,
		}, testLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = svc.Serve(ctx)

		if _, trained := trainer.counts(); trained != 1 {
			t.Errorf("trained %d times, want 1", trained)
		}
	})

	t.Run("skips startup run when disabled", func(t *testing.T) {
		trainer := &mockTrainer{}
		svc := NewTrainerService(trainer, TrainerConfig{
			OnStartup: false,
			Interval:  time.Hour,
		}, testLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = svc.Serve(ctx)

		if _, trained := trainer.counts(); trained != 0 {
			t.Errorf("trained %d times, want 0", trained)
		}
	})
}

func TestTrainerServeScheduledRuns(t *testing.T) {
	trainer := &mockTrainer{}
	svc := NewTrainerService(trainer, TrainerConfig{
		Interval: 20 * time.Millisecond,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if _, trained := trainer.counts(); trained < 2 {
		t.Errorf("trained %d times, want >= 2", trained)
	}
}

func TestTrainerServeSurvivesFailures(t *testing.T) {
	// A failing run must not crash the loop; runs keep being scheduled.
	trainer := &mockTrainer{trainErr: errors.New("store down")}
	svc := NewTrainerService(trainer, TrainerConfig{
		OnStartup: true,
		Interval:  20 * time.Millisecond,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}

	if _, trained := trainer.counts(); trained < 2 {
		t.Errorf("trained %d times, want >= 2", trained)
	}
}

func TestTrainerRunOnce(t *testing.T) {
	t.Run("trained cycle does not refresh again", func(t *testing.T) {
		trainer := &mockTrainer{}
		svc := NewTrainerService(trainer, TrainerConfig{}, testLogger())

		if err := svc.runOnce(context.Background()); err != nil {
			t.Fatalf("runOnce() = %v, want nil", err)
		}

		refreshed, trained := trainer.counts()
		if refreshed != 0 || trained != 1 {
			t.Errorf("counts = (%d, %d), want (0, 1)", refreshed, trained)
		}
	})

	t.Run("non-trainable strategy falls back to refresh", func(t *testing.T) {
		trainer := &mockTrainer{nonTrainable: true}
		svc := NewTrainerService(trainer, TrainerConfig{Algorithm: "popularity"}, testLogger())

		if err := svc.runOnce(context.Background()); err != nil {
			t.Fatalf("runOnce() = %v, want nil", err)
		}

		refreshed, trained := trainer.counts()
		if refreshed != 1 || trained != 1 {
			t.Errorf("counts = (%d, %d), want (1, 1)", refreshed, trained)
		}
	})

	t.Run("insufficient data is not a failure", func(t *testing.T) {
		trainer := &mockTrainer{trainErr: recommend.ErrInsufficientData}
		svc := NewTrainerService(trainer, TrainerConfig{}, testLogger())

		if err := svc.runOnce(context.Background()); err != nil {
			t.Errorf("runOnce() = %v, want nil", err)
		}
	})

	t.Run("concurrent run is not a failure", func(t *testing.T) {
		trainer := &mockTrainer{trainErr: recommend.ErrTrainingInProgress}
		svc := NewTrainerService(trainer, TrainerConfig{}, testLogger())

		if err := svc.runOnce(context.Background()); err != nil {
			t.Errorf("runOnce() = %v, want nil", err)
		}
	})

	t.Run("training failure propagates", func(t *testing.T) {
		wantErr := errors.New("model build failed")
		trainer := &mockTrainer{trainErr: wantErr}
		svc := NewTrainerService(trainer, TrainerConfig{}, testLogger())

		if err := svc.runOnce(context.Background()); !errors.Is(err, wantErr) {
			t.Errorf("runOnce() = %v, want %v", err, wantErr)
		}
	})

	t.Run("refresh failure propagates for non-trainable strategy", func(t *testing.T) {
		wantErr := errors.New("store down")
		trainer := &mockTrainer{nonTrainable: true, refreshErr: wantErr}
		svc := NewTrainerService(trainer, TrainerConfig{}, testLogger())

		if err := svc.runOnce(context.Background()); !errors.Is(err, wantErr) {
			t.Errorf("runOnce() = %v, want %v", err, wantErr)
		}
	})
}
