// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tmarkell/vicinus/internal/config"
	"github.com/tmarkell/vicinus/internal/metrics"
	"github.com/tmarkell/vicinus/internal/recommend"
)

// ResilientSource wraps an InteractionSource with a circuit breaker so
// a failing store degrades recommendation serving instead of stalling
// it. While the breaker is open, reads fail fast with
// gobreaker.ErrOpenState and the service keeps serving from the last
// loaded snapshot.
//
// The breaker uses real time for its interval and timeout bookkeeping.
// Tests exercise state transitions through the failure threshold, not
// through timers.
type ResilientSource struct {
	source recommend.InteractionSource
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

// NewResilientSource wraps source with a circuit breaker configured
// from cfg. The breaker opens after cfg.FailureThreshold consecutive
// failures and probes half-open after cfg.Timeout.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func NewResilientSource(source recommend.InteractionSource, cfg config.BreakerConfig, logger zerolog.Logger) *ResilientSource {
	const cbName = "interaction-store"

	componentLogger := logger.With().Str("component", "breaker").Logger()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= cfg.FailureThreshold
			if shouldTrip {
				componentLogger.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Info().
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	})

	return &ResilientSource{
		source: source,
		cb:     cb,
		name:   cbName,
		logger: componentLogger,
	}
}

// FetchInteractions fetches interactions with circuit breaker protection.
func (rs *ResilientSource) FetchInteractions(ctx context.Context, f recommend.Filters) ([]recommend.Interaction, error) {
	return castResult[[]recommend.Interaction](rs.execute(func() (any, error) {
		return rs.source.FetchInteractions(ctx, f)
	}))
}

// FetchItemPopularity fetches popularity counts with circuit breaker protection.
func (rs *ResilientSource) FetchItemPopularity(ctx context.Context) (map[int]int, error) {
	return castResult[map[int]int](rs.execute(func() (any, error) {
		return rs.source.FetchItemPopularity(ctx)
	}))
}

// State returns the current breaker state.
func (rs *ResilientSource) State() gobreaker.State {
	return rs.cb.State()
}

// execute runs a store read through the breaker and records the outcome.
func (rs *ResilientSource) execute(fn func() (any, error)) (any, error) {
	result, err := rs.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(rs.name, "rejected").Inc()
			rs.logger.Warn().Err(err).Msg("store read rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(rs.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(rs.name, "success").Inc()
	return result, nil
}

// castResult type-asserts a breaker result. A failed assertion means
// execute was wired to the wrong fetch function.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts a breaker state to its gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts a breaker state to its log label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Interface compliance.
var _ recommend.InteractionSource = (*ResilientSource)(nil)
