// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package recommend implements the recommendation service core: the data
// loader that shapes raw interactions into serving datasets, the strategy
// registry with its fallback chain, and training orchestration.
//
// # Architecture
//
// The package is organized around three layers:
//
//   - Loader: reads interactions through the InteractionSource interface and
//     builds immutable Dataset snapshots (user profiles, item audiences,
//     popularity counts).
//   - Strategy: the pluggable recommendation interface. Implementations live
//     in the strategy subpackage; trained models persist through the artifact
//     subpackage.
//   - Service: resolves algorithm names (including aliases), lazily constructs
//     one strategy instance per canonical name, degrades through the fallback
//     chain when a strategy cannot answer, and serializes training runs.
//
// # Usage
//
//	loader := recommend.NewLoader(store, recommend.Filters{}, logger)
//	svc := recommend.NewService(recommend.DefaultServiceConfig(), loader, logger)
//	strategy.RegisterDefaults(svc, strategy.DefaultConfig(), artifacts, logger)
//
//	result, err := svc.RecommendWithScores(ctx, recommend.Request{UserID: 42, K: 10})
//
// # Error Taxonomy
//
// All failure modes surface as sentinel errors (ErrNotTrained, ErrNoHistory,
// ErrInsufficientData, ErrInvalidParameter, ErrArtifactCorrupt,
// ErrVersionMismatch, ErrTrainingInProgress, ErrExhausted) wrapped with
// context via fmt.Errorf. Callers dispatch with errors.Is.
//
// # Concurrency
//
// Dataset snapshots are immutable once published. The Service guards its
// registry and instance cache with a RWMutex and serializes training with a
// TryLock. Strategies guard their own state; see the strategy subpackage.
package recommend
