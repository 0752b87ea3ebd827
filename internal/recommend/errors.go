// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import "errors"

// Sentinel errors for the recommendation domain. Callers test with errors.Is;
// producers wrap with fmt.Errorf("...: %w", Err...) to attach context.
var (
	// ErrNotTrained indicates a strategy was asked to serve before a model
	// was trained or loaded from an artifact.
	ErrNotTrained = errors.New("model not trained")

	// ErrNoHistory indicates the user has no interaction history, so a
	// personalized strategy cannot score candidates.
	ErrNoHistory = errors.New("no interaction history")

	// ErrInsufficientData indicates training was attempted with too little
	// data to produce a usable model. A previously persisted artifact is
	// left untouched.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrInvalidParameter indicates a caller-supplied parameter is out of
	// range or references an unknown algorithm. Never triggers fallback.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrArtifactCorrupt indicates a persisted model failed checksum
	// verification or could not be decoded.
	ErrArtifactCorrupt = errors.New("artifact corrupt")

	// ErrVersionMismatch indicates a persisted model was written with an
	// incompatible format version.
	ErrVersionMismatch = errors.New("artifact format version mismatch")

	// ErrTrainingInProgress indicates a training run was rejected because
	// another run is already in flight.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrExhausted indicates every strategy in the fallback chain returned
	// an empty result.
	ErrExhausted = errors.New("fallback chain exhausted")
)
