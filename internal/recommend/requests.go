// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import (
	"fmt"

	"github.com/tmarkell/vicinus/internal/validation"
)

// Request describes a single-user recommendation call.
type Request struct {
	// UserID is the user to recommend for.
	UserID int `json:"user_id" validate:"required,min=1"`

	// Algorithm selects the strategy by canonical name or alias. Empty
	// uses the configured default.
	Algorithm string `json:"algorithm,omitempty"`

	// K is the number of items to return. Zero uses the configured
	// default; values outside [1, max_k] are rejected.
	K int `json:"k,omitempty" validate:"omitempty,min=1"`

	// FilterInteracted excludes items the user already interacted with.
	FilterInteracted bool `json:"filter_interacted,omitempty"`

	// WithDetails enriches results with item metadata when a
	// DetailSource is configured.
	WithDetails bool `json:"with_details,omitempty"`
}

// Validate checks static request constraints. Bounds that depend on service
// configuration (k against max_k, algorithm existence) are enforced by the
// service.
func (r *Request) Validate() error {
	if err := validation.ValidateStruct(r); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidParameter)
	}
	return nil
}

// Validate checks training parameter constraints.
func (p *TrainParams) Validate() error {
	if err := validation.ValidateStruct(p); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidParameter)
	}
	return nil
}
