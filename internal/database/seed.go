// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tmarkell/vicinus/internal/recommend"
)

// SeedMockData populates the store with a synthetic interaction set.
// Intended for development and CI only. A store that already holds
// interactions is left untouched.
func (db *DB) SeedMockData(ctx context.Context) error {
	count, err := db.CountInteractions(ctx)
	if err != nil {
		return fmt.Errorf("check existing data: %w", err)
	}
	if count > 0 {
		db.logger.Info().Int64("interactions", count).Msg("store already has data, skipping mock seed")
		return nil
	}

	const (
		numUsers        = 25
		numInteractions = 1500
		daysOfHistory   = 45
	)

	// Mock catalog. Item IDs are 1-based slice positions.
	catalog := []struct {
		title    string
		category string
	}{
		{"The Last Signal", "scifi"},
		{"Midnight Express Lane", "thriller"},
		{"Papercut Symphony", "drama"},
		{"Glacier Season", "documentary"},
		{"The Borrowed Coast", "drama"},
		{"Static Bloom", "scifi"},
		{"Hall of Small Mirrors", "thriller"},
		{"Weekend Cartographers", "comedy"},
		{"The Salt Archive", "documentary"},
		{"Orbit Decay", "scifi"},
		{"A Quieter Engine", "drama"},
		{"The Third Basement", "horror"},
		{"Pocket Universe", "animation"},
		{"Harbor Lights Forever", "romance"},
		{"The Apiary Method", "documentary"},
		{"Copper Teeth", "horror"},
		{"Runway Nineteen", "thriller"},
		{"The Understudy's Understudy", "comedy"},
		{"Driftwood Letters", "romance"},
		{"Neon Harvest", "scifi"},
		{"The Folded City", "animation"},
		{"Second Winter", "drama"},
		{"Clockwork Sparrow", "animation"},
		{"The Loud Quiet", "comedy"},
		{"Meridian Falls", "thriller"},
		{"Ashes of the Orchard", "drama"},
		{"The Shallow Deep", "documentary"},
		{"Paper Lanterns at Noon", "romance"},
		{"Terminal Bloom", "scifi"},
		{"The Cartographer's Daughter", "drama"},
		{"Rust and Honey", "documentary"},
		{"The Eleventh Floor", "horror"},
		{"Signal to Noise", "thriller"},
		{"Borrowed Thunder", "comedy"},
		{"The Glass Orchard", "drama"},
		{"Low Tide Kingdom", "animation"},
		{"The Long Intermission", "comedy"},
		{"Violet Protocol", "scifi"},
		{"The Winter Accountant", "thriller"},
		{"Sunfish Boulevard", "romance"},
	}

	db.logger.Info().
		Int("users", numUsers).
		Int("items", len(catalog)).
		Int("interactions", numInteractions).
		Msg("seeding interaction store with mock data")

	items := make([]recommend.ItemDetail, len(catalog))
	for i, entry := range catalog {
		items[i] = recommend.ItemDetail{
			ID:       i + 1,
			Title:    entry.title,
			Category: entry.category,
		}
	}
	if err := db.UpsertItems(ctx, items); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	//nolint:gosec // math/rand is fine for mock data generation
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	startDate := time.Now().UTC().AddDate(0, 0, -daysOfHistory)

	interactions := make([]recommend.Interaction, 0, numInteractions)
	for i := 0; i < numInteractions; i++ {
		// Bias a third of the draws toward a small set of hits so
		// popularity and co-occurrence have visible structure.
		var itemID int
		if rng.Intn(3) == 0 {
			itemID = 1 + rng.Intn(8)
		} else {
			itemID = 1 + rng.Intn(len(catalog))
		}

		occurredAt := startDate.
			AddDate(0, 0, rng.Intn(daysOfHistory)).
			Add(time.Duration(rng.Intn(24)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute)

		interactions = append(interactions, recommend.Interaction{
			UserID:    1 + rng.Intn(numUsers),
			ItemID:    itemID,
			EventType: mockEventType(rng),
			Timestamp: occurredAt,
		})
	}

	inserted, err := db.InsertInteractions(ctx, interactions)
	if err != nil {
		return fmt.Errorf("seed interactions: %w", err)
	}

	db.logger.Info().
		Int("interactions", inserted).
		Int("items", len(items)).
		Int("days", daysOfHistory).
		Msg("mock data seeded")

	return nil
}

// mockEventType draws an event type with views dominating.
func mockEventType(rng *rand.Rand) string {
	switch roll := rng.Intn(10); {
	case roll < 7:
		return "view"
	case roll < 9:
		return "purchase"
	default:
		return "rating"
	}
}
