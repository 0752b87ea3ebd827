// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/metrics"
)

// Loader shapes raw interactions into Dataset snapshots and caches the item
// popularity table. It is safe for concurrent use.
type Loader struct {
	source  InteractionSource
	filters Filters
	logger  zerolog.Logger

	mu       sync.Mutex
	pop      map[int]int
	popValid bool
	version  int
}

// NewLoader creates a loader reading through the given source. The filters
// apply to every Load call.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLoader(source InteractionSource, filters Filters, logger zerolog.Logger) *Loader {
	return &Loader{
		source:  source,
		filters: filters,
		logger:  logger.With().Str("component", "loader").Logger(),
	}
}

// Load fetches interactions and builds a fresh snapshot. An empty store
// yields an empty, non-nil Dataset.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()

	interactions, err := l.source.FetchInteractions(ctx, l.filters)
	if err != nil {
		return nil, fmt.Errorf("fetch interactions: %w", err)
	}

	ds := NewDataset(interactions)

	l.mu.Lock()
	l.version++
	ds.Version = l.version
	l.mu.Unlock()

	metrics.SetDatasetStats(ds.UserCount(), ds.ItemCount())

	l.logger.Info().
		Int("version", ds.Version).
		Int("interactions", len(interactions)).
		Int("users", ds.UserCount()).
		Int("items", ds.ItemCount()).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")

	return ds, nil
}

// Popularity returns the item popularity table, serving from cache until
// InvalidatePopularity is called. The returned map is a copy.
func (l *Loader) Popularity(ctx context.Context) (map[int]int, error) {
	l.mu.Lock()
	if l.popValid {
		cached := copyCounts(l.pop)
		l.mu.Unlock()
		metrics.PopularityCacheHits.Inc()
		return cached, nil
	}
	l.mu.Unlock()

	metrics.PopularityCacheMisses.Inc()

	pop, err := l.source.FetchItemPopularity(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch item popularity: %w", err)
	}

	l.mu.Lock()
	l.pop = pop
	l.popValid = true
	cached := copyCounts(l.pop)
	l.mu.Unlock()

	l.logger.Debug().Int("items", len(pop)).Msg("popularity cache refreshed")

	return cached, nil
}

// InvalidatePopularity discards the cached popularity table. The next
// Popularity call hits the source. This is the only invalidation trigger;
// there is no TTL.
func (l *Loader) InvalidatePopularity() {
	l.mu.Lock()
	l.popValid = false
	l.pop = nil
	l.mu.Unlock()

	l.logger.Debug().Msg("popularity cache invalidated")
}

// copyCounts returns a shallow copy of a count map.
func copyCounts(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// FilterByMinInteractions derives a snapshot containing only items with at
// least minInteractions total interactions. Users left without any
// qualifying items are dropped. The input snapshot is not modified.
func FilterByMinInteractions(ds *Dataset, minInteractions int) *Dataset {
	if minInteractions <= 1 {
		return ds
	}

	itemUsers := make(map[int][]int)
	popularity := make(map[int]int)
	for itemID, users := range ds.ItemUsers {
		if ds.Popularity[itemID] < minInteractions {
			continue
		}
		itemUsers[itemID] = users
		popularity[itemID] = ds.Popularity[itemID]
	}

	userItems := make(map[int][]int)
	for userID, items := range ds.UserItems {
		kept := make([]int, 0, len(items))
		for _, itemID := range items {
			if _, ok := itemUsers[itemID]; ok {
				kept = append(kept, itemID)
			}
		}
		if len(kept) > 0 {
			userItems[userID] = kept
		}
	}

	return &Dataset{
		UserItems:  userItems,
		ItemUsers:  itemUsers,
		Popularity: popularity,
		Version:    ds.Version,
		LoadedAt:   ds.LoadedAt,
	}
}
