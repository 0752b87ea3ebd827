// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package strategy implements the built-in recommendation strategies:
// random sampling, global popularity and item-based collaborative
// filtering. Strategies are stateless with respect to requests; mutable
// state is limited to the dataset snapshot and, for ItemCF, the trained
// neighbor model.
//
// The package registers nothing on import. Callers wire the built-ins
// explicitly:
//
//	err := strategy.RegisterDefaults(svc, strategy.DefaultConfig(), artifacts, logger)
package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/recommend"
	"github.com/tmarkell/vicinus/internal/recommend/artifact"
)

// Config bundles the tunables of the built-in strategies.
type Config struct {
	ItemCF ItemCFConfig
	Random RandomConfig
}

// DefaultConfig returns the stock strategy configuration.
func DefaultConfig() Config {
	return Config{
		ItemCF: DefaultItemCFConfig(),
		Random: RandomConfig{},
	}
}

func (c Config) validate() error {
	if c.ItemCF.Method != "" && c.ItemCF.Method != MethodCosine && c.ItemCF.Method != MethodJaccard {
		return fmt.Errorf("unknown similarity method %q: %w", c.ItemCF.Method, recommend.ErrInvalidParameter)
	}
	return nil
}

// RegisterDefaults registers the built-in strategies with the service under
// their canonical names and historical aliases. The artifact store is only
// used by ItemCF; it must not be nil.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func RegisterDefaults(svc *recommend.Service, cfg Config, artifacts *artifact.Store, logger zerolog.Logger) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	if err := svc.RegisterStrategy("random",
		func() recommend.Strategy { return NewRandom(cfg.Random) },
		recommend.AlgorithmInfo{
			Description:      "uniform random sample of the item pool",
			Personalized:     false,
			RequiresTraining: false,
		}); err != nil {
		return fmt.Errorf("register random: %w", err)
	}

	if err := svc.RegisterStrategy("popularity",
		func() recommend.Strategy { return NewPopularity() },
		recommend.AlgorithmInfo{
			Description:      "most popular items by interaction count",
			Personalized:     false,
			RequiresTraining: false,
			Aliases:          []string{"popular", "mostpopular"},
		}); err != nil {
		return fmt.Errorf("register popularity: %w", err)
	}

	if err := svc.RegisterStrategy("itemcf",
		func() recommend.Strategy { return NewItemCF(cfg.ItemCF, artifacts, logger) },
		recommend.AlgorithmInfo{
			Description:      "item-based collaborative filtering over co-occurrence similarity",
			Personalized:     true,
			RequiresTraining: true,
			Aliases:          []string{"item_cf"},
		}); err != nil {
		return fmt.Errorf("register itemcf: %w", err)
	}

	return nil
}

// BaseStrategy carries the name and the dataset snapshot shared by every
// built-in strategy. Snapshots are replaced wholesale and never mutated, so
// readers only need the pointer.
type BaseStrategy struct {
	name string

	mu sync.RWMutex
	ds *recommend.Dataset
}

func newBaseStrategy(name string) BaseStrategy {
	return BaseStrategy{name: name}
}

// Name returns the canonical strategy name.
func (b *BaseStrategy) Name() string { return b.name }

// SetDataset publishes a new snapshot.
func (b *BaseStrategy) SetDataset(ds *recommend.Dataset) {
	b.mu.Lock()
	b.ds = ds
	b.mu.Unlock()
}

// snapshot returns the current dataset, which may be nil before the first
// refresh.
func (b *BaseStrategy) snapshot() *recommend.Dataset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ds
}

// validateK rejects non-positive result sizes. The service enforces the
// configured maximum before delegating, so strategies only guard the lower
// bound.
func validateK(k int) error {
	if k < 1 {
		return fmt.Errorf("k must be at least 1, got %d: %w", k, recommend.ErrInvalidParameter)
	}
	return nil
}

// rankItems orders scores by value descending with item id ascending as the
// tie-break, truncates to k and assigns contiguous 1-based ranks.
func rankItems(scores map[int]float64, k int) []recommend.ScoredItem {
	items := make([]recommend.ScoredItem, 0, len(scores))
	for id, score := range scores {
		items = append(items, recommend.ScoredItem{ItemID: id, Score: score})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ItemID < items[j].ItemID
	})
	if len(items) > k {
		items = items[:k]
	}
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}

// itemIDs projects ranked items onto their identifiers.
func itemIDs(items []recommend.ScoredItem) []int {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ItemID
	}
	return ids
}

// cosineSimilarity is co / sqrt(freqA * freqB).
func cosineSimilarity(co, freqA, freqB int) float64 {
	if co == 0 || freqA == 0 || freqB == 0 {
		return 0
	}
	return float64(co) / math.Sqrt(float64(freqA)*float64(freqB))
}

// jaccardSimilarity is co / (freqA + freqB - co), the overlap of the two
// user sets relative to their union.
func jaccardSimilarity(co, freqA, freqB int) float64 {
	union := freqA + freqB - co
	if union <= 0 {
		return 0
	}
	return float64(co) / float64(union)
}

// contextCancelled reports whether ctx is done without blocking.
func contextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

var (
	_ recommend.Strategy         = (*Random)(nil)
	_ recommend.Strategy         = (*Popularity)(nil)
	_ recommend.Strategy         = (*ItemCF)(nil)
	_ recommend.Trainable        = (*ItemCF)(nil)
	_ recommend.NeighborProvider = (*ItemCF)(nil)
)
