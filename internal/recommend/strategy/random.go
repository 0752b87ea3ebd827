// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package strategy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/tmarkell/vicinus/internal/recommend"
)

// RandomConfig configures the random strategy.
type RandomConfig struct {
	// Seed fixes the random source for reproducible output. Zero seeds
	// from the clock.
	Seed int64
}

// Random recommends a uniform sample of the item pool. It needs no history
// and no training, which makes it the terminal entry of the fallback chain:
// any user gets a result as long as the store holds at least one item.
type Random struct {
	BaseStrategy

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewRandom constructs the random strategy.
func NewRandom(cfg RandomConfig) *Random {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{
		BaseStrategy: newBaseStrategy("random"),
		rng:          rand.New(rand.NewSource(seed)), //nolint:gosec // math/rand is fine for recommendation sampling
	}
}

// Recommend returns up to opts.K randomly chosen item ids.
func (r *Random) Recommend(ctx context.Context, userID int, opts recommend.Options) ([]int, error) {
	items, err := r.RecommendWithScores(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return itemIDs(items), nil
}

// RecommendWithScores samples the pool without replacement. Every pick
// carries the uniform score 1.0 since random assigns no preference.
func (r *Random) RecommendWithScores(ctx context.Context, userID int, opts recommend.Options) ([]recommend.ScoredItem, error) {
	if err := validateK(opts.K); err != nil {
		return nil, err
	}
	if contextCancelled(ctx) {
		return nil, ctx.Err()
	}

	ds := r.snapshot()
	if ds == nil {
		return nil, nil
	}

	// Items returns a fresh slice, so shuffling in place is safe.
	pool := ds.Items()
	if opts.FilterInteracted {
		pool = withoutItems(pool, ds.UserItems[userID])
	}
	if len(pool) == 0 {
		return nil, nil
	}

	r.rngMu.Lock()
	r.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	r.rngMu.Unlock()

	k := min(opts.K, len(pool))
	items := make([]recommend.ScoredItem, k)
	for i := 0; i < k; i++ {
		items[i] = recommend.ScoredItem{ItemID: pool[i], Score: 1.0, Rank: i + 1}
	}
	return items, nil
}

// withoutItems filters the exclude list out of pool in place.
func withoutItems(pool, exclude []int) []int {
	if len(exclude) == 0 {
		return pool
	}
	skip := make(map[int]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	kept := pool[:0]
	for _, id := range pool {
		if _, ok := skip[id]; !ok {
			kept = append(kept, id)
		}
	}
	return kept
}
