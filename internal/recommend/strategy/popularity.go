// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package strategy

import (
	"context"
	"sort"

	"github.com/tmarkell/vicinus/internal/recommend"
)

// Popularity recommends globally popular items. The ranking is precomputed
// once per snapshot: interaction count descending, item id ascending as the
// tie-break, so equal counts always serve in the same order.
type Popularity struct {
	BaseStrategy

	// ranked holds the full ordering with scores set to raw interaction
	// counts. Guarded by the BaseStrategy mutex.
	ranked []recommend.ScoredItem
}

// NewPopularity constructs the popularity strategy.
func NewPopularity() *Popularity {
	return &Popularity{BaseStrategy: newBaseStrategy("popularity")}
}

// SetDataset publishes a snapshot and rebuilds the ranking.
func (p *Popularity) SetDataset(ds *recommend.Dataset) {
	p.mu.Lock()
	p.ds = ds
	p.rebuildLocked()
	p.mu.Unlock()
}

// rebuildLocked recomputes the ranking. Callers must hold mu.
func (p *Popularity) rebuildLocked() {
	if p.ds == nil {
		p.ranked = nil
		return
	}
	ranked := make([]recommend.ScoredItem, 0, len(p.ds.Popularity))
	for id, count := range p.ds.Popularity {
		ranked = append(ranked, recommend.ScoredItem{ItemID: id, Score: float64(count)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ItemID < ranked[j].ItemID
	})
	p.ranked = ranked
}

// Recommend returns the top item ids by popularity.
func (p *Popularity) Recommend(ctx context.Context, userID int, opts recommend.Options) ([]int, error) {
	items, err := p.RecommendWithScores(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return itemIDs(items), nil
}

// RecommendWithScores walks the precomputed ranking, skipping the user's
// interacted items when filtering. Skipped slots backfill from further down
// the order, so the result stays at k whenever enough items remain.
func (p *Popularity) RecommendWithScores(ctx context.Context, userID int, opts recommend.Options) ([]recommend.ScoredItem, error) {
	if err := validateK(opts.K); err != nil {
		return nil, err
	}
	if contextCancelled(ctx) {
		return nil, ctx.Err()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	var interacted map[int]struct{}
	if opts.FilterInteracted && p.ds != nil {
		profile := p.ds.UserItems[userID]
		interacted = make(map[int]struct{}, len(profile))
		for _, id := range profile {
			interacted[id] = struct{}{}
		}
	}

	items := make([]recommend.ScoredItem, 0, opts.K)
	for _, entry := range p.ranked {
		if _, skip := interacted[entry.ItemID]; skip {
			continue
		}
		entry.Rank = len(items) + 1
		items = append(items, entry)
		if len(items) == opts.K {
			break
		}
	}
	return items, nil
}
