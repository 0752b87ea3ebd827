// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package strategy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/recommend"
	"github.com/tmarkell/vicinus/internal/recommend/artifact"
)

// Similarity measures supported by ItemCF.
const (
	MethodCosine  = "cosine"
	MethodJaccard = "jaccard"
)

// ItemCFConfig holds the training defaults for item-based collaborative
// filtering. TrainParams override these per run; zero fields fall back to
// the configured value.
type ItemCFConfig struct {
	// MinInteractions excludes items with fewer total interactions
	// before pairing.
	MinInteractions int

	// TopN bounds the neighbor list kept per item.
	TopN int

	// MinSimilarity drops neighbor pairs scoring below this threshold.
	MinSimilarity float64

	// Method selects the similarity measure: cosine or jaccard.
	Method string

	// KeepVersions bounds how many artifact versions survive pruning
	// after a successful training run.
	KeepVersions int
}

// DefaultItemCFConfig returns the stock training parameters.
func DefaultItemCFConfig() ItemCFConfig {
	return ItemCFConfig{
		MinInteractions: 1,
		TopN:            50,
		MinSimilarity:   0.1,
		Method:          MethodCosine,
		KeepVersions:    3,
	}
}

// neighborModel is the serving structure and the artifact payload: for each
// item, its most similar items ordered by score descending with item id
// ascending as the tie-break.
type neighborModel struct {
	Neighbors map[int][]recommend.Neighbor
}

// ItemCF implements item-based collaborative filtering. Training counts
// item co-occurrence across user profiles and converts the counts to a
// pruned similarity model; serving aggregates neighbor similarities over
// the user's interacted items.
//
// The model is persisted through the artifact store and loaded lazily on
// first use, so a restarted process serves without retraining.
type ItemCF struct {
	BaseStrategy

	cfg       ItemCFConfig
	artifacts *artifact.Store
	logger    zerolog.Logger

	// modelMu guards the serving model independently of the dataset
	// snapshot lock.
	modelMu sync.RWMutex
	model   *neighborModel
	meta    *artifact.Metadata
}

// NewItemCF constructs the strategy. Zero config fields take their
// defaults.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func NewItemCF(cfg ItemCFConfig, artifacts *artifact.Store, logger zerolog.Logger) *ItemCF {
	def := DefaultItemCFConfig()
	if cfg.MinInteractions < 1 {
		cfg.MinInteractions = def.MinInteractions
	}
	if cfg.TopN < 1 {
		cfg.TopN = def.TopN
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = def.MinSimilarity
	}
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.KeepVersions < 1 {
		cfg.KeepVersions = def.KeepVersions
	}
	return &ItemCF{
		BaseStrategy: newBaseStrategy("itemcf"),
		cfg:          cfg,
		artifacts:    artifacts,
		logger:       logger.With().Str("component", "itemcf").Logger(),
	}
}

// resolveParams merges caller overrides onto the configured defaults and
// validates the result.
func (s *ItemCF) resolveParams(params recommend.TrainParams) (recommend.TrainParams, error) {
	if params.MinInteractions == 0 {
		params.MinInteractions = s.cfg.MinInteractions
	}
	if params.TopN == 0 {
		params.TopN = s.cfg.TopN
	}
	if params.MinSimilarity == 0 {
		params.MinSimilarity = s.cfg.MinSimilarity
	}
	if params.Method == "" {
		params.Method = s.cfg.Method
	}

	if params.Method != MethodCosine && params.Method != MethodJaccard {
		return params, fmt.Errorf("unknown similarity method %q: %w", params.Method, recommend.ErrInvalidParameter)
	}
	if params.MinInteractions < 1 {
		return params, fmt.Errorf("min interactions must be at least 1, got %d: %w",
			params.MinInteractions, recommend.ErrInvalidParameter)
	}
	if params.TopN < 1 {
		return params, fmt.Errorf("top n must be at least 1, got %d: %w",
			params.TopN, recommend.ErrInvalidParameter)
	}
	if params.MinSimilarity < 0 || params.MinSimilarity > 1 {
		return params, fmt.Errorf("min similarity must be in [0, 1], got %g: %w",
			params.MinSimilarity, recommend.ErrInvalidParameter)
	}
	return params, nil
}

// Train rebuilds the neighbor model from the current dataset snapshot,
// persists it as a new artifact version and swaps it in for serving.
func (s *ItemCF) Train(ctx context.Context, params recommend.TrainParams) (*recommend.TrainStats, error) {
	start := time.Now()

	params, err := s.resolveParams(params)
	if err != nil {
		return nil, err
	}

	ds := s.snapshot()
	if ds == nil {
		return nil, fmt.Errorf("no dataset loaded: %w", recommend.ErrInsufficientData)
	}

	filtered := recommend.FilterByMinInteractions(ds, params.MinInteractions)
	if filtered.ItemCount() < 2 {
		return nil, fmt.Errorf("%d items with at least %d interactions, need 2: %w",
			filtered.ItemCount(), params.MinInteractions, recommend.ErrInsufficientData)
	}

	co, err := countCoOccurrences(ctx, filtered)
	if err != nil {
		return nil, err
	}

	model, neighborCount, err := buildNeighbors(ctx, filtered, co, params)
	if err != nil {
		return nil, err
	}

	stats := &recommend.TrainStats{
		Users:        filtered.UserCount(),
		Items:        filtered.ItemCount(),
		Interactions: filtered.InteractionCount(),
		Neighbors:    neighborCount,
	}

	meta, err := s.artifacts.Save(ctx, artifact.Metadata{
		Algorithm:       s.Name(),
		Method:          params.Method,
		MinSimilarity:   params.MinSimilarity,
		TopN:            params.TopN,
		MinInteractions: params.MinInteractions,
		Users:           stats.Users,
		Items:           stats.Items,
		Interactions:    stats.Interactions,
		Neighbors:       stats.Neighbors,
		TrainedAt:       time.Now().UTC(),
	}, model)
	if err != nil {
		return nil, fmt.Errorf("persist model: %w", err)
	}

	if err := s.artifacts.Prune(ctx, s.Name(), s.cfg.KeepVersions); err != nil {
		s.logger.Warn().Err(err).Msg("artifact prune failed")
	}

	s.modelMu.Lock()
	s.model = model
	s.meta = &meta
	s.modelMu.Unlock()

	stats.Duration = time.Since(start)
	s.logger.Debug().
		Int("version", meta.Version).
		Str("method", params.Method).
		Int("items_with_neighbors", len(model.Neighbors)).
		Int("neighbors", neighborCount).
		Dur("elapsed", stats.Duration).
		Msg("neighbor model rebuilt")
	return stats, nil
}

// countCoOccurrences counts unordered item pairs across user profiles.
// Profiles are deduplicated and sorted, so each user contributes a pair at
// most once and the smaller id always keys the outer map.
func countCoOccurrences(ctx context.Context, ds *recommend.Dataset) (map[int]map[int]int, error) {
	co := make(map[int]map[int]int)
	for _, items := range ds.UserItems {
		if contextCancelled(ctx) {
			return nil, ctx.Err()
		}
		for i := 0; i < len(items); i++ {
			row := co[items[i]]
			for j := i + 1; j < len(items); j++ {
				if row == nil {
					row = make(map[int]int)
					co[items[i]] = row
				}
				row[items[j]]++
			}
		}
	}
	return co, nil
}

// buildNeighbors converts pair counts into pruned, sorted neighbor lists.
// Similarity is symmetric, so each qualifying pair lands on both items. The
// returned count sums the kept directed edges.
func buildNeighbors(ctx context.Context, ds *recommend.Dataset, co map[int]map[int]int, params recommend.TrainParams) (*neighborModel, int, error) {
	similarity := cosineSimilarity
	if params.Method == MethodJaccard {
		similarity = jaccardSimilarity
	}

	neighbors := make(map[int][]recommend.Neighbor)
	for a, row := range co {
		if contextCancelled(ctx) {
			return nil, 0, ctx.Err()
		}
		freqA := ds.Freq(a)
		for b, count := range row {
			score := similarity(count, freqA, ds.Freq(b))
			if score < params.MinSimilarity {
				continue
			}
			neighbors[a] = append(neighbors[a], recommend.Neighbor{ID: b, Score: score})
			neighbors[b] = append(neighbors[b], recommend.Neighbor{ID: a, Score: score})
		}
	}

	total := 0
	for id, list := range neighbors {
		sortNeighbors(list)
		if len(list) > params.TopN {
			list = list[:params.TopN]
		}
		neighbors[id] = list
		total += len(list)
	}
	return &neighborModel{Neighbors: neighbors}, total, nil
}

// sortNeighbors orders by score descending, item id ascending.
func sortNeighbors(list []recommend.Neighbor) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].ID < list[j].ID
	})
}

// ensureModel returns the serving model, loading the latest artifact on
// first use. A missing artifact simply means the strategy is untrained;
// corrupt or format-mismatched artifacts are logged as distinct
// diagnostics but also surface as ErrNotTrained so the service can degrade
// down the fallback chain.
func (s *ItemCF) ensureModel(ctx context.Context) (*neighborModel, error) {
	s.modelMu.RLock()
	model := s.model
	s.modelMu.RUnlock()
	if model != nil {
		return model, nil
	}

	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	if s.model != nil {
		return s.model, nil
	}

	var loaded neighborModel
	meta, err := s.artifacts.LoadLatest(ctx, s.Name(), &loaded)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Nothing persisted yet. Keep quiet: every request before
			// the first training run takes this path.
		case errors.Is(err, recommend.ErrVersionMismatch):
			s.logger.Warn().Err(err).Msg("artifact format mismatch, retrain required")
		case errors.Is(err, recommend.ErrArtifactCorrupt):
			s.logger.Warn().Err(err).Msg("artifact corrupt, retrain required")
		default:
			s.logger.Warn().Err(err).Msg("artifact load failed")
		}
		return nil, fmt.Errorf("itemcf model unavailable: %w", recommend.ErrNotTrained)
	}

	s.model = &loaded
	s.meta = meta
	s.logger.Info().
		Int("version", meta.Version).
		Int("items_with_neighbors", len(loaded.Neighbors)).
		Time("trained_at", meta.TrainedAt).
		Msg("neighbor model loaded from artifact")
	return s.model, nil
}

// Recommend returns the top item ids by aggregated neighbor similarity.
func (s *ItemCF) Recommend(ctx context.Context, userID int, opts recommend.Options) ([]int, error) {
	items, err := s.RecommendWithScores(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return itemIDs(items), nil
}

// RecommendWithScores scores candidates by summing, over the user's
// interacted items, the similarity of each neighbor. Interacted items are
// never candidates, so FilterInteracted holds by construction. An empty
// result with nil error means the model holds no neighbors for this
// profile.
func (s *ItemCF) RecommendWithScores(ctx context.Context, userID int, opts recommend.Options) ([]recommend.ScoredItem, error) {
	if err := validateK(opts.K); err != nil {
		return nil, err
	}

	model, err := s.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	ds := s.snapshot()
	var profile []int
	if ds != nil {
		profile = ds.UserItems[userID]
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, recommend.ErrNoHistory)
	}

	seeds := make(map[int]struct{}, len(profile))
	for _, id := range profile {
		seeds[id] = struct{}{}
	}

	scores := make(map[int]float64)
	for _, seed := range profile {
		if contextCancelled(ctx) {
			return nil, ctx.Err()
		}
		for _, nb := range model.Neighbors[seed] {
			if _, interacted := seeds[nb.ID]; interacted {
				continue
			}
			scores[nb.ID] += nb.Score
		}
	}

	return rankItems(scores, opts.K), nil
}

// SimilarItems returns the trained neighbor list for one item. The list is
// already pruned and ordered from training.
func (s *ItemCF) SimilarItems(ctx context.Context, itemID, k int) ([]recommend.ScoredItem, error) {
	if itemID < 1 {
		return nil, fmt.Errorf("item id must be positive, got %d: %w", itemID, recommend.ErrInvalidParameter)
	}
	if err := validateK(k); err != nil {
		return nil, err
	}

	model, err := s.ensureModel(ctx)
	if err != nil {
		return nil, err
	}

	list := model.Neighbors[itemID]
	if len(list) > k {
		list = list[:k]
	}
	items := make([]recommend.ScoredItem, len(list))
	for i, nb := range list {
		items[i] = recommend.ScoredItem{ItemID: nb.ID, Score: nb.Score, Rank: i + 1}
	}
	return items, nil
}

// IsTrained reports whether a model is in memory or persisted on disk.
func (s *ItemCF) IsTrained() bool {
	s.modelMu.RLock()
	loaded := s.model != nil
	s.modelMu.RUnlock()
	if loaded {
		return true
	}
	_, ok := s.artifacts.LatestVersion(s.Name())
	return ok
}

// LastTrainedAt returns the training time of the active model, or the zero
// time when nothing is loaded.
func (s *ItemCF) LastTrainedAt() time.Time {
	s.modelMu.RLock()
	defer s.modelMu.RUnlock()
	if s.meta == nil {
		return time.Time{}
	}
	return s.meta.TrainedAt
}
