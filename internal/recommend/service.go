// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/metrics"
)

// fallbackOrder is the fixed degradation chain. The requested algorithm is
// tried first, then these in order, skipping the entry already tried.
var fallbackOrder = []string{"itemcf", "popularity", "random"}

// similarityAlgorithm is the strategy backing the similar-items operation.
const similarityAlgorithm = "itemcf"

// ServiceConfig holds service-level tunables.
type ServiceConfig struct {
	// DefaultAlgorithm is used when a request names no algorithm. May be
	// an alias.
	DefaultAlgorithm string

	// DefaultK is used when a request asks for zero items.
	DefaultK int

	// MaxK caps the number of items per request. Larger requests are
	// rejected, not clamped.
	MaxK int
}

// DefaultServiceConfig returns the stock service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultAlgorithm: "popular",
		DefaultK:         10,
		MaxK:             100,
	}
}

// Factory constructs a strategy instance. Called at most once per canonical
// name per service.
type Factory func() Strategy

// registryEntry pairs a factory with its static metadata.
type registryEntry struct {
	factory Factory
	info    AlgorithmInfo
}

// Service resolves algorithm names, caches strategy instances, degrades
// through the fallback chain, and orchestrates training. It is safe for
// concurrent use.
type Service struct {
	cfg     ServiceConfig
	loader  *Loader
	details DetailSource
	logger  zerolog.Logger

	mu        sync.RWMutex
	registry  map[string]*registryEntry
	aliases   map[string]string
	instances map[string]Strategy
	dataset   *Dataset

	// trainMu serializes training runs. TryLock so concurrent callers
	// fail fast instead of queueing.
	trainMu sync.Mutex
}

// NewService creates a recommendation service. Strategies are registered
// separately; see strategy.RegisterDefaults for the built-ins.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(cfg ServiceConfig, loader *Loader, logger zerolog.Logger) *Service {
	def := DefaultServiceConfig()
	if cfg.DefaultAlgorithm == "" {
		cfg.DefaultAlgorithm = def.DefaultAlgorithm
	}
	if cfg.DefaultK < 1 {
		cfg.DefaultK = def.DefaultK
	}
	if cfg.MaxK < cfg.DefaultK {
		cfg.MaxK = def.MaxK
	}

	return &Service{
		cfg:       cfg,
		loader:    loader,
		logger:    logger.With().Str("component", "service").Logger(),
		registry:  make(map[string]*registryEntry),
		aliases:   make(map[string]string),
		instances: make(map[string]Strategy),
	}
}

// SetDetailSource configures optional item metadata enrichment.
func (s *Service) SetDetailSource(ds DetailSource) {
	s.mu.Lock()
	s.details = ds
	s.mu.Unlock()
}

// RegisterStrategy adds a strategy under its canonical name and aliases.
// Names are case-insensitive. Registering a name or alias twice is an error.
func (s *Service) RegisterStrategy(name string, factory Factory, info AlgorithmInfo) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("algorithm name is empty: %w", ErrInvalidParameter)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for %q: %w", name, ErrInvalidParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNameFreeLocked(name); err != nil {
		return err
	}

	aliases := make([]string, 0, len(info.Aliases))
	for _, alias := range info.Aliases {
		alias = normalizeName(alias)
		if alias == "" || alias == name {
			continue
		}
		if err := s.checkNameFreeLocked(alias); err != nil {
			return err
		}
		aliases = append(aliases, alias)
	}

	info.Name = name
	info.Aliases = aliases
	s.registry[name] = &registryEntry{factory: factory, info: info}
	for _, alias := range aliases {
		s.aliases[alias] = name
	}

	s.logger.Info().
		Str("algorithm", name).
		Strs("aliases", aliases).
		Msg("registered strategy")

	return nil
}

// checkNameFreeLocked verifies a name is neither registered nor an alias.
// Must be called with mu held.
func (s *Service) checkNameFreeLocked(name string) error {
	if _, exists := s.registry[name]; exists {
		return fmt.Errorf("algorithm %q already registered: %w", name, ErrInvalidParameter)
	}
	if canonical, exists := s.aliases[name]; exists {
		return fmt.Errorf("name %q already aliases %q: %w", name, canonical, ErrInvalidParameter)
	}
	return nil
}

// normalizeName canonicalizes an algorithm name for lookup.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// resolve maps a request name (or empty for the default) to a canonical
// registered name.
func (s *Service) resolve(name string) (string, error) {
	name = normalizeName(name)
	if name == "" {
		name = normalizeName(s.cfg.DefaultAlgorithm)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if canonical, ok := s.aliases[name]; ok {
		name = canonical
	}
	if _, ok := s.registry[name]; !ok {
		return "", fmt.Errorf("unknown algorithm %q: %w", name, ErrInvalidParameter)
	}
	return name, nil
}

// resolveK applies the default and enforces bounds. Out-of-range values are
// rejected rather than clamped.
func (s *Service) resolveK(k int) (int, error) {
	if k == 0 {
		return s.cfg.DefaultK, nil
	}
	if k < 1 || k > s.cfg.MaxK {
		return 0, fmt.Errorf("k must be in [1, %d], got %d: %w", s.cfg.MaxK, k, ErrInvalidParameter)
	}
	return k, nil
}

// instance returns the cached strategy for a canonical name, constructing it
// on first use.
func (s *Service) instance(name string) (Strategy, error) {
	s.mu.RLock()
	inst, ok := s.instances[name]
	s.mu.RUnlock()
	if ok {
		return inst, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if inst, ok := s.instances[name]; ok {
		return inst, nil
	}

	entry, ok := s.registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q: %w", name, ErrInvalidParameter)
	}

	inst = entry.factory()
	if s.dataset != nil {
		inst.SetDataset(s.dataset)
	}
	s.instances[name] = inst

	s.logger.Debug().Str("algorithm", name).Msg("strategy instantiated")
	return inst, nil
}

// RefreshData reloads the dataset and publishes the new snapshot to every
// cached strategy instance. The popularity cache is invalidated so the next
// read reflects the same state.
func (s *Service) RefreshData(ctx context.Context) error {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("refresh data: %w", err)
	}

	s.loader.InvalidatePopularity()

	s.mu.Lock()
	s.dataset = ds
	for _, inst := range s.instances {
		inst.SetDataset(ds)
	}
	s.mu.Unlock()

	s.logger.Info().Int("version", ds.Version).Msg("dataset refreshed")
	return nil
}

// DatasetLoaded reports whether a dataset snapshot has been published.
// Readiness probes use this to distinguish a booted process from one
// that can actually serve recommendations.
func (s *Service) DatasetLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset != nil
}

// ensureDataset returns the current snapshot, loading one on first use.
func (s *Service) ensureDataset(ctx context.Context) (*Dataset, error) {
	s.mu.RLock()
	ds := s.dataset
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	if err := s.RefreshData(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ds = s.dataset
	s.mu.RUnlock()
	return ds, nil
}

// Recommend returns up to K recommended item identifiers for the user,
// degrading through the fallback chain when needed.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) Recommend(ctx context.Context, req Request) ([]int, error) {
	res, err := s.recommend(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.IDs(), nil
}

// RecommendWithScores returns scored, ranked recommendations plus metadata
// about which strategy served them.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) RecommendWithScores(ctx context.Context, req Request) (*Result, error) {
	return s.recommend(ctx, req)
}

// recommend runs the fallback chain until a strategy yields a non-empty
// result.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (s *Service) recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	k, err := s.resolveK(req.K)
	if err != nil {
		return nil, err
	}

	requested, err := s.resolve(req.Algorithm)
	if err != nil {
		return nil, err
	}

	if _, err := s.ensureDataset(ctx); err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Int("user_id", req.UserID).
		Str("requested", requested).
		Logger()

	opts := Options{K: k, FilterInteracted: req.FilterInteracted}
	chain := s.fallbackChain(requested)

	var lastErr error
	for i, name := range chain {
		inst, err := s.instance(name)
		if err != nil {
			// Chain member not registered; skip.
			continue
		}

		items, err := inst.RecommendWithScores(ctx, req.UserID, opts)
		switch {
		case err == nil && len(items) > 0:
			res := &Result{
				UserID:    req.UserID,
				Items:     items,
				Requested: requested,
				Algorithm: name,
				Fallback:  name != requested,
			}
			if req.WithDetails {
				s.enrich(ctx, res)
			}

			outcome := "ok"
			if res.Fallback {
				outcome = "fallback"
			}
			metrics.RecordRecommendRequest(name, outcome, time.Since(start))

			logger.Debug().
				Str("algorithm", name).
				Bool("fallback", res.Fallback).
				Int("returned", len(items)).
				Msg("recommendation served")
			return res, nil

		case err == nil:
			// Empty result; degrade, keeping any earlier diagnostic.

		case errors.Is(err, ErrNoHistory), errors.Is(err, ErrNotTrained), errors.Is(err, ErrInsufficientData):
			lastErr = err

		default:
			metrics.RecordRecommendRequest(name, "error", time.Since(start))
			return nil, fmt.Errorf("strategy %s: %w", name, err)
		}

		if i+1 < len(chain) {
			metrics.RecordFallback(name, chain[i+1])
			logger.Debug().
				Str("from", name).
				Str("to", chain[i+1]).
				AnErr("reason", lastErr).
				Msg("falling back")
		}
	}

	metrics.RecordRecommendRequest(requested, "error", time.Since(start))
	if lastErr != nil {
		logger.Warn().Err(lastErr).Msg("all strategies declined")
	}
	return nil, fmt.Errorf("no recommendations for user %d: %w", req.UserID, ErrExhausted)
}

// fallbackChain returns the strategies to try, requested first.
func (s *Service) fallbackChain(requested string) []string {
	chain := make([]string, 0, len(fallbackOrder)+1)
	chain = append(chain, requested)
	for _, name := range fallbackOrder {
		if name != requested {
			chain = append(chain, name)
		}
	}
	return chain
}

// enrich attaches item details to a result. Enrichment is best-effort; a
// failing detail source never fails the recommendation.
func (s *Service) enrich(ctx context.Context, res *Result) {
	s.mu.RLock()
	details := s.details
	s.mu.RUnlock()
	if details == nil {
		return
	}

	found, err := details.GetItemDetails(ctx, res.IDs())
	if err != nil {
		s.logger.Warn().Err(err).Msg("item detail enrichment failed")
		return
	}

	for i := range res.Items {
		if d, ok := found[res.Items[i].ItemID]; ok {
			detail := d
			res.Items[i].Detail = &detail
		}
	}
}

// BatchRecommend generates recommendations for multiple users. Each user is
// isolated: one user's failure or fallback never affects another. Per-user
// failures are recorded in the result's Err field rather than propagated.
func (s *Service) BatchRecommend(ctx context.Context, userIDs []int, algorithm string, k int) (map[int]*Result, error) {
	requested, err := s.resolve(algorithm)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveK(k); err != nil {
		return nil, err
	}

	metrics.BatchRequestsTotal.Inc()
	metrics.BatchUsersProcessed.Observe(float64(len(userIDs)))

	results := make(map[int]*Result, len(userIDs))
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch aborted: %w", err)
		}

		res, err := s.recommend(ctx, Request{UserID: userID, Algorithm: algorithm, K: k})
		if err != nil {
			results[userID] = &Result{UserID: userID, Requested: requested, Err: err}
		} else {
			results[userID] = res
		}
	}

	s.logger.Debug().
		Int("users", len(userIDs)).
		Str("algorithm", requested).
		Msg("batch recommendation complete")

	return results, nil
}

// TrainModel runs one training pass for the named strategy. At most one run
// is in flight per service; concurrent calls fail with
// ErrTrainingInProgress. Strategies that do not train report Success=false
// without error.
func (s *Service) TrainModel(ctx context.Context, algorithm string, params TrainParams) (*TrainResult, error) {
	name, err := s.resolve(algorithm)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if !s.trainMu.TryLock() {
		return nil, fmt.Errorf("train %s: %w", name, ErrTrainingInProgress)
	}
	defer s.trainMu.Unlock()

	runID := uuid.New().String()
	logger := s.logger.With().
		Str("run_id", runID).
		Str("algorithm", name).
		Logger()

	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}

	trainable, ok := inst.(Trainable)
	if !ok {
		logger.Info().Msg("strategy does not require training")
		return &TrainResult{
			Algorithm: name,
			RunID:     runID,
			Success:   false,
			TrainedAt: time.Now(),
		}, nil
	}

	// Train on a fresh snapshot, matching the offline pipeline.
	if err := s.RefreshData(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Info().Msg("training started")

	stats, err := trainable.Train(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrInsufficientData) {
			outcome = "insufficient_data"
		}
		metrics.RecordTrainingRun(name, outcome, elapsed)
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("training failed")
		return nil, fmt.Errorf("train %s: %w", name, err)
	}

	metrics.RecordTrainingRun(name, "ok", elapsed)

	event := logger.Info().Dur("elapsed", elapsed)
	if stats != nil {
		metrics.SetModelStats(stats.Items, stats.Neighbors)
		event = event.
			Int("users", stats.Users).
			Int("items", stats.Items).
			Int("interactions", stats.Interactions).
			Int("neighbors", stats.Neighbors)
	}
	event.Msg("training complete")

	return &TrainResult{
		Algorithm: name,
		RunID:     runID,
		Success:   true,
		Stats:     stats,
		TrainedAt: time.Now(),
	}, nil
}

// ListAlgorithms returns the canonical names of all registered strategies,
// sorted.
func (s *Service) ListAlgorithms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AlgorithmInfo returns metadata for a registered strategy. The name may be
// an alias.
func (s *Service) AlgorithmInfo(name string) (AlgorithmInfo, error) {
	canonical, err := s.resolve(name)
	if err != nil {
		return AlgorithmInfo{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[canonical].info, nil
}

// SimilarItems returns items similar to the given item via the
// collaborative-filtering neighbor model. There is no fallback: strategies
// without similarity support cannot answer, and an untrained model surfaces
// ErrNotTrained to the caller.
func (s *Service) SimilarItems(ctx context.Context, itemID, k int) ([]ScoredItem, error) {
	if itemID < 1 {
		return nil, fmt.Errorf("item id must be positive, got %d: %w", itemID, ErrInvalidParameter)
	}
	k, err := s.resolveK(k)
	if err != nil {
		return nil, err
	}

	name, err := s.resolve(similarityAlgorithm)
	if err != nil {
		return nil, err
	}
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}

	provider, ok := inst.(NeighborProvider)
	if !ok {
		return nil, fmt.Errorf("algorithm %q does not provide item similarity: %w", name, ErrInvalidParameter)
	}

	return provider.SimilarItems(ctx, itemID, k)
}
