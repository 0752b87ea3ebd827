// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import (
	"context"
	"sort"
	"time"
)

// Interaction represents a single user-item event from the interaction log.
type Interaction struct {
	// UserID is the internal user identifier.
	UserID int `json:"user_id"`

	// ItemID is the internal item identifier.
	ItemID int `json:"item_id"`

	// EventType classifies the event (view, purchase, rating, ...).
	// Empty means unclassified.
	EventType string `json:"event_type,omitempty"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}

// ItemDetail is optional display metadata for an item, supplied by an
// external DetailSource for result enrichment.
type ItemDetail struct {
	// ID is the item identifier.
	ID int `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Category is an optional grouping label.
	Category string `json:"category,omitempty"`
}

// Neighbor is one entry in an item's similarity list.
type Neighbor struct {
	// ID is the neighboring item identifier.
	ID int `json:"id"`

	// Score is the similarity to the owning item, in (0, 1].
	Score float64 `json:"score"`
}

// ScoredItem is one ranked entry in a recommendation result.
type ScoredItem struct {
	// ItemID is the recommended item identifier.
	ItemID int `json:"item_id"`

	// Score is the strategy-specific relevance score. Scores are
	// non-increasing within a result.
	Score float64 `json:"score"`

	// Rank is the 1-based position. Ranks are contiguous.
	Rank int `json:"rank"`

	// Detail is display metadata, present only when enrichment was
	// requested and a DetailSource is configured.
	Detail *ItemDetail `json:"detail,omitempty"`
}

// Result is a recommendation response for a single user.
type Result struct {
	// UserID is the user the recommendations are for.
	UserID int `json:"user_id"`

	// Items is the ranked recommendation list, at most K entries.
	Items []ScoredItem `json:"items"`

	// Requested is the algorithm the caller asked for (canonical name).
	Requested string `json:"requested"`

	// Algorithm is the strategy that actually produced the items. Differs
	// from Requested when the fallback chain was used.
	Algorithm string `json:"algorithm"`

	// Fallback reports whether a fallback strategy served the request.
	Fallback bool `json:"fallback"`

	// Err records a per-user failure in batch results. Nil on success.
	Err error `json:"-"`
}

// IDs returns the recommended item identifiers in rank order.
func (r *Result) IDs() []int {
	ids := make([]int, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.ItemID
	}
	return ids
}

// Dataset is an immutable snapshot of the interaction log shaped for
// recommendation serving. Snapshots are shared between strategies and must
// never be mutated after publication.
type Dataset struct {
	// UserItems maps each user to the distinct items they interacted
	// with, sorted ascending.
	UserItems map[int][]int

	// ItemUsers maps each item to the distinct users who interacted with
	// it, sorted ascending.
	ItemUsers map[int][]int

	// Popularity maps each item to its total interaction count. Repeat
	// interactions by the same user all count.
	Popularity map[int]int

	// Version increases by one on every loader refresh.
	Version int

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time
}

// NewDataset builds a snapshot from raw interactions. Profiles are
// deduplicated to set semantics per (user, item); popularity counts every
// interaction row.
func NewDataset(interactions []Interaction) *Dataset {
	userSets := make(map[int]map[int]struct{})
	itemSets := make(map[int]map[int]struct{})
	popularity := make(map[int]int)

	for _, in := range interactions {
		if userSets[in.UserID] == nil {
			userSets[in.UserID] = make(map[int]struct{})
		}
		userSets[in.UserID][in.ItemID] = struct{}{}

		if itemSets[in.ItemID] == nil {
			itemSets[in.ItemID] = make(map[int]struct{})
		}
		itemSets[in.ItemID][in.UserID] = struct{}{}

		popularity[in.ItemID]++
	}

	return &Dataset{
		UserItems:  sortedSetMap(userSets),
		ItemUsers:  sortedSetMap(itemSets),
		Popularity: popularity,
		LoadedAt:   time.Now(),
	}
}

// sortedSetMap converts a map of sets to a map of sorted slices.
func sortedSetMap(sets map[int]map[int]struct{}) map[int][]int {
	out := make(map[int][]int, len(sets))
	for key, set := range sets {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		out[key] = ids
	}
	return out
}

// UserCount returns the number of distinct users in the snapshot.
func (d *Dataset) UserCount() int {
	return len(d.UserItems)
}

// ItemCount returns the number of distinct items in the snapshot.
func (d *Dataset) ItemCount() int {
	return len(d.ItemUsers)
}

// InteractionCount returns the total number of interactions in the snapshot.
func (d *Dataset) InteractionCount() int {
	total := 0
	for _, n := range d.Popularity {
		total += n
	}
	return total
}

// Items returns all item identifiers sorted ascending.
func (d *Dataset) Items() []int {
	ids := make([]int, 0, len(d.ItemUsers))
	for id := range d.ItemUsers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Freq returns the number of distinct users who interacted with the item.
// This is the frequency used by similarity computation, as opposed to the
// raw Popularity count.
func (d *Dataset) Freq(itemID int) int {
	return len(d.ItemUsers[itemID])
}

// Options control a single recommendation call.
type Options struct {
	// K is the number of items to return. Must be at least 1; results may
	// be shorter when the candidate pool is small.
	K int

	// FilterInteracted excludes items the user has already interacted
	// with from the result.
	FilterInteracted bool
}

// Strategy is the interface all recommendation strategies implement.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Name returns the canonical strategy identifier.
	Name() string

	// SetDataset publishes a new snapshot to the strategy. Strategies
	// that precompute serving structures rebuild them here.
	SetDataset(ds *Dataset)

	// Recommend returns up to opts.K item identifiers in rank order.
	Recommend(ctx context.Context, userID int, opts Options) ([]int, error)

	// RecommendWithScores returns up to opts.K scored items with
	// contiguous 1-based ranks and non-increasing scores.
	RecommendWithScores(ctx context.Context, userID int, opts Options) ([]ScoredItem, error)
}

// Trainable is implemented by strategies that fit a model before serving.
// The service discovers the capability by type assertion.
type Trainable interface {
	// Train fits the model on the current dataset snapshot. Zero-valued
	// params fall back to the strategy's configured defaults. A failed or
	// cancelled run leaves previously persisted artifacts and the serving
	// state untouched.
	Train(ctx context.Context, params TrainParams) (*TrainStats, error)

	// IsTrained reports whether a model is available in memory or on disk.
	IsTrained() bool

	// LastTrainedAt returns when the current model was trained. Zero when
	// untrained.
	LastTrainedAt() time.Time
}

// NeighborProvider is implemented by strategies that expose item-to-item
// similarity, backing the similar-items operation.
type NeighborProvider interface {
	// SimilarItems returns up to k neighbors of the item, ranked by
	// similarity descending with item id as tie-break. An item without
	// neighbors yields an empty result, not an error.
	SimilarItems(ctx context.Context, itemID, k int) ([]ScoredItem, error)
}

// TrainParams tune a training run. Zero values mean "use the strategy's
// configured default".
type TrainParams struct {
	// MinInteractions excludes items with fewer total interactions from
	// pairing.
	MinInteractions int `json:"min_interactions" validate:"omitempty,min=1"`

	// TopN caps the number of neighbors kept per item.
	TopN int `json:"top_n" validate:"omitempty,min=1"`

	// MinSimilarity drops neighbor pairs scoring below the floor.
	MinSimilarity float64 `json:"min_similarity" validate:"omitempty,gte=0,lte=1"`

	// Method selects the similarity measure: cosine or jaccard.
	Method string `json:"method" validate:"omitempty,oneof=cosine jaccard"`
}

// TrainStats summarizes a completed training run.
type TrainStats struct {
	// Users is the number of distinct users in the training set after
	// filtering.
	Users int `json:"users"`

	// Items is the number of distinct items that qualified for pairing.
	Items int `json:"items"`

	// Interactions is the number of interactions considered.
	Interactions int `json:"interactions"`

	// Neighbors is the total number of neighbor entries kept.
	Neighbors int `json:"neighbors"`

	// Duration is the wall-clock training time.
	Duration time.Duration `json:"duration"`
}

// TrainResult reports the outcome of a service-level training run.
type TrainResult struct {
	// Algorithm is the canonical name of the trained strategy.
	Algorithm string `json:"algorithm"`

	// RunID uniquely identifies the training run for tracing.
	RunID string `json:"run_id"`

	// Success reports whether a model was produced. False for strategies
	// that do not train.
	Success bool `json:"success"`

	// Stats holds training statistics when Success is true.
	Stats *TrainStats `json:"stats,omitempty"`

	// TrainedAt is when the run completed.
	TrainedAt time.Time `json:"trained_at"`
}

// AlgorithmInfo describes a registered strategy.
type AlgorithmInfo struct {
	// Name is the canonical algorithm name.
	Name string `json:"name"`

	// Description is a one-line summary of the approach.
	Description string `json:"description"`

	// Personalized reports whether results depend on the user's history.
	Personalized bool `json:"personalized"`

	// RequiresTraining reports whether the strategy must be trained
	// before serving.
	RequiresTraining bool `json:"requires_training"`

	// Aliases are alternative names resolving to this strategy.
	Aliases []string `json:"aliases,omitempty"`
}

// Filters narrow an interaction fetch at the source.
type Filters struct {
	// EventTypes restricts the fetch to the listed event types. Empty
	// means all types.
	EventTypes []string

	// Since excludes interactions before the given time when non-zero.
	Since time.Time

	// Until excludes interactions at or after the given time when
	// non-zero.
	Until time.Time
}

// InteractionSource supplies raw interaction data from the backing store.
// Implementations must honor context cancellation.
type InteractionSource interface {
	// FetchInteractions returns interactions matching the filters.
	FetchInteractions(ctx context.Context, f Filters) ([]Interaction, error)

	// FetchItemPopularity returns total interaction counts per item.
	FetchItemPopularity(ctx context.Context) (map[int]int, error)
}

// DetailSource supplies optional item display metadata for enrichment.
type DetailSource interface {
	// GetItemDetails returns details for the given items. Missing items
	// are absent from the map, not an error.
	GetItemDetails(ctx context.Context, ids []int) (map[int]ItemDetail, error)
}
