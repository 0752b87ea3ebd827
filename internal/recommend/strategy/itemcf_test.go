// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package strategy

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/tmarkell/vicinus/internal/recommend"
	"github.com/tmarkell/vicinus/internal/recommend/artifact"
)

// cfFixture is the shared training set:
//
//	user 1: items 1, 2, 3
//	user 2: items 1, 2
//	user 3: items 2, 3
//	user 4: item  1
//
// Item frequencies: 1 -> 3 users, 2 -> 3 users, 3 -> 2 users.
// Co-occurrence: (1,2) -> 2, (1,3) -> 1, (2,3) -> 2.
func cfFixture() *recommend.Dataset {
	return testDataset(
		[2]int{1, 1}, [2]int{1, 2}, [2]int{1, 3},
		[2]int{2, 1}, [2]int{2, 2},
		[2]int{3, 2}, [2]int{3, 3},
		[2]int{4, 1},
	)
}

func newTestItemCF(t *testing.T, cfg ItemCFConfig) *ItemCF {
	t.Helper()

	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewItemCF(cfg, store, testLogger())
}

func trainedItemCF(t *testing.T, cfg ItemCFConfig) *ItemCF {
	t.Helper()

	cf := newTestItemCF(t, cfg)
	cf.SetDataset(cfFixture())
	if _, err := cf.Train(context.Background(), recommend.TrainParams{}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	return cf
}

func TestItemCFTrainCosine(t *testing.T) {
	t.Parallel()

	cf := newTestItemCF(t, DefaultItemCFConfig())
	cf.SetDataset(cfFixture())

	stats, err := cf.Train(context.Background(), recommend.TrainParams{})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if stats.Users != 4 || stats.Items != 3 || stats.Interactions != 8 {
		t.Errorf("stats = %+v, want 4 users, 3 items, 8 interactions", stats)
	}
	// Three symmetric pairs survive the 0.1 floor.
	if stats.Neighbors != 6 {
		t.Errorf("stats.Neighbors = %d, want 6", stats.Neighbors)
	}
	if stats.Duration <= 0 {
		t.Errorf("stats.Duration = %v, want > 0", stats.Duration)
	}
	if !cf.IsTrained() {
		t.Error("IsTrained() = false after Train()")
	}
	if cf.LastTrainedAt().IsZero() {
		t.Error("LastTrainedAt() is zero after Train()")
	}

	// Item 2's neighbors: 3 at 2/sqrt(6), then 1 at 2/3.
	neighbors, err := cf.SimilarItems(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("SimilarItems() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("SimilarItems(2) returned %d neighbors, want 2", len(neighbors))
	}
	if neighbors[0].ItemID != 3 || !closeTo(neighbors[0].Score, 2.0/math.Sqrt(6)) {
		t.Errorf("neighbors[0] = %+v, want item 3 at 2/sqrt(6)", neighbors[0])
	}
	if neighbors[1].ItemID != 1 || !closeTo(neighbors[1].Score, 2.0/3.0) {
		t.Errorf("neighbors[1] = %+v, want item 1 at 2/3", neighbors[1])
	}
}

func TestItemCFTrainJaccard(t *testing.T) {
	t.Parallel()

	cf := newTestItemCF(t, DefaultItemCFConfig())
	cf.SetDataset(cfFixture())

	if _, err := cf.Train(context.Background(), recommend.TrainParams{Method: MethodJaccard}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	// Item 1's neighbors under jaccard: 2 at 2/4, 3 at 1/4.
	neighbors, err := cf.SimilarItems(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("SimilarItems() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("SimilarItems(1) returned %d neighbors, want 2", len(neighbors))
	}
	if neighbors[0].ItemID != 2 || !closeTo(neighbors[0].Score, 0.5) {
		t.Errorf("neighbors[0] = %+v, want item 2 at 0.5", neighbors[0])
	}
	if neighbors[1].ItemID != 3 || !closeTo(neighbors[1].Score, 0.25) {
		t.Errorf("neighbors[1] = %+v, want item 3 at 0.25", neighbors[1])
	}
}

func TestItemCFTrainPruning(t *testing.T) {
	t.Parallel()

	t.Run("min similarity drops weak pairs", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())

		// 0.5 keeps (1,2) at 2/3 and (2,3) at 2/sqrt(6), drops (1,3)
		// at 1/sqrt(6).
		stats, err := cf.Train(context.Background(), recommend.TrainParams{MinSimilarity: 0.5})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		if stats.Neighbors != 4 {
			t.Errorf("stats.Neighbors = %d, want 4", stats.Neighbors)
		}

		neighbors, err := cf.SimilarItems(context.Background(), 1, 10)
		if err != nil {
			t.Fatalf("SimilarItems() error = %v", err)
		}
		if len(neighbors) != 1 || neighbors[0].ItemID != 2 {
			t.Errorf("SimilarItems(1) = %+v, want only item 2", neighbors)
		}
	})

	t.Run("top n caps each neighbor list", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())

		stats, err := cf.Train(context.Background(), recommend.TrainParams{TopN: 1})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		// Each of the three items keeps exactly its best neighbor.
		if stats.Neighbors != 3 {
			t.Errorf("stats.Neighbors = %d, want 3", stats.Neighbors)
		}

		neighbors, err := cf.SimilarItems(context.Background(), 3, 10)
		if err != nil {
			t.Fatalf("SimilarItems() error = %v", err)
		}
		if len(neighbors) != 1 || neighbors[0].ItemID != 2 {
			t.Errorf("SimilarItems(3) = %+v, want only item 2", neighbors)
		}
	})

	t.Run("min interactions excludes sparse items", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())

		// Item 3 has 2 interactions and drops out; only (1,2) remains.
		stats, err := cf.Train(context.Background(), recommend.TrainParams{MinInteractions: 3})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		if stats.Items != 2 {
			t.Errorf("stats.Items = %d, want 2", stats.Items)
		}
		if stats.Interactions != 6 {
			t.Errorf("stats.Interactions = %d, want 6", stats.Interactions)
		}
		if stats.Neighbors != 2 {
			t.Errorf("stats.Neighbors = %d, want 2", stats.Neighbors)
		}
	})
}

func TestItemCFTrainErrors(t *testing.T) {
	t.Parallel()

	t.Run("no dataset", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		if _, err := cf.Train(context.Background(), recommend.TrainParams{}); !errors.Is(err, recommend.ErrInsufficientData) {
			t.Errorf("Train() error = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("threshold leaves fewer than two items", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())
		if _, err := cf.Train(context.Background(), recommend.TrainParams{MinInteractions: 10}); !errors.Is(err, recommend.ErrInsufficientData) {
			t.Errorf("Train() error = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())
		if _, err := cf.Train(context.Background(), recommend.TrainParams{Method: "pearson"}); !errors.Is(err, recommend.ErrInvalidParameter) {
			t.Errorf("Train() error = %v, want ErrInvalidParameter", err)
		}
	})

	t.Run("cancelled context aborts the run", func(t *testing.T) {
		t.Parallel()

		cf := newTestItemCF(t, DefaultItemCFConfig())
		cf.SetDataset(cfFixture())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := cf.Train(ctx, recommend.TrainParams{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Train() error = %v, want context.Canceled", err)
		}
		if cf.IsTrained() {
			t.Error("IsTrained() = true after cancelled run")
		}
	})
}

func TestItemCFRecommend(t *testing.T) {
	t.Parallel()

	cf := trainedItemCF(t, DefaultItemCFConfig())

	t.Run("single seed serves its neighbors", func(t *testing.T) {
		t.Parallel()

		// User 4 owns item 1 only: candidates are 2 at 2/3 and 3 at
		// 1/sqrt(6).
		items, err := cf.RecommendWithScores(context.Background(), 4, recommend.Options{K: 10})
		if err != nil {
			t.Fatalf("RecommendWithScores() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("got %d items, want 2", len(items))
		}
		if items[0].ItemID != 2 || !closeTo(items[0].Score, 2.0/3.0) {
			t.Errorf("items[0] = %+v, want item 2 at 2/3", items[0])
		}
		if items[1].ItemID != 3 || !closeTo(items[1].Score, 1.0/math.Sqrt(6)) {
			t.Errorf("items[1] = %+v, want item 3 at 1/sqrt(6)", items[1])
		}
		if items[0].Rank != 1 || items[1].Rank != 2 {
			t.Errorf("ranks = %d, %d, want 1, 2", items[0].Rank, items[1].Rank)
		}
	})

	t.Run("scores accumulate across seeds", func(t *testing.T) {
		t.Parallel()

		// User 2 owns items 1 and 2. Item 3 collects 1/sqrt(6) from
		// seed 1 and 2/sqrt(6) from seed 2; seeds are never candidates.
		items, err := cf.RecommendWithScores(context.Background(), 2, recommend.Options{K: 10})
		if err != nil {
			t.Fatalf("RecommendWithScores() error = %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("got %d items, want 1", len(items))
		}
		if items[0].ItemID != 3 || !closeTo(items[0].Score, 3.0/math.Sqrt(6)) {
			t.Errorf("items[0] = %+v, want item 3 at 3/sqrt(6)", items[0])
		}
	})

	t.Run("saturated user gets empty result", func(t *testing.T) {
		t.Parallel()

		// User 1 owns every item, so nothing is left to recommend. The
		// service treats empty-with-nil-error as a fallback trigger.
		ids, err := cf.Recommend(context.Background(), 1, recommend.Options{K: 10})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("Recommend() = %v, want empty", ids)
		}
	})

	t.Run("unknown user has no history", func(t *testing.T) {
		t.Parallel()

		if _, err := cf.Recommend(context.Background(), 999, recommend.Options{K: 5}); !errors.Is(err, recommend.ErrNoHistory) {
			t.Errorf("Recommend() error = %v, want ErrNoHistory", err)
		}
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		t.Parallel()

		if _, err := cf.Recommend(context.Background(), 4, recommend.Options{K: 0}); !errors.Is(err, recommend.ErrInvalidParameter) {
			t.Errorf("Recommend(k=0) error = %v, want ErrInvalidParameter", err)
		}
	})
}

func TestItemCFUntrained(t *testing.T) {
	t.Parallel()

	cf := newTestItemCF(t, DefaultItemCFConfig())
	cf.SetDataset(cfFixture())

	if cf.IsTrained() {
		t.Error("IsTrained() = true with no model")
	}
	if _, err := cf.Recommend(context.Background(), 1, recommend.Options{K: 5}); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("Recommend() error = %v, want ErrNotTrained", err)
	}
	if _, err := cf.SimilarItems(context.Background(), 1, 5); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("SimilarItems() error = %v, want ErrNotTrained", err)
	}
}

func TestItemCFSimilarItems(t *testing.T) {
	t.Parallel()

	cf := trainedItemCF(t, DefaultItemCFConfig())

	t.Run("k truncates the neighbor list", func(t *testing.T) {
		t.Parallel()

		neighbors, err := cf.SimilarItems(context.Background(), 2, 1)
		if err != nil {
			t.Fatalf("SimilarItems() error = %v", err)
		}
		if len(neighbors) != 1 || neighbors[0].ItemID != 3 {
			t.Errorf("SimilarItems(2, 1) = %+v, want only item 3", neighbors)
		}
	})

	t.Run("unknown item yields empty result", func(t *testing.T) {
		t.Parallel()

		neighbors, err := cf.SimilarItems(context.Background(), 77, 5)
		if err != nil {
			t.Fatalf("SimilarItems() error = %v", err)
		}
		if len(neighbors) != 0 {
			t.Errorf("SimilarItems(77) = %+v, want empty", neighbors)
		}
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		t.Parallel()

		if _, err := cf.SimilarItems(context.Background(), 0, 5); !errors.Is(err, recommend.ErrInvalidParameter) {
			t.Errorf("SimilarItems(0, 5) error = %v, want ErrInvalidParameter", err)
		}
		if _, err := cf.SimilarItems(context.Background(), 1, 0); !errors.Is(err, recommend.ErrInvalidParameter) {
			t.Errorf("SimilarItems(1, 0) error = %v, want ErrInvalidParameter", err)
		}
	})
}

func TestItemCFArtifactRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first := NewItemCF(DefaultItemCFConfig(), store, testLogger())
	first.SetDataset(cfFixture())
	if _, err := first.Train(context.Background(), recommend.TrainParams{}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	want, err := first.Recommend(context.Background(), 4, recommend.Options{K: 5})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// A fresh instance over the same directory serves from the persisted
	// artifact without retraining.
	reopened, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	second := NewItemCF(DefaultItemCFConfig(), reopened, testLogger())
	second.SetDataset(cfFixture())

	if !second.IsTrained() {
		t.Error("IsTrained() = false with an artifact on disk")
	}

	got, err := second.Recommend(context.Background(), 4, recommend.Options{K: 5})
	if err != nil {
		t.Fatalf("Recommend() after reload error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("reloaded model returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reloaded model returned %v, want %v", got, want)
		}
	}
	if second.LastTrainedAt().IsZero() {
		t.Error("LastTrainedAt() is zero after loading the artifact")
	}
}

func TestItemCFCorruptArtifactServesAsUntrained(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	name := filepath.Join(dir, "itemcf_v1.gob.gz")
	if err := os.WriteFile(name, []byte("not a gob envelope"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store, err := artifact.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	cf := NewItemCF(DefaultItemCFConfig(), store, testLogger())
	cf.SetDataset(cfFixture())

	if _, err := cf.Recommend(context.Background(), 1, recommend.Options{K: 5}); !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("Recommend() error = %v, want ErrNotTrained", err)
	}
}

func TestItemCFRetrainReplacesModel(t *testing.T) {
	t.Parallel()

	cf := trainedItemCF(t, DefaultItemCFConfig())

	// Retrain with a floor that prunes (1,3); user 4's candidate list
	// shrinks to item 2.
	if _, err := cf.Train(context.Background(), recommend.TrainParams{MinSimilarity: 0.5}); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	ids, err := cf.Recommend(context.Background(), 4, recommend.Options{K: 5})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("Recommend() after retrain = %v, want [2]", ids)
	}

	if v, ok := cf.artifacts.LatestVersion("itemcf"); !ok || v != 2 {
		t.Errorf("LatestVersion() = (%d, %v), want (2, true)", v, ok)
	}
}
