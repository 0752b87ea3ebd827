// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package recommend

import (
	"testing"
)

func TestNewDataset(t *testing.T) {
	t.Parallel()

	t.Run("deduplicates profiles but counts every interaction", func(t *testing.T) {
		t.Parallel()

		// User 1 touches item 10 three times.
		ds := NewDataset(interactionsOf(
			[2]int{1, 10}, [2]int{1, 10}, [2]int{1, 10},
			[2]int{1, 20},
			[2]int{2, 10},
		))

		if got := ds.UserItems[1]; len(got) != 2 {
			t.Errorf("UserItems[1] = %v, want deduplicated [10 20]", got)
		}
		if got := ds.Popularity[10]; got != 4 {
			t.Errorf("Popularity[10] = %d, want 4 (every row counts)", got)
		}
		if got := ds.Freq(10); got != 2 {
			t.Errorf("Freq(10) = %d, want 2 (distinct users)", got)
		}
		if got := ds.InteractionCount(); got != 5 {
			t.Errorf("InteractionCount() = %d, want 5", got)
		}
	})

	t.Run("profiles and user lists are sorted ascending", func(t *testing.T) {
		t.Parallel()

		ds := NewDataset(interactionsOf(
			[2]int{1, 30}, [2]int{1, 10}, [2]int{1, 20},
			[2]int{9, 10}, [2]int{3, 10},
		))

		profile := ds.UserItems[1]
		for i := 1; i < len(profile); i++ {
			if profile[i-1] >= profile[i] {
				t.Fatalf("UserItems[1] not sorted: %v", profile)
			}
		}

		users := ds.ItemUsers[10]
		want := []int{1, 3, 9}
		if len(users) != len(want) {
			t.Fatalf("ItemUsers[10] = %v, want %v", users, want)
		}
		for i := range want {
			if users[i] != want[i] {
				t.Errorf("ItemUsers[10] = %v, want %v", users, want)
			}
		}
	})

	t.Run("no interactions yields an empty snapshot", func(t *testing.T) {
		t.Parallel()

		ds := NewDataset(nil)
		if ds.UserCount() != 0 || ds.ItemCount() != 0 {
			t.Errorf("NewDataset(nil) = %d users, %d items, want 0, 0", ds.UserCount(), ds.ItemCount())
		}
		if ds.LoadedAt.IsZero() {
			t.Error("LoadedAt not stamped")
		}
	})

	t.Run("items are enumerated sorted", func(t *testing.T) {
		t.Parallel()

		ds := NewDataset(interactionsOf([2]int{1, 30}, [2]int{1, 10}, [2]int{2, 20}))
		items := ds.Items()
		want := []int{10, 20, 30}
		if len(items) != len(want) {
			t.Fatalf("Items() = %v, want %v", items, want)
		}
		for i := range want {
			if items[i] != want[i] {
				t.Errorf("Items() = %v, want %v", items, want)
			}
		}
	})
}

func TestResultIDs(t *testing.T) {
	t.Parallel()

	res := &Result{Items: []ScoredItem{
		{ItemID: 30, Score: 0.9, Rank: 1},
		{ItemID: 10, Score: 0.5, Rank: 2},
	}}

	ids := res.IDs()
	if len(ids) != 2 || ids[0] != 30 || ids[1] != 10 {
		t.Errorf("IDs() = %v, want [30 10]", ids)
	}

	if got := (&Result{}).IDs(); len(got) != 0 {
		t.Errorf("empty result IDs() = %v, want empty", got)
	}
}

func TestRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{name: "valid", req: Request{UserID: 1, K: 5}},
		{name: "zero k means default", req: Request{UserID: 1}},
		{name: "missing user", req: Request{K: 5}, wantErr: true},
		{name: "negative user", req: Request{UserID: -3}, wantErr: true},
		{name: "negative k", req: Request{UserID: 1, K: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestTrainParamsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  TrainParams
		wantErr bool
	}{
		{name: "zero values mean defaults", params: TrainParams{}},
		{name: "explicit values", params: TrainParams{MinInteractions: 2, TopN: 10, MinSimilarity: 0.3, Method: "jaccard"}},
		{name: "similarity above one", params: TrainParams{MinSimilarity: 1.5}, wantErr: true},
		{name: "negative top n", params: TrainParams{TopN: -1}, wantErr: true},
		{name: "unknown method", params: TrainParams{Method: "pearson"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.params.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
