// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/config"
	"github.com/tmarkell/vicinus/internal/recommend"
)

// testDBSemaphore serializes DuckDB creation across tests. Concurrent
// CGO database opens can hang under CI resource pressure; one live
// connection at a time keeps runs stable. Held for the entire test
// lifecycle, released via t.Cleanup.
var testDBSemaphore = make(chan struct{}, 1)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// newTestDB creates an in-memory interaction store.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := New(config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "500MB",
	}, 10*time.Second, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	return db
}

func TestNewInMemory(t *testing.T) {
	db := newTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if db.Conn() == nil {
		t.Fatal("Conn() returned nil")
	}
	if got := db.Path(); got != ":memory:" {
		t.Errorf("Path() = %q, want %q", got, ":memory:")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	dir := filepath.Join(t.TempDir(), "nested", "data")
	path := filepath.Join(dir, "vicinus.duckdb")

	db, err := New(config.DatabaseConfig{Path: path, MaxMemory: "500MB"}, 0, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestReopenPersistsData(t *testing.T) {
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "vicinus.duckdb"),
		MaxMemory: "500MB",
	}

	db, err := New(cfg, 0, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	inserted, err := db.InsertInteractions(ctx, []recommend.Interaction{
		{UserID: 1, ItemID: 10, EventType: "view"},
		{UserID: 2, ItemID: 10, EventType: "purchase"},
	})
	if err != nil {
		t.Fatalf("InsertInteractions() error = %v", err)
	}
	if inserted != 2 {
		t.Fatalf("InsertInteractions() = %d, want 2", inserted)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening must find the schema in place and the rows flushed.
	reopened, err := New(cfg, 0, testLogger())
	if err != nil {
		t.Fatalf("New() after reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()

	count, err := reopened.CountInteractions(ctx)
	if err != nil {
		t.Fatalf("CountInteractions() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountInteractions() after reopen = %d, want 2", count)
	}
}
