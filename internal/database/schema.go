// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaTimeout bounds schema initialization. DuckDB DDL is fast, but
// opening a database with a large WAL can stall table creation.
const schemaTimeout = 60 * time.Second

// createTables creates all tables and indexes if they do not exist.
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	for _, query := range getIndexCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements.
func getTableCreationQueries() []string {
	return []string{
		// interactions is the append-only event log the recommendation
		// strategies train on. A user may interact with the same item
		// any number of times; popularity counts every row.
		`CREATE TABLE IF NOT EXISTS interactions (
			user_id INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			event_type VARCHAR NOT NULL DEFAULT 'view',
			occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// items is the catalog used for result enrichment. Rows are
		// optional; recommendations work from interaction IDs alone.
		`CREATE TABLE IF NOT EXISTS items (
			item_id INTEGER PRIMARY KEY,
			title VARCHAR NOT NULL DEFAULT '',
			category VARCHAR NOT NULL DEFAULT ''
		);`,
	}
}

// getIndexCreationQueries returns the index creation SQL statements.
func getIndexCreationQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_id ON interactions(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_item_id ON interactions(item_id);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_occurred_at ON interactions(occurred_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_event_type ON interactions(event_type);`,
	}
}
