// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmarkell/vicinus/internal/metrics"
	"github.com/tmarkell/vicinus/internal/recommend"
)

// FetchInteractions returns interactions matching the filters, oldest
// first. Since is inclusive, Until exclusive.
func (db *DB) FetchInteractions(ctx context.Context, f recommend.Filters) (interactions []recommend.Interaction, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQuery("fetch_interactions", time.Since(start), err) }()

	query := `SELECT user_id, item_id, event_type, occurred_at FROM interactions`

	conds := make([]string, 0, 3)
	args := make([]any, 0, len(f.EventTypes)+2)
	if len(f.EventTypes) > 0 {
		conds = append(conds, fmt.Sprintf("event_type IN (%s)", placeholders(len(f.EventTypes))))
		for _, eventType := range f.EventTypes {
			args = append(args, eventType)
		}
	}
	if !f.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conds = append(conds, "occurred_at < ?")
		args = append(args, f.Until)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY occurred_at"

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var in recommend.Interaction
		if err = rows.Scan(&in.UserID, &in.ItemID, &in.EventType, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		interactions = append(interactions, in)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}

	return interactions, nil
}

// FetchItemPopularity returns total interaction counts per item. Every
// row counts, including repeat interactions by the same user.
func (db *DB) FetchItemPopularity(ctx context.Context) (counts map[int]int, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQuery("fetch_item_popularity", time.Since(start), err) }()

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, COUNT(*) FROM interactions GROUP BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query popularity: %w", err)
	}
	defer rows.Close()

	counts = make(map[int]int)
	for rows.Next() {
		var itemID, count int
		if err = rows.Scan(&itemID, &count); err != nil {
			return nil, fmt.Errorf("scan popularity: %w", err)
		}
		counts[itemID] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popularity: %w", err)
	}

	return counts, nil
}

// GetItemDetails returns catalog metadata for the given items. Items
// without a catalog row are absent from the map, not an error.
func (db *DB) GetItemDetails(ctx context.Context, ids []int) (details map[int]recommend.ItemDetail, err error) {
	details = make(map[int]recommend.ItemDetail, len(ids))
	if len(ids) == 0 {
		return details, nil
	}

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("get_item_details", time.Since(start), err) }()

	query := fmt.Sprintf(
		`SELECT item_id, title, category FROM items WHERE item_id IN (%s)`,
		placeholders(len(ids)))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query item details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d recommend.ItemDetail
		if err = rows.Scan(&d.ID, &d.Title, &d.Category); err != nil {
			return nil, fmt.Errorf("scan item detail: %w", err)
		}
		details[d.ID] = d
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item details: %w", err)
	}

	return details, nil
}

// InsertInteractions appends interactions to the event log in a single
// transaction. Zero timestamps default to now, empty event types to
// "view". Returns the number of rows inserted.
func (db *DB) InsertInteractions(ctx context.Context, interactions []recommend.Interaction) (inserted int, err error) {
	if len(interactions) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("insert_interactions", time.Since(start), err) }()

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO interactions (user_id, item_id, event_type, occurred_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer closeQuietly(stmt)

	for _, in := range interactions {
		occurredAt := in.Timestamp
		if occurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		eventType := in.EventType
		if eventType == "" {
			eventType = "view"
		}
		if _, err = stmt.ExecContext(ctx, in.UserID, in.ItemID, eventType, occurredAt); err != nil {
			return inserted, fmt.Errorf("insert interaction: %w", err)
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}

	return inserted, nil
}

// UpsertItems inserts or replaces catalog rows.
func (db *DB) UpsertItems(ctx context.Context, items []recommend.ItemDetail) (err error) {
	if len(items) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { metrics.RecordStoreQuery("upsert_items", time.Since(start), err) }()

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO items (item_id, title, category) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer closeQuietly(stmt)

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx, item.ID, item.Title, item.Category); err != nil {
			return fmt.Errorf("upsert item %d: %w", item.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	return nil
}

// CountInteractions returns the total number of logged interactions.
func (db *DB) CountInteractions(ctx context.Context) (int64, error) {
	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	var count int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return count, nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Interface compliance.
var (
	_ recommend.InteractionSource = (*DB)(nil)
	_ recommend.DetailSource      = (*DB)(nil)
)
