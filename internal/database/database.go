// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package database implements the DuckDB-backed interaction store.
//
// The store holds two tables: the interaction log the recommendation
// strategies train on, and an item catalog used for result enrichment.
// DB satisfies both recommend.InteractionSource and recommend.DetailSource;
// ResilientSource adds circuit breaker protection on the read path.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/rs/zerolog"

	"github.com/tmarkell/vicinus/internal/config"
)

// defaultQueryTimeout bounds store reads when the caller supplies no
// deadline and no timeout was configured.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the DuckDB connection backing the interaction store.
type DB struct {
	conn         *sql.DB
	cfg          config.DatabaseConfig
	queryTimeout time.Duration
	logger       zerolog.Logger
}

// New opens the DuckDB database at cfg.Path and initializes the schema.
// queryTimeout bounds each store read; zero selects the default.
//
//nolint:gocritic // hugeParam: loggers are passed by value
func New(cfg config.DatabaseConfig, queryTimeout time.Duration, logger zerolog.Logger) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}

	// Ensure the parent directory exists for file-backed databases.
	// filepath.Dir(":memory:") is "." and is skipped.
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
		}
	}

	// Disable extension auto-install/auto-load to prevent hangs in
	// restricted network environments. The schema needs none.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn:         conn,
		cfg:          cfg,
		queryTimeout: queryTimeout,
		logger:       logger.With().Str("component", "database").Logger(),
	}

	db.configureConnectionPool()

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	db.logger.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("interaction store opened")

	return db, nil
}

// configureConnectionPool applies pool settings tuned for DuckDB:
// max_open NumCPU() for parallel reads, a small idle set for reuse,
// and bounded lifetimes to prevent stale connections.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// queryContext bounds a store operation with the configured timeout
// unless the caller already set a deadline.
func (db *DB) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// Ping checks that the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Conn returns the underlying SQL connection for packages that need
// direct access, such as migration tooling.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the configured database location.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Close checkpoints the WAL and closes the connection. The checkpoint
// is best-effort; a failure is logged, not returned.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		db.logger.Warn().Err(err).Msg("checkpoint before close failed")
	}

	return db.conn.Close()
}

// closeQuietly closes a resource and explicitly ignores any error.
// Used in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
