// Package store is the sqlite-backed persistence layer for the engine's
// four tables: Run, Preset, PublicLatestRun and the per-day quota
// counters. Schema, trigger, and
// transaction idioms use CREATE TABLE IF NOT EXISTS, an AFTER UPDATE
// trigger maintaining updated_at, and tx.Begin()/defer
// tx.Rollback()/tx.Commit() for atomic multi-row writes.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store owns the single *sql.DB shared by Presets, Runs, PublicLatestRun,
// and day-quota counters.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at dataSource and
// runs initTables. dataSource is the DSN half of DATABASE_URL.
func Open(dataSource string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dataSource, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers through a single connection
	s := &Store{db: db}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			result TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'running',
			execution_ms INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_user_tool_created ON runs(user_id, tool, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,

		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			tool TEXT NOT NULL,
			params TEXT NOT NULL DEFAULT '{}',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			share_token_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_presets_user ON presets(user_id, created_at)`,
		`CREATE TRIGGER IF NOT EXISTS update_presets_updated_at
			AFTER UPDATE ON presets
			BEGIN
				UPDATE presets SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
			END`,

		`CREATE TABLE IF NOT EXISTS public_latest_runs (
			tool TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tool, symbol)
		)`,

		`CREATE TABLE IF NOT EXISTS quota_counters (
			user_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, tool, day)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}
