package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PublicLatestRun is the landing-page cache row: one per (tool, symbol),
// last-write-wins, read without auth.
type PublicLatestRun struct {
	Tool      string
	Symbol    string
	Result    string // JSON
	UpdatedAt time.Time
}

// UpsertPublicLatestRun overwrites the cached row for (tool, symbol) with
// no read-modify-write step: last write always wins. symbol is "" for
// universe-scoped tools (scan_trades, morning_brief).
func (s *Store) UpsertPublicLatestRun(tool, symbol, resultJSON string) error {
	_, err := s.db.Exec(
		`INSERT INTO public_latest_runs (tool, symbol, result, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(tool, symbol) DO UPDATE SET result = excluded.result, updated_at = excluded.updated_at`,
		tool, symbol, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("store: upsert public latest run: %w", err)
	}
	return nil
}

// GetPublicLatestRun reads the cached row for (tool, symbol), used by the
// gateway to decide whether a fresh result is stale enough to recompute.
func (s *Store) GetPublicLatestRun(tool, symbol string) (PublicLatestRun, error) {
	var r PublicLatestRun
	var updatedAt string
	err := s.db.QueryRow(
		`SELECT tool, symbol, result, updated_at FROM public_latest_runs WHERE tool = ? AND symbol = ?`,
		tool, symbol,
	).Scan(&r.Tool, &r.Symbol, &r.Result, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PublicLatestRun{}, fmt.Errorf("store: no public latest run for %s/%s", tool, symbol)
	}
	if err != nil {
		return PublicLatestRun{}, fmt.Errorf("store: get public latest run: %w", err)
	}
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return r, nil
}

// LatestPublicRuns returns the most recently updated rows across all
// tools, capped at limit.
func (s *Store) LatestPublicRuns(limit int) ([]PublicLatestRun, error) {
	rows, err := s.db.Query(
		`SELECT tool, symbol, result, updated_at FROM public_latest_runs ORDER BY updated_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: latest public runs: %w", err)
	}
	defer rows.Close()

	var out []PublicLatestRun
	for rows.Next() {
		var r PublicLatestRun
		var updatedAt string
		if err := rows.Scan(&r.Tool, &r.Symbol, &r.Result, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: latest public runs: %w", err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
