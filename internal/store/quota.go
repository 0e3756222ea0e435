package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// dayKey formats t as the UTC-day window key for per-user daily quota
// counters, a proper UTC-day boundary rather than an ISO-timestamp
// date-prefix match.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// IncrementQuota atomically reads, increments, and commits the counter for
// (userID, tool) on the current UTC day, returning the new count. A single
// sqlite upsert statement inside an explicit transaction keeps the
// read-increment-commit atomic without a separate lock.
func (s *Store) IncrementQuota(userID, tool string, now time.Time) (int, error) {
	day := dayKey(now)
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: increment quota: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO quota_counters (user_id, tool, day, count) VALUES (?, ?, ?, 1)
		 ON CONFLICT(user_id, tool, day) DO UPDATE SET count = count + 1`,
		userID, tool, day,
	)
	if err != nil {
		return 0, fmt.Errorf("store: increment quota: %w", err)
	}

	var count int
	err = tx.QueryRow(
		`SELECT count FROM quota_counters WHERE user_id = ? AND tool = ? AND day = ?`,
		userID, tool, day,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: increment quota: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: increment quota: %w", err)
	}
	return count, nil
}

// QuotaCount reads today's (UTC) count for (userID, tool) without
// incrementing it, used by the gateway to report usage.count for requests
// that are rejected before dispatch.
func (s *Store) QuotaCount(userID, tool string, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT count FROM quota_counters WHERE user_id = ? AND tool = ? AND day = ?`,
		userID, tool, dayKey(now),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: quota count: %w", err)
	}
	return count, nil
}
