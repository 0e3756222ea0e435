package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the Run.status enum.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run is the persisted execution record.
type Run struct {
	ID           string
	UserID       string
	Tool         string
	Params       string // JSON
	Result       string // JSON, with schema_version embedded
	Status       RunStatus
	ExecutionMS  int64
	ErrorMessage string
	CreatedAt    time.Time
}

// CreateRunning inserts a new Run at status=running, the first transition
// in its lifecycle. It returns the generated run id.
func (s *Store) CreateRunning(userID, tool, paramsJSON string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, user_id, tool, params, status) VALUES (?, ?, ?, ?, ?)`,
		id, userID, tool, paramsJSON, RunRunning,
	)
	if err != nil {
		return "", fmt.Errorf("store: create run: %w", err)
	}
	return id, nil
}

// CompleteRun transitions a run to its terminal state in one statement,
// recording execution_ms and either result or error_message. This update
// is the single source of truth for completion, and the only permitted
// mutation of a Run after creation.
func (s *Store) CompleteRun(runID string, status RunStatus, executionMS int64, result, errorMessage string) error {
	if status == RunRunning {
		return fmt.Errorf("store: CompleteRun called with non-terminal status %q", status)
	}
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, execution_ms = ?, result = ?, error_message = ? WHERE id = ? AND status = 'running'`,
		status, executionMS, result, errorMessage, runID,
	)
	if err != nil {
		return fmt.Errorf("store: complete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: complete run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: run %s already terminal or missing", runID)
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(runID string) (Run, error) {
	var r Run
	var createdAt string
	err := s.db.QueryRow(
		`SELECT id, user_id, tool, params, result, status, execution_ms, error_message, created_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.UserID, &r.Tool, &r.Params, &r.Result, &r.Status, &r.ExecutionMS, &r.ErrorMessage, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("store: run %s not found", runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %s: %w", runID, err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return r, nil
}

// SweepOrphans marks every run still status=running and older than
// olderThan as status=error with error_message="orphaned", cleaning up
// runs whose process died mid-execution. It is a single scheduled call,
// not a goroutine loop; cmd/sentinel invokes it on a ticker.
func (s *Store) SweepOrphans(olderThan time.Duration) (int64, error) {
	// same text layout as sqlite's CURRENT_TIMESTAMP, so the string
	// comparison below orders by time.
	cutoff := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, error_message = 'orphaned' WHERE status = 'running' AND created_at < ?`,
		RunError, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("store: sweep orphans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: sweep orphans: %w", err)
	}
	return n, nil
}
