package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one orchestrated project run.
type Run struct {
	ID         string
	Request    string
	Status     string
	Error      string
	CreatedAt  int64 // unix ms
	FinishedAt int64 // unix ms, 0 = still running
}

// CreateRun inserts a new running run for a user request.
func (s *Store) CreateRun(ctx context.Context, request string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Run{
		ID:        uuid.NewString(),
		Request:   request,
		Status:    RunRunning,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, request, status, created_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Request, r.Status, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return r, nil
}

// FinishRun marks a run as finished with the given status.
func (s *Store) FinishRun(ctx context.Context, id, status string, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errMsg sql.NullString
	if runErr != nil {
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errMsg, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil, nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := &Run{}
	var errMsg sql.NullString
	var finishedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, request, status, error, created_at, finished_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Request, &r.Status, &errMsg, &r.CreatedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	r.Error = errMsg.String
	r.FinishedAt = finishedAt.Int64
	return r, nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request, status, error, created_at, finished_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var errMsg sql.NullString
		var finishedAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Request, &r.Status, &errMsg, &r.CreatedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Error = errMsg.String
		r.FinishedAt = finishedAt.Int64
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
