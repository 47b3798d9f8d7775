package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/p-blackswan/autodev/internal/factsheet"
)

// SaveSnapshot stores the fact sheet as it stood after an agent finished.
func (s *Store) SaveSnapshot(ctx context.Context, runID, agent string, fs *factsheet.FactSheet) error {
	data, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("failed to encode fact sheet: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fact_sheet_snapshots (run_id, agent, fact_sheet, created_at) VALUES (?, ?, ?, ?)`,
		runID, agent, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest fact sheet for a run, or nil if none was saved.
func (s *Store) LatestSnapshot(ctx context.Context, runID string) (*factsheet.FactSheet, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var agent, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT agent, fact_sheet FROM fact_sheet_snapshots
		 WHERE run_id = ? ORDER BY id DESC LIMIT 1`, runID,
	).Scan(&agent, &data)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load snapshot: %w", err)
	}

	fs, err := factsheet.Parse([]byte(data))
	if err != nil {
		return nil, "", err
	}
	return fs, agent, nil
}
