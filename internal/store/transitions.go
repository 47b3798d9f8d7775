package store

import (
	"context"
	"fmt"
	"time"
)

// Transition is one recorded agent state change.
type Transition struct {
	RunID     string
	Agent     string
	From      string
	To        string
	CreatedAt int64 // unix ms
}

// RecordTransition appends an agent state change to a run.
func (s *Store) RecordTransition(ctx context.Context, t Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_transitions (run_id, agent, from_state, to_state, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		t.RunID, t.Agent, t.From, t.To, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ListTransitions returns a run's transitions in the order they happened.
func (s *Store) ListTransitions(ctx context.Context, runID string) ([]Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, agent, from_state, to_state, created_at
		 FROM agent_transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.RunID, &t.Agent, &t.From, &t.To, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
