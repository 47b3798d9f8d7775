package store

import (
	"context"
	"fmt"
	"time"
)

// RunRetention deletes finished runs (with their transitions and snapshots)
// that finished before now minus maxAge.
func (s *Store) RunRetention(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE finished_at IS NOT NULL AND finished_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("runs", n).Msg("retention removed old runs")
	}
	return n, nil
}
