package catalog

import "fmt"

// RecoverStaleStates is the database-side half of crash recovery, run once
// at daemon startup before the HTTP server accepts requests. Any plan left
// in "executing" status did not shut down cleanly; its in_progress moves are
// reset to pending here so the filesystem-aware pass in internal/recovery can
// inspect each one's actual source/target state and decide completed,
// pending, or failed (spec.md §4.6's decision matrix — this function only
// produces the candidate set, it does not itself inspect the filesystem).
func (s *Store) RecoverStaleStates() (RecoveryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats RecoveryStats

	rows, err := s.db.Query(`
		SELECT id FROM planned_moves WHERE status = ?
	`, string(MoveStatusInProgress))
	if err != nil {
		return stats, fmt.Errorf("recover stale states: query in-progress moves: %w", err)
	}
	var staleIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return stats, fmt.Errorf("recover stale states: scan move id: %w", err)
		}
		staleIDs = append(staleIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("recover stale states: %w", err)
	}

	for _, id := range staleIDs {
		if _, err := s.db.Exec(`UPDATE planned_moves SET status = ? WHERE id = ?`, string(MoveStatusPending), id); err != nil {
			return stats, fmt.Errorf("recover stale states: reset move %d to pending: %w", id, err)
		}
	}
	stats.MovesReset = len(staleIDs)
	stats.RecoveredMoveIDs = staleIDs

	res, err := s.db.Exec(`UPDATE balance_plans SET status = ? WHERE status = ?`, string(PlanStatusFailed), string(PlanStatusExecuting))
	if err != nil {
		return stats, fmt.Errorf("recover stale states: fail stale executing plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return stats, fmt.Errorf("recover stale states: %w", err)
	}
	stats.PlansFailed = int(n)

	return stats, nil
}

// ApplyMoveRecoveryDecisions applies the filesystem-pass outcomes computed
// by internal/recovery for a batch of previously in-progress moves.
func (s *Store) ApplyMoveRecoveryDecisions(decisions map[int64]MoveStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, status := range decisions {
		errMsg := ""
		if status == MoveStatusFailed {
			errMsg = "data loss suspected: neither source nor target file found after unclean shutdown"
		}
		if _, err := s.db.Exec(`UPDATE planned_moves SET status = ?, error_message = ? WHERE id = ?`, string(status), errMsg, id); err != nil {
			return fmt.Errorf("apply recovery decision for move %d: %w", id, err)
		}
	}
	return nil
}
