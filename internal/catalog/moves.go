package catalog

import "fmt"

// InsertPlannedMoves bulk-inserts the moves a planning pass produced, in a
// single transaction, preserving the slice order as exec_order.
func (s *Store) InsertPlannedMoves(planID int64, moves []PlannedMove) error {
	if len(moves) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("insert planned moves for plan %d: %w", planID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO planned_moves (plan_id, file_id, source_disk_id, target_disk_id, file_path, file_size, exec_order, phase, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert planned moves for plan %d: prepare: %w", planID, err)
	}
	defer stmt.Close()

	for i, m := range moves {
		if _, err := stmt.Exec(planID, m.FileID, m.SourceDiskID, m.TargetDiskID, m.FilePath, m.FileSize, i, m.Phase, string(MoveStatusPending)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert planned moves for plan %d: move %d: %w", planID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert planned moves for plan %d: %w", planID, err)
	}
	return nil
}

func scanPlannedMoveDetail(row interface {
	Scan(...interface{}) error
}) (PlannedMoveDetail, error) {
	var d PlannedMoveDetail
	var status, errMsg string
	if err := row.Scan(
		&d.ID, &d.PlanID, &d.FileID, &d.SourceDiskID, &d.TargetDiskID, &d.FilePath, &d.FileSize,
		&d.ExecOrder, &d.Phase, &status, &errMsg, &d.SourceDiskName, &d.TargetDiskName,
	); err != nil {
		return PlannedMoveDetail{}, err
	}
	d.Status = MoveStatus(status)
	d.ErrorMessage = errMsg
	return d, nil
}

const plannedMoveDetailQuery = `
	SELECT
		pm.id, pm.plan_id, pm.file_id, pm.source_disk_id, pm.target_disk_id, pm.file_path, pm.file_size,
		pm.exec_order, pm.phase, pm.status, COALESCE(pm.error_message, ''),
		sd.name, td.name
	FROM planned_moves pm
	JOIN disks sd ON sd.id = pm.source_disk_id
	JOIN disks td ON td.id = pm.target_disk_id
`

// GetPlanMoves returns every move belonging to a plan, in execution order.
func (s *Store) GetPlanMoves(planID int64) ([]PlannedMoveDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(plannedMoveDetailQuery+` WHERE pm.plan_id = ? ORDER BY pm.exec_order`, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %d moves: %w", planID, err)
	}
	defer rows.Close()

	var out []PlannedMoveDetail
	for rows.Next() {
		d, err := scanPlannedMoveDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("get plan %d moves: scan: %w", planID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetPendingMovesForPhase returns the pending moves of one phase, in exec
// order — the unit of work the executor pulls one phase at a time.
func (s *Store) GetPendingMovesForPhase(planID int64, phase int) ([]PlannedMoveDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(plannedMoveDetailQuery+`
		WHERE pm.plan_id = ? AND pm.phase = ? AND pm.status = ?
		ORDER BY pm.exec_order
	`, planID, phase, string(MoveStatusPending))
	if err != nil {
		return nil, fmt.Errorf("get pending moves for plan %d phase %d: %w", planID, phase, err)
	}
	defer rows.Close()

	var out []PlannedMoveDetail
	for rows.Next() {
		d, err := scanPlannedMoveDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("get pending moves for plan %d phase %d: scan: %w", planID, phase, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetMaxPhase returns the highest phase number used by a plan's moves, or 0
// if the plan has none.
func (s *Store) GetMaxPhase(planID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var max int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(phase), 0) FROM planned_moves WHERE plan_id = ?`, planID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("get max phase for plan %d: %w", planID, err)
	}
	return max, nil
}

// UpdateMoveStatus transitions one move to a new status, recording an error
// message when the move failed.
func (s *Store) UpdateMoveStatus(moveID int64, status MoveStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE planned_moves SET status = ?, error_message = ? WHERE id = ?`, string(status), errMsg, moveID)
	if err != nil {
		return fmt.Errorf("update move %d status to %s: %w", moveID, status, err)
	}
	return nil
}

// GetMovesPathInfo resolves the absolute-path ingredients recovery needs for
// a set of moves without pulling in full disk rows.
func (s *Store) GetMovesPathInfo(moveIDs []int64) ([]MovePathInfo, error) {
	if len(moveIDs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]interface{}, 0, len(moveIDs))
	query := `
		SELECT pm.id, pm.file_path, sd.mount_path, td.mount_path
		FROM planned_moves pm
		JOIN disks sd ON sd.id = pm.source_disk_id
		JOIN disks td ON td.id = pm.target_disk_id
		WHERE pm.id IN (`
	for i, id := range moveIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders = append(placeholders, id)
	}
	query += ")"

	rows, err := s.db.Query(query, placeholders...)
	if err != nil {
		return nil, fmt.Errorf("get moves path info: %w", err)
	}
	defer rows.Close()

	var out []MovePathInfo
	for rows.Next() {
		var m MovePathInfo
		if err := rows.Scan(&m.ID, &m.FilePath, &m.SourceMount, &m.TargetMount); err != nil {
			return nil, fmt.Errorf("get moves path info: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FailInProgressMoves marks every move still "in_progress" for a plan as
// failed, with a fixed error message — used when the executor aborts
// abnormally (panic recovery, forced shutdown).
func (s *Store) FailInProgressMoves(planID int64, errMsg string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE planned_moves SET status = ?, error_message = ?
		WHERE plan_id = ? AND status = ?
	`, string(MoveStatusFailed), errMsg, planID, string(MoveStatusInProgress))
	if err != nil {
		return 0, fmt.Errorf("fail in-progress moves for plan %d: %w", planID, err)
	}
	return res.RowsAffected()
}
