package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// CreatePlan persists a freshly generated plan in "planned" status and
// returns its id.
func (s *Store) CreatePlan(tolerance, sliderAlpha, targetUtilization, initialImbalance float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT INTO balance_plans (created_at, tolerance, slider_alpha, target_utilization, initial_imbalance, projected_imbalance, total_moves, total_bytes_to_move, status)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?)
	`, time.Now().UTC().Format(time.RFC3339Nano), tolerance, sliderAlpha, targetUtilization, initialImbalance, string(PlanStatusPlanned))
	if err != nil {
		return 0, fmt.Errorf("create plan: %w", err)
	}
	return res.LastInsertId()
}

// UpdatePlanProjections sets the projected imbalance and move totals a
// completed planning pass computed, without changing status.
func (s *Store) UpdatePlanProjections(planID int64, projectedImbalance float64, totalMoves int, totalBytesToMove int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE balance_plans SET projected_imbalance = ?, total_moves = ?, total_bytes_to_move = ?
		WHERE id = ?
	`, projectedImbalance, totalMoves, totalBytesToMove, planID)
	if err != nil {
		return fmt.Errorf("update plan %d projections: %w", planID, err)
	}
	return nil
}

// UpdatePlanStatus transitions a plan to a new lifecycle status.
func (s *Store) UpdatePlanStatus(planID int64, status PlanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE balance_plans SET status = ? WHERE id = ?`, string(status), planID)
	if err != nil {
		return fmt.Errorf("update plan %d status to %s: %w", planID, status, err)
	}
	return nil
}

// GetPlan fetches one plan by id.
func (s *Store) GetPlan(planID int64) (BalancePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p BalancePlan
	var createdAt, status string
	err := s.db.QueryRow(`
		SELECT id, created_at, tolerance, slider_alpha, target_utilization, initial_imbalance, projected_imbalance, total_moves, total_bytes_to_move, status
		FROM balance_plans WHERE id = ?
	`, planID).Scan(&p.ID, &createdAt, &p.Tolerance, &p.SliderAlpha, &p.TargetUtilization, &p.InitialImbalance, &p.ProjectedImbalance, &p.TotalMoves, &p.TotalBytesToMove, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return BalancePlan{}, fmt.Errorf("plan %d: %w", planID, err)
		}
		return BalancePlan{}, fmt.Errorf("get plan %d: %w", planID, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.Status = PlanStatus(status)
	return p, nil
}
