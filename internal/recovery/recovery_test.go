package recovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
)

func openTestStore(t *testing.T) *catalog.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func setupStaleMove(t *testing.T, s *catalog.Store, srcMount, dstMount, relPath string) int64 {
	t.Helper()
	src, err := s.UpsertDisk("src", srcMount, 1000, 500, 500, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk src: %v", err)
	}
	dst, err := s.UpsertDisk("dst", dstMount, 1000, 500, 500, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk dst: %v", err)
	}
	planID, err := s.CreatePlan(0.05, 0.5, 0.5, 0.4)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.UpdatePlanStatus(planID, catalog.PlanStatusExecuting); err != nil {
		t.Fatalf("UpdatePlanStatus: %v", err)
	}
	if err := s.InsertPlannedMoves(planID, []catalog.PlannedMove{
		{FileID: 1, SourceDiskID: src, TargetDiskID: dst, FilePath: relPath, FileSize: 10, Phase: 1},
	}); err != nil {
		t.Fatalf("InsertPlannedMoves: %v", err)
	}
	moves, err := s.GetPlanMoves(planID)
	if err != nil || len(moves) != 1 {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	if err := s.UpdateMoveStatus(moves[0].ID, catalog.MoveStatusInProgress, ""); err != nil {
		t.Fatalf("UpdateMoveStatus: %v", err)
	}
	return moves[0].ID
}

func TestRunMarksCompletedWhenOnlyTargetExists(t *testing.T) {
	s := openTestStore(t)
	srcMount, dstMount := t.TempDir(), t.TempDir()
	moveID := setupStaleMove(t, s, srcMount, dstMount, "a.bin")

	if err := os.WriteFile(filepath.Join(dstMount, "a.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}

	stats, err := Run(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.MovesCompleted != 1 {
		t.Errorf("MovesCompleted = %d, want 1", stats.MovesCompleted)
	}

	moves, err := s.GetPlanMoves(1)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	var got catalog.MoveStatus
	for _, m := range moves {
		if m.ID == moveID {
			got = m.Status
		}
	}
	if got != catalog.MoveStatusCompleted {
		t.Errorf("move status = %s, want completed", got)
	}
}

func TestRunCleansPartialTargetWhenBothExist(t *testing.T) {
	s := openTestStore(t)
	srcMount, dstMount := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(srcMount, "a.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dstMount, "a.bin"), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	setupStaleMove(t, s, srcMount, dstMount, "a.bin")

	stats, err := Run(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.PartialsCleaned != 1 {
		t.Errorf("PartialsCleaned = %d, want 1", stats.PartialsCleaned)
	}
	if _, err := os.Stat(filepath.Join(dstMount, "a.bin")); !os.IsNotExist(err) {
		t.Error("expected partial target file to be removed")
	}
}

func TestRunLeavesMovePendingWhenOnlySourceExists(t *testing.T) {
	s := openTestStore(t)
	srcMount, dstMount := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(srcMount, "a.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	moveID := setupStaleMove(t, s, srcMount, dstMount, "a.bin")

	stats, err := Run(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.MovesCompleted != 0 || stats.PartialsCleaned != 0 || stats.DataLossCount != 0 {
		t.Errorf("expected no-op outcome, got %+v", stats)
	}

	moves, err := s.GetPlanMoves(1)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	for _, m := range moves {
		if m.ID == moveID && m.Status != catalog.MoveStatusPending {
			t.Errorf("move status = %s, want pending", m.Status)
		}
	}
}

func TestRunMarksDataLossWhenNeitherExists(t *testing.T) {
	s := openTestStore(t)
	srcMount, dstMount := t.TempDir(), t.TempDir()
	moveID := setupStaleMove(t, s, srcMount, dstMount, "gone.bin")

	stats, err := Run(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.DataLossCount != 1 {
		t.Errorf("DataLossCount = %d, want 1", stats.DataLossCount)
	}

	moves, err := s.GetPlanMoves(1)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	for _, m := range moves {
		if m.ID == moveID {
			if m.Status != catalog.MoveStatusFailed {
				t.Errorf("move status = %s, want failed", m.Status)
			}
			if m.ErrorMessage == "" {
				t.Error("expected an error message recorded for data loss")
			}
		}
	}
}
