package catalog

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertDiskInsertsThenUpdates(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 100, 900, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk: %v", err)
	}

	id2, err := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 500, 500, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk (update): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable id across upserts, got %d then %d", id1, id2)
	}

	d, err := s.GetDisk(id1)
	if err != nil {
		t.Fatalf("GetDisk: %v", err)
	}
	if d.UsedBytes != 500 {
		t.Errorf("used bytes = %d, want 500 (update should overwrite)", d.UsedBytes)
	}
}

func TestGetIncludedDisksFiltersExcluded(t *testing.T) {
	s := openTestStore(t)

	id1, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 0, 1000, "xfs")
	_, err := s.UpsertDisk("disk2", "/mnt/disk2", 1000, 0, 1000, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk disk2: %v", err)
	}

	if err := s.SetDiskIncluded(id1, false); err != nil {
		t.Fatalf("SetDiskIncluded: %v", err)
	}

	included, err := s.GetIncludedDisks()
	if err != nil {
		t.Fatalf("GetIncludedDisks: %v", err)
	}
	if len(included) != 1 || included[0].Name != "disk2" {
		t.Errorf("included disks = %+v, want only disk2", included)
	}

	all, err := s.GetAllDisks()
	if err != nil {
		t.Fatalf("GetAllDisks: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all disks = %d, want 2", len(all))
	}
}

func TestDiskScanLifecycleCommit(t *testing.T) {
	s := openTestStore(t)
	diskID, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 0, 1000, "xfs")

	if err := s.BeginDiskScan(diskID); err != nil {
		t.Fatalf("BeginDiskScan: %v", err)
	}

	batch := []FileInsert{
		{DiskID: diskID, FilePath: "movies/a.mkv", FileName: "a.mkv", SizeBytes: 300, ParentPath: "movies", MTime: 1},
		{DiskID: diskID, FilePath: "movies/b.mkv", FileName: "b.mkv", SizeBytes: 700, ParentPath: "movies", MTime: 2},
	}
	if err := s.InsertFilesBatch(batch); err != nil {
		t.Fatalf("InsertFilesBatch: %v", err)
	}

	if err := s.CommitDiskScan(diskID); err != nil {
		t.Fatalf("CommitDiskScan: %v", err)
	}

	files, err := s.GetFilesForDisk(diskID)
	if err != nil {
		t.Fatalf("GetFilesForDisk: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %d, want 2", len(files))
	}
	if files[0].SizeBytes != 700 {
		t.Errorf("first file size = %d, want 700 (descending order)", files[0].SizeBytes)
	}
}

func TestDiskScanLifecycleRollbackDiscardsBatch(t *testing.T) {
	s := openTestStore(t)
	diskID, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 0, 1000, "xfs")

	if err := s.BeginDiskScan(diskID); err != nil {
		t.Fatalf("BeginDiskScan: %v", err)
	}
	if err := s.InsertFilesBatch([]FileInsert{
		{DiskID: diskID, FilePath: "x.bin", FileName: "x.bin", SizeBytes: 1, ParentPath: "."},
	}); err != nil {
		t.Fatalf("InsertFilesBatch: %v", err)
	}
	if err := s.RollbackDiskScan(); err != nil {
		t.Fatalf("RollbackDiskScan: %v", err)
	}

	files, err := s.GetFilesForDisk(diskID)
	if err != nil {
		t.Fatalf("GetFilesForDisk: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files after rollback = %d, want 0", len(files))
	}
}

func TestBeginDiskScanRejectsConcurrentScan(t *testing.T) {
	s := openTestStore(t)
	diskID, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 0, 1000, "xfs")

	if err := s.BeginDiskScan(diskID); err != nil {
		t.Fatalf("BeginDiskScan: %v", err)
	}
	defer s.RollbackDiskScan()

	if err := s.BeginDiskScan(diskID); err == nil {
		t.Error("expected error starting a second scan while one is open")
	}
}

func TestPlanAndMovesLifecycle(t *testing.T) {
	s := openTestStore(t)
	src, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 900, 100, "xfs")
	dst, _ := s.UpsertDisk("disk2", "/mnt/disk2", 1000, 100, 900, "xfs")

	if err := s.BeginDiskScan(src); err != nil {
		t.Fatalf("BeginDiskScan: %v", err)
	}
	if err := s.InsertFilesBatch([]FileInsert{
		{DiskID: src, FilePath: "big.mkv", FileName: "big.mkv", SizeBytes: 400, ParentPath: "."},
	}); err != nil {
		t.Fatalf("InsertFilesBatch: %v", err)
	}
	if err := s.CommitDiskScan(src); err != nil {
		t.Fatalf("CommitDiskScan: %v", err)
	}
	files, err := s.GetFilesForDisk(src)
	if err != nil || len(files) != 1 {
		t.Fatalf("GetFilesForDisk: %v files=%v", err, files)
	}

	planID, err := s.CreatePlan(0.05, 0.5, 0.5, 0.4)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	move := PlannedMove{
		FileID:       files[0].ID,
		SourceDiskID: src,
		TargetDiskID: dst,
		FilePath:     files[0].FilePath,
		FileSize:     files[0].SizeBytes,
		Phase:        1,
	}
	if err := s.InsertPlannedMoves(planID, []PlannedMove{move}); err != nil {
		t.Fatalf("InsertPlannedMoves: %v", err)
	}
	if err := s.UpdatePlanProjections(planID, 0.01, 1, 400); err != nil {
		t.Fatalf("UpdatePlanProjections: %v", err)
	}

	moves, err := s.GetPlanMoves(planID)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	if len(moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(moves))
	}
	if moves[0].SourceDiskName != "disk1" || moves[0].TargetDiskName != "disk2" {
		t.Errorf("move disk names = %s -> %s, want disk1 -> disk2", moves[0].SourceDiskName, moves[0].TargetDiskName)
	}
	if moves[0].Status != MoveStatusPending {
		t.Errorf("move status = %s, want pending", moves[0].Status)
	}

	maxPhase, err := s.GetMaxPhase(planID)
	if err != nil || maxPhase != 1 {
		t.Errorf("GetMaxPhase = %d, %v; want 1, nil", maxPhase, err)
	}

	pending, err := s.GetPendingMovesForPhase(planID, 1)
	if err != nil || len(pending) != 1 {
		t.Fatalf("GetPendingMovesForPhase: %v, %d", err, len(pending))
	}

	if err := s.UpdateMoveStatus(moves[0].ID, MoveStatusInProgress, ""); err != nil {
		t.Fatalf("UpdateMoveStatus: %v", err)
	}
	if err := s.UpdatePlanStatus(planID, PlanStatusExecuting); err != nil {
		t.Fatalf("UpdatePlanStatus: %v", err)
	}

	pathInfo, err := s.GetMovesPathInfo([]int64{moves[0].ID})
	if err != nil || len(pathInfo) != 1 {
		t.Fatalf("GetMovesPathInfo: %v, %d", err, len(pathInfo))
	}
	if pathInfo[0].SourceMount != "/mnt/disk1" || pathInfo[0].TargetMount != "/mnt/disk2" {
		t.Errorf("path info mounts = %s, %s", pathInfo[0].SourceMount, pathInfo[0].TargetMount)
	}
}

func TestRecoverStaleStatesResetsInProgressMoves(t *testing.T) {
	s := openTestStore(t)
	src, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 900, 100, "xfs")
	dst, _ := s.UpsertDisk("disk2", "/mnt/disk2", 1000, 100, 900, "xfs")

	planID, err := s.CreatePlan(0.05, 0.5, 0.5, 0.4)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if err := s.UpdatePlanStatus(planID, PlanStatusExecuting); err != nil {
		t.Fatalf("UpdatePlanStatus: %v", err)
	}
	if err := s.InsertPlannedMoves(planID, []PlannedMove{
		{FileID: 1, SourceDiskID: src, TargetDiskID: dst, FilePath: "a.bin", FileSize: 10, Phase: 1},
	}); err != nil {
		t.Fatalf("InsertPlannedMoves: %v", err)
	}
	moves, err := s.GetPlanMoves(planID)
	if err != nil || len(moves) != 1 {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	if err := s.UpdateMoveStatus(moves[0].ID, MoveStatusInProgress, ""); err != nil {
		t.Fatalf("UpdateMoveStatus: %v", err)
	}

	stats, err := s.RecoverStaleStates()
	if err != nil {
		t.Fatalf("RecoverStaleStates: %v", err)
	}
	if stats.MovesReset != 1 {
		t.Errorf("MovesReset = %d, want 1", stats.MovesReset)
	}
	if stats.PlansFailed != 1 {
		t.Errorf("PlansFailed = %d, want 1", stats.PlansFailed)
	}

	plan, err := s.GetPlan(planID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if plan.Status != PlanStatusFailed {
		t.Errorf("plan status = %s, want failed", plan.Status)
	}

	updated, err := s.GetPlanMoves(planID)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	if updated[0].Status != MoveStatusPending {
		t.Errorf("move status after recovery = %s, want pending", updated[0].Status)
	}
}

func TestApplyMoveRecoveryDecisions(t *testing.T) {
	s := openTestStore(t)
	src, _ := s.UpsertDisk("disk1", "/mnt/disk1", 1000, 900, 100, "xfs")
	dst, _ := s.UpsertDisk("disk2", "/mnt/disk2", 1000, 100, 900, "xfs")
	planID, _ := s.CreatePlan(0.05, 0.5, 0.5, 0.4)
	if err := s.InsertPlannedMoves(planID, []PlannedMove{
		{FileID: 1, SourceDiskID: src, TargetDiskID: dst, FilePath: "a.bin", FileSize: 10, Phase: 1},
	}); err != nil {
		t.Fatalf("InsertPlannedMoves: %v", err)
	}
	moves, _ := s.GetPlanMoves(planID)

	if err := s.ApplyMoveRecoveryDecisions(map[int64]MoveStatus{moves[0].ID: MoveStatusFailed}); err != nil {
		t.Fatalf("ApplyMoveRecoveryDecisions: %v", err)
	}

	updated, err := s.GetPlanMoves(planID)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	if updated[0].Status != MoveStatusFailed {
		t.Errorf("status = %s, want failed", updated[0].Status)
	}
	if updated[0].ErrorMessage == "" {
		t.Error("expected error message to be set on failed recovery decision")
	}
}
