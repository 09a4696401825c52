package planner

import (
	"path/filepath"
	"testing"

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

func seedDisk(t *testing.T, s *catalog.Store, name string, total, used int64, files []catalog.FileInsert) int64 {
	t.Helper()
	id, err := s.UpsertDisk(name, "/mnt/"+name, total, used, total-used, "xfs")
	if err != nil {
		t.Fatalf("UpsertDisk %s: %v", name, err)
	}
	if len(files) > 0 {
		if err := s.BeginDiskScan(id); err != nil {
			t.Fatalf("BeginDiskScan: %v", err)
		}
		for i := range files {
			files[i].DiskID = id
		}
		if err := s.InsertFilesBatch(files); err != nil {
			t.Fatalf("InsertFilesBatch: %v", err)
		}
		if err := s.CommitDiskScan(id); err != nil {
			t.Fatalf("CommitDiskScan: %v", err)
		}
	}
	return id
}

func TestGeneratePlanRequiresAtLeastTwoDisks(t *testing.T) {
	s := openTestStore(t)
	seedDisk(t, s, "disk1", 1000, 500, nil)

	_, err := GeneratePlan(s, 0.5, 0.15, 0, nil)
	if err == nil {
		t.Fatal("expected error with only one disk")
	}
}

func TestGeneratePlanAlreadyBalancedProducesNoMoves(t *testing.T) {
	s := openTestStore(t)
	seedDisk(t, s, "disk1", 1000, 500, nil)
	seedDisk(t, s, "disk2", 1000, 500, nil)

	result, err := GeneratePlan(s, 0.5, 0.15, 0, nil)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if result.TotalMoves != 0 {
		t.Errorf("moves = %d, want 0 for already-balanced disks", result.TotalMoves)
	}
	if result.InitialImbalance != 0 {
		t.Errorf("initial imbalance = %v, want 0", result.InitialImbalance)
	}

	plan, err := s.GetPlan(result.PlanID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if plan.TotalMoves != 0 {
		t.Errorf("persisted plan moves = %d, want 0", plan.TotalMoves)
	}
}

func TestGeneratePlanMovesFromOverToUnderUtilized(t *testing.T) {
	s := openTestStore(t)
	// disk1: 900/1000 used (90%), disk2: 100/1000 used (10%). Average 50%.
	seedDisk(t, s, "disk1", 1000, 900, []catalog.FileInsert{
		{FilePath: "a.bin", FileName: "a.bin", SizeBytes: 300},
		{FilePath: "b.bin", FileName: "b.bin", SizeBytes: 200},
	})
	seedDisk(t, s, "disk2", 1000, 100, nil)

	result, err := GeneratePlan(s, 0.0, 0.15, 0, nil)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if result.TotalMoves == 0 {
		t.Fatal("expected at least one move for an imbalanced array")
	}
	if result.ProjectedImbalance >= result.InitialImbalance {
		t.Errorf("projected imbalance %v should improve on initial %v", result.ProjectedImbalance, result.InitialImbalance)
	}

	moves, err := s.GetPlanMoves(result.PlanID)
	if err != nil {
		t.Fatalf("GetPlanMoves: %v", err)
	}
	for _, m := range moves {
		if m.SourceDiskName != "disk1" {
			t.Errorf("move source = %s, want disk1 (the over-utilized disk)", m.SourceDiskName)
		}
		if m.TargetDiskName != "disk2" {
			t.Errorf("move target = %s, want disk2 (the under-utilized disk)", m.TargetDiskName)
		}
	}

	// The largest file should be considered first (size-descending candidates).
	if moves[0].FileSize != 300 {
		t.Errorf("first move size = %d, want 300 (largest candidate first)", moves[0].FileSize)
	}
}

func TestGeneratePlanRespectsMinFreeHeadroom(t *testing.T) {
	s := openTestStore(t)
	seedDisk(t, s, "disk1", 1000, 900, []catalog.FileInsert{
		{FilePath: "a.bin", FileName: "a.bin", SizeBytes: 500},
	})
	seedDisk(t, s, "disk2", 1000, 100, nil)

	// Headroom larger than disk2's entire free space: no target can qualify.
	result, err := GeneratePlan(s, 0.0, 0.15, 950, nil)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if result.TotalMoves != 0 {
		t.Errorf("moves = %d, want 0 when headroom excludes every target", result.TotalMoves)
	}
}

func TestGeneratePlanExcludesDisksByID(t *testing.T) {
	s := openTestStore(t)
	d1 := seedDisk(t, s, "disk1", 1000, 900, []catalog.FileInsert{
		{FilePath: "a.bin", FileName: "a.bin", SizeBytes: 300},
	})
	seedDisk(t, s, "disk2", 1000, 100, nil)
	_ = d1

	result, err := GeneratePlan(s, 0.0, 0.15, 0, []int64{d1})
	if err == nil && result.TotalMoves > 0 {
		t.Fatal("expected excluding the only over-utilized disk to leave nothing to move")
	}
	// With disk1 excluded, only disk2 remains included -> fewer than 2 disks.
	if err == nil {
		t.Error("expected an error: excluding disk1 leaves fewer than 2 included disks")
	}
}

func TestGeneratePlanZeroCapacityFails(t *testing.T) {
	s := openTestStore(t)
	seedDisk(t, s, "disk1", 0, 0, nil)
	seedDisk(t, s, "disk2", 0, 0, nil)

	_, err := GeneratePlan(s, 0.5, 0.15, 0, nil)
	if err == nil {
		t.Fatal("expected error when total capacity is zero")
	}
}
