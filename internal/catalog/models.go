// Package catalog owns every persistent row the daemon keeps: disks, the
// files cataloged on them, folder aggregates, balance plans and their
// planned moves. It is the single writer of that state; the scanner,
// planner and executor are transient readers/writers that take a *Store by
// reference.
package catalog

import "time"

// Disk is one independently mounted array member.
type Disk struct {
	ID         int64
	Name       string
	MountPath  string
	TotalBytes int64
	UsedBytes  int64
	FreeBytes  int64
	Filesystem string
	Included   bool
	UpdatedAt  time.Time
}

// Utilization returns UsedBytes/TotalBytes, or 0 when TotalBytes is 0.
func (d Disk) Utilization() float64 {
	if d.TotalBytes <= 0 {
		return 0
	}
	return float64(d.UsedBytes) / float64(d.TotalBytes)
}

// FileEntry is one catalog row: a file or directory found during a disk
// scan. FilePath is always relative to the disk's mount root.
type FileEntry struct {
	ID          int64
	DiskID      int64
	FilePath    string
	FileName    string
	SizeBytes   int64
	IsDirectory bool
	ParentPath  string
	MTime       int64
}

// FileInsert is the write-side shape used by the scanner's batch inserts —
// it omits ID, which SQLite assigns.
type FileInsert struct {
	DiskID      int64
	FilePath    string
	FileName    string
	SizeBytes   int64
	IsDirectory bool
	ParentPath  string
	MTime       int64
}

// FolderAggregate is a per-folder rollup recomputed at scan commit time.
type FolderAggregate struct {
	DiskID     int64
	FolderPath string
	TotalBytes int64
	FileCount  int64
}

// PlanStatus is the lifecycle state of a BalancePlan.
type PlanStatus string

const (
	PlanStatusPlanned   PlanStatus = "planned"
	PlanStatusExecuting PlanStatus = "executing"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
	PlanStatusFailed    PlanStatus = "failed"
)

// BalancePlan is one generated rebalancing plan.
type BalancePlan struct {
	ID                  int64
	CreatedAt           time.Time
	Tolerance           float64
	SliderAlpha         float64
	TargetUtilization   float64
	InitialImbalance    float64
	ProjectedImbalance  float64
	TotalMoves          int
	TotalBytesToMove    int64
	Status              PlanStatus
}

// MoveStatus is the lifecycle state of a PlannedMove.
type MoveStatus string

const (
	MoveStatusPending    MoveStatus = "pending"
	MoveStatusInProgress MoveStatus = "in_progress"
	MoveStatusCompleted  MoveStatus = "completed"
	MoveStatusFailed     MoveStatus = "failed"
	MoveStatusSkipped    MoveStatus = "skipped"
)

// PlannedMove is one file transfer from SourceDiskID to TargetDiskID.
type PlannedMove struct {
	ID             int64
	PlanID         int64
	FileID         int64
	SourceDiskID   int64
	TargetDiskID   int64
	FilePath       string
	FileSize       int64
	ExecOrder      int
	Phase          int
	Status         MoveStatus
	ErrorMessage   string
}

// PlannedMoveDetail joins a PlannedMove with the display names of its two
// disks, the shape the API and executor actually want.
type PlannedMoveDetail struct {
	PlannedMove
	SourceDiskName string
	TargetDiskName string
}

// MovePathInfo is the lightweight projection recovery needs: just enough to
// reconstruct absolute source/target paths without pulling in disk rows.
type MovePathInfo struct {
	ID          int64
	FilePath    string
	SourceMount string
	TargetMount string
}

// RecoveryStats summarizes one run of RecoverStaleStates.
type RecoveryStats struct {
	PlansFailed       int
	MovesReset        int
	RecoveredMoveIDs  []int64
}
