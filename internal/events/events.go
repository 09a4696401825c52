// Package events carries progress and lifecycle notifications from the
// scanner, planner and executor out to SSE subscribers.
package events

import "time"

// Type identifies one of the fixed event kinds the daemon emits.
type Type string

const (
	TypeScanProgress     Type = "scan_progress"
	TypeScanDiskComplete Type = "scan_disk_complete"
	TypeScanComplete     Type = "scan_complete"
	TypePlanReady        Type = "plan_ready"
	TypeMoveProgress     Type = "move_progress"
	TypeMoveComplete     Type = "move_complete"
	TypeExecutionComplete Type = "execution_complete"
	TypeDaemonError      Type = "daemon_error"
)

// Event is the envelope published on the hub and serialized as an SSE
// "data:" payload. Data holds one of the *Data structs below depending on
// Type.
type Event struct {
	Type      Type        `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ScanProgressData reports incremental progress while one disk is being
// walked. The scanner does not know the total file count up front and does
// not estimate Percent: it leaves Percent at 0.
type ScanProgressData struct {
	Disk            string  `json:"disk"`
	FilesScanned    uint64  `json:"files_scanned"`
	BytesCataloged  uint64  `json:"bytes_cataloged"`
	Percent         float64 `json:"percent"`
}

// ScanDiskCompleteData marks one disk's scan finished.
type ScanDiskCompleteData struct {
	Disk       string `json:"disk"`
	TotalFiles uint64 `json:"total_files"`
	TotalBytes uint64 `json:"total_bytes"`
}

// ScanCompleteData marks every included disk's scan finished.
type ScanCompleteData struct {
	TotalDisks      uint32  `json:"total_disks"`
	TotalFiles      uint64  `json:"total_files"`
	TotalBytes      uint64  `json:"total_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PlanReadyData announces a freshly generated plan.
type PlanReadyData struct {
	PlanID             int64   `json:"plan_id"`
	TotalMoves         uint32  `json:"total_moves"`
	TotalBytes         uint64  `json:"total_bytes"`
	ProjectedImbalance float64 `json:"projected_imbalance"`
}

// MoveProgressData reports rsync's parsed progress for one in-flight move.
type MoveProgressData struct {
	MoveID   int64   `json:"move_id"`
	FilePath string  `json:"file_path"`
	Percent  float64 `json:"percent"`
	Speed    string  `json:"speed"`
	ETA      string  `json:"eta"`
}

// MoveStatus is the terminal outcome reported in a MoveCompleteData event.
type MoveStatus string

const (
	MoveOutcomeSuccess MoveStatus = "success"
	MoveOutcomeFailed  MoveStatus = "failed"
	MoveOutcomeSkipped MoveStatus = "skipped"
)

// MoveCompleteData reports one move's terminal outcome. Verified is true
// whenever rsync reported success — the daemon trusts rsync's own exit
// status rather than re-hashing the file.
type MoveCompleteData struct {
	MoveID   int64      `json:"move_id"`
	Status   MoveStatus `json:"status"`
	Verified bool       `json:"verified"`
	Error    string     `json:"error,omitempty"`
}

// ExecutionCompleteData summarizes a finished (or cancelled) plan execution.
type ExecutionCompleteData struct {
	PlanID          int64   `json:"plan_id"`
	MovesCompleted  uint32  `json:"moves_completed"`
	MovesFailed     uint32  `json:"moves_failed"`
	MovesSkipped    uint32  `json:"moves_skipped"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// DaemonErrorData is a generic out-of-band error notification.
type DaemonErrorData struct {
	Message string `json:"message"`
}
