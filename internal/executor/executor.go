// Package executor runs a planned balance plan to completion: one rsync
// invocation per move, sequential, phase-ordered, with progress reporting,
// cooperative cancellation, and crash-safe status transitions.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
	"rebalanced/internal/events"
	"rebalanced/internal/kernel"
	"rebalanced/internal/pathsafety"
	"rebalanced/internal/procutil"
)

// Summary reports the terminal outcome of one plan execution.
type Summary struct {
	PlanID          int64
	MovesCompleted  uint32
	MovesFailed     uint32
	MovesSkipped    uint32
	DurationSeconds float64
	Cancelled       bool
}

// Execute runs every pending move in planID, phase by phase, in exec_order
// within a phase. ctx is the per-operation cancellation context from
// internal/kernel — when it's cancelled, the current move is either allowed
// to finish (if rsync already exited) or killed, and every move not yet
// started is left pending for a future execution.
func Execute(ctx context.Context, k *kernel.Kernel, store *catalog.Store, hub *events.Hub, log zerolog.Logger, planID int64) (Summary, error) {
	log = log.With().Str("component", "executor").Int64("plan_id", planID).Logger()
	start := time.Now()

	disks, err := store.GetAllDisks()
	if err != nil {
		return Summary{}, fmt.Errorf("execute plan %d: %w", planID, err)
	}
	mountByDisk := make(map[int64]string, len(disks))
	for _, d := range disks {
		mountByDisk[d.ID] = d.MountPath
	}

	if err := store.UpdatePlanStatus(planID, catalog.PlanStatusExecuting); err != nil {
		return Summary{}, fmt.Errorf("execute plan %d: %w", planID, err)
	}

	useProgress2 := procutil.RsyncSupportsProgress2()

	maxPhase, err := store.GetMaxPhase(planID)
	if err != nil {
		return Summary{}, fmt.Errorf("execute plan %d: %w", planID, err)
	}

	var summary Summary
	summary.PlanID = planID

phaseLoop:
	for phase := 1; phase <= maxPhase; phase++ {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break phaseLoop
		}

		moves, err := store.GetPendingMovesForPhase(planID, phase)
		if err != nil {
			return Summary{}, fmt.Errorf("execute plan %d phase %d: %w", planID, phase, err)
		}

		for i, move := range moves {
			if ctx.Err() != nil {
				summary.Cancelled = true
				break phaseLoop
			}

			sourceMount, haveSource := mountByDisk[move.SourceDiskID]
			targetMount, haveTarget := mountByDisk[move.TargetDiskID]
			if !haveSource {
				failMove(store, move.ID, "unknown source disk", &summary, hub)
				continue
			}
			if !haveTarget {
				failMove(store, move.ID, "unknown target disk", &summary, hub)
				continue
			}

			k.SetStatus(kernel.Status{
				State:  kernel.StateExecuting,
				Detail: fmt.Sprintf("moving %s (%d/%d)", move.FilePath, i+1, len(moves)),
			})

			if err := store.UpdateMoveStatus(move.ID, catalog.MoveStatusInProgress, ""); err != nil {
				log.Error().Err(err).Int64("move_id", move.ID).Msg("failed to mark move in_progress")
			}

			outcome := executeSingleMove(ctx, k, hub, log, move, sourceMount, targetMount, useProgress2)
			applyOutcome(store, hub, move.ID, outcome, &summary)

			if outcome.cancelled {
				summary.Cancelled = true
				break phaseLoop
			}
		}
	}

	duration := time.Since(start).Seconds()
	summary.DurationSeconds = duration

	finalStatus := catalog.PlanStatusCompleted
	if summary.Cancelled {
		finalStatus = catalog.PlanStatusCancelled
	}
	if err := store.UpdatePlanStatus(planID, finalStatus); err != nil {
		return summary, fmt.Errorf("execute plan %d: %w", planID, err)
	}

	hub.ExecutionComplete(events.ExecutionCompleteData{
		PlanID:          planID,
		MovesCompleted:  summary.MovesCompleted,
		MovesFailed:     summary.MovesFailed,
		MovesSkipped:    summary.MovesSkipped,
		DurationSeconds: duration,
	})

	return summary, nil
}

type moveOutcome int

const (
	outcomeSuccess moveOutcome = iota
	outcomeFailed
	outcomeSkipped
	outcomeCancelled
)

type singleMoveResult struct {
	outcome   moveOutcome
	errMsg    string
	cancelled bool
}

func failMove(store *catalog.Store, moveID int64, msg string, summary *Summary, hub *events.Hub) {
	store.UpdateMoveStatus(moveID, catalog.MoveStatusFailed, msg)
	summary.MovesFailed++
	hub.MoveComplete(events.MoveCompleteData{MoveID: moveID, Status: events.MoveOutcomeFailed, Error: msg})
}

func applyOutcome(store *catalog.Store, hub *events.Hub, moveID int64, result singleMoveResult, summary *Summary) {
	switch result.outcome {
	case outcomeSuccess:
		store.UpdateMoveStatus(moveID, catalog.MoveStatusCompleted, "")
		summary.MovesCompleted++
		hub.MoveComplete(events.MoveCompleteData{MoveID: moveID, Status: events.MoveOutcomeSuccess, Verified: true})
	case outcomeSkipped:
		store.UpdateMoveStatus(moveID, catalog.MoveStatusSkipped, result.errMsg)
		summary.MovesSkipped++
		hub.MoveComplete(events.MoveCompleteData{MoveID: moveID, Status: events.MoveOutcomeSkipped, Error: result.errMsg})
	case outcomeCancelled:
		store.UpdateMoveStatus(moveID, catalog.MoveStatusPending, "")
	case outcomeFailed:
		store.UpdateMoveStatus(moveID, catalog.MoveStatusFailed, result.errMsg)
		summary.MovesFailed++
		hub.MoveComplete(events.MoveCompleteData{MoveID: moveID, Status: events.MoveOutcomeFailed, Error: result.errMsg})
	}
}

// executeSingleMove runs one file's rsync transfer, streaming progress
// events as it parses rsync's stdout. The existence checks, the open-file
// probe, and the safety-gate re-check all happen here, immediately before
// any filesystem mutation.
func executeSingleMove(ctx context.Context, k *kernel.Kernel, hub *events.Hub, log zerolog.Logger, move catalog.PlannedMoveDetail, sourceMount, targetMount string, useProgress2 bool) singleMoveResult {
	source := filepath.Join(sourceMount, move.FilePath)
	target := filepath.Join(targetMount, move.FilePath)

	if err := pathsafety.Check(source); err != nil {
		return singleMoveResult{outcome: outcomeFailed, errMsg: err.Error()}
	}
	if err := pathsafety.Check(target); err != nil {
		return singleMoveResult{outcome: outcomeFailed, errMsg: err.Error()}
	}

	if _, err := os.Stat(source); err != nil {
		return singleMoveResult{outcome: outcomeSkipped, errMsg: "source file not found"}
	}

	if procutil.IsFileOpen(source) {
		log.Warn().Str("path", source).Msg("file is open, skipping")
		return singleMoveResult{outcome: outcomeSkipped, errMsg: "file is currently open"}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return singleMoveResult{outcome: outcomeFailed, errMsg: err.Error()}
	}

	args := []string{"-avPX", "--remove-source-files"}
	if useProgress2 {
		args = append(args, "--info=progress2")
	}
	args = append(args, source, target)

	cmd := exec.CommandContext(ctx, "rsync", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return singleMoveResult{outcome: outcomeFailed, errMsg: err.Error()}
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return singleMoveResult{outcome: outcomeFailed, errMsg: err.Error()}
	}
	k.SetChild(cmd)
	defer k.ClearChild()

	scanner := bufio.NewScanner(stdout)
	scanner.Split(bufio.ScanLines)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if sample, ok := procutil.ParseProgressLine(line); ok {
			hub.MoveProgress(events.MoveProgressData{
				MoveID:   move.ID,
				FilePath: move.FilePath,
				Percent:  sample.Percent,
				Speed:    sample.Speed,
				ETA:      sample.ETA,
			})
		}
	}

	err = cmd.Wait()

	if err == nil {
		return singleMoveResult{outcome: outcomeSuccess}
	}
	if ctx.Err() != nil {
		return singleMoveResult{outcome: outcomeCancelled, cancelled: true}
	}
	return singleMoveResult{outcome: outcomeFailed, errMsg: fmt.Sprintf("rsync failed: %v", err)}
}
