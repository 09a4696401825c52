// Package recovery runs at daemon startup, before the HTTP server accepts
// requests, to reconcile any plan left "executing" by an unclean shutdown.
// internal/catalog.RecoverStaleStates resets in_progress moves to pending;
// this package then inspects each one's actual filesystem state to decide
// whether it really finished, partially finished, or was never touched.
package recovery

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
)

// Stats summarizes one recovery pass for logging and the startup response.
type Stats struct {
	PlansFailed      int
	MovesReset       int
	MovesCompleted   int
	PartialsCleaned  int
	DataLossCount    int
}

// Run performs the full crash-recovery sequence: reset stale DB state, then
// inspect the filesystem for every move that was in_progress and apply the
// decision matrix documented on resolveMove.
func Run(store *catalog.Store, log zerolog.Logger) (Stats, error) {
	log = log.With().Str("component", "recovery").Logger()

	dbStats, err := store.RecoverStaleStates()
	if err != nil {
		return Stats{}, fmt.Errorf("recovery: %w", err)
	}

	stats := Stats{PlansFailed: dbStats.PlansFailed, MovesReset: dbStats.MovesReset}
	if dbStats.PlansFailed > 0 || dbStats.MovesReset > 0 {
		log.Warn().
			Int("plans_failed", dbStats.PlansFailed).
			Int("moves_reset", dbStats.MovesReset).
			Msg("recovered from unclean shutdown")
	}

	if len(dbStats.RecoveredMoveIDs) == 0 {
		return stats, nil
	}

	pathInfos, err := store.GetMovesPathInfo(dbStats.RecoveredMoveIDs)
	if err != nil {
		return stats, fmt.Errorf("recovery: %w", err)
	}

	decisions := make(map[int64]catalog.MoveStatus, len(pathInfos))
	for _, info := range pathInfos {
		outcome := resolveMove(info)
		switch outcome {
		case outcomeCompleted:
			decisions[info.ID] = catalog.MoveStatusCompleted
			stats.MovesCompleted++
			log.Info().Int64("move_id", info.ID).Str("path", info.FilePath).Msg("move recovered as completed")
		case outcomeCleaned:
			stats.PartialsCleaned++
			log.Info().Int64("move_id", info.ID).Str("path", info.FilePath).Msg("removed partial target file, move stays pending")
		case outcomeNoAction:
			// stays pending, nothing to log per-move
		case outcomeDataLoss:
			decisions[info.ID] = catalog.MoveStatusFailed
			stats.DataLossCount++
			log.Error().Int64("move_id", info.ID).Str("path", info.FilePath).Msg("data loss: source and target both missing after crash")
		}
	}

	if len(decisions) > 0 {
		if err := store.ApplyMoveRecoveryDecisions(decisions); err != nil {
			return stats, fmt.Errorf("recovery: %w", err)
		}
	}

	return stats, nil
}

type outcome int

const (
	outcomeNoAction outcome = iota
	outcomeCleaned
	outcomeCompleted
	outcomeDataLoss
)

// resolveMove applies the decision matrix for one previously in_progress
// move, based on whether rsync's --remove-source-files semantics left the
// source and/or target present:
//
//	source exists, target exists  -> partial target from an interrupted
//	                                  transfer; delete it, move stays pending
//	source exists, target absent  -> rsync never started moving data; no
//	                                  action, move stays pending
//	source absent,  target exists -> rsync finished and removed the source
//	                                  before the daemon could record it;
//	                                  mark completed
//	source absent,  target absent -> neither copy survived; data loss
func resolveMove(info catalog.MovePathInfo) outcome {
	source := info.SourceMount + "/" + info.FilePath
	target := info.TargetMount + "/" + info.FilePath

	sourceExists := pathExists(source)
	targetExists := pathExists(target)

	switch {
	case sourceExists && targetExists:
		os.Remove(target)
		return outcomeCleaned
	case sourceExists && !targetExists:
		return outcomeNoAction
	case !sourceExists && targetExists:
		return outcomeCompleted
	default:
		return outcomeDataLoss
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
