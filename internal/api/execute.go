package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
	"rebalanced/internal/executor"
	"rebalanced/internal/kernel"
	"rebalanced/internal/obsmetrics"
	"rebalanced/internal/procutil"
)

func parityCheckRunning() (bool, error) {
	return procutil.IsParityCheckRunning(), nil
}

// runExecution drives one plan's executor.Execute call as the daemon's
// single background task, with a panic guard matching the recovery
// semantics spec.md §5 describes for a crashed background task: the plan
// and its in-progress moves are marked failed, a daemon_error is published,
// and the kernel always returns to Idle.
func runExecution(ctx context.Context, wg *sync.WaitGroup, s *Server, log zerolog.Logger, planID int64) {
	defer wg.Done()
	defer s.Kernel.SetTask(nil)
	defer s.Kernel.SetStatus(kernel.Idle())

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("execution panicked: %v", r)
			log.Error().Interface("panic", r).Msg("executor panicked")
			s.Store.UpdatePlanStatus(planID, catalog.PlanStatusFailed)
			s.Store.FailInProgressMoves(planID, "executor panicked mid-move")
			s.Hub.DaemonError(msg)
		}
	}()

	summary, err := executor.Execute(ctx, s.Kernel, s.Store, s.Hub, log, planID)
	if err != nil {
		log.Error().Err(err).Msg("execute plan failed")
		s.Hub.DaemonError(err.Error())
		return
	}

	obsmetrics.MovesTotal.WithLabelValues("completed").Add(float64(summary.MovesCompleted))
	obsmetrics.MovesTotal.WithLabelValues("failed").Add(float64(summary.MovesFailed))
	obsmetrics.MovesTotal.WithLabelValues("skipped").Add(float64(summary.MovesSkipped))
	if summary.Cancelled {
		obsmetrics.ExecutionsCancelledTotal.Inc()
	}
}
