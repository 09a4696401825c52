package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"rebalanced/internal/catalog"
	"rebalanced/internal/events"
	"rebalanced/internal/kernel"
	"rebalanced/internal/obsmetrics"
	"rebalanced/internal/planner"
)

type createPlanRequest struct {
	Alpha          *float64 `json:"alpha,omitempty"`
	ExcludedDisks  []int64  `json:"excluded_disks,omitempty"`
}

type planSummaryResponse struct {
	ID                 int64                `json:"id"`
	TargetUtilization  float64              `json:"target_utilization"`
	InitialImbalance   float64              `json:"initial_imbalance"`
	ProjectedImbalance float64              `json:"projected_imbalance"`
	TotalMoves         int                  `json:"total_moves"`
	TotalBytesToMove   int64                `json:"total_bytes_to_move"`
	Status             string               `json:"status"`
	Moves              []moveDetailResponse `json:"moves,omitempty"`
}

type moveDetailResponse struct {
	ID             int64  `json:"id"`
	FileID         int64  `json:"file_id"`
	SourceDiskName string `json:"source_disk_name"`
	TargetDiskName string `json:"target_disk_name"`
	FilePath       string `json:"file_path"`
	FileSize       int64  `json:"file_size"`
	ExecOrder      int    `json:"exec_order"`
	Phase          int    `json:"phase"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// handleCreatePlan generates a new balance plan synchronously: unlike scan
// and execute, planning reads the already-cataloged data and is expected to
// finish in milliseconds, so there is no background task or Planning-state
// dance beyond the duration of this handler.
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	if status := s.Kernel.Status(); status.State != kernel.StateIdle {
		respondError(w, http.StatusConflict, "daemon is not idle: "+string(status.State))
		return
	}

	var req createPlanRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cfg := s.Config()
	alpha := cfg.SliderAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}

	excluded := req.ExcludedDisks
	if len(excluded) == 0 {
		var err error
		excluded, err = s.excludedDiskIDs()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.Kernel.SetStatus(kernel.Status{State: kernel.StatePlanning, Detail: "generating plan"})
	defer s.Kernel.SetStatus(kernel.Idle())

	timer := obsmetrics.NewTimer()
	result, err := planner.GeneratePlan(s.Store, alpha, cfg.MaxTolerance, cfg.MinFreeHeadroom, excluded)
	timer.ObserveDuration(obsmetrics.PlanGenerationDuration)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	obsmetrics.PlansGeneratedTotal.Inc()
	obsmetrics.ProjectedImbalance.Set(result.ProjectedImbalance)
	obsmetrics.PlannedMovesTotal.Set(float64(result.TotalMoves))

	s.Hub.PlanReady(events.PlanReadyData{
		PlanID:             result.PlanID,
		TotalMoves:         uint32(result.TotalMoves),
		TotalBytes:         uint64(result.TotalBytes),
		ProjectedImbalance: result.ProjectedImbalance,
	})

	plan, err := s.Store.GetPlan(result.PlanID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, planToResponse(plan, nil))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := s.Store.GetPlan(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	moves, err := s.Store.GetPlanMoves(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, planToResponse(plan, moves))
}

func planToResponse(plan catalog.BalancePlan, moves []catalog.PlannedMoveDetail) planSummaryResponse {
	resp := planSummaryResponse{
		ID:                 plan.ID,
		TargetUtilization:  plan.TargetUtilization,
		InitialImbalance:   plan.InitialImbalance,
		ProjectedImbalance: plan.ProjectedImbalance,
		TotalMoves:         plan.TotalMoves,
		TotalBytesToMove:   plan.TotalBytesToMove,
		Status:             string(plan.Status),
	}
	if moves != nil {
		resp.Moves = make([]moveDetailResponse, len(moves))
		for i, m := range moves {
			resp.Moves[i] = moveDetailResponse{
				ID:             m.ID,
				FileID:         m.FileID,
				SourceDiskName: m.SourceDiskName,
				TargetDiskName: m.TargetDiskName,
				FilePath:       m.FilePath,
				FileSize:       m.FileSize,
				ExecOrder:      m.ExecOrder,
				Phase:          m.Phase,
				Status:         string(m.Status),
				ErrorMessage:   m.ErrorMessage,
			}
		}
	}
	return resp
}

func (s *Server) handleExecutePlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}

	if status := s.Kernel.Status(); status.State != kernel.StateIdle {
		respondError(w, http.StatusConflict, "daemon is not idle: "+string(status.State))
		return
	}

	plan, err := s.Store.GetPlan(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	if plan.Status != catalog.PlanStatusPlanned {
		respondError(w, http.StatusConflict, "plan is not in planned status: "+string(plan.Status))
		return
	}

	if s.Config().WarnParityCheck {
		// Checked but not enforced as a hard block: the operator opted into a
		// warning, not a refusal, by setting this flag.
		if running, _ := parityCheckRunning(); running {
			s.Log.Warn().Msg("starting execution while an array parity check is running")
		}
	}

	ctx, opID := s.Kernel.NewOperation(context.Background())
	s.Kernel.SetStatus(kernel.Status{State: kernel.StateExecuting, Detail: "starting execution"})

	var wg sync.WaitGroup
	wg.Add(1)
	s.Kernel.SetTask(&wg)

	log := s.Log.With().Str("op_id", opID).Logger()

	go runExecution(ctx, &wg, s, log, id)

	respondJSON(w, http.StatusAccepted, envelope{Success: true, Data: map[string]string{"state": string(kernel.StateExecuting)}})
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64); err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan id")
		return
	}
	s.Kernel.RequestCancel()
	respondOK(w, map[string]bool{"cancel_requested": true})
}
