package api

import (
	"encoding/json"
	"net/http"
)

type settingsResponse struct {
	Port            int      `json:"port"`
	ScanThreads     int      `json:"scan_threads"`
	SliderAlpha     float64  `json:"slider_alpha"`
	MaxTolerance    float64  `json:"max_tolerance"`
	MinFreeHeadroom int64    `json:"min_free_headroom"`
	ExcludedDisks   []string `json:"excluded_disks"`
	WarnParityCheck bool     `json:"warn_parity_check"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	respondOK(w, settingsResponse{
		Port:            cfg.Port,
		ScanThreads:     cfg.ScanThreads,
		SliderAlpha:     cfg.SliderAlpha,
		MaxTolerance:    cfg.MaxTolerance,
		MinFreeHeadroom: cfg.MinFreeHeadroom,
		ExcludedDisks:   cfg.ExcludedDisks,
		WarnParityCheck: cfg.WarnParityCheck,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid settings body: "+err.Error())
		return
	}

	cfg := s.Config()
	cfg.Port = req.Port
	cfg.ScanThreads = req.ScanThreads
	cfg.SliderAlpha = req.SliderAlpha
	cfg.MaxTolerance = req.MaxTolerance
	cfg.MinFreeHeadroom = req.MinFreeHeadroom
	cfg.ExcludedDisks = req.ExcludedDisks
	cfg.WarnParityCheck = req.WarnParityCheck

	if err := s.SetConfig(cfg); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, req)
}
