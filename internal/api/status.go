package api

import "net/http"

type statusResponse struct {
	State   string `json:"state"`
	Detail  string `json:"detail"`
	Version string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.Kernel.Status()
	respondOK(w, statusResponse{
		State:   string(status.State),
		Detail:  status.Detail,
		Version: Version,
	})
}
