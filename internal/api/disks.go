package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type diskResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	MountPath   string  `json:"mount_path"`
	TotalBytes  int64   `json:"total_bytes"`
	UsedBytes   int64   `json:"used_bytes"`
	FreeBytes   int64   `json:"free_bytes"`
	Filesystem  string  `json:"filesystem"`
	Included    bool    `json:"included"`
	Utilization float64 `json:"utilization"`
}

func (s *Server) handleListDisks(w http.ResponseWriter, r *http.Request) {
	disks, err := s.Store.GetAllDisks()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]diskResponse, len(disks))
	for i, d := range disks {
		out[i] = diskResponse{
			ID:          d.ID,
			Name:        d.Name,
			MountPath:   d.MountPath,
			TotalBytes:  d.TotalBytes,
			UsedBytes:   d.UsedBytes,
			FreeBytes:   d.FreeBytes,
			Filesystem:  d.Filesystem,
			Included:    d.Included,
			Utilization: d.Utilization(),
		}
	}
	respondOK(w, out)
}

func (s *Server) handleSetDiskIncluded(included bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := mux.Vars(r)["id"]
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid disk id")
			return
		}

		if _, err := s.Store.GetDisk(id); err != nil {
			respondError(w, http.StatusNotFound, "disk not found")
			return
		}

		if err := s.Store.SetDiskIncluded(id, included); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondOK(w, map[string]bool{"included": included})
	}
}
