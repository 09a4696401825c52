package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"rebalanced/internal/diskspace"
	"rebalanced/internal/events"
	"rebalanced/internal/kernel"
	"rebalanced/internal/obsmetrics"
	"rebalanced/internal/scanner"
)

type scanRequest struct {
	Threads int     `json:"threads,omitempty"`
	DiskIDs []int64 `json:"disk_ids,omitempty"`
}

type scanAcceptedResponse struct {
	State string `json:"state"`
}

// handleStartScan discovers array disks, upserts their current metadata,
// then kicks off a background scan of every included disk (or the subset
// named in disk_ids), one disk at a time, each walked with the requested
// thread count.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if status := s.Kernel.Status(); status.State != kernel.StateIdle {
		respondError(w, http.StatusConflict, "daemon is not idle: "+string(status.State))
		return
	}

	var req scanRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	threads := req.Threads
	if threads <= 0 {
		threads = s.Config().ScanThreads
	}
	if threads <= 0 {
		threads = 1
	}

	cfg := s.Config()
	mntBase := cfg.MntBase
	discovered, err := scanner.DiscoverDisks(mntBase)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(discovered) == 0 {
		respondError(w, http.StatusNotFound, "no array disks discovered under "+mntBase)
		return
	}

	excludedNames := make(map[string]struct{}, len(cfg.ExcludedDisks))
	for _, name := range cfg.ExcludedDisks {
		excludedNames[name] = struct{}{}
	}

	type scanTarget struct {
		id        int64
		name      string
		mountPath string
	}
	var targets []scanTarget
	for _, d := range discovered {
		if _, excluded := excludedNames[d.Name]; excluded {
			continue
		}
		usage, err := diskspace.Stat(d.MountPath)
		if err != nil {
			s.Log.Warn().Err(err).Str("disk", d.Name).Msg("statfs failed, skipping")
			continue
		}
		fsType, _ := diskspace.Filesystem(d.MountPath)

		diskID, err := s.Store.UpsertDisk(d.Name, d.MountPath, usage.TotalBytes, usage.UsedBytes, usage.FreeBytes, fsType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		targets = append(targets, scanTarget{id: diskID, name: d.Name, mountPath: d.MountPath})
	}

	if len(req.DiskIDs) > 0 {
		wanted := make(map[int64]struct{}, len(req.DiskIDs))
		for _, id := range req.DiskIDs {
			wanted[id] = struct{}{}
		}
		filtered := targets[:0]
		for _, t := range targets {
			if _, ok := wanted[t.id]; ok {
				filtered = append(filtered, t)
			}
		}
		targets = filtered
	}

	ctx, opID := s.Kernel.NewOperation(context.Background())
	s.Kernel.SetStatus(kernel.Status{State: kernel.StateScanning, Detail: "starting scan"})

	var wg sync.WaitGroup
	wg.Add(1)
	s.Kernel.SetTask(&wg)

	log := s.Log.With().Str("op_id", opID).Logger()

	go func() {
		defer wg.Done()
		defer s.Kernel.SetTask(nil)
		defer s.Kernel.SetStatus(kernel.Idle())

		start := time.Now()
		var totalFiles, totalBytes uint64

		for _, t := range targets {
			if ctx.Err() != nil {
				break
			}
			s.Kernel.SetStatus(kernel.Status{State: kernel.StateScanning, Detail: "scanning " + t.name})

			timer := obsmetrics.NewTimer()
			stats, err := scanner.ScanDisk(ctx, s.Store, s.Hub, t.id, t.mountPath, threads)
			timer.ObserveDurationVec(obsmetrics.ScanDuration, t.name)

			if err != nil {
				log.Error().Err(err).Str("disk", t.name).Msg("scan failed")
				obsmetrics.ScansTotal.WithLabelValues("failed").Inc()
				s.Hub.DaemonError("scan of " + t.name + " failed: " + err.Error())
				continue
			}
			obsmetrics.ScansTotal.WithLabelValues("success").Inc()
			totalFiles += stats.FilesScanned
			totalBytes += stats.BytesCataloged
			obsmetrics.FilesCatalogedTotal.Add(float64(stats.FilesScanned))
			obsmetrics.BytesCatalogedTotal.Add(float64(stats.BytesCataloged))
		}

		s.Hub.ScanComplete(events.ScanCompleteData{
			TotalDisks:      uint32(len(targets)),
			TotalFiles:      totalFiles,
			TotalBytes:      totalBytes,
			DurationSeconds: time.Since(start).Seconds(),
		})
	}()

	respondJSON(w, http.StatusAccepted, envelope{Success: true, Data: scanAcceptedResponse{State: string(kernel.StateScanning)}})
}
