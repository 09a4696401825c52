// Package api implements the daemon's HTTP/JSON surface: status, disk
// listing and inclusion toggles, scan/plan/execute/cancel control, settings
// read/write, the server-sent event stream, and the ambient /metrics and
// /ws/monitor endpoints.
package api

import (
	"sync"

	"github.com/rs/zerolog"

	"rebalanced/internal/catalog"
	"rebalanced/internal/config"
	"rebalanced/internal/events"
	"rebalanced/internal/kernel"
	"rebalanced/internal/wsmonitor"
)

// Version is reported on GET /api/status.
const Version = "1.0.0"

// Server holds every dependency the HTTP handlers need. It has no exported
// mutable state of its own beyond cfg, which the settings endpoints read
// and write under cfgMu.
type Server struct {
	Store   *catalog.Store
	Hub     *events.Hub
	Kernel  *kernel.Kernel
	Monitor *wsmonitor.Hub
	Log     zerolog.Logger

	cfgMu sync.RWMutex
	cfg   config.Config
}

// NewServer wires a Server around its dependencies and an initial config.
func NewServer(store *catalog.Store, hub *events.Hub, k *kernel.Kernel, monitor *wsmonitor.Hub, log zerolog.Logger, cfg config.Config) *Server {
	return &Server{
		Store:   store,
		Hub:     hub,
		Kernel:  k,
		Monitor: monitor,
		Log:     log.With().Str("component", "api").Logger(),
		cfg:     cfg,
	}
}

// Config returns a copy of the current settings.
func (s *Server) Config() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// SetConfig replaces the current settings and persists them to disk.
func (s *Server) SetConfig(cfg config.Config) error {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()
	return cfg.Save()
}

// excludedDiskIDs resolves the configured excluded disk names against the
// current catalog, so the planner can work with ids without knowing about
// the settings file's name-based representation.
func (s *Server) excludedDiskIDs() ([]int64, error) {
	cfg := s.Config()
	if len(cfg.ExcludedDisks) == 0 {
		return nil, nil
	}
	excludedNames := make(map[string]struct{}, len(cfg.ExcludedDisks))
	for _, name := range cfg.ExcludedDisks {
		excludedNames[name] = struct{}{}
	}

	disks, err := s.Store.GetAllDisks()
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, d := range disks {
		if _, excluded := excludedNames[d.Name]; excluded {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}
