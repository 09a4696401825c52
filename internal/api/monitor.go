package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rebalanced/internal/wsmonitor"
)

var monitorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleMonitorWS upgrades to a WebSocket and registers the connection on
// the monitor hub; the periodic broadcast loop (started in cmd/rebalanced)
// does the actual pushing. This handler only needs to keep reading (and
// discarding) client frames so it notices disconnects promptly.
func (s *Server) handleMonitorWS(w http.ResponseWriter, r *http.Request) {
	conn, err := monitorUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.Monitor.Register(conn)

	go func() {
		defer s.Monitor.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Snapshot builds the current monitor feed payload from live daemon state.
func (s *Server) Snapshot() wsmonitor.Snapshot {
	status := s.Kernel.Status()
	snapshot := wsmonitor.Snapshot{
		State:     string(status.State),
		Detail:    status.Detail,
		Timestamp: time.Now(),
	}

	disks, err := s.Store.GetAllDisks()
	if err != nil {
		return snapshot
	}
	snapshot.Disks = make([]wsmonitor.DiskView, len(disks))
	for i, d := range disks {
		snapshot.Disks[i] = wsmonitor.DiskView{
			Name:        d.Name,
			Utilization: d.Utilization(),
			Included:    d.Included,
		}
	}
	return snapshot
}
