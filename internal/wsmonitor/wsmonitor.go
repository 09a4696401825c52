// Package wsmonitor is a supplemental WebSocket heartbeat feed of daemon
// state, independent of the required SSE event stream at /api/events. It
// exists for UIs that want a persistent socket rather than polling
// /api/status.
package wsmonitor

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Snapshot is broadcast to every connected client on a fixed interval.
type Snapshot struct {
	State     string    `json:"state"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
	Disks     []DiskView `json:"disks"`
}

// DiskView is the minimal per-disk shape the monitor feed carries.
type DiskView struct {
	Name        string  `json:"name"`
	Utilization float64 `json:"utilization"`
	Included    bool    `json:"included"`
}

// Hub fans a Snapshot out to every registered client connection. Unlike
// internal/events.Hub, which gives each SSE subscriber its own buffered
// channel, this hub keeps one shared set of connections under a mutex and
// Broadcast writes to each directly, since the monitor feed is low-rate and
// best-effort: a client whose write fails is closed and dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	log     zerolog.Logger
}

// NewHub returns an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.With().Str("component", "wsmonitor").Logger(),
	}
}

// Register adds a client connection to the broadcast set.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes and closes a client connection.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast writes snapshot to every connected client, dropping and closing
// any connection whose write fails.
func (h *Hub) Broadcast(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(snapshot); err != nil {
			h.log.Warn().Err(err).Msg("monitor client write failed, dropping")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// ClientCount reports how many monitor clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run periodically calls snapshot to build the current state and broadcasts
// it, until stop is closed.
func Run(stop <-chan struct{}, interval time.Duration, hub *Hub, snapshot func() Snapshot) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}
			hub.Broadcast(snapshot())
		}
	}
}
