package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const subscriberBuffer = 256

// Hub is the central event broadcast point. Background tasks (scanner,
// planner, executor) call Publish; SSE handlers call Subscribe and drain the
// returned channel.
//
// Each subscriber gets its own buffered channel rather than sharing one
// broadcast channel — an SSE handler that falls behind (a slow client, a
// stalled TCP write) must not stall delivery to every other subscriber.
// Publish never blocks: a subscriber whose buffer is full has its event
// dropped and is left to catch up on the next one. Lag is advisory, not an
// error — a client that missed a scan_progress tick will see the next one
// and visually catch up.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	log         zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new listener and returns its channel. Callers must
// call Unsubscribe when done, typically via defer.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// SubscriberCount reports how many listeners are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish fans an event out to every subscriber without blocking.
func (h *Hub) Publish(typ Type, data interface{}) {
	ev := Event{Type: typ, Timestamp: time.Now(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("event_type", string(typ)).Msg("subscriber buffer full, event dropped")
		}
	}
}

// ScanProgress is a typed convenience wrapper around Publish.
func (h *Hub) ScanProgress(d ScanProgressData) { h.Publish(TypeScanProgress, d) }

// ScanDiskComplete is a typed convenience wrapper around Publish.
func (h *Hub) ScanDiskComplete(d ScanDiskCompleteData) { h.Publish(TypeScanDiskComplete, d) }

// ScanComplete is a typed convenience wrapper around Publish.
func (h *Hub) ScanComplete(d ScanCompleteData) { h.Publish(TypeScanComplete, d) }

// PlanReady is a typed convenience wrapper around Publish.
func (h *Hub) PlanReady(d PlanReadyData) { h.Publish(TypePlanReady, d) }

// MoveProgress is a typed convenience wrapper around Publish.
func (h *Hub) MoveProgress(d MoveProgressData) { h.Publish(TypeMoveProgress, d) }

// MoveComplete is a typed convenience wrapper around Publish.
func (h *Hub) MoveComplete(d MoveCompleteData) { h.Publish(TypeMoveComplete, d) }

// ExecutionComplete is a typed convenience wrapper around Publish.
func (h *Hub) ExecutionComplete(d ExecutionCompleteData) { h.Publish(TypeExecutionComplete, d) }

// DaemonError is a typed convenience wrapper around Publish.
func (h *Hub) DaemonError(message string) { h.Publish(TypeDaemonError, DaemonErrorData{Message: message}) }
