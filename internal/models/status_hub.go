package models

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sand/definition-staking/backend/internal/entities"
)

const (
	statusQueueSize    = 256
	statusWriteTimeout = 5 * time.Second
)

// StatusHub fans wallet sync status changes out to websocket subscribers of each user.
type StatusHub struct {
	logger *slog.Logger

	Subscribers map[string]map[*websocket.Conn]bool // Subscribers per user ID.
	Mutex       sync.RWMutex                        // Guards Subscribers and socket writes.

	updates chan entities.SyncStatus
}

func NewStatusHub(logger *slog.Logger) *StatusHub {
	return &StatusHub{
		logger:      logger,
		Subscribers: make(map[string]map[*websocket.Conn]bool),
		updates:     make(chan entities.SyncStatus, statusQueueSize),
	}
}

// Publish queues a status for delivery. It never blocks; when the queue is full the update is
// dropped and clients catch up on the next change.
func (h *StatusHub) Publish(status entities.SyncStatus) {
	select {
	case h.updates <- status:
	default:
		h.logger.Warn("Status queue full, dropping update", "user_id", status.UserID)
	}
}

// Run delivers queued updates until ctx is cancelled, then closes every connection.
func (h *StatusHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case status := <-h.updates:
			h.deliver(status)
		}
	}
}

// AddSubscriber registers conn for userID and sends it the current status.
func (h *StatusHub) AddSubscriber(userID string, conn *websocket.Conn, current entities.SyncStatus) error {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if h.Subscribers[userID] == nil {
		h.Subscribers[userID] = make(map[*websocket.Conn]bool)
	}
	h.Subscribers[userID][conn] = true

	_ = conn.SetWriteDeadline(time.Now().Add(statusWriteTimeout))
	return conn.WriteJSON(current)
}

// RemoveSubscriber unregisters and closes conn.
func (h *StatusHub) RemoveSubscriber(userID string, conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()
	h.remove(userID, conn)
}

// SubscriberCount returns the number of open connections for userID.
func (h *StatusHub) SubscriberCount(userID string) int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	return len(h.Subscribers[userID])
}

func (h *StatusHub) deliver(status entities.SyncStatus) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	for conn := range h.Subscribers[status.UserID] {
		_ = conn.SetWriteDeadline(time.Now().Add(statusWriteTimeout))
		if err := conn.WriteJSON(status); err != nil {
			h.logger.Debug("Dropping status subscriber", "user_id", status.UserID, "error", err)
			h.remove(status.UserID, conn)
		}
	}
}

// remove expects h.Mutex to be held.
func (h *StatusHub) remove(userID string, conn *websocket.Conn) {
	conns, ok := h.Subscribers[userID]
	if !ok || !conns[conn] {
		return
	}

	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.Subscribers, userID)
	}
	_ = conn.Close()
}

func (h *StatusHub) closeAll() {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	for userID, conns := range h.Subscribers {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.Subscribers, userID)
	}
}
