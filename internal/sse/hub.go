package sse

import (
	"context"
	"sync"

	"busticket/internal/models"
)

// Hub fans notifications out to the open streams of each user.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64][]chan models.Notification
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64][]chan models.Notification)}
}

// Subscribe registers a stream for userID until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID int64) <-chan models.Notification {
	ch := make(chan models.Notification, 10)

	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(userID, ch)
	}()
	return ch
}

// Publish never blocks; a client with a full buffer misses the message.
func (h *Hub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) remove(userID int64, ch chan models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[userID]
	for i, c := range clients {
		if c == ch {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of open streams for userID.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
