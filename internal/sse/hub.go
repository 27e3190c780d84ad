package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentesla/mobile-backend/internal/logger"
)

type SSEEvent string

const (
	SSEEventNotification SSEEvent = "Notification"
)

// AdminChannel receives events aimed at every administrator session.
const AdminChannel = "admins"

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
}

type SSEHub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

// NewSSEClient registers a client subscribed to its own user channel and,
// for administrators, the shared admin channel.
func (hub *SSEHub) NewSSEClient(userID uuid.UUID, admin bool) *SSEClient {
	client := &SSEClient{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: map[string]bool{userID.String(): true},
		Outbound: make(chan SSEMessage, 16),
	}
	if admin {
		client.Channels[AdminChannel] = true
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for channel := range client.Channels {
		clients, exists := hub.subscriptions[channel]
		if !exists {
			clients = make(map[*SSEClient]bool)
			hub.subscriptions[channel] = clients
		}
		clients[client] = true
	}
	hub.log.Debug("SSE client subscribed", "clientID", client.ID, "userID", userID)
	return client
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for channel := range client.Channels {
		if clients, ok := hub.subscriptions[channel]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(hub.subscriptions, channel)
			}
		}
	}
	close(client.Outbound)
}

// Broadcast delivers to every subscriber of the message channel. Slow
// clients are skipped rather than blocked on.
func (hub *SSEHub) Broadcast(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for client := range hub.subscriptions[msg.Channel] {
		select {
		case client.Outbound <- msg:
		default:
			hub.log.Debug("SSE client buffer full, dropping message", "clientID", client.ID, "channel", msg.Channel)
		}
	}
}

// ServeHTTP streams the client's outbound messages until the request
// context ends or the client is removed from the hub.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("SSE client disconnected", "clientID", client.ID)
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-client.Outbound:
			if !open {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
