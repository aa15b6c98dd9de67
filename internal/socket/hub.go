// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"oilwise-api-server/internal/lifecycle"
)

// Hub tracks the open WebSocket connection per user.
type Hub struct {
	// clients maps a user id to its connection.
	clients map[string]*websocket.Conn
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
	}
}

// Register adds a client connection for the user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = conn
	log.Printf("WebSocket client registered: %s", userID)
}

// Unregister removes the user's connection.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		log.Printf("WebSocket client unregistered: %s", userID)
	}
}

// Send delivers a message to one user. An offline user is not an error.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.clients[userID]
	if !ok {
		return nil
	}

	return conn.WriteMessage(websocket.TextMessage, message)
}

// Notifier fans lifecycle events out to everyone whose worklist the
// transition touches: the requester, the new assignee and the previous one.
type Notifier struct {
	Hub *Hub
}

func (n *Notifier) Notify(event lifecycle.Event) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "pickup_request_update",
		"data":  event,
	})
	if err != nil {
		log.Printf("Failed to marshal notification for %s: %v", event.RequestID, err)
		return
	}

	seen := map[string]bool{}
	for _, userID := range []string{event.RequesterID, event.AssigneeID, event.PreviousAssigneeID} {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		if err := n.Hub.Send(userID, payload); err != nil {
			log.Printf("Failed to notify %s about %s: %v", userID, event.RequestID, err)
		}
	}
}
