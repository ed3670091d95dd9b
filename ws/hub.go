package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
)

type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub tracks open connections per user id.
type Hub struct {
	Clients map[string]map[*websocket.Conn]*Client
	Mutex   sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{Clients: make(map[string]map[*websocket.Conn]*Client)}
}

var H = NewHub()

type SubscriptionChangedMessage struct {
	Type   string                    `json:"type"`
	Status models.SubscriptionStatus `json:"status"`
}

func (h *Hub) Register(userID string, conn *websocket.Conn) *Client {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if _, ok := h.Clients[userID]; !ok {
		h.Clients[userID] = make(map[*websocket.Conn]*Client)
	}
	client := &Client{
		Conn: conn,
		Send: make(chan []byte, 256),
	}
	h.Clients[userID][conn] = client
	return client
}

func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.Mutex.Lock()
	defer h.Mutex.Unlock()

	if clients, ok := h.Clients[userID]; ok {
		if client, ok := clients[conn]; ok {
			close(client.Send)
			delete(clients, conn)
		}
		if len(clients) == 0 {
			delete(h.Clients, userID)
		}
	}
}

// SendToUser queues data on every connection of the user. Full buffers drop the message.
func (h *Hub) SendToUser(userID string, data []byte) int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()

	sent := 0
	for _, client := range h.Clients[userID] {
		select {
		case client.Send <- data:
			sent++
		default:
		}
	}
	return sent
}

func (h *Hub) Connections(userID string) int {
	h.Mutex.RLock()
	defer h.Mutex.RUnlock()
	return len(h.Clients[userID])
}

func (h *Hub) BroadcastSubscriptionChanged(userID string, status models.SubscriptionStatus) {
	data, err := json.Marshal(SubscriptionChangedMessage{Type: "subscription_changed", Status: status})
	if err != nil {
		logrus.WithError(err).Error("JSON marshal error")
		return
	}
	h.SendToUser(userID, data)
}

// SubscriptionChanged lets the hub act as the subscription notifier.
func (h *Hub) SubscriptionChanged(userID uuid.UUID, status models.SubscriptionStatus) {
	h.BroadcastSubscriptionChanged(userID.String(), status)
}

func writePump(client *Client) {
	defer func() {
		client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
		client.Conn.Close()
	}()
	for msg := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}
