package kds

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/notify"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	restaurantID string
	role         string
}

// Hub holds the websocket connections of staff screens (host stand, waiter
// tablets, kitchen and bar displays) and pushes floor events to the screens
// of the event's restaurant.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]client)}
}

// RegisterClient adds a connection for a restaurant and role.
func (h *Hub) RegisterClient(conn *websocket.Conn, restaurantID, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = client{restaurantID: restaurantID, role: role}
}

// UnregisterClient removes and closes a connection.
func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "kds" }

// Publish sends ev to every screen of its restaurant that wants it. A screen
// that cannot be written to is dropped.
func (h *Hub) Publish(_ context.Context, ev notify.Event) error {
	data, err := json.Marshal(Message{Event: ev.Kind, Data: ev})
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for conn, c := range h.clients {
		if c.restaurantID != ev.RestaurantID || !wants(c.role, ev.Kind) {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"restaurant_id": c.restaurantID,
				"role":          c.role,
			}).WithError(err).Warn("kds: dropping client")
			delete(h.clients, conn)
			conn.Close()
			continue
		}
		sent++
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"kind":    ev.Kind,
		"clients": sent,
	}).Debug("kds: broadcast")
	return nil
}

func (h *Hub) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	return nil
}

// wants filters events per role: production stations only see orders.
func wants(role, kind string) bool {
	switch role {
	case models.RoleKitchen, models.RoleBar:
		return strings.HasPrefix(kind, "order.")
	}
	return true
}
