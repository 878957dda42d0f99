package kds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/notify"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// startHub serves a hub whose screens pick their restaurant and role from
// the query string.
func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	utils.SilenceLoggers()
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.RegisterClient(conn, r.URL.Query().Get("restaurant"), r.URL.Query().Get("role"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.UnregisterClient(conn)
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { hub.Close() })
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, restaurant, role string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?restaurant="+restaurant+"&role="+role, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestPublishFiltersByRestaurantAndRole(t *testing.T) {
	hub, url := startHub(t)
	host := dial(t, url, "DEMO", models.RoleHost)
	kitchen := dial(t, url, "DEMO", models.RoleKitchen)
	foreign := dial(t, url, "OTHER", models.RoleHost)
	require.Eventually(t, func() bool { return hub.Clients() == 3 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, notify.Event{ID: "e1", RestaurantID: "DEMO", Kind: models.EventTableStatusChanged}))
	require.NoError(t, hub.Publish(ctx, notify.Event{ID: "e2", RestaurantID: "DEMO", Kind: models.EventOrderItemsAdded}))
	require.NoError(t, hub.Publish(ctx, notify.Event{ID: "e3", RestaurantID: "OTHER", Kind: models.EventOrderClosed}))

	assert.Equal(t, models.EventTableStatusChanged, readMessage(t, host).Event)
	assert.Equal(t, models.EventOrderItemsAdded, readMessage(t, host).Event)

	// kitchen screens skip table events
	assert.Equal(t, models.EventOrderItemsAdded, readMessage(t, kitchen).Event)

	msg := readMessage(t, foreign)
	assert.Equal(t, models.EventOrderClosed, msg.Event)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "e3", data["id"])
}

func TestClientsDropOnDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, "DEMO", models.RoleWaiter)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "kds", hub.Name())
}

func TestWants(t *testing.T) {
	assert.True(t, wants(models.RoleBar, models.EventOrderReady))
	assert.False(t, wants(models.RoleBar, models.EventReservationCreated))
	assert.True(t, wants(models.RoleManager, models.EventTableZombieDetected))
}
