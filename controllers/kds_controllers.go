package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type KDSController struct {
	Hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{Hub: hub}
}

// KDSHandler upgrades to a websocket and keeps the screen registered until
// it disconnects.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	actor := actorFrom(c)
	if actor.RestaurantID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	kc.Hub.RegisterClient(ws, actor.RestaurantID, actor.Role)
	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": actor.RestaurantID,
		"role":          actor.Role,
	}).Info("kds client connected")

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kc.Hub.UnregisterClient(ws)
}
