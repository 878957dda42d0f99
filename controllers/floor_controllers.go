package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// FloorController serves the polled floor view. The refresh intervals are
// hints for clients; nothing on the server depends on them.
type FloorController struct {
	Floor     *services.Floor
	OrderPoll time.Duration
	HostPoll  time.Duration
}

func NewFloorController(floor *services.Floor, orderPoll, hostPoll time.Duration) *FloorController {
	return &FloorController{Floor: floor, OrderPoll: orderPoll, HostPoll: hostPoll}
}

func (fc *FloorController) GetFloor(c *gin.Context) {
	actor := actorFrom(c)
	snapshot, err := fc.Floor.Snapshot(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}

	refresh := fc.HostPoll
	switch actor.Role {
	case models.RoleWaiter, models.RoleKitchen, models.RoleBar:
		refresh = fc.OrderPoll
	}

	utils.RespondJSON(c, http.StatusOK, "Floor snapshot", gin.H{
		"floor":                 snapshot,
		"refresh_after_seconds": int(refresh / time.Second),
	})
}
