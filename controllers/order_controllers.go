package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type OrderController struct {
	Floor *services.Floor
}

func NewOrderController(floor *services.Floor) *OrderController {
	return &OrderController{Floor: floor}
}

// OpenOrder returns the table's open order, creating it when there is none.
func (oc *OrderController) OpenOrder(c *gin.Context) {
	tableID, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, created, err := oc.Floor.Orders.OpenOrCreateOrder(c.Request.Context(), actorFrom(c), tableID)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	if created {
		utils.RespondJSON(c, http.StatusCreated, "Order created", order)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order already open", order)
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := oc.Floor.Orders.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order", order)
}

// AppendItems adds a send of items. Clients retry a failed send with the
// same send_key.
func (oc *OrderController) AppendItems(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		SendKey string                 `json:"send_key"`
		Items   []services.ItemRequest `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, added, err := oc.Floor.Orders.AppendItems(c.Request.Context(), actorFrom(c), id, req.SendKey, req.Items)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items added", gin.H{"order": order, "added": added})
}

func (oc *OrderController) AdvanceItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, changed, err := oc.Floor.Orders.AdvanceItemStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item status updated", gin.H{"item": item, "changed": changed})
}

// GetStationQueue is the kitchen or bar display list.
func (oc *OrderController) GetStationQueue(c *gin.Context) {
	items, err := oc.Floor.Orders.StationQueue(c.Request.Context(), actorFrom(c), c.Param("station"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station queue", items)
}
