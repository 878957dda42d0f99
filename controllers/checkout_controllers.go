package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type CheckoutController struct {
	Floor *services.Floor
}

func NewCheckoutController(floor *services.Floor) *CheckoutController {
	return &CheckoutController{Floor: floor}
}

func (cc *CheckoutController) PreviewBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		DiscountType string  `json:"discount_type"`
		Discount     float64 `json:"discount"`
		Tip          float64 `json:"tip"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	bill, err := cc.Floor.Checkout.PreviewBill(c.Request.Context(), actorFrom(c), id, req.Discount, req.DiscountType, req.Tip)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bill preview", bill)
}

// CloseOrder settles the order and frees its table. When the order closed
// but the table did not, the closed result travels in the error body.
func (cc *CheckoutController) CloseOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := cc.Floor.Checkout.CloseOrder(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondServiceError(c, err, out)
		return
	}
	msg := "Order closed"
	if !out.Changed {
		msg = "Order already closed"
	}
	utils.RespondJSON(c, http.StatusOK, msg, out)
}
