package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetAllMenus lists the restaurant's menu. ?station= narrows it to kitchen
// or bar items; unavailable items are included so screens can grey them out.
func (mc *MenuController) GetAllMenus(c *gin.Context) {
	actor := actorFrom(c)

	q := mc.DB.WithContext(c.Request.Context()).Where("restaurant_id = ?", actor.RestaurantID)
	if station := c.Query("station"); station != "" {
		q = q.Where("station = ?", station)
	}

	var menus []models.MenuItem
	if err := q.Order("category asc").Order("name asc").Find(&menus).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of menus", menus)
}
