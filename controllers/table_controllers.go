package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type TableController struct {
	Floor *services.Floor
}

func NewTableController(floor *services.Floor) *TableController {
	return &TableController{Floor: floor}
}

// GetAllTables lists the restaurant's tables, optionally by ?status=.
func (tc *TableController) GetAllTables(c *gin.Context) {
	tables, err := tc.Floor.Tables.List(c.Request.Context(), actorFrom(c), c.Query("status"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTable(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	table, err := tc.Floor.Tables.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table", table)
}

// GetCandidates lists free tables for ?party_size= at ?as_of= (RFC 3339,
// defaults to now).
func (tc *TableController) GetCandidates(c *gin.Context) {
	partySize, err := strconv.Atoi(c.Query("party_size"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("party_size must be a number"))
		return
	}
	var asOf time.Time
	if raw := c.Query("as_of"); raw != "" {
		if asOf, err = time.Parse(time.RFC3339, raw); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("as_of must be an RFC 3339 time"))
			return
		}
	}

	tables, err := tc.Floor.Reservations.FindCandidateTables(c.Request.Context(), actorFrom(c), partySize, asOf)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Candidate tables", tables)
}

// GetHistory returns the audit trail of a table.
func (tc *TableController) GetHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor := actorFrom(c)
	if _, err := tc.Floor.Tables.Get(c.Request.Context(), actor, id); err != nil {
		respondServiceError(c, err, nil)
		return
	}
	events, err := tc.Floor.Events.History(c.Request.Context(), actor, "table", strconv.FormatUint(uint64(id), 10))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table history", events)
}

func (tc *TableController) RequestBill(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	out, err := tc.Floor.Checkout.RequestBill(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bill requested", out)
}

// ForceRelease frees a stuck table. The caller must confirm explicitly.
func (tc *TableController) ForceRelease(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Confirm bool   `json:"confirm"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if !body.Confirm {
		utils.RespondError(c, http.StatusBadRequest, errors.New("force release requires confirm=true"))
		return
	}

	out, err := tc.Floor.Tables.ForceRelease(c.Request.Context(), actorFrom(c), id, body.Reason)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table released", out)
}

func (tc *TableController) SetMaintenance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body struct {
		On *bool `json:"on" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := tc.Floor.Tables.SetMaintenance(c.Request.Context(), actorFrom(c), id, *body.On)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", out)
}
