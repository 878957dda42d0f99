package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

type ReservationController struct {
	Floor *services.Floor
}

func NewReservationController(floor *services.Floor) *ReservationController {
	return &ReservationController{Floor: floor}
}

// CreateReservation books a party. With table_id the table is held at once.
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req struct {
		CustomerID          string    `json:"customer_id"`
		CustomerName        string    `json:"customer_name"`
		ReservationTime     time.Time `json:"reservation_time" binding:"required"`
		PartySize           int       `json:"party_size" binding:"required"`
		Notes               string    `json:"notes"`
		TableID             *uint     `json:"table_id"`
		ConfirmOverCapacity bool      `json:"confirm_over_capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Floor.Reservations.Create(c.Request.Context(), actorFrom(c), services.NewReservation{
		CustomerID:          req.CustomerID,
		CustomerName:        req.CustomerName,
		ReservationTime:     req.ReservationTime,
		PartySize:           req.PartySize,
		Notes:               req.Notes,
		TableID:             req.TableID,
		ConfirmOverCapacity: req.ConfirmOverCapacity,
	})
	if err != nil {
		respondServiceError(c, err, res)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Reservation created", res)
}

// GetAllReservations supports ?status=, ?from= and ?to= (RFC 3339).
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	filter := services.ReservationFilter{Status: c.Query("status")}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New(p.key+" must be an RFC 3339 time"))
			return
		}
		*p.dst = t
	}

	list, err := rc.Floor.Reservations.List(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", list)
}

func (rc *ReservationController) GetReservation(c *gin.Context) {
	res, err := rc.Floor.Reservations.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation", res)
}

// ResolveCode turns a scanned or typed check-in code into its reservation.
func (rc *ReservationController) ResolveCode(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	res, err := rc.Floor.Reservations.ResolveCheckInCode(c.Request.Context(), actorFrom(c), req.Code)
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation", res)
}

func (rc *ReservationController) CheckIn(c *gin.Context) {
	out, err := rc.Floor.Reservations.CheckIn(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	msg := "Reservation checked in"
	if out.NeedsTableSelection {
		msg = "Select a table to seat this reservation"
	}
	utils.RespondJSON(c, http.StatusOK, msg, out)
}

func (rc *ReservationController) PreAssign(c *gin.Context) {
	var req struct {
		TableID             uint `json:"table_id" binding:"required"`
		ConfirmOverCapacity bool `json:"confirm_over_capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	out, err := rc.Floor.Reservations.PreAssign(c.Request.Context(), actorFrom(c), c.Param("id"), req.TableID, req.ConfirmOverCapacity)
	if err != nil {
		respondServiceError(c, err, out)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table held for reservation", out)
}

func (rc *ReservationController) MarkNoShow(c *gin.Context) {
	res, changed, err := rc.Floor.Reservations.MarkNoShow(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation marked no-show", gin.H{"reservation": res, "changed": changed})
}

func (rc *ReservationController) Cancel(c *gin.Context) {
	res, changed, err := rc.Floor.Reservations.Cancel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, nil)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", gin.H{"reservation": res, "changed": changed})
}

// Seat assigns a reservation or a walk-in party to a table.
func (rc *ReservationController) Seat(c *gin.Context) {
	var req struct {
		ReservationID       string `json:"reservation_id"`
		PartySize           int    `json:"party_size"`
		TableID             uint   `json:"table_id" binding:"required"`
		ConfirmOverCapacity bool   `json:"confirm_over_capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	out, err := rc.Floor.Reservations.Assign(c.Request.Context(), actorFrom(c), services.SeatingTarget{
		ReservationID: req.ReservationID,
		PartySize:     req.PartySize,
	}, req.TableID, req.ConfirmOverCapacity)
	if err != nil {
		respondServiceError(c, err, out)
		return
	}
	code := http.StatusOK
	if out.Changed {
		code = http.StatusCreated
	}
	utils.RespondJSON(c, code, "Party seated", out)
}
