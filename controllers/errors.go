package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/middlewares"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// errorDetail is the machine-readable part of an error response.
type errorDetail struct {
	Type                 string      `json:"type"`
	Detail               interface{} `json:"detail,omitempty"`
	RequiresConfirmation bool        `json:"requires_confirmation,omitempty"`
	Recovery             string      `json:"recovery,omitempty"`
	Result               interface{} `json:"result,omitempty"`
}

// respondServiceError maps floor errors to HTTP statuses. partial is the
// result an operation returned alongside its error, if any.
func respondServiceError(c *gin.Context, err error, partial interface{}) {
	var (
		validation   *services.ValidationError
		notFound     *services.NotFoundError
		crossTenant  *services.CrossTenantError
		conflict     *services.ConflictError
		capacity     *services.CapacityWarning
		inconsistent *services.InconsistentStateError
	)

	switch {
	case errors.As(err, &validation):
		utils.RespondErrorDetail(c, http.StatusBadRequest, err, errorDetail{Type: "validation", Detail: validation, Result: partial})
	case errors.As(err, &crossTenant):
		utils.RespondErrorDetail(c, http.StatusForbidden, err, errorDetail{Type: "cross_tenant", Detail: crossTenant})
	case errors.As(err, &notFound):
		utils.RespondErrorDetail(c, http.StatusNotFound, err, errorDetail{Type: "not_found", Detail: notFound, Result: partial})
	case errors.As(err, &capacity):
		utils.RespondErrorDetail(c, http.StatusConflict, err, errorDetail{
			Type: "capacity_warning", Detail: capacity, RequiresConfirmation: true, Result: partial,
		})
	case errors.As(err, &inconsistent):
		utils.ErrorLogger.WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"entity": inconsistent.Entity,
			"id":     inconsistent.ID,
		}).WithError(err).Error("inconsistent floor state")
		utils.RespondErrorDetail(c, http.StatusConflict, err, errorDetail{
			Type: "inconsistent_state", Detail: inconsistent, Recovery: "force_release", Result: partial,
		})
	case errors.As(err, &conflict):
		utils.RespondErrorDetail(c, http.StatusConflict, err, errorDetail{Type: "conflict", Detail: conflict, Result: partial})
	default:
		utils.ErrorLogger.WithField("path", c.FullPath()).WithError(err).Error("request failed")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func actorFrom(c *gin.Context) services.Actor {
	v, _ := c.Get(middlewares.ActorKey)
	actor, _ := v.(services.Actor)
	return actor
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}
