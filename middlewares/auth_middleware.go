package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// ActorKey is the gin context key holding the request's services.Actor.
const ActorKey = "actor"

// AuthMiddleware resolves the bearer token into a services.Actor.
func AuthMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header must be a bearer token"))
			c.Abort()
			return
		}

		claims, err := issuer.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			utils.InfoLogger.WithFields(logrus.Fields{
				"path":      c.FullPath(),
				"client_ip": c.ClientIP(),
			}).WithError(err).Debug("rejected token")
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}

		setActor(c, claims)
		c.Next()
	}
}

// WebSocketAuthMiddleware reads the token from the query string, since
// browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := issuer.ParseToken(token)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		setActor(c, claims)
		c.Next()
	}
}

func setActor(c *gin.Context, claims *utils.CustomClaims) {
	c.Set(ActorKey, services.Actor{
		RestaurantID: claims.RestaurantID,
		ActorID:      claims.UserID,
		Role:         claims.Role,
	})
	c.Set("userID", claims.UserID)
	c.Set("role", claims.Role)
}

// RequireRoles lets through actors holding one of roles. Admin always passes.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ActorKey)
		if !exists {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
			c.Abort()
			return
		}
		actor := v.(services.Actor)
		if actor.Role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, errors.New(strings.Join(roles, " or ")+" access required"))
		c.Abort()
	}
}
