package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-floor/config"
	"github.com/yeremiapane/restaurant-floor/controllers"
	"github.com/yeremiapane/restaurant-floor/kds"
	"github.com/yeremiapane/restaurant-floor/middlewares"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/services"
	"github.com/yeremiapane/restaurant-floor/utils"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB     *gorm.DB
	Floor  *services.Floor
	Hub    *kds.Hub
	Issuer *utils.TokenIssuer
	Config config.Config
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.APIHeaders())
	r.Use(middlewares.CORSMiddlewares(d.Config.CORSOrigins))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst).RateLimit())

	userCtrl := controllers.NewUserController(d.DB, d.Issuer)
	menuCtrl := controllers.NewMenuController(d.DB)
	floorCtrl := controllers.NewFloorController(d.Floor, d.Config.OrderPollInterval, d.Config.HostPollInterval)
	tableCtrl := controllers.NewTableController(d.Floor)
	reservationCtrl := controllers.NewReservationController(d.Floor)
	orderCtrl := controllers.NewOrderController(d.Floor)
	checkoutCtrl := controllers.NewCheckoutController(d.Floor)
	kdsCtrl := controllers.NewKDSController(d.Hub)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/auth")
	public.Use(middlewares.NewStrictRateLimiter().RateLimit())
	{
		public.POST("/login", userCtrl.Login)
	}

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(d.Issuer), kdsCtrl.KDSHandler)

	front := []string{models.RoleHost, models.RoleManager}
	service := []string{models.RoleWaiter, models.RoleManager}
	production := []string{models.RoleKitchen, models.RoleBar, models.RoleWaiter, models.RoleManager}

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(d.Issuer))
	{
		api.GET("/profile", userCtrl.GetProfile)
		api.GET("/menus", menuCtrl.GetAllMenus)
		api.GET("/floor", floorCtrl.GetFloor)

		// tables
		api.GET("/tables", tableCtrl.GetAllTables)
		api.GET("/tables/candidates", tableCtrl.GetCandidates)
		api.GET("/tables/:id", tableCtrl.GetTable)
		api.GET("/tables/:id/history", middlewares.RequireRoles(models.RoleManager), tableCtrl.GetHistory)
		api.POST("/tables/:id/request-bill", middlewares.RequireRoles(service...), tableCtrl.RequestBill)
		api.POST("/tables/:id/force-release", middlewares.RequireRoles(models.RoleManager), tableCtrl.ForceRelease)
		api.POST("/tables/:id/maintenance", middlewares.RequireRoles(models.RoleManager), tableCtrl.SetMaintenance)
		api.POST("/tables/:id/orders", middlewares.RequireRoles(service...), orderCtrl.OpenOrder)

		// reservations and seating
		api.POST("/reservations", middlewares.RequireRoles(front...), reservationCtrl.CreateReservation)
		api.GET("/reservations", reservationCtrl.GetAllReservations)
		api.POST("/reservations/resolve", middlewares.RequireRoles(front...), reservationCtrl.ResolveCode)
		api.GET("/reservations/:id", reservationCtrl.GetReservation)
		api.POST("/reservations/:id/check-in", middlewares.RequireRoles(front...), reservationCtrl.CheckIn)
		api.POST("/reservations/:id/pre-assign", middlewares.RequireRoles(front...), reservationCtrl.PreAssign)
		api.POST("/reservations/:id/no-show", middlewares.RequireRoles(front...), reservationCtrl.MarkNoShow)
		api.POST("/reservations/:id/cancel", middlewares.RequireRoles(front...), reservationCtrl.Cancel)
		api.POST("/seatings", middlewares.RequireRoles(models.RoleHost, models.RoleWaiter, models.RoleManager), reservationCtrl.Seat)

		// orders
		api.GET("/orders/:id", orderCtrl.GetOrderByID)
		api.POST("/orders/:id/items", middlewares.RequireRoles(service...), orderCtrl.AppendItems)
		api.PATCH("/order-items/:id/status", middlewares.RequireRoles(production...), orderCtrl.AdvanceItem)
		api.GET("/stations/:station/queue", orderCtrl.GetStationQueue)

		// checkout
		api.POST("/orders/:id/bill-preview", middlewares.RequireRoles(service...), checkoutCtrl.PreviewBill)
		api.POST("/orders/:id/close", middlewares.RequireRoles(service...), checkoutCtrl.CloseOrder)
	}

	return r
}
