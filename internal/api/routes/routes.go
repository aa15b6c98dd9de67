// server/internal/api/routes/routes.go
package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"oilwise-api-server/config"
	"oilwise-api-server/internal/api/handlers"
	"oilwise-api-server/internal/api/middleware"
	"oilwise-api-server/internal/auth"
	"oilwise-api-server/internal/lifecycle"
	"oilwise-api-server/internal/models"
	"oilwise-api-server/internal/s3"
	"oilwise-api-server/internal/socket"
	"oilwise-api-server/internal/store"
)

// Deps bundles everything the router needs.
type Deps struct {
	Cfg        config.Config
	Tokens     *auth.Manager
	Controller *lifecycle.Controller
	Requests   store.RequestStore
	Users      store.UserStore
	Usage      store.UsageStore
	Uploader   *s3.Uploader
	Hub        *socket.Hub
}

// SetupRouter wires the handlers onto role-gated route groups.
func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	userHandler := &handlers.UserHandler{Users: deps.Users, Tokens: deps.Tokens}
	pickupHandler := &handlers.PickupHandler{
		Controller: deps.Controller,
		Requests:   deps.Requests,
		Users:      deps.Users,
		Uploader:   deps.Uploader,
		Cfg:        deps.Cfg,
	}
	usageHandler := &handlers.UsageHandler{Usage: deps.Usage, Users: deps.Users}
	webSocketHandler := &handlers.WebSocketHandler{Hub: deps.Hub, Tokens: deps.Tokens}

	apiV1 := router.Group("/api/v1")
	{
		// WebSocket authenticates through its own token query parameter.
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/signup", userHandler.Signup)
			auth.POST("/login", userHandler.Login)
		}

		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate(deps.Tokens))
		{
			protected.GET("/auth/me", userHandler.Me)

			// Pickup form lifecycle
			forms := protected.Group("/pickup-forms")
			{
				userFormRoutes := forms.Group("/")
				userFormRoutes.Use(middleware.Authorize(models.RoleUser))
				{
					userFormRoutes.POST("/", pickupHandler.CreatePickupForm)
					userFormRoutes.GET("/my", pickupHandler.GetMyPickupForms)
				}

				collectorFormRoutes := forms.Group("/")
				collectorFormRoutes.Use(middleware.Authorize(models.RoleCollector))
				{
					collectorFormRoutes.GET("/open", pickupHandler.GetOpenPickupForms)
					collectorFormRoutes.POST("/:id/accept", pickupHandler.AcceptPickupForm)
					collectorFormRoutes.POST("/:id/reject", pickupHandler.RejectPickupForm)
					collectorFormRoutes.POST("/:id/collect", pickupHandler.CollectPickupForm)
				}

				policyFormRoutes := forms.Group("/")
				policyFormRoutes.Use(middleware.Authorize(models.RolePolicy))
				{
					policyFormRoutes.GET("/", pickupHandler.GetAllPickupForms)
					policyFormRoutes.POST("/reassign-stale", pickupHandler.ReassignStalePickupForms)
				}

				// Report export: requester of the form or the policy role,
				// checked inside the handler.
				reportRoutes := forms.Group("/")
				reportRoutes.Use(middleware.Authorize(models.RoleUser, models.RolePolicy))
				{
					reportRoutes.GET("/:id/report", pickupHandler.GetPickupFormReport)
					reportRoutes.POST("/:id/report", pickupHandler.UploadPickupFormReport)
				}
			}

			// Collector profile
			collectors := protected.Group("/collectors")
			collectors.Use(middleware.Authorize(models.RoleCollector))
			{
				collectors.PUT("/me/location", userHandler.UpdateMyLocation)
			}

			// Consumption tracking
			usage := protected.Group("/usage")
			usage.Use(middleware.Authorize(models.RoleUser))
			{
				usage.POST("/", usageHandler.CreateUsageEntry)
				usage.GET("/mine", usageHandler.GetMyUsageEntries)
			}

			// Oversight
			stats := protected.Group("/stats")
			stats.Use(middleware.Authorize(models.RolePolicy))
			{
				stats.GET("/summary", usageHandler.GetUsageSummary)
			}
		}
	}

	return router
}
