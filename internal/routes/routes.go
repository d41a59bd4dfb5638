package routes

import (
	"net/http"

	"github.com/Lorient94/GimnasioAdmin/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all HTTP routes on the router.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.ClientHandler.RegisterRoutes(api)
		appHandlers.ClassHandler.RegisterRoutes(api)
		appHandlers.EnrollmentHandler.RegisterRoutes(api)
		appHandlers.TransactionHandler.RegisterRoutes(api)
		appHandlers.WebhookHandler.RegisterRoutes(api)
	}
}
