package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/handlers"
)

// Ownership and grant checks happen in the server service; a denied server reads as missing.
func registerServerRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, handler *handlers.ServerHandler) {
	servers := api.Group("/servers", requireAuth)
	{
		servers.GET("", handler.List)
		servers.POST("", handler.Create)
		servers.GET("/:id", handler.Get)
		servers.PATCH("/:id", handler.Update)
		servers.DELETE("/:id", handler.Delete)

		servers.POST("/:id/start", handler.Start)
		servers.POST("/:id/stop", handler.Stop)
		servers.POST("/:id/restart", handler.Restart)
	}
}
