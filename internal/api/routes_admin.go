package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/handlers"
	"github.com/tacticalpanel/panel/internal/middleware"
	"github.com/tacticalpanel/panel/internal/permissions"
)

type adminRouteDeps struct {
	Resolver        *permissions.Resolver
	SubAdminHandler *handlers.SubAdminHandler
	AuditHandler    *handlers.AuditHandler
	SecurityHandler *handlers.SecurityHandler
}

func registerAdminRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc, deps adminRouteDeps) {
	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin(deps.Resolver))

	subAdmins := admin.Group("/sub-admins")
	{
		subAdmins.GET("", deps.SubAdminHandler.List)
		subAdmins.POST("", deps.SubAdminHandler.Create)
		subAdmins.GET("/:id", deps.SubAdminHandler.Get)
		subAdmins.PUT("/:id", deps.SubAdminHandler.Update)
		subAdmins.DELETE("/:id", deps.SubAdminHandler.Delete)
	}

	admin.GET("/audit", deps.AuditHandler.List)
	admin.GET("/security-audit", deps.SecurityHandler.Audit)
}
