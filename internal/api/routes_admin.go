package api

import (
	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/handlers"
	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
)

func registerAdminRoutes(api *gin.RouterGroup, h *handlers.AdminHandler) {
	admin := api.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/sweep/run", h.RunSweep)
	}
}
