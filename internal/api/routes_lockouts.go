package api

import (
	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/handlers"
	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
)

func registerLockoutRoutes(api *gin.RouterGroup, h *handlers.LockoutHandler) {
	lockouts := api.Group("/lockouts")
	{
		lockouts.GET("/me", h.Me)

		admin := lockouts.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/:id", h.Get)
			admin.GET("/user/:userId", h.ListForUser)
			admin.POST("", h.Create)
			admin.POST("/:id/unlock", h.Unlock)
			admin.POST("/grace", h.GrantGrace)
		}
	}
}
