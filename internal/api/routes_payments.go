package api

import (
	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/handlers"
	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
)

func registerPaymentRoutes(api *gin.RouterGroup, h *handlers.PaymentHandler) {
	payments := api.Group("/payments")
	{
		payments.POST("", h.Create)
		payments.POST("/:id/process", h.Process)
		payments.GET("", h.List)
		payments.GET("/:id", h.Get)
		payments.GET("/:id/escrow", h.GetEscrow)

		admin := payments.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/:id/refund", h.Refund)
			admin.POST("/:id/escrow/release", h.ReleaseEscrow)
		}
	}
}
