package api

import (
	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/handlers"
	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
)

func registerInvoiceRoutes(api *gin.RouterGroup, h *handlers.InvoiceHandler) {
	invoices := api.Group("/invoices")
	{
		invoices.GET("", h.List)
		invoices.GET("/:id", h.Get)
		invoices.PATCH("/:id/pay", h.Pay)

		admin := invoices.Group("")
		admin.Use(middleware.RequireRole(models.RoleAdmin, models.RoleAgency))
		{
			admin.GET("/overdue", h.ListOverdue)
			admin.POST("", h.Create)
			admin.POST("/generate/:jobId", h.Generate)
			admin.POST("/subscription", h.CreateSubscription)
		}
	}
}
