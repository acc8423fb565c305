package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/app"
	"github.com/carenethq/carenet-server/internal/app/sweep"
	iauth "github.com/carenethq/carenet-server/internal/auth"
	"github.com/carenethq/carenet-server/internal/features"
	"github.com/carenethq/carenet-server/internal/handlers"
	"github.com/carenethq/carenet-server/internal/middleware"
)

// NewRouter builds the Gin engine, wires middleware and registers the
// settlement routes. Every authenticated route passes through the feature
// guard before its handler runs.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, sweeper *sweep.Sweeper) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	guard, err := features.NewGuard(db, cfg.Sweep.GuardFailOpen)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	api.Use(middleware.FeatureGuard(guard))

	invoiceHandler, err := handlers.NewInvoiceHandler(db, cfg.Billing)
	if err != nil {
		return nil, err
	}
	registerInvoiceRoutes(api, invoiceHandler)

	paymentHandler, err := handlers.NewPaymentHandler(db, cfg.Billing)
	if err != nil {
		return nil, err
	}
	registerPaymentRoutes(api, paymentHandler)

	lockoutHandler, err := handlers.NewLockoutHandler(db)
	if err != nil {
		return nil, err
	}
	registerLockoutRoutes(api, lockoutHandler)

	if sweeper != nil {
		adminHandler := handlers.NewAdminHandler(sweeper)
		registerAdminRoutes(api, adminHandler)
	}

	return r, nil
}
