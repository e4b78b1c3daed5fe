package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"invox/internal/config"
	"invox/internal/handler"
	"invox/internal/middleware"
	"invox/internal/observability"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	parseH *handler.ParseHandler,
	healthH *handler.HealthHandler,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(&cfg.CORS))
	r.Use(metrics.GinMiddleware())

	// Health checks and metrics
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	v1.POST("/parse", parseH.Parse)

	return r
}
