// Package http assembles the gin route tree and the server that carries it.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aivis/internal/interfaces/http/handlers"
	"github.com/turtacn/aivis/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and cross-cutting pieces the route
// tree needs. TargetHandler is required; everything else degrades to
// defaults or is skipped when nil.
type RouterConfig struct {
	TargetHandler *handlers.TargetHandler
	HealthHandler *handlers.HealthHandler

	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
	Collector prometheus.MetricsCollector

	CORS      *middleware.CORSConfig
	RateLimit *middleware.RateLimiter
	RateCfg   middleware.RateLimitConfig
}

// NewRouter builds the complete route tree: probes and metrics at the root,
// the target API under /api.
func NewRouter(cfg RouterConfig) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimit != nil {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateCfg))
	}

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Collector != nil {
		r.GET("/metrics", gin.WrapH(cfg.Collector.Handler()))
	}

	api := r.Group("/api")
	registerTargetRoutes(api, cfg.TargetHandler)

	return r
}

func registerTargetRoutes(api *gin.RouterGroup, h *handlers.TargetHandler) {
	if h == nil {
		return
	}
	targets := api.Group("/targets")
	{
		targets.POST("/init", h.Init)
		targets.GET("", h.List)
		targets.GET("/:id", h.Get)
		targets.DELETE("/:id", h.Delete)
		targets.PUT("/:id/keywords", h.UpdateKeywords)
		targets.PUT("/:id/prompts", h.UpdatePrompts)
		targets.POST("/:id/analyze", h.Analyze)
		targets.POST("/:id/analyze/async", h.AnalyzeAsync)
	}
}
