package handler

import (
	"github.com/clipdeck/kick-clips-go/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig collects the handlers served by NewRouter.
type RouterConfig struct {
	Feed      *FeedHandler
	Downloads *DownloadHandler
	Health    *HealthHandler
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
	APIKeys   []string
}

// NewRouter builds the gin engine. The /api/v1 group requires an API key
// when any key is configured; health and metrics endpoints are always open.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger))

	router.GET("/health/live", cfg.Health.LivenessProbe)
	router.GET("/health/ready", cfg.Health.ReadinessProbe)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	if len(cfg.APIKeys) > 0 {
		api.Use(middleware.NewAPIKeyAuth(cfg.APIKeys, cfg.Logger).Middleware())
	}

	api.POST("/feed", cfg.Feed.Reset)
	api.POST("/feed/next", cfg.Feed.Next)
	api.GET("/feed", cfg.Feed.Get)
	api.GET("/channels/recent", cfg.Feed.Recent)

	api.POST("/downloads", cfg.Downloads.Enqueue)
	api.GET("/downloads", cfg.Downloads.List)
	api.GET("/downloads/transfers", cfg.Downloads.Transfers)
	api.DELETE("/downloads/transfers/:clipId", cfg.Downloads.Cancel)
	api.DELETE("/downloads/:clipId", cfg.Downloads.Remove)

	return router
}
