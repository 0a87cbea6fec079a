package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"campus-admin/config"
	"campus-admin/internal/auth"
	"campus-admin/internal/metrics"
	"campus-admin/internal/mw"
	"campus-admin/internal/store"
)

// NewRouter creates and configures a new Gin router. Reads are public and
// cached; writes require a bearer token issued by authMgr.
func NewRouter(s store.Store, cfg config.ServerConfig, authMgr *auth.Manager, reg *prometheus.Registry, logger *zap.Logger) (*gin.Engine, error) {
	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(logger), mw.Metrics(httpMetrics))

	handler := NewHandler(s, logger)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst)

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	caching := mw.Cache(cache.New(cacheTTL, 2*cacheTTL), cacheTTL)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, caching)
	{
		api.GET("/:type", handler.List)
		api.GET("/:type/:id", handler.Get)

		write := api.Group("", authMgr.Require())
		write.POST("/:type", handler.Create)
		write.PATCH("/:type/:id", handler.Update)
		write.PUT("/:type/:id", handler.Update)
		write.DELETE("/:type/:id", handler.Delete)
	}

	return r, nil
}
