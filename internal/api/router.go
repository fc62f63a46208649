package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fieldops-scheduler-backend/config"
	"fieldops-scheduler-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimit := rate.Limit(10)
	if cfg != nil && cfg.RateLimitPerSec > 0 {
		rateLimit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(rateLimit, 5)

	cacheTTL := 30 * time.Second
	if cfg != nil && cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// The sole mutating entry point.
		api.POST("/proposals", handler.PostProposal)

		// Read side. Listings may serve a slightly stale snapshot; they
		// feed presentation, not validation.
		api.GET("/events", caching, handler.GetEvents)
		api.GET("/events/:event_id/projection", handler.GetProjection)
		api.GET("/resources", caching, handler.GetResources)
		api.GET("/resources/:resource_id", caching, handler.GetResource)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
