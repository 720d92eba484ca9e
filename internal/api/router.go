package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"beacon-network-backend/config"
	"beacon-network-backend/internal/mw"
)

// NewResponseCache creates the store behind the GET response cache.
// Writers outside HTTP, like the liveness sweep, flush it after changing
// device state.
func NewResponseCache(cfg config.ServerConfig) *cache.Cache {
	return cache.New(cfg.CacheTTL(), 10*time.Minute)
}

// NewRouter creates and configures a new Gin router. gatherer backs the
// /metrics endpoint and may be nil to omit it. responses backs the device
// list cache; nil gets a private store. Marketplace reads are never cached
// so they cannot serve an expired listing.
func NewRouter(cfg config.ServerConfig, h *Handler, gatherer prometheus.Gatherer, responses *cache.Cache) *gin.Engine {
	r := gin.New()

	opsPaths := []string{"/health", "/metrics"}
	if responses == nil {
		responses = NewResponseCache(cfg)
	}
	caching := mw.Cache(responses, cfg.CacheTTL())

	r.Use(
		mw.RequestID(),
		mw.Recovery(h.log),
		mw.AccessLog(h.log, opsPaths...),
		mw.Metrics(h.metrics),
		mw.CORS(cfg.AllowedOrigins),
		mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, h.log, opsPaths...),
		mw.Invalidate(responses),
	)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/register-device", h.RegisterDevice)
	r.GET("/nodes", caching, h.ListNodes)
	r.PUT("/devices/:device_id/heartbeat", h.Heartbeat)
	r.DELETE("/devices/:device_id", h.RetireDevice)

	r.POST("/send-message", h.SendMessage)
	r.POST("/broadcast", h.Broadcast)
	r.GET("/messages/:device_id", h.ListMessages)
	r.GET("/decrypt/:message_id", h.DecryptMessage)

	market := r.Group("/marketplace")
	{
		market.POST("", h.CreateListing)
		market.GET("", h.ListListings)
		market.GET("/:listing_id", h.GetListing)
		market.PATCH("/:listing_id", h.UpdateListing)
		market.PUT("/:listing_id/resolve", h.ResolveListing)
	}

	r.GET("/subscriptions", h.GetSubscription)
	r.PUT("/subscriptions", h.PutSubscription)
	r.DELETE("/subscriptions", h.DeleteSubscription)
	r.GET("/vapid_public_key", h.GetVAPIDPublicKey)

	return r
}
