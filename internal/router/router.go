package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine       *gin.Engine
	tenant       middleware.TenantResolver
	health       Handler
	availability Handler
	holds        Handler
	metrics      *prometheus.Handler
	config       RouterConfig
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	SizeLimit        middleware.SizeLimitConfig
	// MetricsPath is left unrouted when empty.
	MetricsPath string
}

func NewRouter(
	log *logger.Logger,
	tenant middleware.TenantResolver,
	health Handler,
	availability Handler,
	holds Handler,
	metrics *prometheus.Handler,
	config RouterConfig,
) *Router {
	engine := gin.New() // Use New() instead of Default() for more control

	if config.SizeLimit.MaxBodySize <= 0 {
		config.SizeLimit = middleware.DefaultSizeLimitConfig()
	}

	r := &Router{
		engine:       engine,
		tenant:       tenant,
		health:       health,
		availability: availability,
		holds:        holds,
		metrics:      metrics,
		config:       config,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	if r.metrics != nil && r.config.MetricsPath != "" {
		r.engine.GET(r.config.MetricsPath, r.metrics.Handler())
	}

	api := r.engine.Group("/api/v1")

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.health.RegisterRoutes(api)

	businesses := api.Group("/businesses/:business")
	businesses.Use(
		middleware.SizeLimit(r.config.SizeLimit),
		middleware.Tenant(r.tenant),
	)
	r.availability.RegisterRoutes(businesses)
	r.holds.RegisterRoutes(businesses)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
