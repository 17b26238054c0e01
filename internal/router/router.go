package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/appship/engage-api/internal/middleware"
	"github.com/appship/engage-api/internal/ratelimit"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	// TriggerRate bounds how fast the campaign trigger endpoints may
	// be hit in aggregate, independent of the per-identity tracking
	// limiter.
	TriggerRate  rate.Limit
	TriggerBurst int
}

type Router struct {
	engine    *gin.Engine
	limiter   *ratelimit.Limiter
	trackingH Handler
	campaignH Handler
	healthH   Handler
	metrics   *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(
	limiter *ratelimit.Limiter,
	trackingH Handler,
	campaignH Handler,
	healthH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:    engine,
		limiter:   limiter,
		trackingH: trackingH,
		campaignH: campaignH,
		healthH:   healthH,
		metrics:   newRouterMetrics(),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		r.metricsMiddleware(),
	)

	// Tracking callbacks: the per-identity limiter only annotates the
	// context; the handler decides what the flag means.
	tracked := engine.Group("")
	tracked.Use(middleware.RateLimit(limiter))
	r.trackingH.RegisterRoutes(tracked)

	// Campaign triggers: a hard global limit, these are cron calls.
	triggers := engine.Group("")
	triggers.Use(globalLimit(rate.NewLimiter(config.TriggerRate, config.TriggerBurst)))
	r.campaignH.RegisterRoutes(triggers)

	api := engine.Group("")
	r.healthH.RegisterRoutes(api)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func globalLimit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "engage_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
