package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/missioncare/intake-api/internal/middleware"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Timeout    time.Duration
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware

	healthH      Handler
	visitH       Handler
	pharmacyH    Handler
	beneficiaryH Handler
	inventoryH   Handler
	missionH     Handler
	auditH       Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	visitH Handler,
	pharmacyH Handler,
	beneficiaryH Handler,
	inventoryH Handler,
	missionH Handler,
	auditH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:       engine,
		auth:         auth,
		healthH:      healthH,
		visitH:       visitH,
		pharmacyH:    pharmacyH,
		beneficiaryH: beneficiaryH,
		inventoryH:   inventoryH,
		missionH:     missionH,
		auditH:       auditH,
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Health endpoints stay outside authentication.
	r.healthH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.visitH.RegisterRoutes(protected)
	r.pharmacyH.RegisterRoutes(protected)
	r.beneficiaryH.RegisterRoutes(protected)
	r.inventoryH.RegisterRoutes(protected)
	r.missionH.RegisterRoutes(protected)
	r.auditH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
