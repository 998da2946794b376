// server/internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/handlers"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/services"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SessionCreateLimit caps new sessions per client IP per minute.
const SessionCreateLimit = 30

// Deps is everything the router wires into routes.
type Deps struct {
	SessionSecret string
	Registry      *services.Registry
	Sessions      *handlers.SessionHandler
	Telemetry     *handlers.TelemetryHandler
	Gatherer      prometheus.Gatherer
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
}

func Setup(log *zap.Logger, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(deps.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true behind TLS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	router.Use(sessions.Sessions("rtexp", store))
	router.Use(ParticipantLoader())

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'",
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: SessionCreateLimit,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": deps.Registry.Len()})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/telemetry", deps.Telemetry.Ingest)
	router.GET("/participants/:pid/results.csv", deps.Telemetry.ParticipantResults)

	router.POST("/sessions", limiter, deps.Sessions.Create)
	sessionRoutes := router.Group("/sessions/:id")
	sessionRoutes.Use(SessionRequired(deps.Registry))
	{
		sessionRoutes.POST("/keys", deps.Sessions.Key)
		sessionRoutes.GET("/frame", deps.Sessions.Frame)
		sessionRoutes.GET("/state", deps.Sessions.State)
		sessionRoutes.GET("/results.csv", deps.Sessions.Results)
		sessionRoutes.DELETE("", deps.Sessions.Delete)
	}

	return router
}
