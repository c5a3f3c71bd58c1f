// Package router assembles the gin engine: middleware chain, health and
// metrics endpoints, and the session-management routes.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soleron/sessiond/internal/config"
	"github.com/soleron/sessiond/internal/domain/service"
	"github.com/soleron/sessiond/internal/infrastructure/monitoring"
	"github.com/soleron/sessiond/internal/interfaces/http/handlers"
	"github.com/soleron/sessiond/internal/interfaces/http/middleware"
	"github.com/soleron/sessiond/pkg/logger"
)

// Dependencies carries everything the router wires together.
type Dependencies struct {
	Config    *config.Config
	Lifecycle *service.SessionLifecycleService
	CSRF      *middleware.CSRFGuard
	Health    *handlers.HealthHandler
	Tracing   *monitoring.TracingManager
	Logger    logger.Logger
}

// New builds the gin engine.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if deps.Tracing != nil {
		engine.Use(middleware.Tracing(deps.Tracing))
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token"},
		AllowCredentials: false,
	}))

	engine.GET("/healthz", deps.Health.Live)
	engine.GET("/readyz", deps.Health.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !deps.Config.Server.Production {
		pprof.Register(engine)
	}

	sessionHandler := handlers.NewSessionHandler(deps.Lifecycle)

	v1 := engine.Group("/v1")

	// Refresh authenticates by refresh token itself, but still sits behind
	// the forgery guard: rotation is state-changing. No session is resolved
	// here, so the guard scopes its secret to the requester's device.
	v1.POST("/sessions/refresh", deps.CSRF.Middleware(), sessionHandler.Refresh)

	// Authenticated routes resolve the session before the guard runs, so the
	// guard binds its secret to the session ID instead of the device.
	authed := v1.Group("",
		middleware.RequireSession(deps.Lifecycle, deps.Logger),
		deps.CSRF.Middleware(),
	)
	authed.GET("/sessions", sessionHandler.List)
	authed.DELETE("/sessions/:id", sessionHandler.Revoke)
	authed.POST("/sessions/revoke-all", sessionHandler.RevokeAll)

	return engine
}
