// Package router wires the HTTP surface: tenant API, provider webhooks
// and the internal batch trigger.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellerhub/backend/internal/infrastructure/auth"
	infraconfig "github.com/sellerhub/backend/internal/infrastructure/config"
	"github.com/sellerhub/backend/internal/infrastructure/logger"
	"github.com/sellerhub/backend/internal/infrastructure/telemetry"
	"github.com/sellerhub/backend/internal/interfaces/http/handler"
	"github.com/sellerhub/backend/internal/interfaces/http/middleware"
)

// Handlers bundles the handlers the router mounts
type Handlers struct {
	System      *handler.SystemHandler
	Connections *handler.ConnectionHandler
	Webhooks    *handler.WebhookHandler
	Sync        *handler.SyncHandler
}

// Options carries router configuration
type Options struct {
	JWTService   *auth.JWTService
	TriggerToken string
	HTTPConfig   *infraconfig.HTTPConfig
	Meter        *telemetry.MeterProvider
	Logger       *zap.Logger
	// TracingEnabled toggles the otelgin middleware
	TracingEnabled bool
}

// New builds the gin engine with the full middleware chain and all routes.
func New(h Handlers, opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(opts.HTTPConfig.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(opts.HTTPConfig.TrustedProxies)
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: "sellerhub-backend",
		Enabled:     opts.TracingEnabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(opts.Meter))
	if opts.Logger != nil {
		engine.Use(logger.GinMiddleware(opts.Logger))
	}
	engine.Use(middleware.Secure())

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = opts.HTTPConfig.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsCfg))

	// Probes
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)

	// Provider webhooks. No tenant auth: deliveries authenticate via
	// their HMAC signature, verified by the provider adapter.
	webhooks := engine.Group("/webhooks")
	webhooks.Use(middleware.BodyLimit(opts.HTTPConfig.MaxWebhookBody))
	webhooks.POST("/:provider", h.Webhooks.Receive)

	// Internal operational endpoints behind the pre-shared trigger token.
	internal := engine.Group("/internal")
	internal.Use(middleware.StaticBearerAuth(opts.TriggerToken))
	internal.POST("/sync/run", h.Sync.Run)

	// Tenant API
	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(opts.JWTService))
	{
		connections := api.Group("/connections")
		connections.GET("", h.Connections.List)
		connections.GET("/:provider", h.Connections.Get)
		connections.POST("/:provider/authorize", h.Connections.Authorize)
		connections.GET("/:provider/callback", h.Connections.Callback)
		connections.DELETE("/:provider", h.Connections.Disconnect)
		connections.POST("/:provider/sync", h.Connections.Resync)
		connections.GET("/:provider/events", h.Connections.Events)
	}

	return engine
}
