package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/finblog/infrastructure/gin"
	"github.com/jonesrussell/finblog/internal/api"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 10 * time.Minute
	defaultIdleTimeout  = 120 * time.Second
	healthCheckTimeout  = 2 * time.Second
)

// SetupHTTPServer creates the HTTP server with all handlers wired. The
// write timeout covers a synchronous rewrite of a whole draft.
func SetupHTTPServer(app *App) *infragin.Server {
	cfg := app.Config

	var searcher api.Searcher
	if app.Searcher != nil {
		searcher = app.Searcher
	}

	handlers := api.Handlers{
		Cron:   api.NewCronHandler(app.Service, cfg.Generation.BatchSize, app.Log),
		Admin:  api.NewAdminHandler(app.Service, app.Log),
		Public: api.NewPublicHandler(app.Posts, app.Quotes, searcher),
	}
	routeCfg := api.RouteConfig{
		JWTSecret:          cfg.Auth.JWTSecret,
		CronSecret:         cfg.Scheduler.Secret,
		TrustForwardedHost: cfg.Service.TrustForwardedHost,
	}
	if cfg.Auth.JWTSecret == "" {
		app.Log.Warn("auth.jwt_secret is empty, admin endpoints are unauthenticated")
	}

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(app.Log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, defaultWriteTimeout, defaultIdleTimeout).
		WithDatabaseHealthCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return app.DB.PingContext(ctx)
		}).
		WithRoutes(func(router *gin.Engine) {
			router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
			api.SetupRoutes(router, routeCfg, app.Resolver, handlers, app.Log)
		})

	if app.Redis != nil {
		builder = builder.WithRedisHealthCheck(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
			defer cancel()
			return app.Redis.Ping(ctx).Err()
		})
	}

	return builder.Build()
}
