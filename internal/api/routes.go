package api

import (
	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/finblog/infrastructure/gin"
	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/tenant"
)

// RouteConfig carries the secrets and proxy settings of the route tree.
type RouteConfig struct {
	JWTSecret          string
	CronSecret         string
	TrustForwardedHost bool
}

// Handlers groups the route handlers.
type Handlers struct {
	Cron   *CronHandler
	Admin  *AdminHandler
	Public *PublicHandler
}

// SetupRoutes configures all API routes.
// Cron endpoints are guarded by the shared scheduler secret.
// Admin endpoints require an operator JWT and are only served on the main site.
// Public endpoints are read only and scoped to the requesting site.
func SetupRoutes(router *gin.Engine, cfg RouteConfig, resolver *tenant.Resolver, h Handlers, log infralogger.Logger) {
	v1 := router.Group("/api/v1")

	cron := v1.Group("/cron", CronAuth(cfg.CronSecret))
	cron.POST("/fetch-news", h.Cron.FetchNews)
	cron.GET("/fetch-news", h.Cron.FetchNews)
	cron.POST("/generate-drafts", h.Cron.GenerateDrafts)
	cron.GET("/generate-drafts", h.Cron.GenerateDrafts)

	tenanted := v1.Group("", tenant.Middleware(resolver, cfg.TrustForwardedHost, log))

	admin := infragin.ProtectedGroup(tenanted.Group("", tenant.RequireMainSite()), "/admin", cfg.JWTSecret)
	admin.POST("/fetch", h.Admin.Fetch)
	admin.GET("/news", h.Admin.ListNews)
	admin.PATCH("/news/:id", h.Admin.ExcludeNews)
	admin.POST("/news/delete", h.Admin.DeleteNews)
	admin.POST("/news/:id/draft", h.Admin.GenerateDraft)
	admin.POST("/drafts/generate", h.Admin.GenerateDrafts)
	admin.GET("/drafts", h.Admin.ListDrafts)
	admin.GET("/drafts/:id", h.Admin.GetDraft)
	admin.POST("/drafts/:id/rewrite", h.Admin.Rewrite)
	admin.POST("/drafts/:id/rewrite/:step", h.Admin.RewriteStep)
	admin.POST("/drafts/:id/resume", h.Admin.Resume)
	admin.POST("/drafts/:id/approve", h.Admin.Approve)

	public := tenanted.Group("/public")
	public.GET("/site", h.Public.Site)
	public.GET("/posts", h.Public.ListPosts)
	public.GET("/posts/:slug", h.Public.GetPost)
	public.GET("/quotes", h.Public.Quotes)
	public.GET("/search", h.Public.Search)
}
