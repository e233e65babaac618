package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
)

// ContextKeySite holds the resolved *domain.Site.
const ContextKeySite = "site"

const forwardedHostHeader = "X-Forwarded-Host"

// Middleware resolves the request's site. With trustForwarded the
// X-Forwarded-Host header set by the edge proxy takes precedence.
func Middleware(resolver *Resolver, trustForwarded bool, log infralogger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := c.Request.Host
		if trustForwarded {
			if fwd := c.GetHeader(forwardedHostHeader); fwd != "" {
				host = fwd
			}
		}

		site, err := resolver.Resolve(c.Request.Context(), host)
		if err != nil {
			log.Error("Tenant resolution failed", infralogger.String("host", host), infralogger.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "site unavailable",
			})
			return
		}

		c.Set(ContextKeySite, site)
		c.Next()
	}
}

// SiteFrom returns the site set by Middleware.
func SiteFrom(c *gin.Context) (*domain.Site, bool) {
	v, ok := c.Get(ContextKeySite)
	if !ok {
		return nil, false
	}
	site, ok := v.(*domain.Site)
	return site, ok && site != nil
}

// RequireMainSite hides a route group from every site but the main one.
// Sub-tenants see a plain 404.
func RequireMainSite() gin.HandlerFunc {
	return func(c *gin.Context) {
		site, ok := SiteFrom(c)
		if !ok || !site.IsMain {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "not found",
			})
			return
		}
		c.Next()
	}
}
