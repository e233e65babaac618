package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/tenant"
)

func newRouter(trustForwarded bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	resolver := tenant.NewResolver(newSites(), cache.NewMemory(), time.Minute, infralogger.NewNop())

	r := gin.New()
	r.Use(tenant.Middleware(resolver, trustForwarded, infralogger.NewNop()))
	r.GET("/site", func(c *gin.Context) {
		site, _ := tenant.SiteFrom(c)
		c.String(http.StatusOK, site.ID)
	})
	admin := r.Group("/admin", tenant.RequireMainSite())
	admin.GET("/secret", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestMiddleware_ResolvesSite(t *testing.T) {
	t.Parallel()

	r := newRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/site", nil)
	req.Host = "blog.partner.com:443"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partner", w.Body.String())
}

func TestMiddleware_ForwardedHost(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/site", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Host", "blog.partner.com")

	w := httptest.NewRecorder()
	newRouter(true).ServeHTTP(w, req)
	assert.Equal(t, "partner", w.Body.String())

	w = httptest.NewRecorder()
	newRouter(false).ServeHTTP(w, req)
	assert.Equal(t, "main", w.Body.String(), "header ignored unless trusted")
}

func TestRequireMainSite(t *testing.T) {
	t.Parallel()

	r := newRouter(false)

	testCases := []struct {
		host     string
		wantCode int
		wantBody string
	}{
		{host: "www.example.com", wantCode: http.StatusOK, wantBody: "ok"},
		{host: "blog.partner.com", wantCode: http.StatusNotFound, wantBody: `{"error":"not found","success":false}`},
	}

	for _, tc := range testCases {
		req := httptest.NewRequest(http.MethodGet, "/admin/secret", nil)
		req.Host = tc.host
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, tc.wantCode, w.Code, tc.host)
		assert.Equal(t, tc.wantBody, w.Body.String(), tc.host)
	}
}
