package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/quotes"
	"github.com/jonesrussell/finblog/internal/search"
	"github.com/jonesrussell/finblog/internal/tenant"
)

// PostReader reads published posts of one site.
type PostReader interface {
	GetPostBySlug(ctx context.Context, siteID, slug string) (*domain.PublishedPost, error)
	ListPosts(ctx context.Context, siteID, category string, limit, offset int) ([]domain.PublishedPost, error)
}

// QuoteSource serves cached rate quotes.
type QuoteSource interface {
	Latest(ctx context.Context) (*quotes.Set, error)
}

// Searcher queries the post index.
type Searcher interface {
	Search(ctx context.Context, siteID, text string, limit int) ([]search.Hit, error)
}

// PublicHandler serves /api/v1/public. Every read is scoped to the site
// resolved by the tenant middleware.
type PublicHandler struct {
	posts    PostReader
	quotes   QuoteSource
	searcher Searcher
}

// NewPublicHandler creates a public handler. quoteSource and searcher may be
// nil, which makes their endpoints answer 404.
func NewPublicHandler(posts PostReader, quoteSource QuoteSource, searcher Searcher) *PublicHandler {
	return &PublicHandler{posts: posts, quotes: quoteSource, searcher: searcher}
}

func currentSite(c *gin.Context) (*domain.Site, bool) {
	site, ok := tenant.SiteFrom(c)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "site unavailable"})
	}
	return site, ok
}

// Site handles GET /public/site.
func (h *PublicHandler) Site(c *gin.Context) {
	site, ok := currentSite(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "site": site})
}

// ListPosts handles GET /public/posts.
func (h *PublicHandler) ListPosts(c *gin.Context) {
	site, ok := currentSite(c)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	posts, err := h.posts.ListPosts(c.Request.Context(), site.ID, c.Query("category"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts, "count": len(posts)})
}

// GetPost handles GET /public/posts/:slug.
func (h *PublicHandler) GetPost(c *gin.Context) {
	site, ok := currentSite(c)
	if !ok {
		return
	}

	post, err := h.posts.GetPostBySlug(c.Request.Context(), site.ID, c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}

// Quotes handles GET /public/quotes.
func (h *PublicHandler) Quotes(c *gin.Context) {
	if h.quotes == nil {
		respondError(c, quotes.ErrDisabled)
		return
	}
	set, err := h.quotes.Latest(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quotes": set})
}

// Search handles GET /public/search?q=.
func (h *PublicHandler) Search(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "search is not enabled"})
		return
	}
	site, ok := currentSite(c)
	if !ok {
		return
	}
	text := strings.TrimSpace(c.Query("q"))
	if text == "" {
		badRequest(c, "q is required")
		return
	}
	limit, ok := queryInt(c, "limit", defaultPageSize, maxPageSize)
	if !ok {
		badRequest(c, "invalid limit")
		return
	}

	hits, err := h.searcher.Search(c.Request.Context(), site.ID, text, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hits": hits, "count": len(hits)})
}
