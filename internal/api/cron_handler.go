package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/service"
)

// CronSecretHeader carries the scheduler's shared secret.
const CronSecretHeader = "X-Cron-Secret"

const defaultCronBatch = 10

// CronService is what the scheduler endpoints trigger.
type CronService interface {
	FetchNews(ctx context.Context) (*fetcher.Stats, error)
	GenerateDrafts(ctx context.Context, limit int) (*service.GenerateResult, error)
}

// CronAuth rejects requests without the shared secret, before any work is
// done. An empty secret rejects everything.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || !secretMatches(presentedSecret(c), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func presentedSecret(c *gin.Context) string {
	if v := c.GetHeader(CronSecretHeader); v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// CronHandler serves the scheduler triggers.
type CronHandler struct {
	svc        CronService
	batchLimit int
	log        infralogger.Logger
}

// NewCronHandler creates a cron handler. batchLimit is the generation batch
// size used when the request does not pass ?limit.
func NewCronHandler(svc CronService, batchLimit int, log infralogger.Logger) *CronHandler {
	if batchLimit <= 0 {
		batchLimit = defaultCronBatch
	}
	return &CronHandler{svc: svc, batchLimit: batchLimit, log: log}
}

// FetchNews handles /api/v1/cron/fetch-news.
func (h *CronHandler) FetchNews(c *gin.Context) {
	stats, err := h.svc.FetchNews(c.Request.Context())
	if err != nil {
		h.log.Error("Scheduled fetch failed", infralogger.Error(err))
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// GenerateDrafts handles /api/v1/cron/generate-drafts.
func (h *CronHandler) GenerateDrafts(c *gin.Context) {
	limit, ok := queryInt(c, "limit", h.batchLimit, maxPageSize)
	if !ok {
		badRequest(c, "invalid limit")
		return
	}

	result, err := h.svc.GenerateDrafts(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Scheduled generation failed", infralogger.Int("limit", limit), infralogger.Error(err))
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}
