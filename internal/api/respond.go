// Package api provides the HTTP handlers of the finblog service: scheduler
// triggers, the operator admin surface and the tenant scoped public reads.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/quotes"
	"github.com/jonesrussell/finblog/internal/rewrite"
	"github.com/jonesrussell/finblog/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func respondOK(c *gin.Context, status int, stats any) {
	c.JSON(status, gin.H{"success": true, "stats": stats})
}

// respondError writes {"success": false, "error": ...}. Stage failures also
// carry error_stage and error_code.
func respondError(c *gin.Context, err error) {
	body := gin.H{"success": false, "error": err.Error()}

	var stageErr *rewrite.StageError
	if errors.As(err, &stageErr) {
		body["error_stage"] = stageErr.Step
		body["error_code"] = stageErr.Code
	}

	c.JSON(statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, quotes.ErrDisabled):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyApproved),
		errors.Is(err, domain.ErrSlugConflict),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDraftLocked),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownCategory):
		return http.StatusBadRequest
	}

	var stageErr *rewrite.StageError
	if errors.As(err, &stageErr) && stageErr.Code != domain.ErrorCodeDB {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}

// queryInt reads a non-negative integer query parameter, clamped to limit
// when limit is positive.
func queryInt(c *gin.Context, name string, def, limit int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n, true
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	if limit, ok = queryInt(c, "limit", defaultPageSize, maxPageSize); !ok {
		badRequest(c, "invalid limit")
		return 0, 0, false
	}
	if offset, ok = queryInt(c, "offset", 0, 0); !ok {
		badRequest(c, "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}
