package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/finblog/infrastructure/jwt"
	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/rewrite"
	"github.com/jonesrussell/finblog/internal/service"
	"github.com/jonesrussell/finblog/internal/tenant"
)

const defaultReviewer = "operator"

// AdminService is the operator surface of the application.
type AdminService interface {
	CronService
	FetchCategory(ctx context.Context, category string) (*fetcher.CategoryStats, error)
	ListCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.CandidateItem, error)
	ExcludeCandidate(ctx context.Context, id string, excluded bool) error
	DeleteCandidates(ctx context.Context, ids []string) (int64, error)
	GenerateDraft(ctx context.Context, candidateID string) (*domain.Draft, *service.RewriteOutcome, error)
	ListDrafts(ctx context.Context, filter domain.DraftFilter) ([]domain.Draft, error)
	GetDraft(ctx context.Context, id string) (*domain.Draft, error)
	Rewrite(ctx context.Context, draftID string) (*rewrite.Result, error)
	RewriteStep(ctx context.Context, draftID string, step domain.Step) (*rewrite.Result, error)
	Resume(ctx context.Context, draftID string) (*rewrite.Result, error)
	Approve(ctx context.Context, req publish.ApproveRequest) (*publish.ApproveResult, error)
}

// AdminHandler serves /api/v1/admin.
type AdminHandler struct {
	svc AdminService
	log infralogger.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(svc AdminService, log infralogger.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, log: log}
}

// Fetch handles POST /admin/fetch. ?category limits the run to one category.
func (h *AdminHandler) Fetch(c *gin.Context) {
	if category := c.Query("category"); category != "" {
		stats, err := h.svc.FetchCategory(c.Request.Context(), category)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, http.StatusOK, stats)
		return
	}

	stats, err := h.svc.FetchNews(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// ListNews handles GET /admin/news.
func (h *AdminHandler) ListNews(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	filter := domain.CandidateFilter{
		Category:        c.Query("category"),
		OnlyPending:     c.Query("pending") == "true",
		IncludeExcluded: c.Query("include_excluded") == "true",
		Limit:           limit,
		Offset:          offset,
	}
	items, err := h.svc.ListCandidates(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items, "count": len(items)})
}

type excludeRequest struct {
	Excluded *bool `json:"excluded"`
}

// ExcludeNews handles PATCH /admin/news/:id.
func (h *AdminHandler) ExcludeNews(c *gin.Context) {
	var req excludeRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		badRequest(c, bindErr.Error())
		return
	}
	if req.Excluded == nil {
		badRequest(c, "excluded is required")
		return
	}

	if err := h.svc.ExcludeCandidate(c.Request.Context(), c.Param("id"), *req.Excluded); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": c.Param("id"), "excluded": *req.Excluded})
}

type deleteNewsRequest struct {
	IDs []string `binding:"required,min=1" json:"ids"`
}

// DeleteNews handles POST /admin/news/delete.
func (h *AdminHandler) DeleteNews(c *gin.Context) {
	var req deleteNewsRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		badRequest(c, bindErr.Error())
		return
	}

	deleted, err := h.svc.DeleteCandidates(c.Request.Context(), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "requested": len(req.IDs), "deleted": deleted})
}

// GenerateDrafts handles POST /admin/drafts/generate.
func (h *AdminHandler) GenerateDrafts(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultCronBatch, maxPageSize)
	if !ok {
		badRequest(c, "invalid limit")
		return
	}

	result, err := h.svc.GenerateDrafts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// GenerateDraft handles POST /admin/news/:id/draft.
func (h *AdminHandler) GenerateDraft(c *gin.Context) {
	d, rewriteOutcome, err := h.svc.GenerateDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"success": true, "draft": d}
	if rewriteOutcome != nil {
		body["rewrite"] = rewriteOutcome
	}
	c.JSON(http.StatusCreated, body)
}

// ListDrafts handles GET /admin/drafts.
func (h *AdminHandler) ListDrafts(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	filter := domain.DraftFilter{
		Status: domain.DraftStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.Query("stage"); raw != "" {
		filter.Stage = domain.Stage(raw)
		if !filter.Stage.IsValid() {
			badRequest(c, "invalid stage")
			return
		}
	}

	drafts, err := h.svc.ListDrafts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "drafts": drafts, "count": len(drafts)})
}

// GetDraft handles GET /admin/drafts/:id.
func (h *AdminHandler) GetDraft(c *gin.Context) {
	d, err := h.svc.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draft": d})
}

// Rewrite handles POST /admin/drafts/:id/rewrite.
func (h *AdminHandler) Rewrite(c *gin.Context) {
	res, err := h.svc.Rewrite(c.Request.Context(), c.Param("id"))
	h.respondRewrite(c, res, err)
}

// RewriteStep handles POST /admin/drafts/:id/rewrite/:step.
func (h *AdminHandler) RewriteStep(c *gin.Context) {
	step, ok := domain.ParseStep(c.Param("step"))
	if !ok {
		badRequest(c, "step must be one of editor, columnist, save")
		return
	}
	res, err := h.svc.RewriteStep(c.Request.Context(), c.Param("id"), step)
	h.respondRewrite(c, res, err)
}

// Resume handles POST /admin/drafts/:id/resume.
func (h *AdminHandler) Resume(c *gin.Context) {
	res, err := h.svc.Resume(c.Request.Context(), c.Param("id"))
	h.respondRewrite(c, res, err)
}

func (h *AdminHandler) respondRewrite(c *gin.Context, res *rewrite.Result, err error) {
	if err != nil {
		var stageErr *rewrite.StageError
		if errors.As(err, &stageErr) {
			h.log.Warn("Rewrite stage failed",
				infralogger.String("draft_id", c.Param("id")),
				infralogger.String("stage", string(stageErr.Step)),
				infralogger.String("code", stageErr.Code),
			)
		}
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, res)
}

type approveRequest struct {
	SiteID       string  `json:"site_id"`
	ThumbnailURL *string `json:"thumbnail_url"`
	AuthorID     *string `json:"author_id"`
}

// Approve handles POST /admin/drafts/:id/approve. The post goes to site_id,
// or to the site serving the admin request when none is given.
func (h *AdminHandler) Approve(c *gin.Context) {
	var req approveRequest
	if c.Request.ContentLength != 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			badRequest(c, bindErr.Error())
			return
		}
	}
	if req.SiteID == "" {
		if site, ok := tenant.SiteFrom(c); ok {
			req.SiteID = site.ID
		}
	}

	res, err := h.svc.Approve(c.Request.Context(), publish.ApproveRequest{
		DraftID:      c.Param("id"),
		SiteID:       req.SiteID,
		Reviewer:     jwt.Subject(c, defaultReviewer),
		ThumbnailURL: req.ThumbnailURL,
		AuthorID:     req.AuthorID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyApproved) && res != nil {
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "post_id": res.PostID})
			return
		}
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.DraftUpdateFailed {
		status = http.StatusAccepted
	}
	respondOK(c, status, res)
}
