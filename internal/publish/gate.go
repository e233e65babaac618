// Package publish turns approved drafts into tenant-scoped published posts.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/rewrite"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

const (
	approveLockTTL    = time.Minute
	compensateTimeout = 5 * time.Second
)

// Publication outcomes.
const (
	OutcomePublished         = "published"
	OutcomeAlreadyApproved   = "already_approved"
	OutcomeSlugConflict      = "slug_conflict"
	OutcomeDraftUpdateFailed = "draft_update_failed"
	OutcomeError             = "error"
)

// DraftStore reads drafts and stamps approval.
type DraftStore interface {
	GetDraft(ctx context.Context, id string) (*domain.Draft, error)
	MarkApproved(ctx context.Context, id, postID, reviewer string, reviewedAt time.Time) error
}

// PostStore creates published posts. A second post for one draft yields
// domain.ErrAlreadyApproved.
type PostStore interface {
	CreatePost(ctx context.Context, post *domain.PublishedPost) error
	GetPostByDraft(ctx context.Context, draftID string) (*domain.PublishedPost, error)
	DeletePost(ctx context.Context, siteID, id string) error
}

// Indexer receives published posts for search. Failures are logged only.
type Indexer interface {
	IndexPost(ctx context.Context, post *domain.PublishedPost) error
}

// ApproveRequest publishes DraftID under SiteID.
type ApproveRequest struct {
	DraftID      string
	SiteID       string
	Reviewer     string
	ThumbnailURL *string
	AuthorID     *string
}

// ApproveResult identifies the published post.
type ApproveResult struct {
	PostID          string `json:"post_id"`
	Slug            string `json:"slug"`
	AlreadyApproved bool   `json:"already_approved"`
	// DraftUpdateFailed means the post exists but the draft still reads
	// pending and needs manual reconciliation.
	DraftUpdateFailed bool `json:"draft_update_failed"`
}

// Gate approves drafts.
type Gate struct {
	drafts  DraftStore
	posts   PostStore
	indexer Indexer
	locker  rewrite.Locker
	metrics *telemetry.Metrics
	log     infralogger.Logger
	now     func() time.Time
}

// NewGate creates a gate. Approvals hold the per-draft lock that rewrites
// use, so one draft is never rewritten and published at once. indexer,
// locker and metrics may be nil.
func NewGate(
	drafts DraftStore,
	posts PostStore,
	indexer Indexer,
	locker rewrite.Locker,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *Gate {
	return &Gate{
		drafts:  drafts,
		posts:   posts,
		indexer: indexer,
		locker:  locker,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Approve creates the post and then marks the draft approved. Re-approving
// returns the existing post id together with domain.ErrAlreadyApproved, for
// any site. A slug collision returns domain.ErrSlugConflict and leaves the
// draft pending. If the draft write fails after the post was created the
// post is kept.
func (g *Gate) Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error) {
	if req.SiteID == "" {
		return nil, errors.New("approve: site id is required")
	}

	if g.locker != nil {
		unlock, lockErr := g.locker.Lock(ctx, req.DraftID, approveLockTTL)
		if lockErr != nil {
			return nil, lockErr
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				g.log.Warn("Failed to release approve lock",
					infralogger.String("draft_id", req.DraftID),
					infralogger.Error(err),
				)
			}
		}()
	}

	d, err := g.drafts.GetDraft(ctx, req.DraftID)
	if err != nil {
		g.metrics.RecordPublication(OutcomeError)
		return nil, fmt.Errorf("load draft %s: %w", req.DraftID, err)
	}
	if res, done := g.alreadyApproved(d); done {
		return res, fmt.Errorf("draft %s: %w", d.ID, domain.ErrAlreadyApproved)
	}

	post := &domain.PublishedPost{
		ID:           uuid.NewString(),
		SiteID:       req.SiteID,
		DraftID:      &d.ID,
		Title:        d.Title,
		Slug:         d.Slug,
		Summary:      d.Summary,
		Content:      d.Content,
		Category:     d.Category,
		Tags:         d.Tags,
		ThumbnailURL: req.ThumbnailURL,
		AuthorID:     req.AuthorID,
	}

	if createErr := g.posts.CreatePost(ctx, post); createErr != nil {
		switch {
		case errors.Is(createErr, domain.ErrSlugConflict):
			return g.slugConflict(ctx, d, createErr)
		case errors.Is(createErr, domain.ErrAlreadyApproved):
			return g.publishedElsewhere(ctx, d)
		}
		g.metrics.RecordPublication(OutcomeError)
		return nil, fmt.Errorf("create post for draft %s: %w", d.ID, createErr)
	}

	result := &ApproveResult{PostID: post.ID, Slug: post.Slug}

	markErr := g.drafts.MarkApproved(ctx, d.ID, post.ID, req.Reviewer, g.now().UTC())
	if errors.Is(markErr, domain.ErrAlreadyApproved) {
		current, getErr := g.drafts.GetDraft(ctx, d.ID)
		if getErr == nil && current.IsApproved() {
			if current.PublishedPostID == nil || *current.PublishedPostID != post.ID {
				return g.lostRace(ctx, current, post)
			}
			markErr = nil
		}
	}

	if markErr != nil {
		result.DraftUpdateFailed = true
		g.metrics.RecordPublication(OutcomeDraftUpdateFailed)
		g.log.Error("Post published but draft not marked approved; reconcile manually",
			infralogger.String("draft_id", d.ID),
			infralogger.String("post_id", post.ID),
			infralogger.String("site_id", req.SiteID),
			infralogger.Error(markErr),
		)
	} else {
		g.metrics.RecordPublication(OutcomePublished)
		g.log.Info("Draft published",
			infralogger.String("draft_id", d.ID),
			infralogger.String("post_id", post.ID),
			infralogger.String("site_id", req.SiteID),
			infralogger.String("slug", post.Slug),
		)
	}

	g.index(ctx, post)
	return result, nil
}

// publishedElsewhere reports the post another approval of d created.
func (g *Gate) publishedElsewhere(ctx context.Context, d *domain.Draft) (*ApproveResult, error) {
	if current, err := g.drafts.GetDraft(ctx, d.ID); err == nil {
		if res, done := g.alreadyApproved(current); done {
			return res, fmt.Errorf("draft %s: %w", d.ID, domain.ErrAlreadyApproved)
		}
	}

	g.metrics.RecordPublication(OutcomeAlreadyApproved)
	res := &ApproveResult{Slug: d.Slug, AlreadyApproved: true}
	existing, err := g.posts.GetPostByDraft(ctx, d.ID)
	if err != nil {
		g.log.Warn("Draft already has a post but it could not be loaded",
			infralogger.String("draft_id", d.ID),
			infralogger.Error(err),
		)
	} else {
		res.PostID = existing.ID
		res.Slug = existing.Slug
	}
	return res, fmt.Errorf("draft %s: %w", d.ID, domain.ErrAlreadyApproved)
}

// lostRace removes post after current was approved with another post and
// reports the winner.
func (g *Gate) lostRace(ctx context.Context, current *domain.Draft, post *domain.PublishedPost) (*ApproveResult, error) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if delErr := g.posts.DeletePost(delCtx, post.SiteID, post.ID); delErr != nil {
		g.log.Error("Failed to remove duplicate post; reconcile manually",
			infralogger.String("draft_id", current.ID),
			infralogger.String("post_id", post.ID),
			infralogger.String("site_id", post.SiteID),
			infralogger.Error(delErr),
		)
	}

	res, _ := g.alreadyApproved(current)
	return res, fmt.Errorf("draft %s: %w", current.ID, domain.ErrAlreadyApproved)
}

func (g *Gate) alreadyApproved(d *domain.Draft) (*ApproveResult, bool) {
	if !d.IsApproved() {
		return nil, false
	}
	g.metrics.RecordPublication(OutcomeAlreadyApproved)
	res := &ApproveResult{Slug: d.Slug, AlreadyApproved: true}
	if d.PublishedPostID != nil {
		res.PostID = *d.PublishedPostID
	}
	return res, true
}

// slugConflict rechecks the draft: a concurrent approve of the same draft
// also surfaces as a slug collision.
func (g *Gate) slugConflict(ctx context.Context, d *domain.Draft, cause error) (*ApproveResult, error) {
	if current, err := g.drafts.GetDraft(ctx, d.ID); err == nil {
		if res, done := g.alreadyApproved(current); done {
			return res, fmt.Errorf("draft %s: %w", d.ID, domain.ErrAlreadyApproved)
		}
	}

	g.metrics.RecordPublication(OutcomeSlugConflict)
	g.log.Warn("Slug already published on site",
		infralogger.String("draft_id", d.ID),
		infralogger.String("slug", d.Slug),
	)
	return nil, fmt.Errorf("approve draft %s: %w", d.ID, cause)
}

func (g *Gate) index(ctx context.Context, post *domain.PublishedPost) {
	if g.indexer == nil {
		return
	}
	if err := g.indexer.IndexPost(ctx, post); err != nil {
		g.log.Warn("Failed to index published post",
			infralogger.String("post_id", post.ID),
			infralogger.Error(err),
		)
	}
}
