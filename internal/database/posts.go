package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/finblog/internal/domain"
)

// postDraftKey makes a draft publishable once.
const postDraftKey = "published_posts_draft_id_key"

const postColumns = `id, site_id, draft_id, title, slug, summary, content, category, tags,
	thumbnail_url, author_id, published_at`

// PostRepository stores published posts. Every read is scoped by site.
type PostRepository struct {
	db *sqlx.DB
}

// NewPostRepository creates a post repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db}
}

// CreatePost inserts post. A (site_id, slug) collision is ErrSlugConflict; a
// second post for the same draft is ErrAlreadyApproved.
func (r *PostRepository) CreatePost(ctx context.Context, post *domain.PublishedPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}

	query := `
		INSERT INTO published_posts
			(id, site_id, draft_id, title, slug, summary, content, category, tags, thumbnail_url, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING published_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		post.ID,
		post.SiteID,
		post.DraftID,
		post.Title,
		post.Slug,
		post.Summary,
		post.Content,
		post.Category,
		post.Tags,
		post.ThumbnailURL,
		post.AuthorID,
	).Scan(&post.PublishedAt)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok {
			if constraint == postDraftKey {
				return fmt.Errorf("post for draft: %w", domain.ErrAlreadyApproved)
			}
			return fmt.Errorf("slug %q: %w", post.Slug, domain.ErrSlugConflict)
		}
		return fmt.Errorf("create post: %w", err)
	}

	return nil
}

// GetPost loads a post by id within siteID.
func (r *PostRepository) GetPost(ctx context.Context, siteID, id string) (*domain.PublishedPost, error) {
	query := `SELECT ` + postColumns + ` FROM published_posts WHERE site_id = $1 AND id = $2`
	return r.getOne(ctx, query, siteID, id)
}

// GetPostBySlug loads a post by slug within siteID.
func (r *PostRepository) GetPostBySlug(ctx context.Context, siteID, slug string) (*domain.PublishedPost, error) {
	query := `SELECT ` + postColumns + ` FROM published_posts WHERE site_id = $1 AND slug = $2`
	return r.getOne(ctx, query, siteID, slug)
}

// GetPostByDraft loads the post published from draftID on any site.
func (r *PostRepository) GetPostByDraft(ctx context.Context, draftID string) (*domain.PublishedPost, error) {
	query := `SELECT ` + postColumns + ` FROM published_posts WHERE draft_id = $1`
	return r.getOne(ctx, query, draftID)
}

// DeletePost removes a post from siteID.
func (r *PostRepository) DeletePost(ctx context.Context, siteID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM published_posts WHERE site_id = $1 AND id = $2`, siteID, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListPosts returns the newest posts of siteID, optionally by category.
func (r *PostRepository) ListPosts(
	ctx context.Context,
	siteID, category string,
	limit, offset int,
) ([]domain.PublishedPost, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT ` + postColumns + `
		FROM published_posts
		WHERE site_id = $1 AND ($2 = '' OR category = $2)
		ORDER BY published_at DESC
		LIMIT $3 OFFSET $4
	`

	posts := []domain.PublishedPost{}
	if err := r.db.SelectContext(ctx, &posts, query, siteID, category, limit, offset); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return posts, nil
}

func (r *PostRepository) getOne(ctx context.Context, query string, args ...any) (*domain.PublishedPost, error) {
	post := &domain.PublishedPost{}
	if err := r.db.GetContext(ctx, post, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("post: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}
