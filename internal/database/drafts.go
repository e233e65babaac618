package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/finblog/internal/domain"
)

const draftColumns = `id, news_item_id, title, slug, summary, content, category, tags, status, stage,
	editor_content, editor_notes, calc_checks, columnist_content, columnist_meta, warnings,
	error_stage, error_code, error_message, published_post_id, reviewed_at, reviewed_by,
	version, created_at, updated_at`

// DraftRepository stores drafts.
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository creates a draft repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// CreateDraftForCandidate inserts draft and flips the candidate's
// draft_generated flag in one transaction. If the flag was already set the
// transaction is rolled back and ErrAlreadyExists returned.
func (r *DraftRepository) CreateDraftForCandidate(ctx context.Context, draft *domain.Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}

	tx, beginErr := r.db.BeginTxx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin create draft: %w", beginErr)
	}
	defer func() { _ = tx.Rollback() }()

	flip, flipErr := tx.ExecContext(ctx,
		`UPDATE candidate_items SET draft_generated = true WHERE id = $1 AND draft_generated = false`,
		draft.NewsItemID,
	)
	if flipErr != nil {
		return fmt.Errorf("flag candidate: %w", flipErr)
	}
	if rows, _ := flip.RowsAffected(); rows == 0 {
		return fmt.Errorf("draft for candidate %s: %w", draft.NewsItemID, domain.ErrAlreadyExists)
	}

	query := `
		INSERT INTO drafts
			(id, news_item_id, title, slug, summary, content, category, tags, status, stage, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING version, created_at, updated_at
	`
	insertErr := tx.QueryRowxContext(ctx, query,
		draft.ID,
		draft.NewsItemID,
		draft.Title,
		draft.Slug,
		draft.Summary,
		draft.Content,
		draft.Category,
		draft.Tags,
		draft.Status,
		draft.Stage,
		draft.Warnings,
	).Scan(&draft.Version, &draft.CreatedAt, &draft.UpdatedAt)
	if insertErr != nil {
		if isUniqueViolation(insertErr) {
			return fmt.Errorf("draft for candidate %s: %w", draft.NewsItemID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert draft: %w", insertErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit create draft: %w", commitErr)
	}

	return nil
}

// GetDraft loads one draft.
func (r *DraftRepository) GetDraft(ctx context.Context, id string) (*domain.Draft, error) {
	draft := &domain.Draft{}
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`

	if err := r.db.GetContext(ctx, draft, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	return draft, nil
}

// ListDrafts returns drafts newest first.
func (r *DraftRepository) ListDrafts(ctx context.Context, filter domain.DraftFilter) ([]domain.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE 1=1`
	args := make([]any, 0, 4)

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		query += fmt.Sprintf(" AND stage = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	drafts := []domain.Draft{}
	if err := r.db.SelectContext(ctx, &drafts, query, args...); err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	return drafts, nil
}

// UpdateDraftState writes the pipeline-owned fields if the stored version
// still matches draft.Version, then bumps draft.Version.
func (r *DraftRepository) UpdateDraftState(ctx context.Context, draft *domain.Draft) error {
	query := `
		UPDATE drafts SET
			title = $3, summary = $4, content = $5, tags = $6, stage = $7,
			editor_content = $8, editor_notes = $9, calc_checks = $10,
			columnist_content = $11, columnist_meta = $12, warnings = $13,
			error_stage = $14, error_code = $15, error_message = $16,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING version, updated_at
	`

	scanErr := r.db.QueryRowxContext(ctx, query,
		draft.ID,
		draft.Version,
		draft.Title,
		draft.Summary,
		draft.Content,
		draft.Tags,
		draft.Stage,
		draft.EditorContent,
		draft.EditorNotes,
		draft.CalcChecks,
		draft.ColumnistContent,
		draft.ColumnistMeta,
		draft.Warnings,
		draft.ErrorStage,
		draft.ErrorCode,
		draft.ErrorMessage,
	).Scan(&draft.Version, &draft.UpdatedAt)

	if errors.Is(scanErr, sql.ErrNoRows) {
		return fmt.Errorf("draft %s version %d: %w", draft.ID, draft.Version, domain.ErrVersionConflict)
	}
	if scanErr != nil {
		return fmt.Errorf("update draft state: %w", scanErr)
	}

	return nil
}

// MarkApproved stamps the published post on a pending draft. A draft that is
// already approved (or missing) yields ErrAlreadyApproved.
func (r *DraftRepository) MarkApproved(
	ctx context.Context,
	id, postID, reviewer string,
	reviewedAt time.Time,
) error {
	query := `
		UPDATE drafts SET
			status = 'approved', published_post_id = $2, reviewed_by = $3, reviewed_at = $4,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`

	result, execErr := r.db.ExecContext(ctx, query, id, postID, reviewer, reviewedAt)
	if execErr != nil {
		return fmt.Errorf("mark draft approved: %w", execErr)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("mark draft approved rows affected: %w", rowsErr)
	}
	if rows == 0 {
		return fmt.Errorf("draft %s: %w", id, domain.ErrAlreadyApproved)
	}

	return nil
}
