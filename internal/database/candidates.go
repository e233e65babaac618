package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/finblog/internal/domain"
)

const candidateColumns = `id, title, link, category, published_at, source_id, content_hash,
	is_trending, draft_generated, excluded, created_at`

const defaultListLimit = 50

// CandidateRepository stores collected news items.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository creates a candidate repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// InsertCandidate stores item unless its content hash is already present.
// A conflict is reported as inserted=false, not as an error.
func (r *CandidateRepository) InsertCandidate(ctx context.Context, item *domain.CandidateItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	query := `
		INSERT INTO candidate_items
			(id, title, link, category, published_at, source_id, content_hash, is_trending)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING created_at
	`

	scanErr := r.db.QueryRowxContext(ctx, query,
		item.ID,
		item.Title,
		item.Link,
		item.Category,
		item.PublishedAt,
		item.SourceID,
		item.ContentHash,
		item.IsTrending,
	).Scan(&item.CreatedAt)

	if errors.Is(scanErr, sql.ErrNoRows) {
		return false, nil
	}
	if scanErr != nil {
		return false, fmt.Errorf("insert candidate: %w", scanErr)
	}

	return true, nil
}

// ExistsByHash reports whether a candidate with hash is stored.
func (r *CandidateRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM candidate_items WHERE content_hash = $1)`

	if err := r.db.GetContext(ctx, &exists, query, hash); err != nil {
		return false, fmt.Errorf("check candidate hash: %w", err)
	}

	return exists, nil
}

// GetCandidate loads one candidate.
func (r *CandidateRepository) GetCandidate(ctx context.Context, id string) (*domain.CandidateItem, error) {
	item := &domain.CandidateItem{}
	query := `SELECT ` + candidateColumns + ` FROM candidate_items WHERE id = $1`

	if err := r.db.GetContext(ctx, item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("candidate %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}

	return item, nil
}

// ListCandidates returns candidates newest first.
func (r *CandidateRepository) ListCandidates(
	ctx context.Context,
	filter domain.CandidateFilter,
) ([]domain.CandidateItem, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate_items WHERE 1=1`
	args := make([]any, 0, 4)

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.OnlyPending {
		query += " AND draft_generated = false"
	}
	if !filter.IncludeExcluded {
		query += " AND excluded = false"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	items := []domain.CandidateItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return items, nil
}

// ListPendingCandidates returns items eligible for draft generation,
// trending first, oldest first within each group.
func (r *CandidateRepository) ListPendingCandidates(ctx context.Context, limit int) ([]domain.CandidateItem, error) {
	query := `
		SELECT ` + candidateColumns + `
		FROM candidate_items
		WHERE draft_generated = false AND excluded = false
		ORDER BY is_trending DESC, created_at ASC
		LIMIT $1
	`

	items := []domain.CandidateItem{}
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}

	return items, nil
}

// SetExcluded flips the excluded flag.
func (r *CandidateRepository) SetExcluded(ctx context.Context, id string, excluded bool) error {
	query := `UPDATE candidate_items SET excluded = $2 WHERE id = $1`
	return execExpectOneRow(ctx, r.db, "set candidate excluded", query, id, excluded)
}

// DeleteCandidates removes the given candidates and returns the count.
func (r *CandidateRepository) DeleteCandidates(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM candidate_items WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete candidates: %w", err)
	}

	return result.RowsAffected()
}

func execExpectOneRow(ctx context.Context, db sqlx.ExecerContext, op, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("%s rows affected: %w", op, rowsErr)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	return nil
}
