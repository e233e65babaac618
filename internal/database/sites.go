package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/finblog/internal/domain"
)

const siteColumns = `id, domain, name, theme_config, is_main`

// SiteRepository reads tenants.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a site repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// GetSiteByDomain looks up an already-normalized domain.
func (r *SiteRepository) GetSiteByDomain(ctx context.Context, domainName string) (*domain.Site, error) {
	return r.getOne(ctx, `SELECT `+siteColumns+` FROM sites WHERE domain = $1`, domainName)
}

// GetMainSite returns the main tenant.
func (r *SiteRepository) GetMainSite(ctx context.Context) (*domain.Site, error) {
	return r.getOne(ctx, `SELECT `+siteColumns+` FROM sites WHERE is_main LIMIT 1`)
}

// GetSite loads a site by id.
func (r *SiteRepository) GetSite(ctx context.Context, id string) (*domain.Site, error) {
	return r.getOne(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id)
}

// ListSites returns all tenants, main first.
func (r *SiteRepository) ListSites(ctx context.Context) ([]domain.Site, error) {
	sites := []domain.Site{}
	query := `SELECT ` + siteColumns + ` FROM sites ORDER BY is_main DESC, domain`
	if err := r.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

func (r *SiteRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Site, error) {
	site := &domain.Site{}
	if err := r.db.GetContext(ctx, site, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("site: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}
