package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/domain"
)

const (
	defaultCacheTTL = 5 * time.Minute
	domainKeyPrefix = "tenant:domain:"
	mainSiteKey     = "tenant:main"
)

// SiteStore looks up sites.
type SiteStore interface {
	GetSiteByDomain(ctx context.Context, domainName string) (*domain.Site, error)
	GetMainSite(ctx context.Context) (*domain.Site, error)
}

// Resolver finds the site for a host, falling back to the main site.
type Resolver struct {
	sites SiteStore
	cache cache.Cache
	ttl   time.Duration
	log   infralogger.Logger
}

// NewResolver creates a resolver. Lookups, including misses, are cached for
// ttl.
func NewResolver(sites SiteStore, c cache.Cache, ttl time.Duration, log infralogger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{sites: sites, cache: c, ttl: ttl, log: log}
}

// Resolve returns the site whose normalized domain matches host exactly,
// otherwise the main site. It fails only when no main site exists or the
// store is unreachable.
func (r *Resolver) Resolve(ctx context.Context, host string) (*domain.Site, error) {
	name := NormalizeHost(host)
	if name != "" {
		site, err := r.byDomain(ctx, name)
		switch {
		case err != nil:
			r.log.Warn("Site lookup failed, using main site",
				infralogger.String("host", name),
				infralogger.Error(err),
			)
		case site != nil:
			return site, nil
		}
	}

	main, err := cache.GetOrRefreshJSON(ctx, r.cache, mainSiteKey, r.ttl, r.sites.GetMainSite)
	if err != nil {
		return nil, fmt.Errorf("resolve main site: %w", err)
	}
	return main, nil
}

// byDomain returns nil, nil for an unknown domain.
func (r *Resolver) byDomain(ctx context.Context, name string) (*domain.Site, error) {
	return cache.GetOrRefreshJSON(ctx, r.cache, domainKeyPrefix+name, r.ttl,
		func(ctx context.Context) (*domain.Site, error) {
			site, err := r.sites.GetSiteByDomain(ctx, name)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, nil
			}
			return site, err
		},
	)
}
