package trend

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/domain"
)

const defaultKeywordTTL = 30 * time.Minute

// FeedReader reads a trends feed.
type FeedReader interface {
	Read(ctx context.Context, src domain.Source) ([]domain.FeedItem, error)
}

// Set is the trend configuration of one category. Feed entries are ranked
// by position, followed by the static keywords.
type Set struct {
	Category string   `yaml:"category"`
	FeedURL  string   `yaml:"feed_url"`
	Format   string   `yaml:"format"`
	Selector string   `yaml:"selector"`
	Limit    int      `yaml:"limit"`
	Static   []string `yaml:"static"`
}

// Provider supplies trend keywords per category.
type Provider struct {
	sets   map[string]Set
	reader FeedReader
	cache  cache.Cache
	ttl    time.Duration
}

// NewProvider creates a provider. A zero ttl uses 30 minutes.
func NewProvider(sets []Set, reader FeedReader, c cache.Cache, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = defaultKeywordTTL
	}
	byCategory := make(map[string]Set, len(sets))
	for _, s := range sets {
		byCategory[s.Category] = s
	}
	return &Provider{sets: byCategory, reader: reader, cache: c, ttl: ttl}
}

// Keywords returns the ranked keywords for category. A category without
// configuration has no keywords.
func (p *Provider) Keywords(ctx context.Context, category string) ([]domain.TrendKeyword, error) {
	set, ok := p.sets[category]
	if !ok {
		return nil, nil
	}

	return cache.GetOrRefreshJSON(ctx, p.cache, "trends:"+category, p.ttl,
		func(ctx context.Context) ([]domain.TrendKeyword, error) {
			return p.load(ctx, set)
		})
}

func (p *Provider) load(ctx context.Context, set Set) ([]domain.TrendKeyword, error) {
	keywords := make([]domain.TrendKeyword, 0, set.Limit+len(set.Static))

	if set.FeedURL != "" {
		items, err := p.reader.Read(ctx, domain.Source{
			ID:       "trends-" + set.Category,
			URL:      set.FeedURL,
			Format:   domain.SourceFormat(set.Format),
			Selector: set.Selector,
			Limit:    set.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("trend keywords for %s: %w", set.Category, err)
		}
		for _, it := range items {
			keywords = append(keywords, domain.TrendKeyword{Keyword: it.Title, Rank: len(keywords) + 1})
		}
	}

	for _, word := range set.Static {
		keywords = append(keywords, domain.TrendKeyword{Keyword: word, Rank: len(keywords) + 1})
	}

	return keywords, nil
}
