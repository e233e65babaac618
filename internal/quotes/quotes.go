// Package quotes serves cached reference rates for the public site.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/feed"
)

const (
	cacheKey   = "quotes:latest"
	defaultTTL = 15 * time.Minute
)

// ErrDisabled is returned when no rate source is configured.
var ErrDisabled = errors.New("rate quotes are not configured")

// Config selects the upstream rates document.
type Config struct {
	// URL returns {"base": "...", "date": "YYYY-MM-DD", "rates": {"EUR": 0.92}}.
	URL     string        `yaml:"url"     env:"QUOTES_URL"`
	Symbols []string      `yaml:"symbols"`
	TTL     time.Duration `yaml:"ttl"`
}

// Quote is one rate against the base currency.
type Quote struct {
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

// Set is a snapshot of quotes.
type Set struct {
	Base      string    `json:"base"`
	AsOf      string    `json:"as_of"`
	Quotes    []Quote   `json:"quotes"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Service fetches quotes through the cache.
type Service struct {
	cfg     Config
	fetcher feed.Fetcher
	cache   cache.Cache
	now     func() time.Time
}

// NewService creates a quote service.
func NewService(cfg Config, fetcher feed.Fetcher, c cache.Cache) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(sym)))
	}
	cfg.Symbols = symbols
	return &Service{cfg: cfg, fetcher: fetcher, cache: c, now: time.Now}
}

// Latest returns the cached snapshot, refreshing it once expired.
func (s *Service) Latest(ctx context.Context) (*Set, error) {
	if s.cfg.URL == "" {
		return nil, ErrDisabled
	}
	return cache.GetOrRefreshJSON(ctx, s.cache, cacheKey, s.cfg.TTL, s.fetch)
}

func (s *Service) fetch(ctx context.Context) (*Set, error) {
	body, err := s.fetcher.Fetch(ctx, s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}

	var doc struct {
		Base  string             `json:"base"`
		Date  string             `json:"date"`
		Rates map[string]float64 `json:"rates"`
	}
	if decodeErr := json.Unmarshal(body, &doc); decodeErr != nil {
		return nil, fmt.Errorf("decode rates: %w", decodeErr)
	}
	if len(doc.Rates) == 0 {
		return nil, errors.New("decode rates: document has no rates")
	}

	set := &Set{Base: strings.ToUpper(doc.Base), AsOf: doc.Date, FetchedAt: s.now().UTC()}
	for symbol, rate := range doc.Rates {
		symbol = strings.ToUpper(symbol)
		if len(s.cfg.Symbols) > 0 && !slices.Contains(s.cfg.Symbols, symbol) {
			continue
		}
		set.Quotes = append(set.Quotes, Quote{Symbol: symbol, Rate: rate})
	}
	slices.SortFunc(set.Quotes, func(a, b Quote) int { return strings.Compare(a.Symbol, b.Symbol) })
	return set, nil
}
