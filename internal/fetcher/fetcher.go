// Package fetcher collects candidate items per category in priority order:
// authoritative sources, then ranked sources, then ordinary sources ordered
// by trend score.
package fetcher

import (
	"context"
	"errors"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/dedup"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/feed"
	"github.com/jonesrussell/finblog/internal/telemetry"
	"github.com/jonesrussell/finblog/internal/trend"
)

const (
	defaultPerCategoryCap     = 15
	defaultAuthoritativeLimit = 3

	outcomeNew       = "new"
	outcomeDuplicate = "duplicate"
	outcomeOverCap   = "over_cap"
	outcomeError     = "error"
)

// SourceReader reads one source.
type SourceReader interface {
	Read(ctx context.Context, src domain.Source) ([]domain.FeedItem, error)
}

// KeywordProvider supplies trend keywords for a category.
type KeywordProvider interface {
	Keywords(ctx context.Context, category string) ([]domain.TrendKeyword, error)
}

// Recorder persists first-seen candidates.
type Recorder interface {
	Record(ctx context.Context, item *domain.CandidateItem) (dedup.Result, error)
}

// Config bounds a fetch run.
type Config struct {
	// PerCategoryCap is the number of new items recorded per category.
	PerCategoryCap int
	// AuthoritativeLimit is the number of items taken from each
	// authoritative source. These are recorded even past the cap.
	AuthoritativeLimit int
}

// CategoryStats summarises one category.
type CategoryStats struct {
	Category      string `json:"category"`
	New           int    `json:"new"`
	Duplicates    int    `json:"duplicates"`
	OverCap       int    `json:"over_cap"`
	SourceErrors  int    `json:"source_errors"`
	StoreErrors   int    `json:"store_errors"`
	TrendFallback bool   `json:"trend_fallback"`
}

// Stats summarises a fetch run.
type Stats struct {
	New          int             `json:"new"`
	Duplicates   int             `json:"duplicates"`
	SourceErrors int             `json:"source_errors"`
	Categories   []CategoryStats `json:"categories"`
	DurationMS   int64           `json:"duration_ms"`
}

// Fetcher runs fetch batches.
type Fetcher struct {
	cfg      Config
	sources  []domain.Source
	reader   SourceReader
	keywords KeywordProvider
	recorder Recorder
	metrics  *telemetry.Metrics
	log      infralogger.Logger
}

// New creates a fetcher over the enabled sources.
func New(
	cfg Config,
	sources []domain.Source,
	reader SourceReader,
	keywords KeywordProvider,
	recorder Recorder,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *Fetcher {
	if cfg.PerCategoryCap <= 0 {
		cfg.PerCategoryCap = defaultPerCategoryCap
	}
	if cfg.AuthoritativeLimit <= 0 {
		cfg.AuthoritativeLimit = defaultAuthoritativeLimit
	}

	enabled := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}

	return &Fetcher{
		cfg:      cfg,
		sources:  enabled,
		reader:   reader,
		keywords: keywords,
		recorder: recorder,
		metrics:  metrics,
		log:      log,
	}
}

// Categories lists configured categories in first-seen order.
func (f *Fetcher) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range f.sources {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}

// FetchAll fetches every category. Only cancellation of ctx is an error;
// per-source and per-item failures are counted in the stats.
func (f *Fetcher) FetchAll(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Categories: []CategoryStats{}}

	for _, category := range f.Categories() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		cs := f.FetchCategory(ctx, category)
		stats.New += cs.New
		stats.Duplicates += cs.Duplicates
		stats.SourceErrors += cs.SourceErrors
		stats.Categories = append(stats.Categories, cs)
	}

	stats.DurationMS = time.Since(start).Milliseconds()
	f.log.Info("Fetch batch complete",
		infralogger.Int("new", stats.New),
		infralogger.Int("duplicates", stats.Duplicates),
		infralogger.Int("source_errors", stats.SourceErrors),
		infralogger.Int64("duration_ms", stats.DurationMS),
	)

	return stats, nil
}

// FetchCategory fills one category up to the cap. Authoritative items are
// considered first, then ranked items, then ordinary items ordered by trend
// score. Duplicates never consume capacity.
func (f *Fetcher) FetchCategory(ctx context.Context, category string) CategoryStats {
	run := &categoryRun{f: f, stats: CategoryStats{Category: category}}

	var authoritative, ranked, ordinary []domain.Source
	for _, src := range f.sources {
		if src.Category != category {
			continue
		}
		switch src.Kind {
		case domain.SourceAuthoritative:
			authoritative = append(authoritative, src)
		case domain.SourceRanked:
			ranked = append(ranked, src)
		default:
			ordinary = append(ordinary, src)
		}
	}

	for _, src := range authoritative {
		items := run.read(ctx, src)
		if len(items) > f.cfg.AuthoritativeLimit {
			items = items[:f.cfg.AuthoritativeLimit]
		}
		for _, it := range items {
			run.record(ctx, toCandidate(src, it, true), true)
		}
	}

	for _, src := range ranked {
		for _, it := range run.read(ctx, src) {
			run.record(ctx, toCandidate(src, it, true), false)
		}
	}

	var merged []domain.CandidateItem
	for _, src := range ordinary {
		for _, it := range run.read(ctx, src) {
			merged = append(merged, toCandidate(src, it, false))
		}
	}
	if len(merged) > 0 {
		keywords, kwErr := f.keywords.Keywords(ctx, category)
		if kwErr != nil {
			run.stats.TrendFallback = true
			keywords = nil
			f.log.Warn("Trend keywords unavailable, keeping source order",
				infralogger.String("category", category),
				infralogger.Error(kwErr),
			)
		}
		for _, c := range trend.Rank(merged, keywords) {
			run.record(ctx, c, false)
		}
	}

	f.log.Info("Category fetched",
		infralogger.String("category", category),
		infralogger.Int("new", run.stats.New),
		infralogger.Int("duplicates", run.stats.Duplicates),
		infralogger.Int("over_cap", run.stats.OverCap),
		infralogger.Int("source_errors", run.stats.SourceErrors),
	)
	return run.stats
}

type categoryRun struct {
	f     *Fetcher
	stats CategoryStats
}

func (r *categoryRun) read(ctx context.Context, src domain.Source) []domain.FeedItem {
	items, err := r.f.reader.Read(ctx, src)
	if err != nil {
		r.stats.SourceErrors++
		kind := "unknown"
		var pollErr *feed.PollError
		if errors.As(err, &pollErr) {
			kind = string(pollErr.Kind)
		}
		r.f.metrics.RecordSourceError(src.ID, kind)
		r.f.log.Warn("Source fetch failed, skipping",
			infralogger.String("source_id", src.ID),
			infralogger.String("category", src.Category),
			infralogger.String("kind", kind),
			infralogger.Error(err),
		)
		return nil
	}
	return items
}

func (r *categoryRun) record(ctx context.Context, c domain.CandidateItem, ignoreCap bool) {
	if !ignoreCap && r.stats.New >= r.f.cfg.PerCategoryCap {
		r.stats.OverCap++
		r.f.metrics.RecordFetchItem(c.Category, outcomeOverCap)
		return
	}

	res, err := r.f.recorder.Record(ctx, &c)
	switch {
	case err != nil:
		r.stats.StoreErrors++
		r.f.metrics.RecordFetchItem(c.Category, outcomeError)
		r.f.log.Error("Failed to record candidate",
			infralogger.String("category", c.Category),
			infralogger.String("link", c.Link),
			infralogger.Error(err),
		)
	case res.Inserted:
		r.stats.New++
		r.f.metrics.RecordFetchItem(c.Category, outcomeNew)
	default:
		r.stats.Duplicates++
		r.f.metrics.RecordFetchItem(c.Category, outcomeDuplicate)
		r.f.log.Debug("Duplicate candidate", infralogger.String("link", c.Link))
	}
}

func toCandidate(src domain.Source, it domain.FeedItem, trending bool) domain.CandidateItem {
	sourceID := src.ID
	return domain.CandidateItem{
		Title:       it.Title,
		Link:        it.Link,
		Category:    src.Category,
		PublishedAt: it.PublishedAt,
		SourceID:    &sourceID,
		ContentHash: domain.ContentHash(it.Title, it.Link),
		IsTrending:  trending,
	}
}
