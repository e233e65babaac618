package fetcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/dedup"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/feed"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

type mockReader struct {
	items map[string][]domain.FeedItem
	errs  map[string]error
}

func (m *mockReader) Read(_ context.Context, src domain.Source) ([]domain.FeedItem, error) {
	if err := m.errs[src.ID]; err != nil {
		return nil, err
	}
	return m.items[src.ID], nil
}

type mockKeywords struct {
	keywords []domain.TrendKeyword
	err      error
}

func (m *mockKeywords) Keywords(context.Context, string) ([]domain.TrendKeyword, error) {
	return m.keywords, m.err
}

// mockRecorder keeps insertion order and mimics the hash constraint.
type mockRecorder struct {
	mu       sync.Mutex
	seen     map[string]bool
	recorded []domain.CandidateItem
}

func newMockRecorder(preexisting ...domain.FeedItem) *mockRecorder {
	r := &mockRecorder{seen: make(map[string]bool)}
	for _, it := range preexisting {
		r.seen[domain.ContentHash(it.Title, it.Link)] = true
	}
	return r
}

func (r *mockRecorder) Record(_ context.Context, item *domain.CandidateItem) (dedup.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[item.ContentHash] {
		return dedup.Result{Inserted: false}, nil
	}
	r.seen[item.ContentHash] = true
	r.recorded = append(r.recorded, *item)
	return dedup.Result{Inserted: true}, nil
}

func (r *mockRecorder) titles() []string {
	out := make([]string, len(r.recorded))
	for i, it := range r.recorded {
		out[i] = it.Title
	}
	return out
}

func item(title string) domain.FeedItem {
	return domain.FeedItem{Title: title, Link: "https://news.example/" + title}
}

func sources() []domain.Source {
	return []domain.Source{
		{ID: "ord-1", Category: "rates", Kind: domain.SourceOrdinary},
		{ID: "ranked", Category: "rates", Kind: domain.SourceRanked},
		{ID: "auth", Category: "rates", Kind: domain.SourceAuthoritative},
		{ID: "ord-2", Category: "rates", Kind: domain.SourceOrdinary},
	}
}

func newFetcher(cfg fetcher.Config, reader *mockReader, kw *mockKeywords, rec *mockRecorder) *fetcher.Fetcher {
	return fetcher.New(cfg, sources(), reader, kw, rec, telemetry.New(), infralogger.NewNop())
}

func TestFetchCategory_PriorityAndCap(t *testing.T) {
	t.Parallel()

	reader := &mockReader{items: map[string][]domain.FeedItem{
		"auth":   {item("auth-1")},
		"ranked": {item("ranked-1")},
		"ord-1":  {item("ord-a"), item("ord-b")},
		"ord-2":  {item("ord-c")},
	}}
	rec := newMockRecorder()

	stats := newFetcher(fetcher.Config{PerCategoryCap: 3}, reader, &mockKeywords{}, rec).
		FetchCategory(t.Context(), "rates")

	assert.Equal(t, 3, stats.New)
	assert.Equal(t, 2, stats.OverCap)
	assert.Equal(t, []string{"auth-1", "ranked-1", "ord-a"}, rec.titles())
	assert.True(t, rec.recorded[0].IsTrending, "authoritative items are trending")
	assert.True(t, rec.recorded[1].IsTrending, "ranked items are trending")
	assert.False(t, rec.recorded[2].IsTrending)
	require.NotNil(t, rec.recorded[0].SourceID)
	assert.Equal(t, "auth", *rec.recorded[0].SourceID)
}

func TestFetchCategory_AuthoritativeLimitAndCapExemption(t *testing.T) {
	t.Parallel()

	reader := &mockReader{items: map[string][]domain.FeedItem{
		"auth":   {item("a1"), item("a2"), item("a3")},
		"ranked": {item("r1")},
	}}
	rec := newMockRecorder()

	stats := newFetcher(fetcher.Config{PerCategoryCap: 1, AuthoritativeLimit: 2}, reader, &mockKeywords{}, rec).
		FetchCategory(t.Context(), "rates")

	assert.Equal(t, []string{"a1", "a2"}, rec.titles())
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 1, stats.OverCap)
}

func TestFetchCategory_DuplicatesDoNotConsumeCapacity(t *testing.T) {
	t.Parallel()

	reader := &mockReader{items: map[string][]domain.FeedItem{
		"ord-1": {item("old"), item("fresh-1"), item("fresh-2")},
	}}
	rec := newMockRecorder(item("old"))

	stats := newFetcher(fetcher.Config{PerCategoryCap: 2}, reader, &mockKeywords{}, rec).
		FetchCategory(t.Context(), "rates")

	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, []string{"fresh-1", "fresh-2"}, rec.titles())
}

func TestFetchCategory_OrdinaryOrderedByTrend(t *testing.T) {
	t.Parallel()

	reader := &mockReader{items: map[string][]domain.FeedItem{
		"ord-1": {item("housing starts"), item("mortgage rules change")},
		"ord-2": {item("tfsa room")},
	}}
	kw := &mockKeywords{keywords: []domain.TrendKeyword{{Keyword: "tfsa", Rank: 1}, {Keyword: "mortgage", Rank: 2}}}
	rec := newMockRecorder()

	newFetcher(fetcher.Config{PerCategoryCap: 10}, reader, kw, rec).FetchCategory(t.Context(), "rates")

	assert.Equal(t, []string{"tfsa room", "mortgage rules change", "housing starts"}, rec.titles())
}

func TestFetchCategory_FailuresDegrade(t *testing.T) {
	t.Parallel()

	reader := &mockReader{
		items: map[string][]domain.FeedItem{
			"ord-1": {item("first"), item("second tfsa")},
		},
		errs: map[string]error{
			"auth":   &feed.PollError{SourceID: "auth", Kind: feed.KindHTTP, StatusCode: 503, Err: errors.New("unavailable")},
			"ranked": errors.New("dial tcp: connection refused"),
		},
	}
	kw := &mockKeywords{err: errors.New("trends feed down")}
	rec := newMockRecorder()

	stats := newFetcher(fetcher.Config{PerCategoryCap: 10}, reader, kw, rec).FetchCategory(t.Context(), "rates")

	assert.Equal(t, 2, stats.SourceErrors)
	assert.True(t, stats.TrendFallback)
	assert.Equal(t, []string{"first", "second tfsa"}, rec.titles(), "input order kept without keywords")
}

func TestFetchAll(t *testing.T) {
	t.Parallel()

	srcs := append(sources(), domain.Source{ID: "tax-feed", Category: "tax", Kind: domain.SourceOrdinary})
	disabled := false
	srcs = append(srcs, domain.Source{ID: "off", Category: "crypto", Enabled: &disabled})

	reader := &mockReader{items: map[string][]domain.FeedItem{
		"ord-1":    {item("rates-1")},
		"tax-feed": {item("tax-1"), item("tax-2")},
	}}
	rec := newMockRecorder()
	f := fetcher.New(fetcher.Config{}, srcs, reader, &mockKeywords{}, rec, nil, infralogger.NewNop())

	stats, err := f.FetchAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.New)
	require.Len(t, stats.Categories, 2)
	assert.Equal(t, "rates", stats.Categories[0].Category)
	assert.Equal(t, "tax", stats.Categories[1].Category)
}

func TestFetchAll_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	f := newFetcher(fetcher.Config{}, &mockReader{}, &mockKeywords{}, newMockRecorder())
	_, err := f.FetchAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
