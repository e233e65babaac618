package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/api"
	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/quotes"
	"github.com/jonesrussell/finblog/internal/rewrite"
	"github.com/jonesrussell/finblog/internal/search"
	"github.com/jonesrussell/finblog/internal/service"
	"github.com/jonesrussell/finblog/internal/tenant"
)

const (
	testJWTSecret  = "jwt-secret"
	testCronSecret = "cron-secret"
	mainHost       = "example.com"
	partnerHost    = "blog.partner.com"
)

type mockService struct {
	fetchCalls     int
	generateLimit  int
	getDraftFunc   func(id string) (*domain.Draft, error)
	rewriteFunc    func(id string) (*rewrite.Result, error)
	rewriteStepArg domain.Step
	approveFunc    func(req publish.ApproveRequest) (*publish.ApproveResult, error)
	deleteIDs      []string
}

func (m *mockService) FetchNews(context.Context) (*fetcher.Stats, error) {
	m.fetchCalls++
	return &fetcher.Stats{New: 3}, nil
}

func (m *mockService) FetchCategory(_ context.Context, category string) (*fetcher.CategoryStats, error) {
	if category != "personal-finance" {
		return nil, service.ErrUnknownCategory
	}
	return &fetcher.CategoryStats{Category: category, New: 1}, nil
}

func (m *mockService) GenerateDrafts(_ context.Context, limit int) (*service.GenerateResult, error) {
	m.generateLimit = limit
	return &service.GenerateResult{BatchStats: &draft.BatchStats{Candidates: limit}}, nil
}

func (m *mockService) GenerateDraft(_ context.Context, id string) (*domain.Draft, *service.RewriteOutcome, error) {
	return &domain.Draft{ID: "d-" + id, NewsItemID: id}, nil, nil
}

func (m *mockService) ListCandidates(context.Context, domain.CandidateFilter) ([]domain.CandidateItem, error) {
	return []domain.CandidateItem{}, nil
}

func (m *mockService) ExcludeCandidate(context.Context, string, bool) error { return nil }

func (m *mockService) DeleteCandidates(_ context.Context, ids []string) (int64, error) {
	m.deleteIDs = ids
	return int64(len(ids)), nil
}

func (m *mockService) ListDrafts(context.Context, domain.DraftFilter) ([]domain.Draft, error) {
	return []domain.Draft{}, nil
}

func (m *mockService) GetDraft(_ context.Context, id string) (*domain.Draft, error) {
	if m.getDraftFunc != nil {
		return m.getDraftFunc(id)
	}
	return &domain.Draft{ID: id}, nil
}

func (m *mockService) Rewrite(_ context.Context, id string) (*rewrite.Result, error) {
	if m.rewriteFunc != nil {
		return m.rewriteFunc(id)
	}
	return &rewrite.Result{DraftID: id, Stage: domain.StageSaved}, nil
}

func (m *mockService) RewriteStep(_ context.Context, id string, step domain.Step) (*rewrite.Result, error) {
	m.rewriteStepArg = step
	return &rewrite.Result{DraftID: id, Stage: step.Target()}, nil
}

func (m *mockService) Resume(_ context.Context, id string) (*rewrite.Result, error) {
	return &rewrite.Result{DraftID: id, Stage: domain.StageSaved}, nil
}

func (m *mockService) Approve(_ context.Context, req publish.ApproveRequest) (*publish.ApproveResult, error) {
	if m.approveFunc != nil {
		return m.approveFunc(req)
	}
	return &publish.ApproveResult{PostID: "p1", Slug: "s"}, nil
}

type mockSites struct {
	sites map[string]*domain.Site
	main  *domain.Site
}

func newMockSites() *mockSites {
	main := &domain.Site{ID: "main", Domain: mainHost, Name: "Main", IsMain: true}
	return &mockSites{
		sites: map[string]*domain.Site{
			mainHost:    main,
			partnerHost: {ID: "partner", Domain: partnerHost, Name: "Partner"},
		},
		main: main,
	}
}

func (m *mockSites) GetSiteByDomain(_ context.Context, name string) (*domain.Site, error) {
	if s, ok := m.sites[name]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSites) GetMainSite(context.Context) (*domain.Site, error) { return m.main, nil }

type mockPosts struct {
	posts []domain.PublishedPost
}

func (m *mockPosts) GetPostBySlug(_ context.Context, siteID, slug string) (*domain.PublishedPost, error) {
	for i := range m.posts {
		if m.posts[i].SiteID == siteID && m.posts[i].Slug == slug {
			return &m.posts[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPosts) ListPosts(_ context.Context, siteID, _ string, _, _ int) ([]domain.PublishedPost, error) {
	out := []domain.PublishedPost{}
	for _, p := range m.posts {
		if p.SiteID == siteID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockQuotes struct{}

func (mockQuotes) Latest(context.Context) (*quotes.Set, error) {
	return &quotes.Set{Base: "USD", Quotes: []quotes.Quote{{Symbol: "EUR", Rate: 0.92}}}, nil
}

type mockSearcher struct {
	siteID string
}

func (m *mockSearcher) Search(_ context.Context, siteID, text string, _ int) ([]search.Hit, error) {
	m.siteID = siteID
	return []search.Hit{{Document: search.Document{ID: "p1", SiteID: siteID, Title: text}}}, nil
}

type testEnv struct {
	router   *gin.Engine
	svc      *mockService
	searcher *mockSearcher
}

func newTestEnv(t *testing.T, cronSecret string) *testEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	log := infralogger.NewNop()

	svc := &mockService{}
	posts := &mockPosts{posts: []domain.PublishedPost{
		{ID: "p-main", SiteID: "main", Slug: "rates-up", Title: "Rates up"},
		{ID: "p-partner", SiteID: "partner", Slug: "rates-up", Title: "Partner rates"},
	}}
	searcher := &mockSearcher{}
	resolver := tenant.NewResolver(newMockSites(), cache.NewMemory(), time.Minute, log)

	router := gin.New()
	api.SetupRoutes(router, api.RouteConfig{JWTSecret: testJWTSecret, CronSecret: cronSecret}, resolver, api.Handlers{
		Cron:   api.NewCronHandler(svc, 5, log),
		Admin:  api.NewAdminHandler(svc, log),
		Public: api.NewPublicHandler(posts, mockQuotes{}, searcher),
	}, log)

	return &testEnv{router: router, svc: svc, searcher: searcher}
}
