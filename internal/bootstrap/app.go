package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	infraes "github.com/jonesrussell/finblog/infrastructure/elasticsearch"
	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/infrastructure/retry"
	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/cache"
	"github.com/jonesrussell/finblog/internal/config"
	"github.com/jonesrussell/finblog/internal/database"
	"github.com/jonesrussell/finblog/internal/dedup"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/feed"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/quotes"
	"github.com/jonesrussell/finblog/internal/rewrite"
	"github.com/jonesrussell/finblog/internal/search"
	"github.com/jonesrussell/finblog/internal/service"
	"github.com/jonesrussell/finblog/internal/telemetry"
	"github.com/jonesrussell/finblog/internal/tenant"
	"github.com/jonesrussell/finblog/internal/trend"
)

// App holds the wired application.
type App struct {
	Config   *config.Config
	Log      infralogger.Logger
	DB       *sqlx.DB
	Redis    *goredis.Client
	Metrics  *telemetry.Metrics
	Service  *service.Service
	Resolver *tenant.Resolver
	Posts    *database.PostRepository
	Quotes   *quotes.Service
	// Searcher is nil unless search is enabled.
	Searcher *search.Indexer
}

// NewApp connects to the stores and wires every component.
func NewApp(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*App, error) {
	db, dbErr := SetupDatabase(ctx, cfg)
	if dbErr != nil {
		return nil, fmt.Errorf("database: %w", dbErr)
	}
	log.Info("Database connection established")

	redisClient, redisErr := SetupRedis(ctx, cfg)
	if redisErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis: %w", redisErr)
	}
	if redisClient != nil {
		log.Info("Redis connection established", infralogger.String("address", cfg.Redis.Address))
	}

	app := &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Redis:   redisClient,
		Metrics: telemetry.New(),
	}

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	candidates := database.NewCandidateRepository(a.DB)
	drafts := database.NewDraftRepository(a.DB)
	a.Posts = database.NewPostRepository(a.DB)
	sites := database.NewSiteRepository(a.DB)

	sharedCache := a.newCache()

	httpFetcher := feed.NewHTTPFetcher(nil, feed.HTTPConfig{
		UserAgent:         cfg.Fetch.UserAgent,
		RequestTimeout:    cfg.Fetch.RequestTimeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Retry:             retry.DefaultConfig(),
	})
	reader := feed.NewReader(httpFetcher)

	keywords := trend.NewProvider(cfg.Trends.Sets, reader, sharedCache, cfg.Trends.TTL)
	index := dedup.NewIndex(candidates, a.Redis, cfg.Fetch.DedupTTL, a.Log)
	newsFetcher := fetcher.New(fetcher.Config{
		PerCategoryCap:     cfg.Fetch.PerCategoryCap,
		AuthoritativeLimit: cfg.Fetch.AuthoritativeLimit,
	}, cfg.Sources, reader, keywords, index, a.Metrics, a.Log)

	transformer := NewTransformer(cfg.AI, a.Metrics, a.Log)
	strategy := NewStrategy(cfg, transformer)
	generator := draft.NewGenerator(strategy, candidates, drafts, a.Metrics, a.Log)

	locker := a.newLocker()
	pipeline := rewrite.New(rewrite.Config{
		MinDelay:    cfg.Rewrite.MinDelay,
		MaxDelay:    cfg.Rewrite.MaxDelay,
		Timeout:     cfg.Rewrite.Timeout,
		LockTTL:     cfg.Rewrite.LockTTL,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.Rewrite.Temperature,
	}, drafts, transformer, locker, a.Metrics, a.Log)

	var postIndexer publish.Indexer
	if cfg.Search.Enabled {
		indexer, err := a.setupSearch(ctx)
		if err != nil {
			return err
		}
		a.Searcher = indexer
		if cfg.Publish.IndexPosts {
			postIndexer = indexer
		}
	}
	gate := publish.NewGate(drafts, a.Posts, postIndexer, locker, a.Metrics, a.Log)

	a.Resolver = tenant.NewResolver(sites, sharedCache, cfg.Cache.SiteTTL, a.Log)
	a.Quotes = quotes.NewService(cfg.Quotes, httpFetcher, sharedCache)

	a.Service = service.New(service.Config{RewriteOnGenerate: cfg.Generation.RewriteOnGenerate}, service.Deps{
		Fetcher:    newsFetcher,
		Generator:  generator,
		Rewriter:   pipeline,
		Approver:   gate,
		Candidates: candidates,
		Drafts:     drafts,
	}, a.Log)

	a.Log.Info("Application wired",
		infralogger.Int("sources", len(cfg.Sources)),
		infralogger.Strings("categories", newsFetcher.Categories()),
		infralogger.String("strategy", generator.Strategy()),
		infralogger.String("ai_provider", transformer.Provider()),
		infralogger.String("cache", cfg.Cache.Backend),
		infralogger.Bool("search", cfg.Search.Enabled),
	)
	return nil
}

func (a *App) newCache() cache.Cache {
	if a.Config.Cache.Backend == "redis" && a.Redis != nil {
		return cache.NewRedis(a.Redis, a.Log)
	}
	return cache.NewMemory()
}

func (a *App) newLocker() rewrite.Locker {
	if a.Redis != nil {
		return rewrite.NewRedisLocker(a.Redis)
	}
	a.Log.Warn("Redis disabled, draft locks are process local")
	return rewrite.NewLocalLocker()
}

func (a *App) setupSearch(ctx context.Context) (*search.Indexer, error) {
	cfg := a.Config.Search
	client, err := infraes.NewClient(ctx, infraes.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	}, a.Log)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	indexer := search.NewIndexer(client, cfg.Index)
	if ensureErr := indexer.EnsureIndex(ctx); ensureErr != nil {
		return nil, fmt.Errorf("search: %w", ensureErr)
	}
	return indexer, nil
}

// NewTransformer builds the configured AI provider behind the rate limiter
// and circuit breaker.
func NewTransformer(cfg config.AIConfig, metrics *telemetry.Metrics, log infralogger.Logger) *ai.Guard {
	clientCfg := ai.ClientConfig{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	}

	var inner ai.Transformer
	switch cfg.Provider {
	case ai.ProviderAnthropic:
		inner = ai.NewAnthropicClient(clientCfg)
	default:
		inner = ai.NewOpenAIClient(clientCfg, &http.Client{Timeout: cfg.Timeout})
	}

	return ai.NewGuard(inner, ai.GuardConfig{
		RequestsPerMinute: cfg.RequestsPerMinute,
		FailureThreshold:  cfg.FailureThreshold,
		OpenTimeout:       cfg.OpenTimeout,
	}, metrics, log)
}

// NewStrategy selects the draft strategy.
func NewStrategy(cfg *config.Config, transformer ai.Transformer) draft.Strategy {
	if cfg.Generation.Strategy == draft.StrategyAI {
		return draft.NewAIStrategy(transformer, cfg.AI.MaxTokens)
	}
	return draft.TemplateStrategy{}
}

// Close releases the stores.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Error("Failed to close redis", infralogger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Error("Failed to close database", infralogger.Error(err))
		}
	}
}
