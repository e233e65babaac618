// Package config defines the finblog service configuration.
package config

import (
	"fmt"
	"time"

	infraconfig "github.com/jonesrussell/finblog/infrastructure/config"
	"github.com/jonesrussell/finblog/infrastructure/profiling"
	"github.com/jonesrussell/finblog/infrastructure/redis"
	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/quotes"
	"github.com/jonesrussell/finblog/internal/trend"
)

// Default service configuration values.
const (
	defaultServiceName    = "finblog"
	defaultServiceVersion = "1.0.0"
	defaultServicePort    = 8090
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Default database configuration values.
const (
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "finblog"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultDBConnLifetimeH = 1
)

// Default pipeline values.
const (
	defaultPerCategoryCap     = 10
	defaultAuthoritativeLimit = 3
	defaultFetchTimeout       = 15 * time.Second
	defaultFetchRPS           = 1.0
	defaultUserAgent          = "finblog-fetcher/1.0"
	defaultDedupTTL           = 7 * 24 * time.Hour
	defaultBatchSize          = 10
	defaultAIModelOpenAI      = "gpt-4o-mini"
	defaultAIModelAnthropic   = "claude-sonnet-4-5"
	defaultAIMaxTokens        = 4096
	defaultAITimeout          = 90 * time.Second
	defaultAIRPM              = 20
	defaultBreakerThreshold   = 5
	defaultBreakerTimeout     = time.Minute
	defaultRewriteMinDelay    = 800 * time.Millisecond
	defaultRewriteMaxDelay    = 1500 * time.Millisecond
	defaultRewriteTimeout     = 5 * time.Minute
	defaultCacheTTL           = 5 * time.Minute
	defaultTrendTTL           = 30 * time.Minute
	defaultSearchIndex        = "finblog_posts"
	defaultTokenTTL           = 24 * time.Hour
)

// Config holds the application configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      redis.Config     `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Sources    []domain.Source  `yaml:"sources"`
	Trends     TrendsConfig     `yaml:"trends"`
	Generation GenerationConfig `yaml:"generation"`
	AI         AIConfig         `yaml:"ai"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Publish    PublishConfig    `yaml:"publish"`
	Cache      CacheConfig      `yaml:"cache"`
	Quotes     quotes.Config    `yaml:"quotes"`
	Search     SearchConfig     `yaml:"search"`
	Cron       CronConfig       `yaml:"cron"`
	Profiling  profiling.Config `yaml:"profiling"`
}

// ServiceConfig holds service identity and runtime settings.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"FINBLOG_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"    yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS" yaml:"cors_origins"`
	// TrustForwardedHost resolves tenants from X-Forwarded-Host.
	TrustForwardedHost bool `env:"TRUST_FORWARDED_HOST" yaml:"trust_forwarded_host"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string        `env:"POSTGRES_FINBLOG_HOST"     yaml:"host"`
	Port                  int           `env:"POSTGRES_FINBLOG_PORT"     yaml:"port"`
	User                  string        `env:"POSTGRES_FINBLOG_USER"     yaml:"user"`
	Password              string        `env:"POSTGRES_FINBLOG_PASSWORD" yaml:"password"`
	Database              string        `env:"POSTGRES_FINBLOG_DB"       yaml:"database"`
	SSLMode               string        `yaml:"sslmode"`
	MaxConnections        int           `yaml:"max_connections"`
	MaxIdleConns          int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// AuthConfig holds operator authentication settings.
type AuthConfig struct {
	JWTSecret string        `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// SchedulerConfig holds the shared secret of the external scheduler.
type SchedulerConfig struct {
	Secret string `env:"CRON_SECRET" yaml:"secret"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// FetchConfig controls the source fetcher.
type FetchConfig struct {
	PerCategoryCap     int           `env:"FETCH_PER_CATEGORY_CAP" yaml:"per_category_cap"`
	AuthoritativeLimit int           `yaml:"authoritative_limit"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	UserAgent          string        `yaml:"user_agent"`
	DedupTTL           time.Duration `yaml:"dedup_ttl"`
}

// TrendsConfig lists the trend keyword sets per category.
type TrendsConfig struct {
	TTL  time.Duration `yaml:"ttl"`
	Sets []trend.Set   `yaml:"sets"`
}

// GenerationConfig controls draft generation.
type GenerationConfig struct {
	Strategy          string `env:"GENERATION_STRATEGY"  yaml:"strategy"`
	BatchSize         int    `env:"GENERATION_BATCH"     yaml:"batch_size"`
	RewriteOnGenerate bool   `env:"REWRITE_ON_GENERATE"  yaml:"rewrite_on_generate"`
}

// AIConfig selects and configures the transform provider.
type AIConfig struct {
	Provider          string        `env:"AI_PROVIDER"       yaml:"provider"`
	APIKey            string        `env:"AI_API_KEY"        yaml:"api_key"`
	Model             string        `env:"AI_MODEL"          yaml:"model"`
	BaseURL           string        `env:"AI_BASE_URL"       yaml:"base_url"`
	MaxTokens         int           `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	OpenTimeout       time.Duration `yaml:"open_timeout"`
}

// RewriteConfig controls the rewrite pipeline.
type RewriteConfig struct {
	MinDelay    time.Duration `yaml:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Timeout     time.Duration `env:"REWRITE_TIMEOUT" yaml:"timeout"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
	Temperature *float64      `yaml:"temperature"`
	// DisableDelay turns the inter-stage pause off.
	DisableDelay bool `yaml:"disable_delay"`
}

// PublishConfig controls publication side effects.
type PublishConfig struct {
	// IndexPosts pushes published posts to the search index.
	IndexPosts bool `env:"PUBLISH_INDEX_POSTS" yaml:"index_posts"`
}

// CacheConfig controls the shared cache.
type CacheConfig struct {
	// Backend is "memory" or "redis". Redis needs redis.enabled.
	Backend string        `env:"CACHE_BACKEND" yaml:"backend"`
	SiteTTL time.Duration `yaml:"site_ttl"`
}

// SearchConfig configures the Elasticsearch post index.
type SearchConfig struct {
	Enabled  bool   `env:"SEARCH_ENABLED"         yaml:"enabled"`
	URL      string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	APIKey   string `env:"ELASTICSEARCH_API_KEY"  yaml:"api_key"`
	Index    string `yaml:"index"`
}

// CronConfig holds in-process schedules. An empty expression disables the job.
type CronConfig struct {
	FetchNews      string        `env:"CRON_FETCH_NEWS"      yaml:"fetch_news"`
	GenerateDrafts string        `env:"CRON_GENERATE_DRAFTS" yaml:"generate_drafts"`
	JobTimeout     time.Duration `yaml:"job_timeout"`
}

// Load loads configuration from a YAML file, applies defaults, then env overrides.
func Load(path string) (*Config, error) {
	cfg, loadErr := infraconfig.LoadWithDefaults(path, setDefaults)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("database.host", c.Database.Host); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("database.database", c.Database.Database); err != nil {
		return err
	}
	if err := infraconfig.ValidateOneOf("generation.strategy", c.Generation.Strategy,
		draft.StrategyTemplate, draft.StrategyAI); err != nil {
		return err
	}
	if err := infraconfig.ValidateOneOf("ai.provider", c.AI.Provider, ai.ProviderOpenAI, ai.ProviderAnthropic); err != nil {
		return err
	}
	if err := infraconfig.ValidateOneOf("cache.backend", c.Cache.Backend, "memory", "redis"); err != nil {
		return err
	}
	if c.Cache.Backend == "redis" && !c.Redis.Enabled {
		return &infraconfig.ValidationError{Field: "cache.backend", Message: "redis backend requires redis.enabled"}
	}
	if c.Redis.Enabled {
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	}
	if c.Rewrite.MaxDelay < c.Rewrite.MinDelay {
		return &infraconfig.ValidationError{Field: "rewrite.max_delay", Message: "must not be below rewrite.min_delay"}
	}
	if c.Publish.IndexPosts && !c.Search.Enabled {
		return &infraconfig.ValidationError{Field: "publish.index_posts", Message: "requires search.enabled"}
	}
	return c.validateSources()
}

func (c *Config) validateSources() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if err := infraconfig.ValidateRequired(field+".id", s.ID); err != nil {
			return err
		}
		if seen[s.ID] {
			return &infraconfig.ValidationError{Field: field + ".id", Message: "duplicate source id " + s.ID}
		}
		seen[s.ID] = true
		if err := infraconfig.ValidateRequired(field+".url", s.URL); err != nil {
			return err
		}
		if err := infraconfig.ValidateRequired(field+".category", s.Category); err != nil {
			return err
		}
		if err := infraconfig.ValidateOneOf(field+".kind", string(s.Kind),
			string(domain.SourceAuthoritative), string(domain.SourceRanked), string(domain.SourceOrdinary)); err != nil {
			return err
		}
		if err := infraconfig.ValidateOneOf(field+".format", string(s.Format),
			string(domain.FormatRSS), string(domain.FormatHTML)); err != nil {
			return err
		}
		if s.Format == domain.FormatHTML && s.Selector == "" {
			return &infraconfig.ValidationError{Field: field + ".selector", Message: "is required for html sources"}
		}
	}
	return nil
}

// setDefaults applies default values to all configuration sections.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setLoggingDefaults(&cfg.Logging)
	setPipelineDefaults(cfg)
	setAIDefaults(&cfg.AI)

	for i := range cfg.Sources {
		if cfg.Sources[i].Kind == "" {
			cfg.Sources[i].Kind = domain.SourceOrdinary
		}
		if cfg.Sources[i].Format == "" {
			cfg.Sources[i].Format = domain.FormatRSS
		}
		if cfg.Sources[i].Name == "" {
			cfg.Sources[i].Name = cfg.Sources[i].ID
		}
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}

	if s.Version == "" {
		s.Version = defaultServiceVersion
	}

	if s.Port == 0 {
		s.Port = defaultServicePort
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}

	if d.Port == 0 {
		d.Port = defaultDBPort
	}

	if d.User == "" {
		d.User = defaultDBUser
	}

	if d.Database == "" {
		d.Database = defaultDBName
	}

	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}

	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}

	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}

	if d.ConnectionMaxLifetime == 0 {
		d.ConnectionMaxLifetime = defaultDBConnLifetimeH * time.Hour
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}

	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setPipelineDefaults(cfg *Config) {
	f := &cfg.Fetch
	if f.PerCategoryCap == 0 {
		f.PerCategoryCap = defaultPerCategoryCap
	}
	if f.AuthoritativeLimit == 0 {
		f.AuthoritativeLimit = defaultAuthoritativeLimit
	}
	if f.RequestTimeout == 0 {
		f.RequestTimeout = defaultFetchTimeout
	}
	if f.RequestsPerSecond == 0 {
		f.RequestsPerSecond = defaultFetchRPS
	}
	if f.UserAgent == "" {
		f.UserAgent = defaultUserAgent
	}
	if f.DedupTTL == 0 {
		f.DedupTTL = defaultDedupTTL
	}

	if cfg.Trends.TTL == 0 {
		cfg.Trends.TTL = defaultTrendTTL
	}

	g := &cfg.Generation
	if g.Strategy == "" {
		g.Strategy = draft.StrategyTemplate
	}
	if g.BatchSize == 0 {
		g.BatchSize = defaultBatchSize
	}

	r := &cfg.Rewrite
	if r.DisableDelay {
		r.MinDelay, r.MaxDelay = 0, 0
	} else if r.MinDelay == 0 && r.MaxDelay == 0 {
		r.MinDelay, r.MaxDelay = defaultRewriteMinDelay, defaultRewriteMaxDelay
	}
	if r.Timeout == 0 {
		r.Timeout = defaultRewriteTimeout
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = defaultTokenTTL
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
		if cfg.Redis.Enabled {
			cfg.Cache.Backend = "redis"
		}
	}
	if cfg.Cache.SiteTTL == 0 {
		cfg.Cache.SiteTTL = defaultCacheTTL
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = defaultSearchIndex
	}
}

func setAIDefaults(a *AIConfig) {
	if a.Provider == "" {
		a.Provider = ai.ProviderOpenAI
	}
	if a.Model == "" {
		a.Model = defaultAIModelOpenAI
		if a.Provider == ai.ProviderAnthropic {
			a.Model = defaultAIModelAnthropic
		}
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = defaultAIMaxTokens
	}
	if a.Timeout == 0 {
		a.Timeout = defaultAITimeout
	}
	if a.RequestsPerMinute == 0 {
		a.RequestsPerMinute = defaultAIRPM
	}
	if a.FailureThreshold == 0 {
		a.FailureThreshold = defaultBreakerThreshold
	}
	if a.OpenTimeout == 0 {
		a.OpenTimeout = defaultBreakerTimeout
	}
}
