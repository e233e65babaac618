package bootstrap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/bootstrap"
	"github.com/jonesrussell/finblog/internal/config"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/service"
)

type nopRunner struct{}

func (nopRunner) FetchNews(context.Context) (*fetcher.Stats, error) { return &fetcher.Stats{}, nil }

func (nopRunner) GenerateDrafts(context.Context, int) (*service.GenerateResult, error) {
	return &service.GenerateResult{BatchStats: &draft.BatchStats{}}, nil
}

func TestSetupScheduler(t *testing.T) {
	t.Parallel()

	log := infralogger.NewNop()

	s, err := bootstrap.SetupScheduler(&config.Config{}, nopRunner{}, log)
	require.NoError(t, err)
	assert.Nil(t, s, "no schedule configured")

	cfg := &config.Config{Cron: config.CronConfig{FetchNews: "*/30 * * * *", GenerateDrafts: "15 6 * * *"}}
	s, err = bootstrap.SetupScheduler(cfg, nopRunner{}, log)
	require.NoError(t, err)
	require.NotNil(t, s)

	_, ok := s.Next("fetch-news")
	assert.True(t, ok)
	_, ok = s.Next("generate-drafts")
	assert.True(t, ok)

	cfg.Cron.FetchNews = "every minute"
	_, err = bootstrap.SetupScheduler(cfg, nopRunner{}, log)
	assert.Error(t, err)
}

func TestNewStrategy(t *testing.T) {
	t.Parallel()

	transformer := bootstrap.NewTransformer(config.AIConfig{Provider: ai.ProviderAnthropic, APIKey: "k"}, nil, infralogger.NewNop())
	assert.Equal(t, ai.ProviderAnthropic, transformer.Provider())

	cfg := &config.Config{Generation: config.GenerationConfig{Strategy: draft.StrategyAI}}
	assert.Equal(t, draft.StrategyAI, bootstrap.NewStrategy(cfg, transformer).Name())

	cfg.Generation.Strategy = draft.StrategyTemplate
	assert.Equal(t, draft.StrategyTemplate, bootstrap.NewStrategy(cfg, transformer).Name())

	openai := bootstrap.NewTransformer(config.AIConfig{Provider: ai.ProviderOpenAI}, nil, infralogger.NewNop())
	assert.Equal(t, ai.ProviderOpenAI, openai.Provider())
}
