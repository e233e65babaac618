package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finblog/internal/config"
	"github.com/jonesrussell/finblog/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - id: reuters-finance
    category: personal-finance
    url: https://example.com/rss
    kind: authoritative
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "finblog", cfg.Service.Name)
	assert.Equal(t, 8090, cfg.Service.Port)
	assert.Equal(t, "template", cfg.Generation.Strategy)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 800*time.Millisecond, cfg.Rewrite.MinDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Rewrite.MaxDelay)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 10, cfg.Fetch.PerCategoryCap)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, domain.FormatRSS, cfg.Sources[0].Format)
	assert.Equal(t, "reuters-finance", cfg.Sources[0].Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINBLOG_PORT", "9100")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("REWRITE_TIMEOUT", "45s")

	cfg, err := config.Load(writeConfig(t, "service:\n  port: 8000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, "s3cret", cfg.Scheduler.Secret)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.AI.Model)
	assert.Equal(t, 45*time.Second, cfg.Rewrite.Timeout)
}

func TestLoad_DisableDelay(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "rewrite:\n  disable_delay: true\n"))
	require.NoError(t, err)

	assert.Zero(t, cfg.Rewrite.MinDelay)
	assert.Zero(t, cfg.Rewrite.MaxDelay)
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unknown strategy", "generation:\n  strategy: magic\n"},
		{"unknown provider", "ai:\n  provider: acme\n"},
		{"redis cache without redis", "cache:\n  backend: redis\n"},
		{"inverted delay", "rewrite:\n  min_delay: 2s\n  max_delay: 1s\n"},
		{"index without search", "publish:\n  index_posts: true\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"html source without selector", `
sources:
  - id: ranked
    category: markets
    url: https://example.com/most-read
    kind: ranked
    format: html
`},
		{"duplicate source id", `
sources:
  - {id: a, category: markets, url: https://a.example.com/rss}
  - {id: a, category: markets, url: https://b.example.com/rss}
`},
		{"bad source kind", `
sources:
  - {id: a, category: markets, url: https://a.example.com/rss, kind: loud}
`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}
