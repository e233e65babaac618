package bootstrap

import (
	"context"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/config"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/scheduler"
	"github.com/jonesrussell/finblog/internal/service"
)

const (
	jobFetchNews      = "fetch-news"
	jobGenerateDrafts = "generate-drafts"
	defaultJobTimeout = 15 * time.Minute
)

// JobRunner is what the in-process schedule triggers.
type JobRunner interface {
	FetchNews(ctx context.Context) (*fetcher.Stats, error)
	GenerateDrafts(ctx context.Context, limit int) (*service.GenerateResult, error)
}

// SetupScheduler registers the configured cron jobs. It returns nil when no
// schedule is configured, which leaves triggering to the external scheduler.
func SetupScheduler(cfg *config.Config, runner JobRunner, log infralogger.Logger) (*scheduler.Scheduler, error) {
	if cfg.Cron.FetchNews == "" && cfg.Cron.GenerateDrafts == "" {
		return nil, nil //nolint:nilnil // no in-process schedule
	}

	timeout := cfg.Cron.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	s := scheduler.New(log)
	if cfg.Cron.FetchNews != "" {
		if err := s.Add(scheduler.Job{
			Name:     jobFetchNews,
			Schedule: cfg.Cron.FetchNews,
			Timeout:  timeout,
			Run: func(ctx context.Context) error {
				stats, err := runner.FetchNews(ctx)
				if err != nil {
					return err
				}
				log.Info("Fetch run finished",
					infralogger.Int("new", stats.New),
					infralogger.Int("duplicates", stats.Duplicates),
					infralogger.Int("source_errors", stats.SourceErrors),
				)
				return nil
			},
		}); err != nil {
			return nil, fmt.Errorf("cron.fetch_news: %w", err)
		}
	}

	if cfg.Cron.GenerateDrafts != "" {
		batch := cfg.Generation.BatchSize
		if err := s.Add(scheduler.Job{
			Name:     jobGenerateDrafts,
			Schedule: cfg.Cron.GenerateDrafts,
			Timeout:  timeout,
			Run: func(ctx context.Context) error {
				result, err := runner.GenerateDrafts(ctx, batch)
				if err != nil {
					return err
				}
				log.Info("Generation run finished",
					infralogger.Int("generated", result.Generated),
					infralogger.Int("skipped", result.Skipped),
					infralogger.Int("failed", result.Failed),
				)
				return nil
			},
		}); err != nil {
			return nil, fmt.Errorf("cron.generate_drafts: %w", err)
		}
	}

	return s, nil
}
