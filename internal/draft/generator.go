package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

const defaultBatchLimit = 10

// CandidateStore reads candidates awaiting a draft.
type CandidateStore interface {
	GetCandidate(ctx context.Context, id string) (*domain.CandidateItem, error)
	ListPendingCandidates(ctx context.Context, limit int) ([]domain.CandidateItem, error)
}

// DraftStore creates a draft and flags its candidate atomically.
type DraftStore interface {
	CreateDraftForCandidate(ctx context.Context, draft *domain.Draft) error
}

// BatchStats summarises one GenerateBatch call.
type BatchStats struct {
	Candidates int      `json:"candidates"`
	Generated  int      `json:"generated"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	DraftIDs   []string `json:"draft_ids"`
	DurationMS int64    `json:"duration_ms"`
}

// Generator creates drafts from candidates with one strategy.
type Generator struct {
	strategy   Strategy
	candidates CandidateStore
	drafts     DraftStore
	metrics    *telemetry.Metrics
	log        infralogger.Logger
}

// NewGenerator creates a generator. metrics may be nil.
func NewGenerator(
	strategy Strategy,
	candidates CandidateStore,
	drafts DraftStore,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *Generator {
	return &Generator{
		strategy:   strategy,
		candidates: candidates,
		drafts:     drafts,
		metrics:    metrics,
		log:        log,
	}
}

// Strategy returns the configured strategy name.
func (g *Generator) Strategy() string { return g.strategy.Name() }

// Generate creates the draft for one candidate. A candidate that already has
// a draft yields domain.ErrAlreadyExists; the flag is never flipped when
// generation fails.
func (g *Generator) Generate(ctx context.Context, candidateID string) (*domain.Draft, error) {
	candidate, err := g.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", candidateID, err)
	}
	return g.generate(ctx, candidate)
}

// GenerateBatch drafts up to limit pending candidates, trending first.
// Per-item failures are counted and logged; only cancellation stops it.
func (g *Generator) GenerateBatch(ctx context.Context, limit int) (*BatchStats, error) {
	start := time.Now()
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	pending, err := g.candidates.ListPendingCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}

	stats := &BatchStats{Candidates: len(pending), DraftIDs: make([]string, 0, len(pending))}
	for i := range pending {
		if ctxErr := ctx.Err(); ctxErr != nil {
			stats.DurationMS = time.Since(start).Milliseconds()
			return stats, ctxErr
		}

		d, genErr := g.generate(ctx, &pending[i])
		switch {
		case genErr == nil:
			stats.Generated++
			stats.DraftIDs = append(stats.DraftIDs, d.ID)
		case errors.Is(genErr, domain.ErrAlreadyExists):
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	stats.DurationMS = time.Since(start).Milliseconds()
	g.log.Info("Draft generation batch complete",
		infralogger.String("strategy", g.strategy.Name()),
		infralogger.Int("candidates", stats.Candidates),
		infralogger.Int("generated", stats.Generated),
		infralogger.Int("skipped", stats.Skipped),
		infralogger.Int("failed", stats.Failed),
		infralogger.Int64("duration_ms", stats.DurationMS),
	)
	return stats, nil
}

func (g *Generator) generate(ctx context.Context, candidate *domain.CandidateItem) (*domain.Draft, error) {
	strategy := g.strategy.Name()

	if candidate.DraftGenerated {
		g.metrics.RecordDraft(strategy, "skipped")
		return nil, fmt.Errorf("candidate %s: %w", candidate.ID, domain.ErrAlreadyExists)
	}

	d, genErr := g.strategy.Generate(ctx, candidate)
	if genErr != nil {
		g.metrics.RecordDraft(strategy, "failed")
		g.log.Warn("Draft generation failed",
			infralogger.String("candidate_id", candidate.ID),
			infralogger.String("strategy", strategy),
			infralogger.Error(genErr),
		)
		return nil, genErr
	}

	if createErr := g.drafts.CreateDraftForCandidate(ctx, d); createErr != nil {
		if errors.Is(createErr, domain.ErrAlreadyExists) {
			g.metrics.RecordDraft(strategy, "skipped")
			g.log.Debug("Candidate already drafted", infralogger.String("candidate_id", candidate.ID))
			return nil, createErr
		}
		g.metrics.RecordDraft(strategy, "failed")
		g.log.Error("Failed to persist draft",
			infralogger.String("candidate_id", candidate.ID),
			infralogger.Error(createErr),
		)
		return nil, fmt.Errorf("persist draft: %w", createErr)
	}

	g.metrics.RecordDraft(strategy, "created")
	g.log.Debug("Draft created",
		infralogger.String("draft_id", d.ID),
		infralogger.String("candidate_id", candidate.ID),
		infralogger.String("strategy", strategy),
	)
	return d, nil
}
