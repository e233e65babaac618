// Package service wires the pipeline stages into the operations exposed by
// the HTTP API, the CLI and the in-process scheduler.
package service

import (
	"context"
	"errors"
	"fmt"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/fetcher"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/rewrite"
)

// NewsFetcher runs fetch batches.
type NewsFetcher interface {
	FetchAll(ctx context.Context) (*fetcher.Stats, error)
	FetchCategory(ctx context.Context, category string) fetcher.CategoryStats
	Categories() []string
}

// DraftGenerator creates RAW drafts.
type DraftGenerator interface {
	Generate(ctx context.Context, candidateID string) (*domain.Draft, error)
	GenerateBatch(ctx context.Context, limit int) (*draft.BatchStats, error)
}

// Rewriter drives the rewrite state machine.
type Rewriter interface {
	Run(ctx context.Context, draftID string) (*rewrite.Result, error)
	Resume(ctx context.Context, draftID string) (*rewrite.Result, error)
	RunStep(ctx context.Context, draftID string, step domain.Step) (*rewrite.Result, error)
}

// Approver publishes drafts.
type Approver interface {
	Approve(ctx context.Context, req publish.ApproveRequest) (*publish.ApproveResult, error)
}

// CandidateStore is the operator view of the backlog.
type CandidateStore interface {
	ListCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.CandidateItem, error)
	SetExcluded(ctx context.Context, id string, excluded bool) error
	DeleteCandidates(ctx context.Context, ids []string) (int64, error)
}

// DraftReader lists drafts for review.
type DraftReader interface {
	GetDraft(ctx context.Context, id string) (*domain.Draft, error)
	ListDrafts(ctx context.Context, filter domain.DraftFilter) ([]domain.Draft, error)
}

// ErrUnknownCategory is returned for a category with no configured sources.
var ErrUnknownCategory = errors.New("unknown category")

// Config toggles optional behaviour.
type Config struct {
	// RewriteOnGenerate runs the rewrite pipeline right after a draft is
	// created.
	RewriteOnGenerate bool
}

// Deps groups the collaborators of Service.
type Deps struct {
	Fetcher    NewsFetcher
	Generator  DraftGenerator
	Rewriter   Rewriter
	Approver   Approver
	Candidates CandidateStore
	Drafts     DraftReader
}

// RewriteOutcome is the synchronous rewrite of one generated draft.
type RewriteOutcome struct {
	DraftID   string          `json:"draft_id"`
	Result    *rewrite.Result `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// GenerateResult is the outcome of a generation batch.
type GenerateResult struct {
	*draft.BatchStats
	Rewrites []RewriteOutcome `json:"rewrites,omitempty"`
}

// Service is the application facade.
type Service struct {
	cfg  Config
	deps Deps
	log  infralogger.Logger
}

// New creates the service.
func New(cfg Config, deps Deps, log infralogger.Logger) *Service {
	return &Service{cfg: cfg, deps: deps, log: log}
}

// FetchNews runs a fetch batch over every category.
func (s *Service) FetchNews(ctx context.Context) (*fetcher.Stats, error) {
	return s.deps.Fetcher.FetchAll(ctx)
}

// FetchCategory runs a fetch batch over one configured category.
func (s *Service) FetchCategory(ctx context.Context, category string) (*fetcher.CategoryStats, error) {
	known := false
	for _, c := range s.deps.Fetcher.Categories() {
		if c == category {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("category %q: %w", category, ErrUnknownCategory)
	}
	stats := s.deps.Fetcher.FetchCategory(ctx, category)
	return &stats, nil
}

// GenerateDrafts drafts up to limit pending candidates.
func (s *Service) GenerateDrafts(ctx context.Context, limit int) (*GenerateResult, error) {
	batch, err := s.deps.Generator.GenerateBatch(ctx, limit)
	if batch == nil {
		return nil, err
	}

	result := &GenerateResult{BatchStats: batch}
	if err != nil || !s.cfg.RewriteOnGenerate {
		return result, err
	}

	for _, id := range batch.DraftIDs {
		result.Rewrites = append(result.Rewrites, s.rewriteGenerated(ctx, id))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
	}
	return result, nil
}

// GenerateDraft drafts one candidate and, when configured, rewrites it.
func (s *Service) GenerateDraft(ctx context.Context, candidateID string) (*domain.Draft, *RewriteOutcome, error) {
	d, err := s.deps.Generator.Generate(ctx, candidateID)
	if err != nil {
		return nil, nil, err
	}
	if !s.cfg.RewriteOnGenerate {
		return d, nil, nil
	}
	outcome := s.rewriteGenerated(ctx, d.ID)
	return d, &outcome, nil
}

// rewriteGenerated never fails the generation: the draft exists and any
// failure is recorded on it for a later resume.
func (s *Service) rewriteGenerated(ctx context.Context, draftID string) RewriteOutcome {
	res, err := s.deps.Rewriter.Run(ctx, draftID)
	out := RewriteOutcome{DraftID: draftID, Result: res}
	if err != nil {
		out.Error = err.Error()
		var stageErr *rewrite.StageError
		if errors.As(err, &stageErr) {
			out.ErrorCode = stageErr.Code
		}
		s.log.Warn("Rewrite after generation failed",
			infralogger.String("draft_id", draftID),
			infralogger.Error(err),
		)
	}
	return out
}

// ListCandidates lists the backlog.
func (s *Service) ListCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.CandidateItem, error) {
	return s.deps.Candidates.ListCandidates(ctx, filter)
}

// ExcludeCandidate hides or restores a candidate for generation.
func (s *Service) ExcludeCandidate(ctx context.Context, id string, excluded bool) error {
	return s.deps.Candidates.SetExcluded(ctx, id, excluded)
}

// DeleteCandidates removes candidates by id and reports how many were deleted.
func (s *Service) DeleteCandidates(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.deps.Candidates.DeleteCandidates(ctx, ids)
	if err != nil {
		return 0, err
	}
	s.log.Info("Candidates deleted", infralogger.Int("requested", len(ids)), infralogger.Int64("deleted", deleted))
	return deleted, nil
}

// ListDrafts lists drafts for review.
func (s *Service) ListDrafts(ctx context.Context, filter domain.DraftFilter) ([]domain.Draft, error) {
	return s.deps.Drafts.ListDrafts(ctx, filter)
}

// GetDraft loads one draft.
func (s *Service) GetDraft(ctx context.Context, id string) (*domain.Draft, error) {
	return s.deps.Drafts.GetDraft(ctx, id)
}

// Rewrite runs the full pipeline.
func (s *Service) Rewrite(ctx context.Context, draftID string) (*rewrite.Result, error) {
	return s.deps.Rewriter.Run(ctx, draftID)
}

// RewriteStep runs one transition.
func (s *Service) RewriteStep(ctx context.Context, draftID string, step domain.Step) (*rewrite.Result, error) {
	return s.deps.Rewriter.RunStep(ctx, draftID, step)
}

// Resume restarts a draft where its persisted output left off.
func (s *Service) Resume(ctx context.Context, draftID string) (*rewrite.Result, error) {
	return s.deps.Rewriter.Resume(ctx, draftID)
}

// Approve publishes a draft.
func (s *Service) Approve(ctx context.Context, req publish.ApproveRequest) (*publish.ApproveResult, error) {
	return s.deps.Approver.Approve(ctx, req)
}
