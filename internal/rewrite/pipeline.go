// Package rewrite runs drafts through the editor and columnist transforms and
// persists the stage after every transition.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/draft"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

const (
	failureWriteTimeout = 5 * time.Second
	unlockTimeout       = 2 * time.Second
	defaultLockTTL      = 5 * time.Minute
	lockTTLMargin       = 30 * time.Second
)

// Stage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// DraftStore loads and versions drafts.
type DraftStore interface {
	GetDraft(ctx context.Context, id string) (*domain.Draft, error)
	UpdateDraftState(ctx context.Context, d *domain.Draft) error
}

// Config controls pacing and budgets.
type Config struct {
	// MinDelay and MaxDelay bound the jittered pause between the editor and
	// columnist calls. A zero MaxDelay disables the pause.
	MinDelay time.Duration
	MaxDelay time.Duration
	// Timeout is the wall-clock budget of one invocation. Zero means none.
	Timeout     time.Duration
	LockTTL     time.Duration
	MaxTokens   int
	Temperature *float64
}

// StepResult describes one executed transition.
type StepResult struct {
	Step       domain.Step `json:"step"`
	Outcome    string      `json:"outcome"`
	Warning    string      `json:"warning,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// Result describes one pipeline invocation.
type Result struct {
	DraftID  string       `json:"draft_id"`
	Stage    domain.Stage `json:"stage"`
	Steps    []StepResult `json:"steps"`
	Warnings []string     `json:"warnings"`
}

// StageError is returned when a transition failed and the draft was moved
// to FAILED.
type StageError struct {
	Step domain.Step
	Code string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", strings.ToLower(string(e.Step)), e.Code, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// persistError marks a failed draft write.
type persistError struct {
	err error
}

func (e *persistError) Error() string { return "persist draft: " + e.err.Error() }

func (e *persistError) Unwrap() error { return e.err }

// Pipeline is the rewrite state machine.
type Pipeline struct {
	cfg         Config
	drafts      DraftStore
	transformer ai.Transformer
	locker      Locker
	metrics     *telemetry.Metrics
	log         infralogger.Logger
}

// New creates a pipeline. metrics may be nil.
func New(
	cfg Config,
	drafts DraftStore,
	transformer ai.Transformer,
	locker Locker,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *Pipeline {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
		if cfg.Timeout > 0 {
			cfg.LockTTL = cfg.Timeout + lockTTLMargin
		}
	}
	return &Pipeline{
		cfg:         cfg,
		drafts:      drafts,
		transformer: transformer,
		locker:      locker,
		metrics:     metrics,
		log:         log,
	}
}

// Run executes the full pipeline on a RAW or FAILED draft.
func (p *Pipeline) Run(ctx context.Context, draftID string) (*Result, error) {
	return p.execute(ctx, draftID, func(d *domain.Draft) ([]domain.Step, error) {
		if d.Stage != domain.StageRaw && d.Stage != domain.StageFailed {
			return nil, fmt.Errorf("run from stage %s: %w", d.Stage, domain.ErrInvalidTransition)
		}
		return stepsFrom(domain.StepEditor), nil
	})
}

// Resume restarts at the step inferred from persisted output.
func (p *Pipeline) Resume(ctx context.Context, draftID string) (*Result, error) {
	return p.execute(ctx, draftID, func(d *domain.Draft) ([]domain.Step, error) {
		step := InferResumePoint(d)
		if d.Stage == domain.StageSaved || !canRunStep(d, step) {
			return nil, fmt.Errorf("resume %s from stage %s: %w", step, d.Stage, domain.ErrInvalidTransition)
		}
		return stepsFrom(step), nil
	})
}

// RunStep executes exactly one transition.
func (p *Pipeline) RunStep(ctx context.Context, draftID string, step domain.Step) (*Result, error) {
	return p.execute(ctx, draftID, func(d *domain.Draft) ([]domain.Step, error) {
		if !canRunStep(d, step) {
			return nil, fmt.Errorf("step %s from stage %s: %w", step, d.Stage, domain.ErrInvalidTransition)
		}
		return []domain.Step{step}, nil
	})
}

func (p *Pipeline) execute(
	ctx context.Context,
	draftID string,
	plan func(*domain.Draft) ([]domain.Step, error),
) (*Result, error) {
	unlock, lockErr := p.locker.Lock(ctx, draftID, p.cfg.LockTTL)
	if lockErr != nil {
		return nil, lockErr
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			p.log.Warn("Failed to release rewrite lock", infralogger.String("draft_id", draftID), infralogger.Error(err))
		}
	}()

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	d, loadErr := p.drafts.GetDraft(ctx, draftID)
	if loadErr != nil {
		return nil, fmt.Errorf("load draft %s: %w", draftID, loadErr)
	}
	if d.IsApproved() {
		return nil, fmt.Errorf("draft %s is approved: %w", draftID, domain.ErrInvalidTransition)
	}

	steps, planErr := plan(d)
	if planErr != nil {
		return nil, planErr
	}
	d.ClearError()

	result := &Result{DraftID: d.ID}
	for i, step := range steps {
		if i > 0 && step == domain.StepColumnist {
			if pauseErr := p.pause(ctx); pauseErr != nil {
				result.Steps = append(result.Steps, StepResult{Step: step, Outcome: OutcomeFailed})
				failErr := p.fail(ctx, d, step, pauseErr)
				result.finish(d)
				return result, failErr
			}
		}

		sr, stepErr := p.runStep(ctx, d, step)
		result.Steps = append(result.Steps, sr)
		if stepErr != nil {
			result.finish(d)
			return result, stepErr
		}
	}

	result.finish(d)
	return result, nil
}

func (r *Result) finish(d *domain.Draft) {
	r.Stage = d.Stage
	r.Warnings = append([]string(nil), d.Warnings...)
}

func (p *Pipeline) runStep(ctx context.Context, d *domain.Draft, step domain.Step) (StepResult, error) {
	start := time.Now()
	sr := StepResult{Step: step, Outcome: OutcomeOK}

	var (
		degraded bool
		err      error
	)
	switch step {
	case domain.StepEditor:
		degraded, err = p.editor(ctx, d)
		if degraded {
			sr.Warning = domain.WarnEditorParseFallback
		}
	case domain.StepColumnist:
		degraded, err = p.columnist(ctx, d)
		if degraded {
			sr.Warning = domain.WarnColumnistParseFallback
		}
	case domain.StepSave:
		err = p.save(ctx, d)
	default:
		err = fmt.Errorf("unknown step %q: %w", step, domain.ErrInvalidTransition)
	}

	elapsed := time.Since(start)
	sr.DurationMS = elapsed.Milliseconds()

	if err != nil {
		sr.Outcome = OutcomeFailed
		p.metrics.RecordStage(string(step), OutcomeFailed, elapsed)
		return sr, p.fail(ctx, d, step, err)
	}
	if degraded {
		sr.Outcome = OutcomeDegraded
	}

	p.metrics.RecordStage(string(step), sr.Outcome, elapsed)
	p.log.Info("Rewrite stage complete",
		infralogger.String("draft_id", d.ID),
		infralogger.String("step", string(step)),
		infralogger.String("outcome", sr.Outcome),
		infralogger.Int64("duration_ms", sr.DurationMS),
	)
	return sr, nil
}

func (p *Pipeline) editor(ctx context.Context, d *domain.Draft) (bool, error) {
	input := d.Content
	resp, err := p.transform(ctx, editorSystemPrompt, editorUserPrompt(d.Title, d.Category, input))
	if err != nil {
		return false, err
	}

	out, degraded, parseErr := parseEditor(p.transformer.Provider(), resp.Text, input)
	if parseErr != nil {
		return false, parseErr
	}

	clean := out.CleanDraft
	d.EditorContent = &clean
	d.EditorNotes = out.EditorNotes
	d.CalcChecks = out.CalcChecks
	d.DropColumnistOutput()
	if degraded {
		d.AddWarning(domain.WarnEditorParseFallback)
	}
	return degraded, p.advance(ctx, d, domain.StageEditorDone)
}

func (p *Pipeline) columnist(ctx context.Context, d *domain.Draft) (bool, error) {
	input := d.Content
	if d.HasEditorOutput() {
		input = *d.EditorContent
	}

	resp, err := p.transform(ctx, columnistSystemPrompt(), columnistUserPrompt(d.Title, d.Category, input))
	if err != nil {
		return false, err
	}

	out, degraded, parseErr := parseColumnist(p.transformer.Provider(), resp.Text, input, placeholderMeta(d))
	if parseErr != nil {
		return false, parseErr
	}

	markdown := out.Markdown
	d.ColumnistContent = &markdown
	d.ColumnistMeta = &domain.ColumnistMeta{
		Title:           out.Title,
		MetaDescription: out.MetaDescription,
		Tags:            out.Tags,
	}
	if degraded {
		d.AddWarning(domain.WarnColumnistParseFallback)
	}
	return degraded, p.advance(ctx, d, domain.StageColumnistDone)
}

// save promotes the columnist output to the draft's final fields. It has no
// external dependency.
func (p *Pipeline) save(ctx context.Context, d *domain.Draft) error {
	if !d.HasColumnistOutput() {
		return fmt.Errorf("no columnist output to save: %w", domain.ErrInvalidTransition)
	}
	content := *d.ColumnistContent

	meta := domain.ColumnistMeta{}
	if d.ColumnistMeta != nil {
		meta = *d.ColumnistMeta
	}

	title := firstNonEmpty(meta.Title, d.Title)
	d.Summary = firstNonEmpty(meta.MetaDescription, draft.ExtractFields(content).Summary, d.Summary)
	if len(meta.Tags) > 0 {
		d.Tags = meta.Tags
	}
	d.Title = title
	d.Slug = draft.Slugify(title)
	d.Content = content

	return p.advance(ctx, d, domain.StageSaved)
}

func (p *Pipeline) advance(ctx context.Context, d *domain.Draft, next domain.Stage) error {
	if !d.Stage.CanTransition(next) {
		return fmt.Errorf("%s to %s: %w", d.Stage, next, domain.ErrInvalidTransition)
	}
	d.Stage = next
	if err := p.drafts.UpdateDraftState(ctx, d); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		return &persistError{err: err}
	}
	return nil
}

// fail records the failure on the draft. The write uses a context detached
// from cancellation so a timed-out invocation still leaves FAILED behind.
func (p *Pipeline) fail(ctx context.Context, d *domain.Draft, step domain.Step, cause error) error {
	if errors.Is(cause, domain.ErrVersionConflict) {
		p.log.Warn("Draft changed concurrently, abandoning rewrite",
			infralogger.String("draft_id", d.ID),
			infralogger.String("step", string(step)),
		)
		return fmt.Errorf("%s stage: %w", strings.ToLower(string(step)), cause)
	}

	code := p.errorCode(cause)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		timeout := &ai.Error{Provider: p.transformer.Provider(), Class: ai.ClassAPIError, Message: "rewrite budget exceeded", Err: cause}
		code = timeout.Code()
		cause = timeout
	}
	d.Fail(step, code, cause.Error())

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if writeErr := p.drafts.UpdateDraftState(writeCtx, d); writeErr != nil {
		p.log.Error("Failed to record rewrite failure",
			infralogger.String("draft_id", d.ID),
			infralogger.String("step", string(step)),
			infralogger.String("error_code", code),
			infralogger.Error(writeErr),
		)
	}

	p.log.Error("Rewrite stage failed",
		infralogger.String("draft_id", d.ID),
		infralogger.String("step", string(step)),
		infralogger.String("error_code", code),
		infralogger.Error(cause),
	)
	return &StageError{Step: step, Code: code, Err: cause}
}

func (p *Pipeline) errorCode(err error) string {
	var pErr *persistError
	if errors.As(err, &pErr) {
		return domain.ErrorCodeDB
	}
	return ai.AsError(p.transformer.Provider(), err).Code()
}

func (p *Pipeline) transform(ctx context.Context, system, user string) (*ai.Response, error) {
	return p.transformer.Transform(ctx, ai.Request{
		System:      system,
		User:        user,
		JSON:        true,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
}

func (p *Pipeline) pause(ctx context.Context) error {
	delay := jitter(p.cfg.MinDelay, p.cfg.MaxDelay)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("inter-stage delay: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= 0 {
		return 0
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func placeholderMeta(d *domain.Draft) domain.ColumnistMeta {
	tags := []string(d.Tags)
	if len(tags) == 0 {
		tags = draft.FallbackTags(d.Category)
	}
	return domain.ColumnistMeta{Title: d.Title, MetaDescription: d.Summary, Tags: tags}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
