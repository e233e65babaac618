// Package draft turns candidate news items into RAW drafts.
package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/domain"
)

// Strategy names.
const (
	StrategyTemplate = "template"
	StrategyAI       = "ai"
)

// Strategy produces an unsaved RAW draft for a candidate.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, candidate *domain.CandidateItem) (*domain.Draft, error)
}

// NewRawDraft fills the fields every strategy sets the same way.
func NewRawDraft(candidate *domain.CandidateItem, fields Fields, content string) *domain.Draft {
	title := fields.Title
	if title == "" {
		title = strings.TrimSpace(candidate.Title)
	}
	summary := fields.Summary
	if summary == "" {
		summary = FallbackSummary(title, candidate.Category)
	}
	tags := fields.Tags
	if len(tags) == 0 {
		tags = FallbackTags(candidate.Category)
	}

	return &domain.Draft{
		NewsItemID: candidate.ID,
		Title:      title,
		Slug:       Slugify(title),
		Summary:    summary,
		Content:    content,
		Category:   candidate.Category,
		Tags:       tags,
		Status:     domain.StatusPending,
		Stage:      domain.StageRaw,
	}
}

// TemplateStrategy composes a fixed-section document without any external
// call. It never fails.
type TemplateStrategy struct{}

// Name implements Strategy.
func (TemplateStrategy) Name() string { return StrategyTemplate }

// Generate implements Strategy.
func (TemplateStrategy) Generate(_ context.Context, candidate *domain.CandidateItem) (*domain.Draft, error) {
	title := strings.TrimSpace(candidate.Title)
	category := categoryLabel(candidate.Category)
	summary := FallbackSummary(title, candidate.Category)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "## One-line summary\n\n%s\n\n", summary)
	fmt.Fprintf(&b, "## Background\n\nThis %s story was reported at %s.\n\n", category, candidate.Link)
	b.WriteString("## What it means for you\n\nHow this affects household budgets, savings and borrowing.\n\n")
	b.WriteString("## Worked example\n\nA step-by-step example using the figures from the report.\n\n")
	b.WriteString("## Action steps\n\n1. Review how the change applies to your situation.\n2. Compare your options before acting.\n\n")
	b.WriteString("## FAQ\n\n**Does this apply to me?** It depends on your circumstances.\n\n")
	b.WriteString("## Disclaimer\n\nThis article is general information, not financial advice.\n\n")
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(FallbackTags(candidate.Category), ", "))

	return NewRawDraft(candidate, Fields{Title: title, Summary: summary}, b.String()), nil
}

const generationSystemPrompt = `You write plain-language explainers of financial news for a general audience.
Write in markdown. Start with a single "# " heading as the title.
Include a "## One-line summary" section containing exactly one sentence.
End with a line "Tags: tag1, tag2, tag3".
Use only facts present in the headline and source. Do not give personalised advice.`

// AIStrategy asks a transformer for free-form markdown and extracts the
// title, summary and tags from it.
type AIStrategy struct {
	transformer ai.Transformer
	maxTokens   int
}

// NewAIStrategy creates the AI strategy.
func NewAIStrategy(transformer ai.Transformer, maxTokens int) *AIStrategy {
	return &AIStrategy{transformer: transformer, maxTokens: maxTokens}
}

// Name implements Strategy.
func (s *AIStrategy) Name() string { return StrategyAI }

// Generate implements Strategy. Only the transform call itself can fail;
// missing fields fall back to values derived from the candidate.
func (s *AIStrategy) Generate(ctx context.Context, candidate *domain.CandidateItem) (*domain.Draft, error) {
	user := fmt.Sprintf("Category: %s\nHeadline: %s\nSource: %s\n", categoryLabel(candidate.Category), candidate.Title, candidate.Link)

	resp, err := s.transformer.Transform(ctx, ai.Request{
		System:    generationSystemPrompt,
		User:      user,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate draft for %s: %w", candidate.ID, err)
	}

	content := strings.TrimSpace(resp.Text)
	if content == "" {
		return nil, ai.NewParseError(s.transformer.Provider(), "empty generation response", nil)
	}

	return NewRawDraft(candidate, ExtractFields(content), content), nil
}
