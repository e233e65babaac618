package trend_test

import (
	"testing"

	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/trend"
)

func items(titles ...string) []domain.CandidateItem {
	out := make([]domain.CandidateItem, len(titles))
	for i, title := range titles {
		out[i] = domain.CandidateItem{ID: string(rune('A' + i)), Title: title}
	}
	return out
}

func ids(items []domain.CandidateItem) string {
	s := ""
	for _, it := range items {
		s += it.ID
	}
	return s
}

func TestRank(t *testing.T) {
	t.Parallel()

	k1k2 := []domain.TrendKeyword{{Keyword: "k1", Rank: 1}, {Keyword: "k2", Rank: 2}}

	tests := []struct {
		name     string
		titles   []string
		keywords []domain.TrendKeyword
		want     string
	}{
		{
			name:     "no matches keeps input order",
			titles:   []string{"alpha", "beta", "gamma"},
			keywords: k1k2,
			want:     "ABC",
		},
		{
			name:     "single match moves to front",
			titles:   []string{"alpha", "beta k1", "gamma"},
			keywords: k1k2,
			want:     "BAC",
		},
		{
			name:   "empty keyword set is a no-op",
			titles: []string{"k1", "k2", "k3"},
			want:   "ABC",
		},
		{
			name:     "higher ranked keyword scores more",
			titles:   []string{"about k2", "about k1"},
			keywords: k1k2,
			want:     "BA",
		},
		{
			name:     "scores accumulate across keywords",
			titles:   []string{"k1 only", "k2 and k1", "k2 only"},
			keywords: k1k2,
			want:     "BAC",
		},
		{
			name:     "ties keep input order",
			titles:   []string{"plain", "first k1", "second k1", "third"},
			keywords: k1k2,
			want:     "BCAD",
		},
		{
			name:     "case insensitive on word boundaries",
			titles:   []string{"Corporate bonds", "Rate cut: what's next"},
			keywords: []domain.TrendKeyword{{Keyword: "Rate", Rank: 1}},
			want:     "BA",
		},
		{
			name:     "multi-word keyword",
			titles:   []string{"housing", "Bank of Canada surprises"},
			keywords: []domain.TrendKeyword{{Keyword: "bank of canada", Rank: 1}},
			want:     "BA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ids(trend.Rank(items(tt.titles...), tt.keywords)); got != tt.want {
				t.Errorf("Rank() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := items("alpha", "beta k1")
	_ = trend.Rank(in, []domain.TrendKeyword{{Keyword: "k1", Rank: 1}})
	if ids(in) != "AB" {
		t.Errorf("input reordered to %s", ids(in))
	}
}

func TestMatcher_Score(t *testing.T) {
	t.Parallel()

	m := trend.NewMatcher([]domain.TrendKeyword{
		{Keyword: "mortgage", Rank: 1},
		{Keyword: "tfsa", Rank: 3},
		{Keyword: "MORTGAGE", Rank: 2},
		{Keyword: "ignored", Rank: 0},
	})

	// N = 3: mortgage keeps rank 1 (weight 3), tfsa weight 1.
	if got := m.Score("Mortgage rates and your TFSA, mortgage edition"); got != 4 {
		t.Errorf("Score() = %d, want 4", got)
	}
	if got := m.Score("ignored"); got != 0 {
		t.Errorf("Score(ignored) = %d, want 0", got)
	}
}

func TestMatcher_ScoreAttachedParticles(t *testing.T) {
	t.Parallel()

	m := trend.NewMatcher([]domain.TrendKeyword{
		{Keyword: "금리", Rank: 1},
		{Keyword: "rate", Rank: 2},
	})

	tests := []struct {
		text string
		want int
	}{
		{text: "금리가 오른다", want: 2},
		{text: "기준금리 동결", want: 2},
		{text: "환율 급등", want: 0},
		{text: "first-rate advice", want: 1},
		{text: "separate accounts", want: 0},
	}
	for _, tc := range tests {
		if got := m.Score(tc.text); got != tc.want {
			t.Errorf("Score(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
