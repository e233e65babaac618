// Package trend orders candidate items by trending-keyword relevance.
package trend

import (
	"slices"
	"strings"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/finblog/internal/domain"
)

// Matcher scores titles against a fixed keyword set. Safe for concurrent use.
type Matcher struct {
	matcher *ahocorasick.Matcher
	weights []int
	words   []string
}

// NewMatcher builds the automaton. Keywords are matched case-insensitively
// on word boundaries, except keywords in scripts that attach particles or
// omit spaces (Hangul, Han, kana), which match anywhere in the text. A keyword listed more than once keeps its best rank,
// and non-positive ranks are ignored. Each keyword weighs N+1-rank where N is
// the largest rank tracked.
func NewMatcher(keywords []domain.TrendKeyword) *Matcher {
	best := make(map[string]int, len(keywords))
	order := make([]string, 0, len(keywords))
	maxRank := 0

	for _, kw := range keywords {
		word := normalize(kw.Keyword)
		if word == "" || kw.Rank <= 0 {
			continue
		}
		if r, ok := best[word]; !ok || kw.Rank < r {
			if !ok {
				order = append(order, word)
			}
			best[word] = kw.Rank
		}
		maxRank = max(maxRank, kw.Rank)
	}

	m := &Matcher{}
	if len(order) == 0 {
		return m
	}

	patterns := make([]string, len(order))
	m.weights = make([]int, len(order))
	for i, word := range order {
		patterns[i] = " " + word + " "
		if unbounded(word) {
			patterns[i] = word
		}
		m.weights[i] = maxRank + 1 - best[word]
	}
	m.words = order
	m.matcher = ahocorasick.NewStringMatcher(patterns)
	return m
}

// Score sums the weights of every distinct keyword found in text.
func (m *Matcher) Score(text string) int {
	if m.matcher == nil {
		return 0
	}

	score := 0
	for _, idx := range m.matcher.MatchThreadSafe([]byte(" " + normalize(text) + " ")) {
		score += m.weights[idx]
	}
	return score
}

// Empty reports whether no keyword is tracked.
func (m *Matcher) Empty() bool {
	return m.matcher == nil
}

// Rank returns items ordered by descending score. The sort is stable, so
// equal scores and unmatched items keep their input order. An empty keyword
// set returns the input order unchanged. The input slice is not modified.
func Rank(items []domain.CandidateItem, keywords []domain.TrendKeyword) []domain.CandidateItem {
	out := slices.Clone(items)

	m := NewMatcher(keywords)
	if m.Empty() {
		return out
	}

	scores := make(map[int]int, len(out))
	idx := make([]int, len(out))
	for i := range out {
		idx[i] = i
		scores[i] = m.Score(out[i].Title)
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		return scores[b] - scores[a]
	})

	ranked := make([]domain.CandidateItem, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

func unbounded(word string) bool {
	for _, r := range word {
		if unicode.In(r, unicode.Hangul, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

// normalize lowercases and collapses every non-alphanumeric run to a
// single space.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
