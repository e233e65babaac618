// Package domain contains the core models of the content pipeline.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SourceKind orders sources within a category fetch.
type SourceKind string

const (
	// SourceAuthoritative items are taken first and always flagged trending.
	SourceAuthoritative SourceKind = "authoritative"
	// SourceRanked items come from a ranked-news page and are flagged trending.
	SourceRanked SourceKind = "ranked"
	// SourceOrdinary items are merged and ordered by trend score.
	SourceOrdinary SourceKind = "ordinary"
)

// SourceFormat selects the feed reader.
type SourceFormat string

const (
	FormatRSS  SourceFormat = "rss"
	FormatHTML SourceFormat = "html"
)

// Source is a configured news endpoint.
type Source struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Category string       `yaml:"category"`
	URL      string       `yaml:"url"`
	Kind     SourceKind   `yaml:"kind"`
	Format   SourceFormat `yaml:"format"`
	// Selector is the CSS selector for headline anchors on HTML sources.
	Selector string `yaml:"selector"`
	Limit    int    `yaml:"limit"`
	Enabled  *bool  `yaml:"enabled"`
}

// IsEnabled treats an unset flag as enabled.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// FeedItem is one entry returned by a source.
type FeedItem struct {
	Title       string
	Link        string
	PublishedAt *time.Time
}

// CandidateItem is a collected news item not yet turned into a draft.
type CandidateItem struct {
	ID             string     `db:"id"              json:"id"`
	Title          string     `db:"title"           json:"title"`
	Link           string     `db:"link"            json:"link"`
	Category       string     `db:"category"        json:"category"`
	PublishedAt    *time.Time `db:"published_at"    json:"published_at,omitempty"`
	SourceID       *string    `db:"source_id"       json:"source_id,omitempty"`
	ContentHash    string     `db:"content_hash"    json:"content_hash"`
	IsTrending     bool       `db:"is_trending"     json:"is_trending"`
	DraftGenerated bool       `db:"draft_generated" json:"draft_generated"`
	Excluded       bool       `db:"excluded"        json:"excluded"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
}

// TrendKeyword is a popularity signal; rank 1 is the most popular.
type TrendKeyword struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Rank    int    `json:"rank"    yaml:"rank"`
}

// Site is a tenant.
type Site struct {
	ID          string  `db:"id"           json:"id"`
	Domain      string  `db:"domain"       json:"domain"`
	Name        string  `db:"name"         json:"name"`
	ThemeConfig JSONMap `db:"theme_config" json:"theme_config"`
	IsMain      bool    `db:"is_main"      json:"is_main"`
}

// PublishedPost is approved content scoped to one site.
type PublishedPost struct {
	ID           string     `db:"id"            json:"id"`
	SiteID       string     `db:"site_id"       json:"site_id"`
	DraftID      *string    `db:"draft_id"      json:"draft_id,omitempty"`
	Title        string     `db:"title"         json:"title"`
	Slug         string     `db:"slug"          json:"slug"`
	Summary      string     `db:"summary"       json:"summary"`
	Content      string     `db:"content"       json:"content"`
	Category     string     `db:"category"      json:"category"`
	Tags         StringList `db:"tags"          json:"tags"`
	ThumbnailURL *string    `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	AuthorID     *string    `db:"author_id"     json:"author_id,omitempty"`
	PublishedAt  time.Time  `db:"published_at"  json:"published_at"`
}

// ContentHash is the dedup key of a (title, link) pair. Both parts are
// trimmed; the NUL separator keeps ("ab","c") distinct from ("a","bc").
func ContentHash(title, link string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(title)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(link)))
	return hex.EncodeToString(h.Sum(nil))
}
