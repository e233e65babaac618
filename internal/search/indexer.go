// Package search indexes published posts into Elasticsearch for site search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/finblog/internal/domain"
)

// DefaultIndex holds published posts of every site; queries filter by site.
const DefaultIndex = "finblog_posts"

const postMapping = `{
  "mappings": {
    "properties": {
      "site_id":      {"type": "keyword"},
      "slug":         {"type": "keyword"},
      "category":     {"type": "keyword"},
      "tags":         {"type": "keyword"},
      "title":        {"type": "text"},
      "summary":      {"type": "text"},
      "content":      {"type": "text"},
      "published_at": {"type": "date"}
    }
  }
}`

// Document is the indexed form of a post.
type Document struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
}

// Hit is one search result.
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// Indexer writes and queries the post index.
type Indexer struct {
	client *es.Client
	index  string
}

// NewIndexer creates an indexer. An empty index uses DefaultIndex.
func NewIndexer(client *es.Client, index string) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{client: client, index: index}
}

// EnsureIndex creates the index with its mapping when missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	created, err := i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(postMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer created.Body.Close()

	if created.IsError() {
		return fmt.Errorf("create index %s: %s", i.index, created.String())
	}
	return nil
}

// IndexPost upserts post by id.
func (i *Indexer) IndexPost(ctx context.Context, post *domain.PublishedPost) error {
	doc := Document{
		ID:          post.ID,
		SiteID:      post.SiteID,
		Title:       post.Title,
		Slug:        post.Slug,
		Summary:     post.Summary,
		Content:     post.Content,
		Category:    post.Category,
		Tags:        post.Tags,
		PublishedAt: post.PublishedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal post document: %w", err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(post.ID),
	)
	if err != nil {
		return fmt.Errorf("index post %s: %w", post.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index post %s: %s", post.ID, res.String())
	}
	return nil
}

// Search runs a full-text query restricted to siteID.
func (i *Indexer) Search(ctx context.Context, siteID, text string, limit int) ([]Hit, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	query := map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"site_id": siteID}},
				},
				"must": []any{
					map[string]any{"multi_match": map[string]any{
						"query":  text,
						"fields": []string{"title^3", "summary^2", "content", "tags"},
					}},
				},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search posts: %s", res.String())
	}

	var decoded struct {
		Hits struct {
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&decoded); decodeErr != nil {
		return nil, fmt.Errorf("decode search response: %w", decodeErr)
	}

	hits := make([]Hit, 0, len(decoded.Hits.Hits))
	for _, h := range decoded.Hits.Hits {
		// The index is shared; never trust the query alone for isolation.
		if h.Source.SiteID != siteID {
			continue
		}
		hits = append(hits, Hit{Document: h.Source, Score: h.Score})
	}
	return hits, nil
}
