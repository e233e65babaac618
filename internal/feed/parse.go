package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/finblog/internal/domain"
)

// ParseFeed reads an RSS or Atom document in document order.
func ParseFeed(body []byte) ([]domain.FeedItem, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		title := strings.TrimSpace(it.Title)
		link := extractLink(it)
		if title == "" || link == "" {
			continue
		}

		item := domain.FeedItem{Title: title, Link: link}
		switch {
		case it.PublishedParsed != nil:
			item.PublishedAt = toUTC(it.PublishedParsed)
		case it.UpdatedParsed != nil:
			item.PublishedAt = toUTC(it.UpdatedParsed)
		}
		items = append(items, item)
	}

	return items, nil
}

// extractLink prefers the item link and falls back to a URL-shaped GUID.
func extractLink(it *gofeed.Item) string {
	candidates := append([]string{it.Link}, it.Links...)
	candidates = append(candidates, it.GUID)
	for _, c := range candidates {
		if c = strings.TrimSpace(c); isHTTPURL(c) {
			return c
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ParseRankedPage extracts headline anchors matching selector from an HTML
// page, in page order. Relative links are resolved against pageURL and
// repeated links are kept once.
func ParseRankedPage(body []byte, pageURL, selector string) ([]domain.FeedItem, error) {
	if selector == "" {
		selector = "a"
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, baseErr := url.Parse(pageURL)
	if baseErr != nil {
		return nil, fmt.Errorf("parse page url: %w", baseErr)
	}

	seen := make(map[string]bool)
	var items []domain.FeedItem
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		anchor := s
		if goquery.NodeName(s) != "a" {
			anchor = s.Find("a[href]").First()
		}

		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		title := strings.Join(strings.Fields(anchor.Text()), " ")
		if title == "" {
			title = strings.Join(strings.Fields(s.Text()), " ")
		}

		ref, refErr := url.Parse(strings.TrimSpace(href))
		if refErr != nil || title == "" {
			return
		}
		link := base.ResolveReference(ref)
		if link.Scheme != "http" && link.Scheme != "https" {
			return
		}
		link.Fragment = ""
		if seen[link.String()] {
			return
		}
		seen[link.String()] = true

		items = append(items, domain.FeedItem{Title: title, Link: link.String()})
	})

	return items, nil
}

func toUTC(t *time.Time) *time.Time {
	u := t.UTC()
	return &u
}
