// Package feed reads candidate headlines from syndicated feeds and
// ranked-news pages.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"

	infraerrors "github.com/jonesrussell/finblog/infrastructure/errors"
	"github.com/jonesrussell/finblog/internal/domain"
)

// Fetcher downloads a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PollErrorKind classifies a source failure.
type PollErrorKind string

const (
	KindNetwork PollErrorKind = "network"
	KindHTTP    PollErrorKind = "http"
	KindParse   PollErrorKind = "parse"
	KindTimeout PollErrorKind = "timeout"
)

// PollError is a failed read of one source.
type PollError struct {
	SourceID   string
	Kind       PollErrorKind
	StatusCode int
	Err        error
}

func (e *PollError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source %s: %s error (%d): %v", e.SourceID, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("source %s: %s error: %v", e.SourceID, e.Kind, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Reader turns a configured source into feed items.
type Reader struct {
	fetcher Fetcher
}

// NewReader creates a reader.
func NewReader(fetcher Fetcher) *Reader {
	return &Reader{fetcher: fetcher}
}

// Read fetches and parses src. Failures are *PollError.
func (r *Reader) Read(ctx context.Context, src domain.Source) ([]domain.FeedItem, error) {
	body, fetchErr := r.fetcher.Fetch(ctx, src.URL)
	if fetchErr != nil {
		return nil, classifyFetchError(src.ID, fetchErr)
	}

	var (
		items    []domain.FeedItem
		parseErr error
	)
	switch src.Format {
	case domain.FormatHTML:
		items, parseErr = ParseRankedPage(body, src.URL, src.Selector)
	default:
		items, parseErr = ParseFeed(body)
	}
	if parseErr != nil {
		return nil, &PollError{SourceID: src.ID, Kind: KindParse, Err: parseErr}
	}

	if src.Limit > 0 && len(items) > src.Limit {
		items = items[:src.Limit]
	}
	return items, nil
}

func classifyFetchError(sourceID string, err error) *PollError {
	pe := &PollError{SourceID: sourceID, Kind: KindNetwork, Err: err}

	var httpErr *infraerrors.HTTPError
	var netErr net.Error
	switch {
	case errors.As(err, &httpErr):
		pe.Kind = KindHTTP
		pe.StatusCode = httpErr.StatusCode
	case errors.Is(err, context.DeadlineExceeded):
		pe.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		pe.Kind = KindTimeout
	}
	return pe
}
