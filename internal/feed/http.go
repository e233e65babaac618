package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	infraerrors "github.com/jonesrussell/finblog/infrastructure/errors"
	"github.com/jonesrussell/finblog/infrastructure/retry"
)

const (
	maxResponseBodyBytes  = 5 * 1024 * 1024
	defaultRequestTimeout = 15 * time.Second
	defaultUserAgent      = "finblog-fetcher/1.0"
	statusServerErrLow    = 500
)

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	// RequestsPerSecond is applied per host. Zero disables limiting.
	RequestsPerSecond float64
	Retry             retry.Config
}

// HTTPFetcher downloads source documents with per-host pacing and retries
// transient failures.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	rps       float64
	retry     retry.Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a fetcher. client may be nil.
func NewHTTPFetcher(client *http.Client, cfg HTTPConfig) *HTTPFetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = isRetryableFetch
	}

	return &HTTPFetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		rps:       cfg.RequestsPerSecond,
		retry:     cfg.Retry,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Fetch returns the body of rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, parseErr := url.Parse(rawURL)
	if parseErr != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid source url %q", rawURL)
	}

	if limiter := f.limiter(parsed.Host); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body []byte
	err := retry.Retry(ctx, f.retry, func() error {
		var fetchErr error
		body, fetchErr = f.fetchOnce(ctx, rawURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("build request: %w", reqErr)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html;q=0.9, */*;q=0.8")

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer resp.Body.Close()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, httpErr
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}

	return body, nil
}

func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	if f.rps <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.rps), 1)
		f.limiters[host] = l
	}
	return l
}

// isRetryableFetch retries network faults, 429 and 5xx.
func isRetryableFetch(err error) bool {
	var httpErr *infraerrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= statusServerErrLow
	}
	return retry.IsTransient(err)
}
