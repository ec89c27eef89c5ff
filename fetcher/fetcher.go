package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"shopscout/utils"
)

// maxPageBytes caps how much of a response body is read.
const maxPageBytes = 8 << 20

// PageFetcher returns the HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// HTTPFetcher fetches static pages over plain HTTP. Requests share one rate
// limiter and are retried with back-off on network errors and 5xx/429.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *utils.RateLimiter
	retry      *utils.RetryConfig
	logger     *utils.Logger
	userAgents []string
	next       atomic.Uint32
}

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	Client      *http.Client
	RateLimitMs int
	MaxRetries  int
	BaseDelay   time.Duration
	UserAgents  []string
}

// NewHTTPFetcher creates an HTTPFetcher. Zero options fall back to a 20s
// client timeout, one attempt and the built-in user-agent pool.
func NewHTTPFetcher(opts HTTPOptions, logger *utils.Logger) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &HTTPFetcher{
		client:  client,
		limiter: utils.NewRateLimiter(opts.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries + 1,
			BaseDelay:   baseDelay,
			Logger:      logger,
		},
		logger:     logger,
		userAgents: agents,
	}
}

// Fetch implements PageFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := f.retry.Do(ctx, "fetch "+pageURL, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		var err error
		body, err = f.get(ctx, pageURL)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w: %w", err, utils.ErrPermanent)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ctx.Err(), utils.ErrPermanent)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status code %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", err, utils.ErrPermanent)
		}
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	f.logger.Debug("[fetcher] GET %s → %d bytes", pageURL, len(data))
	return string(data), nil
}

func (f *HTTPFetcher) userAgent() string {
	n := f.next.Add(1)
	return f.userAgents[int(n-1)%len(f.userAgents)]
}
