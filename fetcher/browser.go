package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"shopscout/utils"
)

// BrowserFetcher renders pages in headless Chrome. It is used for
// marketplaces whose result grids are built client-side. One browser process
// is started lazily and shared; each Fetch runs in its own tab.
type BrowserFetcher struct {
	chromeBin  string
	settleTime time.Duration
	limiter    *utils.RateLimiter
	retry      *utils.RetryConfig
	logger     *utils.Logger

	once        sync.Once
	startErr    error
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewBrowserFetcher creates a BrowserFetcher. chromeBin may be empty, in which
// case a locally installed Chrome or Chromium is looked up.
func NewBrowserFetcher(chromeBin string, rateLimitMs, maxRetries int, logger *utils.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		chromeBin:  chromeBin,
		settleTime: 3 * time.Second,
		limiter:    utils.NewRateLimiter(rateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries + 1,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

func (b *BrowserFetcher) start() {
	chromeBin := b.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	b.logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(defaultUserAgents[0]),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	b.browserCtx = browserCtx
	b.cancelAlloc = cancelAlloc
	b.cancelTab = cancelTab

	// Start the browser now so every tab shares this process.
	if err := chromedp.Run(browserCtx); err != nil {
		b.startErr = fmt.Errorf("start browser: %w", err)
	}
}

// Fetch implements PageFetcher. The page is scrolled once to trigger lazy
// loading before the outer HTML is captured.
func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	b.once.Do(b.start)
	if b.startErr != nil {
		return "", b.startErr
	}

	var html string
	err := b.retry.Do(ctx, "render "+pageURL, func() error {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w: %w", err, utils.ErrPermanent)
		}

		tabCtx, cancel := chromedp.NewContext(b.browserCtx)
		defer cancel()

		// Tie the tab to the caller's deadline as well as the browser's lifetime.
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		return chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(b.settleTime),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(b.settleTime/2),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return "", fmt.Errorf("chromedp render: %w", err)
	}

	b.logger.Debug("[browser] Rendered %s → %d bytes", pageURL, len(html))
	return html, nil
}

// Close shuts the browser down. Safe to call when no page was ever fetched.
func (b *BrowserFetcher) Close() {
	b.once.Do(func() {})
	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
