package bref

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// BrowserFetcher renders pages in headless Chrome. Used when the site
// rejects plain HTTP clients.
type BrowserFetcher struct {
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logrus.Entry

	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserFetcher starts a Chrome allocator. Close releases it.
func NewBrowserFetcher(opts HTTPOptions) *BrowserFetcher {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 20
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &BrowserFetcher{
		limiter:  rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1),
		timeout:  opts.Timeout,
		logger:   logger.WithField("component", "bref_browser"),
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Close releases the browser.
func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch navigates to url and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, b.timeout)
	defer cancelTimeout()

	// Tie the tab to the caller's context as well.
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chromedp error: %w", err)
	}
	if html == "" {
		return nil, fmt.Errorf("empty document for %s", url)
	}

	b.logger.WithField("url", url).Debug("Page rendered")
	return []byte(html), nil
}
