package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders the page in headless Chrome. It is the last resort
// when the site answers plain requests with an anti-bot stub.
type BrowserFetcher struct {
	url          string
	timeout      time.Duration
	userAgent    string
	waitSelector string
}

// NewBrowserFetcher creates a headless fetcher that waits for waitSelector
// (default "body") before capturing the markup.
func NewBrowserFetcher(url string, timeout time.Duration, userAgent, waitSelector string) *BrowserFetcher {
	if timeout <= 0 {
		timeout = Timeout
	}
	if userAgent == "" {
		userAgent = UserAgent
	}
	if waitSelector == "" {
		waitSelector = "body"
	}
	return &BrowserFetcher{
		url:          url,
		timeout:      timeout,
		userAgent:    userAgent,
		waitSelector: waitSelector,
	}
}

func (f *BrowserFetcher) Name() string {
	return "headless " + f.url
}

// Fetch navigates to the page and returns the rendered outer HTML
func (f *BrowserFetcher) Fetch(ctx context.Context) (*Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(f.userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, f.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(f.url),
		chromedp.WaitReady(f.waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &NetworkError{Source: f.Name(), Err: fmt.Errorf("rendering page: %w", err)}
	}

	return &Page{URL: f.url, Body: []byte(html), Source: f.Name()}, nil
}
