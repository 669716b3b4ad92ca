package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	UserAgent       = "ticketwatch/1.0 (+https://github.com/icewatch/ticketwatch)"
	Timeout         = 30 * time.Second
	DefaultAttempts = 3
	DefaultBackoff  = 5 * time.Second
)

// maxBodySize caps the page size. Larger bodies fail the fetch instead of
// being truncated.
var maxBodySize int64 = 10 << 20

// Page is a fetched ticket page
type Page struct {
	URL    string
	Body   []byte
	Source string // name of the strategy that produced the page
}

// Fetcher retrieves the raw ticket page markup
type Fetcher interface {
	Fetch(ctx context.Context) (*Page, error)
	Name() string
}

// NetworkError reports a failed fetch: connection failure, timeout or a
// non-2xx status.
type NetworkError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status code: %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches a page with a plain GET request
type HTTPFetcher struct {
	client    *http.Client
	url       string
	userAgent string
}

// NewHTTPFetcher creates a fetcher for url. Zero timeout and empty user agent
// fall back to the package defaults.
func NewHTTPFetcher(url string, timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = Timeout
	}
	if userAgent == "" {
		userAgent = UserAgent
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Name() string {
	return "http " + f.url
}

// Fetch downloads the page body
func (f *HTTPFetcher) Fetch(ctx context.Context) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Source: f.Name(), Err: fmt.Errorf("fetching page: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Source: f.Name(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &NetworkError{Source: f.Name(), Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(body)) > maxBodySize {
		return nil, &NetworkError{Source: f.Name(), Err: fmt.Errorf("page exceeds %d bytes", maxBodySize)}
	}

	return &Page{URL: f.url, Body: body, Source: f.Name()}, nil
}

// Chain tries each strategy in order until one succeeds
type Chain []Fetcher

func (c Chain) Name() string {
	return fmt.Sprintf("chain(%d)", len(c))
}

// Fetch returns the first successful page, or a NetworkError joining every
// strategy's failure.
func (c Chain) Fetch(ctx context.Context) (*Page, error) {
	if len(c) == 0 {
		return nil, &NetworkError{Source: c.Name(), Err: errors.New("no fetch strategies configured")}
	}

	var errs []error
	for _, f := range c {
		page, err := f.Fetch(ctx)
		if err == nil {
			return page, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &NetworkError{Source: c.Name(), Err: errors.Join(errs...)}
}

// Retrying retries a fetcher with a constant backoff
type Retrying struct {
	next     Fetcher
	attempts int
	delay    time.Duration

	// OnRetry is called before each wait; optional.
	OnRetry func(err error, wait time.Duration)
}

// NewRetrying wraps next with up to attempts tries, delay apart
func NewRetrying(next Fetcher, attempts int, delay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay < 0 {
		delay = DefaultBackoff
	}
	return &Retrying{next: next, attempts: attempts, delay: delay}
}

func (r *Retrying) Name() string {
	return r.next.Name()
}

// Fetch runs the wrapped fetcher until it succeeds, attempts are exhausted or
// ctx is cancelled.
func (r *Retrying) Fetch(ctx context.Context) (*Page, error) {
	var page *Page
	op := func() error {
		p, err := r.next.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		page = p
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), uint64(r.attempts-1)),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		if r.OnRetry != nil {
			r.OnRetry(err, wait)
		}
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", r.attempts, err)
	}
	return page, nil
}
