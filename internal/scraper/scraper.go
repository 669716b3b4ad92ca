package scraper

import (
	"context"
	"fmt"
)

// Scraper fetches the ticket page and extracts its matches
type Scraper struct {
	fetcher   Fetcher
	extractor *Extractor
}

// New creates a Scraper
func New(fetcher Fetcher, extractor *Extractor) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
	}
}

// Fetch retrieves the raw page through the configured strategies
func (s *Scraper) Fetch(ctx context.Context) (*Page, error) {
	return s.fetcher.Fetch(ctx)
}

// Extract parses a page fetched earlier
func (s *Scraper) Extract(page *Page) (*Result, error) {
	return s.extractor.ExtractPage(page)
}

// Scrape fetches and parses the ticket page in one step
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	page, err := s.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching matches: %w", err)
	}
	return s.Extract(page)
}
