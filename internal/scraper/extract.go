package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/icewatch/ticketwatch/internal/match"
)

// ErrNoMatches marks an extraction that found nothing on a page that does
// not say it is empty. Usually a layout change or an anti-bot stub.
var ErrNoMatches = errors.New("no matches extracted and page is not marked empty")

// Selectors locate the match fragments on the ticket page
type Selectors struct {
	Item        string `yaml:"item"`
	Day         string `yaml:"day"`
	Month       string `yaml:"month"`
	Time        string `yaml:"time"`
	Title       string `yaml:"title"`
	Ticket      string `yaml:"ticket"`
	TicketAttr  string `yaml:"ticket_attr"`
	EmptyMarker string `yaml:"empty_marker"` // present only when the club has nothing on sale
}

// DefaultSelectors returns the selectors of the club's current page layout
func DefaultSelectors() Selectors {
	return Selectors{
		Item:        "a.match-item",
		Day:         ".match-day",
		Month:       ".match-month",
		Time:        ".match-times",
		Title:       ".match-title",
		Ticket:      ".btn.tickets-w_t",
		TicketAttr:  "data-w_t",
		EmptyMarker: ".matches-empty",
	}
}

// withDefaults fills empty selectors from DefaultSelectors
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Item == "" {
		s.Item = d.Item
	}
	if s.Day == "" {
		s.Day = d.Day
	}
	if s.Month == "" {
		s.Month = d.Month
	}
	if s.Time == "" {
		s.Time = d.Time
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Ticket == "" {
		s.Ticket = d.Ticket
	}
	if s.TicketAttr == "" {
		s.TicketAttr = d.TicketAttr
	}
	if s.EmptyMarker == "" {
		s.EmptyMarker = d.EmptyMarker
	}
	return s
}

// Result is the outcome of parsing one page
type Result struct {
	Matches        []*match.Match
	Found          int  // item nodes matched by the item selector
	Skipped        int  // items missing a required fragment
	ConfirmedEmpty bool // no matches and the page says so explicitly
	Source         string
}

// Extractor parses ticket page markup into match records
type Extractor struct {
	selectors  Selectors
	normalizer *match.Normalizer
}

// NewExtractor creates an extractor. A nil normalizer uses match defaults.
func NewExtractor(selectors Selectors, normalizer *match.Normalizer) *Extractor {
	if normalizer == nil {
		normalizer = match.NewNormalizer()
	}
	return &Extractor{
		selectors:  selectors.withDefaults(),
		normalizer: normalizer,
	}
}

// ExtractPage parses a fetched page
func (e *Extractor) ExtractPage(page *Page) (*Result, error) {
	result, err := e.Extract(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return nil, err
	}
	result.Source = page.Source
	return result, nil
}

// Extract parses markup from r. Ticket links are resolved against pageURL.
func (e *Extractor) Extract(r io.Reader, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, _ := url.Parse(pageURL)
	sel := e.selectors
	result := &Result{}
	matches := make([]*match.Match, 0)

	doc.Find(sel.Item).Each(func(i int, item *goquery.Selection) {
		result.Found++

		day := text(item.Find(sel.Day))
		month := text(item.Find(sel.Month))
		clock := text(item.Find(sel.Time))
		title := text(item.Find(sel.Title))

		if title == "" || day == "" || month == "" {
			result.Skipped++
			return
		}

		date := e.normalizer.Normalize(day, month, clock)

		m := match.New(title, date.Display, ticketURL(item.Find(sel.Ticket).First(), sel.TicketAttr, base))
		m.RawDay = day
		m.RawMonth = month
		m.RawTime = clock
		m.Weekday = date.Weekday
		m.Time = date.Time
		m.StartsAt = date.StartsAt

		matches = append(matches, m)
	})

	result.Matches = match.Dedupe(matches)
	result.ConfirmedEmpty = len(result.Matches) == 0 && doc.Find(sel.EmptyMarker).Length() > 0

	return result, nil
}

// Ambiguous reports whether the result is empty without the page confirming it
func (r *Result) Ambiguous() bool {
	return len(r.Matches) == 0 && !r.ConfirmedEmpty
}

// text returns the trimmed text of the first node with inner whitespace collapsed
func text(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

// ticketURL reads the purchase link from attr, falling back to href
func ticketURL(s *goquery.Selection, attr string, base *url.URL) string {
	if s.Length() == 0 {
		return ""
	}
	raw, ok := s.Attr(attr)
	if !ok || strings.TrimSpace(raw) == "" {
		raw, ok = s.Attr("href")
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || raw == "#" || strings.HasPrefix(raw, "javascript:") {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil && !ref.IsAbs() {
		ref = base.ResolveReference(ref)
	}
	return ref.String()
}
