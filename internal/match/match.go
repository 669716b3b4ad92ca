package match

import (
	"crypto/sha1"
	"fmt"
	"time"
)

// Match represents one ticket-sale listing scraped from the club page
type Match struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	DateDisplay string    `json:"date_display"`
	RawDay      string    `json:"raw_day,omitempty"`
	RawMonth    string    `json:"raw_month,omitempty"`
	RawTime     string    `json:"raw_time,omitempty"`
	Weekday     string    `json:"weekday,omitempty"`
	Time        string    `json:"time,omitempty"`
	StartsAt    time.Time `json:"starts_at,omitempty"` // zero when the date could not be resolved
	PurchaseURL string    `json:"purchase_url,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
}

// GenerateKey creates the composite identity key for a match.
// Two records denote the same match iff title and display date are equal.
func GenerateKey(title, dateDisplay string) string {
	h := sha1.New()
	h.Write([]byte(title + "|" + dateDisplay))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// New creates a Match with Key and FirstSeen populated
func New(title, dateDisplay, purchaseURL string) *Match {
	return &Match{
		Key:         GenerateKey(title, dateDisplay),
		Title:       title,
		DateDisplay: dateDisplay,
		PurchaseURL: purchaseURL,
		FirstSeen:   time.Now().UTC(),
	}
}

// IdentityKey returns the stored key, recomputing it for records built by hand
func (m *Match) IdentityKey() string {
	if m.Key != "" {
		return m.Key
	}
	return GenerateKey(m.Title, m.DateDisplay)
}

// HasTicketLink reports whether the listing carries a purchase link
func (m *Match) HasTicketLink() bool {
	return m.PurchaseURL != ""
}

// Dedupe drops records whose identity key was already seen.
// The first occurrence wins and order is preserved.
func Dedupe(matches []*Match) []*Match {
	seen := make(map[string]bool, len(matches))
	unique := make([]*Match, 0, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		key := m.IdentityKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, m)
	}
	return unique
}
