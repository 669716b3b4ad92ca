package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/icewatch/ticketwatch/internal/match"
)

const (
	tweetLimit    = 280
	tweetInterval = 2 * time.Second
)

// TwitterCredentials are the OAuth1 user-context keys of the posting account
type TwitterCredentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Complete reports whether all four keys are set
func (c TwitterCredentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// statusUpdater is the part of twitter.StatusService the announcer uses
type statusUpdater interface {
	Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, *http.Response, error)
}

// TwitterAnnouncer tweets newly listed matches
type TwitterAnnouncer struct {
	statuses statusUpdater
	interval time.Duration
}

// NewTwitterAnnouncer creates an announcer for the given account
func NewTwitterAnnouncer(creds TwitterCredentials) (*TwitterAnnouncer, error) {
	if !creds.Complete() {
		return nil, fmt.Errorf("missing required Twitter credentials")
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := config.Client(oauth1.NoContext, token)
	client := twitter.NewClient(httpClient)

	return &TwitterAnnouncer{statuses: client.Statuses, interval: tweetInterval}, nil
}

func (a *TwitterAnnouncer) Name() string {
	return "twitter"
}

// Announce posts one tweet per match, pausing between tweets
func (a *TwitterAnnouncer) Announce(ctx context.Context, added []*match.Match) error {
	for i, m := range added {
		if _, _, err := a.statuses.Update(formatTweet(m), nil); err != nil {
			return fmt.Errorf("posting tweet for %q: %w", m.Title, err)
		}

		if i < len(added)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.interval):
			}
		}
	}
	return nil
}

// formatTweet formats a match as a tweet of at most 280 characters
func formatTweet(m *match.Match) string {
	var b strings.Builder
	b.WriteString("🏒 Открыта продажа билетов!\n\n")
	b.WriteString(fmt.Sprintf("%s\n", m.Title))
	b.WriteString(fmt.Sprintf("📅 %s\n", m.DateDisplay))
	if m.HasTicketLink() {
		b.WriteString(fmt.Sprintf("\n🎟 %s\n", m.PurchaseURL))
	}
	b.WriteString("\n#хоккей #билеты")

	tweet := b.String()
	if utf8.RuneCountInString(tweet) > tweetLimit {
		r := []rune(tweet)
		tweet = string(r[:tweetLimit-1]) + "…"
	}
	return tweet
}
