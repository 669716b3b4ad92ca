package notifier

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API

	"github.com/icewatch/ticketwatch/internal/match"
)

type fakeStatuses struct {
	tweets []string
	err    error
}

func (f *fakeStatuses) Update(status string, params *twitter.StatusUpdateParams) (*twitter.Tweet, *http.Response, error) {
	f.tweets = append(f.tweets, status)
	if f.err != nil {
		return nil, nil, f.err
	}
	return &twitter.Tweet{Text: status}, nil, nil
}

func TestFormatTweet(t *testing.T) {
	tests := []struct {
		name        string
		match       *match.Match
		contains    []string
		notContains []string
	}{
		{
			name:     "with link",
			match:    match.New("Команда А — Команда Б", "10 ноября, пятница, 19:30", "https://tickets.example.com/1"),
			contains: []string{"Команда А — Команда Б", "10 ноября, пятница, 19:30", "https://tickets.example.com/1", "#хоккей"},
		},
		{
			name:        "without link",
			match:       match.New("Команда В — Команда Г", "14 декабря", ""),
			contains:    []string{"Команда В — Команда Г", "14 декабря"},
			notContains: []string{"🎟"},
		},
		{
			name:  "long title",
			match: match.New(strings.Repeat("Очень длинное название ", 30), "1 октября", ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tweet := formatTweet(tt.match)
			if n := utf8.RuneCountInString(tweet); n > tweetLimit {
				t.Errorf("tweet has %d characters, limit %d", n, tweetLimit)
			}
			if !utf8.ValidString(tweet) {
				t.Error("tweet is not valid UTF-8 after truncation")
			}
			for _, want := range tt.contains {
				if !strings.Contains(tweet, want) {
					t.Errorf("tweet missing %q:\n%s", want, tweet)
				}
			}
			for _, bad := range tt.notContains {
				if strings.Contains(tweet, bad) {
					t.Errorf("tweet should not contain %q:\n%s", bad, tweet)
				}
			}
		})
	}
}

func TestTwitterAnnouncer(t *testing.T) {
	statuses := &fakeStatuses{}
	a := &TwitterAnnouncer{statuses: statuses, interval: 0}

	added := []*match.Match{
		match.New("A — B", "1 октября", ""),
		match.New("C — D", "2 октября", ""),
	}
	if err := a.Announce(context.Background(), added); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}
	if len(statuses.tweets) != 2 {
		t.Errorf("posted %d tweets, want 2", len(statuses.tweets))
	}
}

func TestTwitterAnnouncer_Error(t *testing.T) {
	statuses := &fakeStatuses{err: errors.New("duplicate status")}
	a := &TwitterAnnouncer{statuses: statuses}

	err := a.Announce(context.Background(), []*match.Match{match.New("A — B", "1 октября", ""), match.New("C — D", "2 октября", "")})
	if err == nil {
		t.Fatal("Announce() expected error")
	}
	if len(statuses.tweets) != 1 {
		t.Errorf("posted %d tweets after failure, want 1", len(statuses.tweets))
	}
}

func TestNewTwitterAnnouncer_MissingCredentials(t *testing.T) {
	if _, err := NewTwitterAnnouncer(TwitterCredentials{APIKey: "k"}); err == nil {
		t.Error("NewTwitterAnnouncer() should reject incomplete credentials")
	}
	if !(TwitterCredentials{"a", "b", "c", "d"}).Complete() {
		t.Error("Complete() = false for full credentials")
	}
}

func TestDryRun(t *testing.T) {
	var buf bytes.Buffer
	sender := NewDryRunSender(&buf)

	if err := sender.Send(context.Background(), 111, "hello"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "chat 111") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("dry-run output = %q", buf.String())
	}

	buf.Reset()
	if err := NewDryRunAnnouncer(&buf).Announce(context.Background(), []*match.Match{match.New("A — B", "1 октября", "")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Tweet 1/1") {
		t.Errorf("dry-run announcer output = %q", buf.String())
	}
}
