package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/icewatch/ticketwatch/internal/match"
)

// DryRunSender prints messages instead of sending them
type DryRunSender struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

// NewDryRunSender creates a sender that writes to out
func NewDryRunSender(out io.Writer) *DryRunSender {
	return &DryRunSender{out: out}
}

// Send prints the message that would be delivered to chatID
func (s *DryRunSender) Send(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.n++
	fmt.Fprintf(s.out, "--- Message %d → chat %d ---\n", s.n, chatID)
	fmt.Fprintln(s.out, text)
	fmt.Fprintln(s.out)
	return nil
}

// DryRunAnnouncer prints the tweets that would be posted
type DryRunAnnouncer struct {
	out io.Writer
}

// NewDryRunAnnouncer creates an announcer that writes to out
func NewDryRunAnnouncer(out io.Writer) *DryRunAnnouncer {
	return &DryRunAnnouncer{out: out}
}

func (a *DryRunAnnouncer) Name() string {
	return "dry-run"
}

// Announce prints one tweet per match
func (a *DryRunAnnouncer) Announce(ctx context.Context, added []*match.Match) error {
	for i, m := range added {
		tweet := formatTweet(m)
		fmt.Fprintf(a.out, "--- Tweet %d/%d ---\n", i+1, len(added))
		fmt.Fprintln(a.out, tweet)
		fmt.Fprintf(a.out, "\n(Length: %d characters)\n\n", utf8.RuneCountInString(tweet))
	}
	return nil
}
