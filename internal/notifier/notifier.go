package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/subscribers"
	"github.com/icewatch/ticketwatch/internal/telegram"
)

// DefaultSendInterval spaces consecutive sends to stay under the Bot API limits
const DefaultSendInterval = 100 * time.Millisecond

// Sender delivers one message to one chat
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Announcer publishes newly listed matches to a broadcast channel
type Announcer interface {
	Name() string
	Announce(ctx context.Context, added []*match.Match) error
}

// Report summarises one dispatch
type Report struct {
	Messages     int `json:"messages"`
	Subscribers  int `json:"subscribers"`
	Delivered    int `json:"delivered"`
	Failed       int `json:"failed"`
	Deregistered int `json:"deregistered"`
}

// Notifier fans change messages out to all subscribers
type Notifier struct {
	sender     Sender
	registry   subscribers.Registry
	limiter    *rate.Limiter
	announcers []Announcer
}

// New creates a Notifier sending at most one message per interval.
// A non-positive interval disables pacing.
func New(sender Sender, registry subscribers.Registry, interval time.Duration, announcers ...Announcer) *Notifier {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Notifier{
		sender:     sender,
		registry:   registry,
		limiter:    rate.NewLimiter(limit, 1),
		announcers: announcers,
	}
}

// Messages builds the notification texts for a set of changes: one per added
// match, then one per removed match, each in page order.
func Messages(changes *match.Changes) []string {
	if changes == nil {
		return nil
	}
	msgs := make([]string, 0, len(changes.Added)+len(changes.Removed))
	for _, m := range changes.Added {
		msgs = append(msgs, telegram.FormatAdded(m))
	}
	for _, m := range changes.Removed {
		msgs = append(msgs, telegram.FormatRemoved(m))
	}
	return msgs
}

// Dispatch sends every change message to every subscriber. Individual send
// failures are logged and counted, never returned; the error is non-nil only
// when the subscriber list cannot be read or ctx is cancelled mid-dispatch.
func (n *Notifier) Dispatch(ctx context.Context, changes *match.Changes) (*Report, error) {
	report := &Report{}
	msgs := Messages(changes)
	report.Messages = len(msgs)
	if len(msgs) == 0 {
		return report, nil
	}

	subs, err := n.registry.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing subscribers: %w", err)
	}
	report.Subscribers = len(subs)

	gone := make(map[int64]bool)
	for _, text := range msgs {
		for _, sub := range subs {
			if gone[sub.ChatID] {
				continue
			}
			if err := n.limiter.Wait(ctx); err != nil {
				return report, fmt.Errorf("dispatch interrupted: %w", err)
			}

			err := n.sender.Send(ctx, sub.ChatID, text)
			switch {
			case err == nil:
				report.Delivered++
				logger.IncrCounter("notifications.delivered")

			case errors.Is(err, telegram.ErrBlocked):
				gone[sub.ChatID] = true
				report.Failed++
				n.deregister(ctx, sub.ChatID, err, report)

			default:
				report.Failed++
				logger.IncrCounter("notifications.failed")
				logger.Warn("Failed to notify subscriber", logger.Fields{
					"chat_id": sub.ChatID,
					"error":   err.Error(),
				})
			}
		}
	}

	n.announce(ctx, changes.Added)

	logger.Info("Dispatched notifications", logger.Fields{
		"messages":     report.Messages,
		"subscribers":  report.Subscribers,
		"delivered":    report.Delivered,
		"failed":       report.Failed,
		"deregistered": report.Deregistered,
	})
	return report, nil
}

func (n *Notifier) deregister(ctx context.Context, chatID int64, cause error, report *Report) {
	removed, err := n.registry.Remove(ctx, chatID)
	if err != nil {
		logger.Error("Failed to remove unreachable subscriber", logger.Fields{
			"chat_id": chatID,
		}, err)
		return
	}
	if removed {
		report.Deregistered++
		logger.IncrCounter("subscribers.deregistered")
		logger.Info("Removed unreachable subscriber", logger.Fields{
			"chat_id": chatID,
			"reason":  cause.Error(),
		})
	}
}

// announce hands added matches to every announcer; failures are only logged
func (n *Notifier) announce(ctx context.Context, added []*match.Match) {
	if len(added) == 0 {
		return
	}
	for _, a := range n.announcers {
		if err := a.Announce(ctx, added); err != nil {
			logger.IncrCounter("announcements.failed")
			logger.Error("Announcer failed", logger.Fields{
				"announcer": a.Name(),
				"matches":   len(added),
			}, err)
			continue
		}
		logger.IncrCounter("announcements.sent")
	}
}

// SendAll delivers a single text to every subscriber, e.g. a maintenance note
func (n *Notifier) SendAll(ctx context.Context, text string) (*Report, error) {
	subs, err := n.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}

	report := &Report{Messages: 1, Subscribers: len(subs)}
	for _, sub := range subs {
		if err := n.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("broadcast interrupted: %w", err)
		}
		err := n.sender.Send(ctx, sub.ChatID, text)
		switch {
		case err == nil:
			report.Delivered++
		case errors.Is(err, telegram.ErrBlocked):
			report.Failed++
			n.deregister(ctx, sub.ChatID, err, report)
		default:
			report.Failed++
			logger.Warn("Failed to send broadcast", logger.Fields{
				"chat_id": sub.ChatID,
				"error":   err.Error(),
			})
		}
	}
	return report, nil
}
