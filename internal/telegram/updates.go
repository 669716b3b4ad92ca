package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-telegram/bot"

	"github.com/icewatch/ticketwatch/internal/logger"
)

// setupBackOff spaces retries of the webhook setup calls made at startup
var setupBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	return b
}

// retrySetup runs op until it succeeds or ctx is cancelled, logging every
// failed attempt.
func retrySetup(ctx context.Context, method string, op func() error) error {
	notify := func(err error, wait time.Duration) {
		logger.IncrCounter("telegram.setup_retries")
		logger.Warn("Bot API setup call failed, retrying", logger.Fields{
			"method": method,
			"error":  err.Error(),
			"wait":   wait.String(),
		})
	}
	return backoff.RetryNotify(op, backoff.WithContext(setupBackOff(), ctx), notify)
}

// Poller receives commands through getUpdates long polling
type Poller struct {
	client *Client
}

// NewPoller creates a long-polling command source
func NewPoller(client *Client) *Poller {
	return &Poller{client: client}
}

// Run polls until ctx is cancelled. Any webhook left over from a previous
// deployment is removed first, since Telegram refuses getUpdates while one
// is set; that call is retried until it succeeds.
func (p *Poller) Run(ctx context.Context) error {
	err := retrySetup(ctx, "deleteWebhook", func() error {
		_, err := p.client.b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{})
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("removing webhook: %w", err)
	}
	p.client.b.Start(ctx)
	return nil
}

// Webhook receives commands pushed by Telegram to an HTTP endpoint
type Webhook struct {
	client *Client
	url    string
	secret string
}

// NewWebhook creates a webhook command source for the public url
func NewWebhook(client *Client, url, secret string) *Webhook {
	return &Webhook{client: client, url: url, secret: secret}
}

// Handler returns the HTTP handler to mount at the webhook path
func (w *Webhook) Handler() http.Handler {
	return w.client.b.WebhookHandler()
}

var errNoWebhookURL = errors.New("webhook URL is required")

// Register points Telegram at the webhook URL
func (w *Webhook) Register(ctx context.Context) error {
	if w.url == "" {
		return errNoWebhookURL
	}
	_, err := w.client.b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:         w.url,
		SecretToken: w.secret,
	})
	if err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}
	return nil
}

// Run registers the webhook, retrying until it succeeds, and processes
// pushed updates until ctx is cancelled.
func (w *Webhook) Run(ctx context.Context) error {
	err := retrySetup(ctx, "setWebhook", func() error {
		if err := w.Register(ctx); err != nil {
			if errors.Is(err, errNoWebhookURL) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	w.client.b.StartWebhook(ctx)
	return nil
}
