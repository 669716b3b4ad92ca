package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	timeout = 10 * time.Second

	// MaxMessageLength is the Bot API limit for a single message text
	MaxMessageLength = 4096
)

// ErrBlocked means the chat can no longer receive messages: the user blocked
// the bot, deactivated the account, or the chat was deleted.
var ErrBlocked = errors.New("chat unreachable")

// Incoming is a text message received from a chat
type Incoming struct {
	ChatID   int64
	UserID   int64
	UserName string
	Text     string
}

// InboundHandler processes one incoming message. It must be safe for
// concurrent use.
type InboundHandler func(ctx context.Context, msg Incoming)

// Options configure the bot client
type Options struct {
	// ServerURL overrides the Bot API endpoint; used in tests
	ServerURL     string
	WebhookSecret string
	Handler       InboundHandler
	// OnError receives polling and webhook errors; optional
	OnError func(err error)
}

// Client represents a Telegram Bot API client
type Client struct {
	b *bot.Bot
}

// NewClient creates a bot client. The token is not verified against the API
// until the first request.
func NewClient(botToken string, opts Options) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, update *models.Update) {
			if opts.Handler == nil {
				return
			}
			if msg, ok := incomingFromUpdate(update); ok {
				opts.Handler(ctx, msg)
			}
		}),
	}
	if opts.ServerURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(opts.ServerURL))
	}
	if opts.WebhookSecret != "" {
		botOpts = append(botOpts, bot.WithWebhookSecretToken(opts.WebhookSecret))
	}
	if opts.OnError != nil {
		botOpts = append(botOpts, bot.WithErrorsHandler(opts.OnError))
	}

	b, err := bot.New(botToken, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating bot: %w", err)
	}
	return &Client{b: b}, nil
}

// incomingFromUpdate extracts a text message, ignoring other update kinds
func incomingFromUpdate(update *models.Update) (Incoming, bool) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return Incoming{}, false
	}
	m := update.Message
	msg := Incoming{
		ChatID: m.Chat.ID,
		Text:   m.Text,
	}
	if m.From != nil {
		msg.UserID = m.From.ID
		msg.UserName = displayName(m.From)
	}
	return msg, true
}

func displayName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}

// Send delivers an HTML message to a chat with link previews disabled.
// Unreachable chats are reported as ErrBlocked.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	disabled := true
	_, err := c.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disabled,
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps Bot API errors onto ErrBlocked where the chat is gone for good
func classify(err error) error {
	if errors.Is(err, bot.ErrorForbidden) {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	if errors.Is(err, bot.ErrorBadRequest) && strings.Contains(strings.ToLower(err.Error()), "chat not found") {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return fmt.Errorf("sending message: %w", err)
}

// Bot exposes the underlying bot for command sources
func (c *Client) Bot() *bot.Bot {
	return c.b
}
