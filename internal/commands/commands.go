package commands

import (
	"context"
	"strings"
	"time"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/notifier"
	"github.com/icewatch/ticketwatch/internal/subscribers"
	"github.com/icewatch/ticketwatch/internal/telegram"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

// StatusSource exposes the watcher state to commands
type StatusSource interface {
	Status() watcher.Status
	Matches() []*match.Match
}

// Handler dispatches incoming messages to command implementations
type Handler struct {
	registry    subscribers.Registry
	status      StatusSource
	sender      notifier.Sender
	adminChatID int64
	location    *time.Location
	now         func() time.Time
}

// New creates a command handler. Replies go out through sender.
func New(registry subscribers.Registry, status StatusSource, sender notifier.Sender, adminChatID int64, location *time.Location) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		registry:    registry,
		status:      status,
		sender:      sender,
		adminChatID: adminChatID,
		location:    location,
		now:         time.Now,
	}
}

// Handle answers one message; it satisfies telegram.InboundHandler
func (h *Handler) Handle(ctx context.Context, msg telegram.Incoming) {
	cmd := ParseCommand(msg.Text)
	logger.IncrCounter("commands." + counterName(cmd))

	reply := h.Reply(ctx, msg)
	if reply == "" {
		return
	}
	if err := h.sender.Send(ctx, msg.ChatID, reply); err != nil {
		logger.Error("Failed to answer command", logger.Fields{
			"chat_id": msg.ChatID,
			"command": cmd,
		}, err)
	}
}

// Reply computes the answer to a message without sending it
func (h *Handler) Reply(ctx context.Context, msg telegram.Incoming) string {
	switch ParseCommand(msg.Text) {
	case "/start":
		return h.start(ctx, msg)
	case "/stop":
		return h.stop(ctx, msg)
	case "/status":
		return h.statusReply(ctx)
	case "/matches":
		return telegram.FormatMatchList(h.status.Matches())
	case "/help":
		return helpText(h.isAdmin(msg.ChatID))
	case "/stats":
		if !h.isAdmin(msg.ChatID) {
			return unknownText
		}
		return formatStats(logger.GetMetricsSnapshot())
	default:
		return unknownText
	}
}

// ParseCommand extracts the lower-cased command from a message, dropping
// arguments and the @botname suffix used in group chats. Plain text yields "".
func ParseCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

func counterName(cmd string) string {
	switch cmd {
	case "/start", "/stop", "/status", "/matches", "/help", "/stats":
		return strings.TrimPrefix(cmd, "/")
	default:
		return "unknown"
	}
}

func (h *Handler) isAdmin(chatID int64) bool {
	return h.adminChatID != 0 && chatID == h.adminChatID
}

func (h *Handler) start(ctx context.Context, msg telegram.Incoming) string {
	added, err := h.registry.Add(ctx, subscribers.Subscriber{
		ChatID:       msg.ChatID,
		Name:         msg.UserName,
		SubscribedAt: h.now().UTC(),
	})
	if err != nil {
		logger.Error("Failed to add subscriber", logger.Fields{"chat_id": msg.ChatID}, err)
		return errorText
	}

	var b strings.Builder
	if added {
		logger.Info("Subscriber added", logger.Fields{"chat_id": msg.ChatID})
		b.WriteString("✅ Вы подписались на уведомления о продаже билетов.\n\n")
	} else {
		b.WriteString("Вы уже подписаны.\n\n")
	}
	b.WriteString(telegram.FormatMatchList(h.status.Matches()))
	return b.String()
}

func (h *Handler) stop(ctx context.Context, msg telegram.Incoming) string {
	removed, err := h.registry.Remove(ctx, msg.ChatID)
	if err != nil {
		logger.Error("Failed to remove subscriber", logger.Fields{"chat_id": msg.ChatID}, err)
		return errorText
	}
	if !removed {
		return "Вы не были подписаны. Чтобы подписаться, отправьте /start."
	}
	logger.Info("Subscriber removed", logger.Fields{"chat_id": msg.ChatID})
	return "Вы отписались от уведомлений. Чтобы вернуться, отправьте /start."
}

func (h *Handler) statusReply(ctx context.Context) string {
	count, err := h.registry.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count subscribers", logger.Fields{"error": err.Error()})
		count = -1
	}
	return formatStatus(h.status.Status(), count, h.location, h.now())
}
