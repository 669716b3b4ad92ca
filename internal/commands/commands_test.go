package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/icewatch/ticketwatch/internal/match"
	"github.com/icewatch/ticketwatch/internal/subscribers"
	"github.com/icewatch/ticketwatch/internal/telegram"
	"github.com/icewatch/ticketwatch/internal/watcher"
)

type fakeStatus struct {
	status  watcher.Status
	matches []*match.Match
}

func (f *fakeStatus) Status() watcher.Status  { return f.status }
func (f *fakeStatus) Matches() []*match.Match { return f.matches }

type recordingSender struct {
	mu      sync.Mutex
	replies map[int64][]string
}

func (r *recordingSender) Send(ctx context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replies == nil {
		r.replies = make(map[int64][]string)
	}
	r.replies[chatID] = append(r.replies[chatID], text)
	return nil
}

// brokenRegistry fails every call
type brokenRegistry struct{}

func (brokenRegistry) Add(context.Context, subscribers.Subscriber) (bool, error) {
	return false, errors.New("db down")
}
func (brokenRegistry) Remove(context.Context, int64) (bool, error) { return false, errors.New("db down") }
func (brokenRegistry) List(context.Context) ([]subscribers.Subscriber, error) {
	return nil, errors.New("db down")
}
func (brokenRegistry) Count(context.Context) (int, error) { return 0, errors.New("db down") }

const adminChat = 42

func newHandler(registry subscribers.Registry, matches ...*match.Match) (*Handler, *recordingSender) {
	sender := &recordingSender{}
	status := &fakeStatus{
		status:  watcher.Status{Matches: len(matches), AlertThreshold: 3},
		matches: matches,
	}
	h := New(registry, status, sender, adminChat, time.UTC)
	h.now = func() time.Time { return time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC) }
	return h, sender
}

func msg(chatID int64, text string) telegram.Incoming {
	return telegram.Incoming{ChatID: chatID, UserID: chatID, UserName: "Fan", Text: text}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/start", "/start"},
		{"/START", "/start"},
		{"/start@ticket_bot", "/start"},
		{"  /stop  now ", "/stop"},
		{"hello", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	registry := subscribers.NewMemoryRegistry()
	h, _ := newHandler(registry, match.New("A — B", "10 ноября", "https://t.example.com/1"))

	reply := h.Reply(ctx, msg(111, "/start"))
	if !strings.Contains(reply, "подписались") || !strings.Contains(reply, "A — B") {
		t.Errorf("/start reply = %q, want confirmation and current matches", reply)
	}
	list, _ := registry.List(ctx)
	if len(list) != 1 || list[0].ChatID != 111 || list[0].Name != "Fan" {
		t.Fatalf("registry = %+v", list)
	}

	if reply := h.Reply(ctx, msg(111, "/start")); !strings.Contains(reply, "уже подписаны") {
		t.Errorf("second /start reply = %q", reply)
	}
	if n, _ := registry.Count(ctx); n != 1 {
		t.Errorf("duplicate /start changed the count to %d", n)
	}

	if reply := h.Reply(ctx, msg(111, "/stop")); !strings.Contains(reply, "отписались") {
		t.Errorf("/stop reply = %q", reply)
	}
	if reply := h.Reply(ctx, msg(111, "/stop")); !strings.Contains(reply, "не были подписаны") {
		t.Errorf("second /stop reply = %q", reply)
	}
	if n, _ := registry.Count(ctx); n != 0 {
		t.Errorf("Count() = %d after /stop", n)
	}
}

func TestStart_NoMatches(t *testing.T) {
	h, _ := newHandler(subscribers.NewMemoryRegistry())
	if reply := h.Reply(context.Background(), msg(1, "/start")); !strings.Contains(reply, "билетов в продаже нет") {
		t.Errorf("/start reply = %q", reply)
	}
}

func TestRegistryErrors(t *testing.T) {
	h, _ := newHandler(brokenRegistry{})
	ctx := context.Background()

	for _, cmd := range []string{"/start", "/stop"} {
		if reply := h.Reply(ctx, msg(1, cmd)); reply != errorText {
			t.Errorf("%s reply = %q, want error text", cmd, reply)
		}
	}
	if reply := h.Reply(ctx, msg(1, "/status")); strings.Contains(reply, "Подписчиков") {
		t.Errorf("/status should omit the subscriber count when it is unavailable: %q", reply)
	}
}

func TestStatus(t *testing.T) {
	registry := subscribers.NewMemoryRegistry(subscribers.Subscriber{ChatID: 1}, subscribers.Subscriber{ChatID: 2})
	h, _ := newHandler(registry)
	h.status.(*fakeStatus).status = watcher.Status{
		LastCheck:           time.Date(2025, 10, 1, 11, 55, 0, 0, time.UTC),
		LastSuccess:         time.Date(2025, 10, 1, 11, 0, 0, 0, time.UTC),
		LastError:           "fetching page: <timeout>",
		Matches:             4,
		ConsecutiveFailures: 3,
		AlertThreshold:      3,
	}

	reply := h.Reply(context.Background(), msg(1, "/status"))
	for _, want := range []string{
		"не удаётся",
		"01.10.2025 11:55",
		"5 мин",
		"Матчей в продаже: 4",
		"Подписчиков: 2",
		"&lt;timeout&gt;",
		"подряд: 3",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("/status reply missing %q:\n%s", want, reply)
		}
	}
}

func TestStatus_NeverChecked(t *testing.T) {
	h, _ := newHandler(subscribers.NewMemoryRegistry())
	if reply := h.Reply(context.Background(), msg(1, "/status")); !strings.Contains(reply, "Проверок ещё не было") {
		t.Errorf("/status reply = %q", reply)
	}
}

func TestHelpAndUnknown(t *testing.T) {
	h, _ := newHandler(subscribers.NewMemoryRegistry())
	ctx := context.Background()

	help := h.Reply(ctx, msg(1, "/help"))
	if !strings.Contains(help, "/start") || strings.Contains(help, "/stats") {
		t.Errorf("/help for a user = %q", help)
	}
	if adminHelp := h.Reply(ctx, msg(adminChat, "/help")); !strings.Contains(adminHelp, "/stats") {
		t.Errorf("/help for the admin should list /stats: %q", adminHelp)
	}

	for _, text := range []string{"привет", "/unknown"} {
		if reply := h.Reply(ctx, msg(1, text)); reply != unknownText {
			t.Errorf("reply to %q = %q", text, reply)
		}
	}
}

func TestStats_AdminOnly(t *testing.T) {
	h, _ := newHandler(subscribers.NewMemoryRegistry())
	ctx := context.Background()

	if reply := h.Reply(ctx, msg(1, "/stats")); reply != unknownText {
		t.Errorf("/stats from a regular chat = %q", reply)
	}
	if reply := h.Reply(ctx, msg(adminChat, "/stats")); !strings.Contains(reply, "Метрики") {
		t.Errorf("/stats from the admin = %q", reply)
	}
}

func TestHandle_SendsReply(t *testing.T) {
	h, sender := newHandler(subscribers.NewMemoryRegistry(), match.New("A — B", "1 октября", ""))

	h.Handle(context.Background(), msg(7, "/matches"))

	replies := sender.replies[7]
	if len(replies) != 1 || !strings.Contains(replies[0], "A — B") {
		t.Errorf("replies = %v", replies)
	}
}
