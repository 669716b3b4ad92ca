package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-telegram/bot/models"
)

// fakeAPI mimics the Bot API sendMessage method, answering per chat ID
type fakeAPI struct {
	mu    sync.Mutex
	sent  []map[string]string
	fails map[string]struct {
		status      int
		description string
	}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fails: make(map[string]struct {
		status      int
		description string
	})}
}

func (f *fakeAPI) fail(chatID string, status int, description string) {
	f.fails[chatID] = struct {
		status      int
		description string
	}{status, description}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": true})
		return
	}

	chatID := r.FormValue("chat_id")
	f.mu.Lock()
	f.sent = append(f.sent, map[string]string{
		"chat_id":    chatID,
		"text":       r.FormValue("text"),
		"parse_mode": r.FormValue("parse_mode"),
	})
	fail, failing := f.fails[chatID]
	f.mu.Unlock()

	if failing {
		w.WriteHeader(fail.status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  fail.status,
			"description": fail.description,
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok": true,
		"result": map[string]interface{}{
			"message_id": 1,
			"date":       0,
			"chat":       map[string]interface{}{"id": 1, "type": "private"},
		},
	})
}

func (f *fakeAPI) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newTestClient(t *testing.T, api http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := NewClient("test-token", Options{ServerURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient("", Options{}); err == nil {
		t.Error("NewClient() should reject an empty token")
	}
	if _, err := NewClient("123:abc", Options{}); err != nil {
		t.Errorf("NewClient() error = %v", err)
	}
}

func TestSend_Success(t *testing.T) {
	api := newFakeAPI()
	client := newTestClient(t, api)

	if err := client.Send(context.Background(), 111, "<b>hello</b>"); err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	sent := api.messages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	got := sent[0]
	if got["chat_id"] != "111" || got["text"] != "<b>hello</b>" || got["parse_mode"] != "HTML" {
		t.Errorf("request = %+v", got)
	}
}

func TestSend_EmptyText(t *testing.T) {
	client := newTestClient(t, newFakeAPI())
	if err := client.Send(context.Background(), 111, ""); err == nil {
		t.Error("Send() should reject empty text")
	}
}

func TestSend_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		description string
		wantBlocked bool
	}{
		{"blocked by user", http.StatusForbidden, "Forbidden: bot was blocked by the user", true},
		{"deactivated", http.StatusForbidden, "Forbidden: user is deactivated", true},
		{"chat not found", http.StatusBadRequest, "Bad Request: chat not found", true},
		{"malformed html", http.StatusBadRequest, "Bad Request: can't parse entities", false},
		{"server error", http.StatusInternalServerError, "Internal Server Error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.fail("222", tt.status, tt.description)
			client := newTestClient(t, api)

			err := client.Send(context.Background(), 222, "hello")
			if err == nil {
				t.Fatal("Send() expected error, got nil")
			}
			if errors.Is(err, ErrBlocked) != tt.wantBlocked {
				t.Errorf("errors.Is(err, ErrBlocked) = %v, want %v (err: %v)", !tt.wantBlocked, tt.wantBlocked, err)
			}
		})
	}
}

func TestIncomingFromUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update *models.Update
		want   Incoming
		wantOK bool
	}{
		{
			name: "text message",
			update: &models.Update{Message: &models.Message{
				Chat: models.Chat{ID: 111},
				From: &models.User{ID: 7, FirstName: "Иван", LastName: "Петров"},
				Text: "/start",
			}},
			want:   Incoming{ChatID: 111, UserID: 7, UserName: "Иван Петров", Text: "/start"},
			wantOK: true,
		},
		{
			name: "username only",
			update: &models.Update{Message: &models.Message{
				Chat: models.Chat{ID: 5},
				From: &models.User{ID: 5, Username: "fan"},
				Text: "/help",
			}},
			want:   Incoming{ChatID: 5, UserID: 5, UserName: "@fan", Text: "/help"},
			wantOK: true,
		},
		{
			name:   "no message",
			update: &models.Update{},
		},
		{
			name:   "sticker",
			update: &models.Update{Message: &models.Message{Chat: models.Chat{ID: 1}}},
		},
		{
			name: "nil update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := incomingFromUpdate(tt.update)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWebhook_DeliversUpdates(t *testing.T) {
	server := httptest.NewServer(newFakeAPI())
	defer server.Close()

	received := make(chan Incoming, 1)
	client, err := NewClient("test-token", Options{
		ServerURL: server.URL,
		Handler: func(ctx context.Context, msg Incoming) {
			received <- msg
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hook := NewWebhook(client, "https://watch.example.com/telegram/webhook", "")
	go hook.Run(ctx)

	body := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":111,"type":"private"},"from":{"id":111,"is_bot":false,"first_name":"Alice"},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	hook.Handler().ServeHTTP(rec, req)

	select {
	case msg := <-received:
		if msg.ChatID != 111 || msg.Text != "/start" || msg.UserName != "Alice" {
			t.Errorf("received %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook update was not delivered to the handler")
	}
}

func TestWebhook_RequiresURL(t *testing.T) {
	client := newTestClient(t, newFakeAPI())
	if err := NewWebhook(client, "", "").Register(context.Background()); err == nil {
		t.Error("Register() should fail without a URL")
	}
}

// flakyAPI answers 502 to the first failures calls, then succeeds
type flakyAPI struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.calls.Add(1) <= f.failures {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true,"result":true}`))
}

func fastSetupRetries(t *testing.T) {
	t.Helper()
	orig := setupBackOff
	setupBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(5 * time.Millisecond) }
	t.Cleanup(func() { setupBackOff = orig })
}

func TestPoller_RetriesWebhookRemovalUntilCancelled(t *testing.T) {
	fastSetupRetries(t)
	api := &flakyAPI{failures: 1 << 30}
	client := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPoller(client).Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for api.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case err := <-done:
		t.Fatalf("Run() returned early: %v", err)
	default:
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
	if api.calls.Load() < 3 {
		t.Errorf("deleteWebhook called %d times, want retries", api.calls.Load())
	}
}

func TestWebhook_RegisterRetriesAfterFailure(t *testing.T) {
	fastSetupRetries(t)
	api := &flakyAPI{failures: 2}
	client := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWebhook(client, "https://watch.example.com/telegram/webhook", "s3cret").Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for api.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if got := api.calls.Load(); got != 3 {
		t.Errorf("setWebhook called %d times, want 3 (two failures, one success)", got)
	}
}

func TestWebhook_RunWithoutURLFailsImmediately(t *testing.T) {
	fastSetupRetries(t)
	api := &flakyAPI{}
	client := newTestClient(t, api)

	err := NewWebhook(client, "", "").Run(context.Background())
	if !errors.Is(err, errNoWebhookURL) {
		t.Errorf("Run() error = %v, want errNoWebhookURL", err)
	}
	if api.calls.Load() != 0 {
		t.Errorf("API called %d times", api.calls.Load())
	}
}
