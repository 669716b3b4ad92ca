package subscribers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/icewatch/ticketwatch/internal/crypto"
)

// Subscriber is a chat that receives notifications
type Subscriber struct {
	ChatID       int64     `json:"chat_id"`
	Name         string    `json:"name,omitempty"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// Registry stores subscribers. Implementations are safe for concurrent use.
type Registry interface {
	// Add registers s and reports whether it was new
	Add(ctx context.Context, s Subscriber) (bool, error)
	// Remove drops chatID and reports whether it was present
	Remove(ctx context.Context, chatID int64) (bool, error)
	// List returns subscribers ordered by subscription time
	List(ctx context.Context) ([]Subscriber, error)
	Count(ctx context.Context) (int, error)
}

// sortSubscribers orders by subscription time, then chat ID
func sortSubscribers(subs []Subscriber) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubscribedAt.Equal(subs[j].SubscribedAt) {
			return subs[i].SubscribedAt.Before(subs[j].SubscribedAt)
		}
		return subs[i].ChatID < subs[j].ChatID
	})
}

func stamp(s Subscriber) Subscriber {
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = time.Now().UTC()
	}
	return s
}

// sealName and openName apply the optional name encryption
func sealName(enc *crypto.Encryptor, name string) (string, error) {
	sealed, err := enc.Encrypt(name)
	if err != nil {
		return "", fmt.Errorf("encrypting name: %w", err)
	}
	return sealed, nil
}

func openName(enc *crypto.Encryptor, name string) (string, error) {
	opened, err := enc.Decrypt(name)
	if err != nil {
		return "", fmt.Errorf("decrypting name: %w", err)
	}
	return opened, nil
}

// MemoryRegistry keeps subscribers in memory. Used for dry runs and tests.
type MemoryRegistry struct {
	mu   sync.Mutex
	subs map[int64]Subscriber
}

// NewMemoryRegistry creates a registry holding the given subscribers
func NewMemoryRegistry(initial ...Subscriber) *MemoryRegistry {
	r := &MemoryRegistry{subs: make(map[int64]Subscriber, len(initial))}
	for _, s := range initial {
		r.subs[s.ChatID] = stamp(s)
	}
	return r
}

func (r *MemoryRegistry) Add(ctx context.Context, s Subscriber) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s.ChatID]; ok {
		return false, nil
	}
	r.subs[s.ChatID] = stamp(s)
	return true, nil
}

func (r *MemoryRegistry) Remove(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[chatID]; !ok {
		return false, nil
	}
	delete(r.subs, chatID)
	return true, nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sortSubscribers(out)
	return out, nil
}

func (r *MemoryRegistry) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs), nil
}
