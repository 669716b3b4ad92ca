package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/icewatch/ticketwatch/internal/crypto"
	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/storage"
)

// FileName is the registry file inside the data directory
const FileName = "subscribers.json"

type fileData struct {
	Subscribers []Subscriber `json:"subscribers"`
}

// FileRegistry stores subscribers in a JSON file. Every mutation rewrites the
// whole file atomically before returning.
type FileRegistry struct {
	mu   sync.Mutex
	path string
	enc  *crypto.Encryptor
	subs map[int64]Subscriber
}

// NewFileRegistry loads the registry at path. A missing file starts empty; a
// corrupt one is logged and also starts empty.
func NewFileRegistry(path string, enc *crypto.Encryptor) (*FileRegistry, error) {
	r := &FileRegistry{
		path: path,
		enc:  enc,
		subs: make(map[int64]Subscriber),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading subscribers: %w", err)
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		logger.Warn("Subscriber file is corrupt, starting with no subscribers", logger.Fields{
			"path":  r.path,
			"error": err.Error(),
		})
		return nil
	}

	for _, s := range fd.Subscribers {
		name, err := openName(r.enc, s.Name)
		if err != nil {
			logger.Warn("Could not decrypt subscriber name", logger.Fields{
				"chat_id": s.ChatID,
				"error":   err.Error(),
			})
			name = ""
		}
		s.Name = name
		r.subs[s.ChatID] = s
	}
	return nil
}

// save writes the current set; callers hold mu
func (r *FileRegistry) save() error {
	fd := fileData{Subscribers: make([]Subscriber, 0, len(r.subs))}
	for _, s := range r.subs {
		sealed, err := sealName(r.enc, s.Name)
		if err != nil {
			return err
		}
		s.Name = sealed
		fd.Subscribers = append(fd.Subscribers, s)
	}
	sortSubscribers(fd.Subscribers)

	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding subscribers: %w", err)
	}
	if err := storage.WriteFileAtomic(r.path, data, 0600); err != nil {
		return fmt.Errorf("writing subscribers: %w", err)
	}
	return nil
}

func (r *FileRegistry) Add(ctx context.Context, s Subscriber) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[s.ChatID]; ok {
		return false, nil
	}
	r.subs[s.ChatID] = stamp(s)
	if err := r.save(); err != nil {
		delete(r.subs, s.ChatID)
		return false, err
	}
	return true, nil
}

func (r *FileRegistry) Remove(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.subs[chatID]
	if !ok {
		return false, nil
	}
	delete(r.subs, chatID)
	if err := r.save(); err != nil {
		r.subs[chatID] = prev
		return false, err
	}
	return true, nil
}

func (r *FileRegistry) List(ctx context.Context) ([]Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	sortSubscribers(out)
	return out, nil
}

func (r *FileRegistry) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs), nil
}
