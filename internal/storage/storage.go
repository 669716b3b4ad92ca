package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/icewatch/ticketwatch/internal/logger"
	"github.com/icewatch/ticketwatch/internal/match"
)

const snapshotFile = "snapshot.json"

// Storage handles persistence of the match snapshot
type Storage struct {
	mu      sync.Mutex
	dataDir string
	now     func() time.Time
}

// ExpandHome expands a leading ~/ to the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// New creates a Storage rooted at dataDir, creating the directory if needed
func New(dataDir string) (*Storage, error) {
	dataDir, err := ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
		now:     time.Now,
	}, nil
}

// DataDir returns the resolved data directory
func (s *Storage) DataDir() string {
	return s.dataDir
}

// Path returns the path to the snapshot file
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, snapshotFile)
}

// LoadSnapshot loads the snapshot from disk. A missing or unreadable-as-JSON
// file yields an empty baseline snapshot; only I/O failures are returned.
func (s *Storage) LoadSnapshot() (*match.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return match.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot match.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.Warn("Snapshot file is corrupt, starting from an empty baseline", logger.Fields{
			"path":  s.Path(),
			"error": err.Error(),
		})
		logger.IncrCounter("storage.corrupt")
		return match.NewSnapshot(), nil
	}

	if snapshot.Matches == nil {
		snapshot.Matches = make([]*match.Match, 0)
	}
	snapshot.Matches = match.Dedupe(snapshot.Matches)

	return &snapshot, nil
}

// SaveSnapshot replaces the stored snapshot and stamps UpdatedAt
func (s *Storage) SaveSnapshot(snapshot *match.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := WriteFileAtomic(s.Path(), data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}

// SaveMatches creates and saves a snapshot from a list of matches
func (s *Storage) SaveMatches(matches []*match.Match) (*match.Snapshot, error) {
	snapshot := match.CreateSnapshot(matches, time.Time{})
	if err := s.SaveSnapshot(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing file: %w", err)
	}
	return nil
}
