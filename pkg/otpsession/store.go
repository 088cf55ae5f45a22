package otpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// IssuedAtStore persists when the current code of a flow was issued, so a
// countdown survives the controller being torn down and rebuilt.
type IssuedAtStore interface {
	Get(ctx context.Context, key string) (time.Time, bool, error)
	Put(ctx context.Context, key string, issuedAt time.Time) error
	Delete(ctx context.Context, key string) error
}

// MemoryIssuedAtStore keeps issued-at timestamps in process memory.
type MemoryIssuedAtStore struct {
	mutex   sync.RWMutex
	entries map[string]time.Time
}

func NewMemoryIssuedAtStore() *MemoryIssuedAtStore {
	return &MemoryIssuedAtStore{entries: make(map[string]time.Time)}
}

func (s *MemoryIssuedAtStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, ok := s.entries[key]
	return t, ok, nil
}

func (s *MemoryIssuedAtStore) Put(ctx context.Context, key string, issuedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[key] = issuedAt
	return nil
}

func (s *MemoryIssuedAtStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, key)
	return nil
}

const issuedAtFile = "otp_issued_at.json"

// FileIssuedAtStore keeps issued-at timestamps in a JSON file under dataDir.
// Writes go to a temp file and are renamed into place.
type FileIssuedAtStore struct {
	dataDir string
	entries map[string]time.Time
	mutex   sync.RWMutex
}

// NewFileIssuedAtStore opens (or creates) the store in dataDir.
func NewFileIssuedAtStore(dataDir string) (*FileIssuedAtStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileIssuedAtStore{
		dataDir: dataDir,
		entries: make(map[string]time.Time),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return s, nil
}

func (s *FileIssuedAtStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, ok := s.entries[key]
	return t, ok, nil
}

func (s *FileIssuedAtStore) Put(ctx context.Context, key string, issuedAt time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, had := s.entries[key]
	s.entries[key] = issuedAt.UTC()
	if err := s.save(); err != nil {
		if had {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileIssuedAtStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, had := s.entries[key]
	if !had {
		return nil
	}
	delete(s.entries, key)
	if err := s.save(); err != nil {
		s.entries[key] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (s *FileIssuedAtStore) load() error {
	filePath := filepath.Join(s.dataDir, issuedAtFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func (s *FileIssuedAtStore) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(s.dataDir, issuedAtFile+".tmp")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filepath.Join(s.dataDir, issuedAtFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
