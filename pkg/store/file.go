package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileStore implements a file-based store for CLI usage.
// Entries are stored as files in a directory with expiration metadata.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store in the given directory.
// The directory will be created if it doesn't exist.
func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// fileEntry wraps stored data with metadata.
type fileEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves a value from the store.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := s.path(key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var ent fileEntry
	if err := json.Unmarshal(data, &ent); err != nil {
		// Corrupt entry - treat as absent
		_ = os.Remove(path)
		return nil, false, nil
	}

	if !ent.ExpiresAt.IsZero() && time.Now().After(ent.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}

	return ent.Data, true, nil
}

// Set stores a value.
func (s *FileStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	ent := fileEntry{
		Data: data,
	}
	if ttl > 0 {
		ent.ExpiresAt = time.Now().Add(ttl)
	}

	entData, err := json.Marshal(ent)
	if err != nil {
		return err
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, entData, 0644)
}

// Delete removes a value.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for a file store.
func (s *FileStore) Close() error {
	return nil
}

// path converts a storage key to a file path.
// Uses a hash-based directory structure to avoid too many files in one dir.
func (s *FileStore) path(key string) string {
	sum := Hash([]byte(key))
	subdir := sum[:2]
	filename := sum[2:] + ".json"
	return filepath.Join(s.dir, subdir, filename)
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
