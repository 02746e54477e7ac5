package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	stdsync "sync"
)

// HashStore remembers the SHA-256 of each remote file's last known bytes,
// refreshed on every fetch and every confirmed push, so that unchanged
// partitions are never re-uploaded.
//
// It is a write-avoidance cache only: merge decisions never consult it, and
// losing the file merely costs one redundant upload per partition. It is
// persisted as a small json file and survives restarts.
type HashStore struct {
	path string

	mu     stdsync.Mutex
	hashes map[string]string
}

// OpenHashStore loads the store persisted at path, starting empty when the
// file does not exist yet.
func OpenHashStore(path string) (*HashStore, error) {
	s := &HashStore{path: path, hashes: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read hash store %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.hashes); err != nil {
		return nil, fmt.Errorf("cannot parse hash store %q: %w", path, err)
	}
	return s, nil
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ShouldUpload reports whether content differs from the last synced bytes
// for key. A key never synced always needs uploading.
func (s *HashStore) ShouldUpload(key string, content []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[key] != hashOf(content)
}

// Remember records content as key's last known bytes, either because a
// fetch just returned them or because a confirmed push just wrote them.
// Remember only updates memory; changes reach disk on the next Save.
func (s *HashStore) Remember(key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[key] = hashOf(content)
}

// Known reports whether key was ever fetched or uploaded.
func (s *HashStore) Known(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hashes[key]
	return ok
}

// Forget drops a key, typically after its partition was deleted remotely.
func (s *HashStore) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
}

// Keys returns the synced keys, sorted.
func (s *HashStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.hashes))
	for k := range s.hashes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Save persists the store to its file.
func (s *HashStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.hashes, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode hash store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cannot create folder for hash store %q: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write hash store %q: %w", s.path, err)
	}
	return nil
}
