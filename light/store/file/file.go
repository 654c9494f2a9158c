// Package file stores values as files in a directory, one file per key.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/creachadair/atomicfile"

	"github.com/ledgerlight/ledgerlight/light/store"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Storage writes every value atomically: a reader sees either the previous
// value or the new one, never a partial write.
type Storage struct {
	dir string
	mtx sync.RWMutex
}

var _ store.Storage = (*Storage)(nil)

// New returns a Storage rooted at dir, creating it if needed.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the directory the values are kept in.
func (s *Storage) Dir() string { return s.dir }

func (s *Storage) Get(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	bz, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrKeyNotFound
	}
	return bz, err
}

func (s *Storage) Set(key string, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, err := atomicfile.WriteAll(path, bytes.NewReader(value), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *Storage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}
