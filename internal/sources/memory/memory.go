package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"kakeibo/internal/sources"
)

// Store keeps ledger sources in memory, keyed by file name.
type Store struct {
	mu    sync.Mutex
	files map[string][]byte
}

func New(files map[string][]byte) *Store {
	s := &Store{files: make(map[string][]byte, len(files))}
	for name, b := range files {
		s.files[name] = append([]byte(nil), b...)
	}
	return s
}

// NewFromFiles seeds the store with every *.csv file found in dir.
// A missing directory yields an empty store.
func NewFromFiles(dir string) *Store {
	s := New(nil)
	matches, _ := filepath.Glob(filepath.Join(dir, "*.csv"))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		s.files[filepath.Base(m)] = b
	}
	return s
}

// Put adds or replaces a source.
func (s *Store) Put(name string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), b...)
}

// ListSources returns source names sorted by name.
func (s *Store) ListSources(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ReadSource returns a copy of the named source.
func (s *Store) ReadSource(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sources.ErrNotFound, name)
	}
	return append([]byte(nil), b...), nil
}
