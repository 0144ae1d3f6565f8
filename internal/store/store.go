// Package store writes finished notices to their destination.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ObiAU/noticecrawler/internal/cache"
	"github.com/ObiAU/noticecrawler/internal/models"
)

// Supported formats.
const (
	FormatText   = "text"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

var ErrUnknownFormat = errors.New("unknown store format")

// Store receives every completed notice exactly once per run.
type Store interface {
	// Save persists n. added is false when the id was already stored.
	Save(ctx context.Context, n models.Notice) (added bool, err error)
	Path() string
	Close() error
}

// Open opens a store of the given format. fresh truncates file formats so they
// only hold what this run writes; sqlite always accumulates.
func Open(format, path string, fresh bool) (Store, error) {
	switch format {
	case FormatText:
		return openFile(path, fresh, encodeText)
	case FormatJSONL:
		return openFile(path, fresh, encodeJSONL)
	case FormatSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Remove deletes the store at path. A missing store is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}

type encodeFunc func(n models.Notice) ([]byte, error)

// fileStore appends one encoded record per notice to a single file.
type fileStore struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	seen   *cache.IDSet
	encode encodeFunc
}

func openFile(path string, fresh bool, encode encodeFunc) (*fileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if fresh {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &fileStore{path: path, file: file, seen: cache.New(), encode: encode}, nil
}

func (s *fileStore) Save(_ context.Context, n models.Notice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seen.Add(n.ID) {
		return false, nil
	}

	record, err := s.encode(n)
	if err != nil {
		s.seen.Remove(n.ID)
		return false, fmt.Errorf("encode notice %s: %w", n.ID, err)
	}

	if _, err := s.file.Write(record); err != nil {
		s.seen.Remove(n.ID)
		return false, fmt.Errorf("write notice %s: %w", n.ID, err)
	}

	return true, nil
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	return s.file.Close()
}
