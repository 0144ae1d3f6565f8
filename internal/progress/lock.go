package progress

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another crawl already holds the run lock.
var ErrLocked = errors.New("another crawl is running")

// RunLock is a held, non-blocking advisory lock on a file.
type RunLock struct {
	fl *flock.Flock
}

// Lock takes the run lock at path or fails with ErrLocked.
func Lock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	return &RunLock{fl: fl}, nil
}

func (l *RunLock) Unlock() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
