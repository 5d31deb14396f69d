package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"photo-indexer/internal/logging"
)

// ErrLocked is returned when another process holds the scan lock.
var ErrLocked = errors.New("lock held by another process")

// FileLock is an exclusive, cross-process advisory lock on a file. The
// operating system drops it when the holder exits, so a crashed scan never
// leaves a lock that needs reclaiming.
type FileLock struct {
	fl *flock.Flock
}

// Lock takes the lock at path without blocking, creating the file and its
// directory when missing. If another process (or another FileLock in this
// process) holds it, Lock fails with ErrLocked.
func Lock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	logging.Debug("Acquired scan lock %s", path)
	return &FileLock{fl: fl}, nil
}

// Unlock releases the lock. The file is left in place; removing it would
// let a waiting process lock an unlinked inode. Safe to call more than once.
func (l *FileLock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.fl.Path(), err)
	}
	return nil
}

// Path returns the lock file location.
func (l *FileLock) Path() string {
	if l == nil || l.fl == nil {
		return ""
	}
	return l.fl.Path()
}
