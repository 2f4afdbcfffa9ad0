// Package filelock provides cross-process locks and atomic writes used to
// give a staging run exclusive ownership of its destination.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when a lock is held elsewhere and could not be
// acquired before the deadline.
var ErrLocked = errors.New("filelock: lock is held by another process")

// DefaultRetryDelay is how often TryLockContext polls a held lock.
const DefaultRetryDelay = 50 * time.Millisecond

// FileLock wraps a flock file lock for coordinating access to files.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created at the specified path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// ForDirectory returns the lock guarding dir. The lock file lives next to the
// directory as ".<name>.lock" so it never appears among the directory's
// entries and survives the directory being removed and recreated.
func ForDirectory(dir string) *FileLock {
	clean := filepath.Clean(dir)
	lockPath := filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+".lock")
	return NewFileLock(lockPath)
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires an exclusive lock on the file, blocking until the lock is available.
func (fl *FileLock) Lock() error {
	if err := fl.ensureDir(); err != nil {
		return err
	}
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire an exclusive lock on the file without blocking.
// Returns true if the lock was acquired, false if the lock is held by another process.
func (fl *FileLock) TryLock() (bool, error) {
	if err := fl.ensureDir(); err != nil {
		return false, err
	}
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// LockWithTimeout polls for the lock until it is acquired or timeout elapses.
// A non-positive timeout makes a single attempt. Returns ErrLocked when the
// lock stays held.
func (fl *FileLock) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		acquired, err := fl.TryLock()
		if err != nil {
			return err
		}
		if !acquired {
			return fmt.Errorf("%w: %s", ErrLocked, fl.path)
		}
		return nil
	}

	if err := fl.ensureDir(); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := fl.flock.TryLockContext(lockCtx, DefaultRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", ErrLocked, timeout, fl.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	if !acquired {
		return fmt.Errorf("%w: %s", ErrLocked, fl.path)
	}
	return nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

func (fl *FileLock) ensureDir() error {
	dir := filepath.Dir(fl.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}
	return nil
}

// AtomicWrite writes data to a file atomically using a temp file and rename strategy.
// Readers never see partial writes, even if the write is interrupted.
//
// If the operation fails at any point, the original file (if it exists) remains unchanged.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Same directory as the target keeps the rename on one filesystem.
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// LockAndWrite acquires "<path>.lock", performs an atomic write, and releases the lock.
func LockAndWrite(path string, data []byte) error {
	lock := NewFileLock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	return AtomicWrite(path, data)
}
