// Package filelock provides flock-guarded reads and atomic writes for the
// file-backed memory store. A record at path is guarded by path + ".lock".
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

// retryDelay is how often a blocked lock attempt polls
const retryDelay = 25 * time.Millisecond

// FileLock wraps a flock file lock for coordinating access to a record.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a lock backed by the file at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires an exclusive lock, polling until it is available or ctx ends.
func (fl *FileLock) Lock(ctx context.Context) error {
	return fl.acquire(ctx, fl.flock.TryLockContext, "lock")
}

// RLock acquires a shared lock, polling until it is available or ctx ends.
func (fl *FileLock) RLock(ctx context.Context) error {
	return fl.acquire(ctx, fl.flock.TryRLockContext, "read lock")
}

func (fl *FileLock) acquire(ctx context.Context, try func(context.Context, time.Duration) (bool, error), kind string) error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := try(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire %s on %s: %w", kind, fl.path, err)
	}
	if !ok {
		return fmt.Errorf("failed to acquire %s on %s", kind, fl.path)
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

// AtomicWrite writes data to path through a temp file in the same directory
// followed by a rename, so readers see either the old or the new content.
// If any step fails the original file is left unchanged.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

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

	// rename is atomic within one filesystem
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

func lockPath(path string) string {
	return path + ".lock"
}

// LockAndWrite takes the exclusive lock for path and writes data atomically.
func LockAndWrite(ctx context.Context, path string, data []byte) error {
	lock := NewFileLock(lockPath(path))
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer lock.Unlock()

	return AtomicWrite(path, data)
}

// LockAndRead takes the shared lock for path and reads it. A missing file
// yields an error satisfying errors.Is(err, os.ErrNotExist).
func LockAndRead(ctx context.Context, path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	lock := NewFileLock(lockPath(path))
	if err := lock.RLock(ctx); err != nil {
		return nil, err
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// LockAndRemove takes the exclusive lock for path and removes the file and
// its lock file. A missing file is not an error.
func LockAndRemove(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	lock := NewFileLock(lockPath(path))
	if err := lock.Lock(ctx); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		lock.Unlock()
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	if err := lock.Unlock(); err != nil {
		return err
	}
	os.Remove(lockPath(path))
	return nil
}
