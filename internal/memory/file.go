package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/harrison/taskpilot/internal/filelock"
)

// FileBackend keeps each record in Root/<namespace>/<key>.json. Writes are
// atomic and flock-guarded so readers never see a torn file.
type FileBackend struct {
	Root string
}

// Path returns the file holding the record for (namespace, key)
func (b *FileBackend) Path(namespace, key string) string {
	return filepath.Join(b.Root, namespace, key+".json")
}

// Read implements Backend
func (b *FileBackend) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := validateKey(namespace, key); err != nil {
		return nil, err
	}
	data, err := filelock.LockAndRead(ctx, b.Path(namespace, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write implements Backend
func (b *FileBackend) Write(ctx context.Context, namespace, key string, data []byte) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	return filelock.LockAndWrite(ctx, b.Path(namespace, key), data)
}

// Delete implements Backend. A missing record is not an error.
func (b *FileBackend) Delete(ctx context.Context, namespace, key string) error {
	if err := validateKey(namespace, key); err != nil {
		return err
	}
	return filelock.LockAndRemove(ctx, b.Path(namespace, key))
}
