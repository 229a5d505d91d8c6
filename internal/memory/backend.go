// Package memory persists per-task conversation memory.
//
// Each (namespace, key) pair owns one durable record holding the ordered
// list of entries. Mutation is load, append, rewrite; concurrent writers to
// the same key are not coordinated beyond what the backend guarantees for a
// single write, so callers serialize turns per key.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/taskpilot/internal/config"
)

// ErrNotFound is returned by Backend.Read when no record exists
var ErrNotFound = errors.New("memory record not found")

// Backend stores one opaque record per (namespace, key)
type Backend interface {
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Write(ctx context.Context, namespace, key string, data []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// NewBackend opens the backend selected by cfg. Paths are used as given, so
// callers resolve them against the home directory first.
func NewBackend(cfg config.MemoryConfig) (Backend, error) {
	switch cfg.Backend {
	case config.MemoryBackendFile, "":
		return &FileBackend{Root: cfg.Dir}, nil
	case config.MemoryBackendSQLite:
		return NewSQLiteBackend(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}

func validateKey(namespace, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("memory key must not be empty")
	}
	for _, part := range []string{namespace, key} {
		if part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("invalid memory path component %q", part)
		}
	}
	return nil
}
