package filelock

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLockUnlock(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "nested", "test.lock"))

	if err := lock.Lock(context.Background()); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestLockContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	holder := NewFileLock(path)
	if err := holder.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewFileLock(path).Lock(ctx)
	if err == nil {
		t.Fatal("Lock should fail when the context ends first")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Lock did not honor the context deadline")
	}
}

func TestAtomicWrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "record.json")

	if err := AtomicWrite(target, []byte("first")); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if err := AtomicWrite(target, []byte("second")); err != nil {
		t.Fatalf("AtomicWrite overwrite failed: %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("permissions = %v, want 0644", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLockAndReadMissing(t *testing.T) {
	_, err := LockAndRead(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLockAndWriteThenRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ns", "key.json")

	if err := LockAndWrite(ctx, path, []byte(`[1,2]`)); err != nil {
		t.Fatal(err)
	}
	got, err := LockAndRead(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[1,2]` {
		t.Errorf("read %q", got)
	}
}

// Every reader sees a complete document while writers replace it.
func TestConcurrentLockAndWriteNoTornReads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "record.json")
	if err := LockAndWrite(ctx, path, []byte(`{"n":0}`)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			data, _ := json.Marshal(map[string]interface{}{"n": n, "pad": strings.Repeat("x", 4096)})
			if err := LockAndWrite(ctx, path, data); err != nil {
				t.Errorf("writer %d: %v", n, err)
			}
		}(i)
		go func() {
			defer wg.Done()
			data, err := LockAndRead(ctx, path)
			if err != nil {
				t.Errorf("reader: %v", err)
				return
			}
			var v map[string]interface{}
			if err := json.Unmarshal(data, &v); err != nil {
				t.Errorf("torn read: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestLockAndRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "record.json")

	if err := LockAndRemove(ctx, path); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}

	if err := LockAndWrite(ctx, path, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := LockAndRemove(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("record should be gone")
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file should be gone")
	}
}
