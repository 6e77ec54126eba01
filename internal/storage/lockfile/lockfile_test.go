package lockfile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/types"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	l, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	// Reacquirable after release.
	l2, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	defer l2.Unlock()
}

func TestAcquireContended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.lock")

	held, err := Acquire(path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Unlock()

	start := time.Now()
	_, err = Acquire(path, 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected second Acquire() to fail while lock is held")
	}

	var lockErr *types.LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Acquire() error = %T, want *types.LockError", err)
	}
	if lockErr.Path != path {
		t.Errorf("LockError.Path = %q, want %q", lockErr.Path, path)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("Acquire() gave up after %s, want at least the wait budget", elapsed)
	}
}
