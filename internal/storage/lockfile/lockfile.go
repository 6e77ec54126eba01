// Package lockfile provides the per-store exclusive lock.
//
// Mutating operations hold this lock for their duration; readers rely on
// the storage engine's snapshot isolation instead. Acquisition waits a
// bounded time, then fails with a LockError rather than hanging. The lock
// is advisory (flock), so it only coordinates cooperating loom processes.
package lockfile

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loomworks/loom/internal/types"
)

// DefaultWait is the acquisition budget when the caller passes zero.
const DefaultWait = 5 * time.Second

const pollInterval = 100 * time.Millisecond

// Lock is a held exclusive lock. Release with Unlock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes an exclusive flock on path, retrying until maxWait
// elapses. It returns a LockError if the budget is exhausted; the caller
// decides whether to retry, never this package.
func Acquire(path string, maxWait time.Duration) (*Lock, error) {
	if maxWait <= 0 {
		maxWait = DefaultWait
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(maxWait)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f, path: path}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			_ = f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, &types.LockError{Path: path, Waited: maxWait}
		}
		time.Sleep(pollInterval)
	}
}

// Unlock releases the lock. Safe to call once per acquired lock.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("funlock %s: %w", l.path, err)
	}
	err := l.f.Close()
	l.f = nil
	return err
}
