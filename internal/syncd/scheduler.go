package syncd

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/loomworks/loom/internal/export"
	"github.com/loomworks/loom/internal/storage"
)

// DefaultQuiescence is the export debounce window: long enough to absorb
// a scripted burst of mutations, short enough that the interchange file
// is never far behind the store.
const DefaultQuiescence = 3 * time.Second

// failureWarnThreshold: after this many consecutive export failures the
// scheduler escalates from per-failure lines to a louder warning.
const failureWarnThreshold = 3

// Scheduler owns the debounced background export. Every mutation calls
// MarkDirty; when the quiescence window elapses without further
// mutations, the store is exported once. Close cancels any pending timer
// and flushes synchronously, so a graceful shutdown never loses writes.
type Scheduler struct {
	store    storage.Store
	path     string
	logger   *log.Logger
	debounce *Debouncer

	mu       sync.Mutex
	failures int
	closed   bool
}

// NewScheduler creates a scheduler exporting store to path after each
// quiescence window. A zero duration selects DefaultQuiescence.
func NewScheduler(store storage.Store, path string, quiescence time.Duration, logger *log.Logger) *Scheduler {
	if quiescence <= 0 {
		quiescence = DefaultQuiescence
	}
	s := &Scheduler{
		store:  store,
		path:   path,
		logger: logger,
	}
	s.debounce = NewDebouncer(quiescence, s.export)
	return s
}

// MarkDirty records that the store changed and (re)arms the export timer.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.debounce.Trigger()
}

// Flush exports immediately, bypassing the timer. Used on shutdown and by
// explicit export commands that must observe their own writes.
func (s *Scheduler) Flush() error {
	s.debounce.Cancel()
	_, err := export.Full(context.Background(), s.store, s.path)
	s.noteResult(err)
	return err
}

// Close cancels pending work and performs the final synchronous export if
// the store is still dirty. Safe to call once.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.debounce.Cancel()

	dirty, err := s.store.GetMetadata(context.Background(), storage.MetaDirty)
	if err != nil {
		return err
	}
	if dirty != "1" {
		return nil
	}
	_, err = export.Full(context.Background(), s.store, s.path)
	s.noteResult(err)
	return err
}

func (s *Scheduler) export() {
	_, err := export.Full(context.Background(), s.store, s.path)
	s.noteResult(err)
}

func (s *Scheduler) noteResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.failures = 0
		if s.logger != nil {
			s.logger.Printf("exported store to %s", s.path)
		}
		return
	}

	s.failures++
	if s.logger != nil {
		s.logger.Printf("export failed: %v", err)
		if s.failures >= failureWarnThreshold {
			s.logger.Printf("WARNING: %d consecutive export failures; %s is stale", s.failures, s.path)
		}
	}
}
