package types

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a malformed or out-of-range field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation referencing an id absent from the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("issue not found: %s", e.ID)
}

// CycleError reports a rejected blocks edge that would have closed a cycle.
// Path lists the ids along the existing chain from the edge target back to
// the edge source.
type CycleError struct {
	From string
	To   string
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("dependency %s -> %s would create a cycle: %s",
			e.From, e.To, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.From, e.To)
}

// LockError reports that the store lock was not acquired within the wait
// budget. The operation is not retried automatically.
type LockError struct {
	Path   string
	Waited time.Duration
}

func (e *LockError) Error() string {
	return fmt.Sprintf("could not acquire lock %s after %s", e.Path, e.Waited)
}

// CollisionError reports incoming ids that exist locally with different
// content when no resolution mode was requested.
type CollisionError struct {
	IDs []string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("import collision on %d issue(s): %s (re-run with collision resolution or skip-existing)",
		len(e.IDs), strings.Join(e.IDs, ", "))
}

// CorruptDataError reports an invariant violated out-of-band: cycles found
// by the diagnostic scan, or an unreadable interchange file. It is reported
// to the caller, never auto-repaired.
type CorruptDataError struct {
	Detail string
	Cycles [][]string
}

func (e *CorruptDataError) Error() string {
	if len(e.Cycles) > 0 {
		return fmt.Sprintf("corrupt data: %s (%d cycle(s) in blocks graph)", e.Detail, len(e.Cycles))
	}
	return "corrupt data: " + e.Detail
}
