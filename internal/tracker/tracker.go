// Package tracker is the engine facade: one explicit handle tying the
// store, the blocking resolver, the sync engine, and the export scheduler
// together. Nothing in here is global, so independent trackers for
// independent projects coexist in one process.
package tracker

import (
	"context"
	"log"
	"time"

	"github.com/loomworks/loom/internal/export"
	"github.com/loomworks/loom/internal/graph"
	"github.com/loomworks/loom/internal/importer"
	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/storage/lockfile"
	"github.com/loomworks/loom/internal/storage/sqlite"
	"github.com/loomworks/loom/internal/syncd"
	"github.com/loomworks/loom/internal/types"
)

// Config describes one project's tracker.
type Config struct {
	DBPath     string
	JSONLPath  string
	Prefix     string
	LockWait   time.Duration // 0 = lockfile.DefaultWait
	Quiescence time.Duration // 0 = syncd.DefaultQuiescence
	AutoImport bool          // converge from the interchange file before operations
	Logger     *log.Logger   // nil = stderr
}

// Tracker is an open project handle. Close it to flush pending exports.
type Tracker struct {
	store      storage.Store
	jsonlPath  string
	lockPath   string
	lockWait   time.Duration
	sched      *syncd.Scheduler
	logger     *log.Logger
	autoImport bool
}

// Open opens (creating if needed) the store and starts the export
// scheduler.
func Open(cfg Config) (*Tracker, error) {
	store, err := sqlite.Open(cfg.DBPath, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	t := &Tracker{
		store:      store,
		jsonlPath:  cfg.JSONLPath,
		lockPath:   cfg.DBPath + ".lock",
		lockWait:   cfg.LockWait,
		logger:     cfg.Logger,
		autoImport: cfg.AutoImport,
	}
	t.sched = syncd.NewScheduler(store, cfg.JSONLPath, cfg.Quiescence, cfg.Logger)
	return t, nil
}

// Close cancels pending export work, flushes if dirty, and closes the store.
func (t *Tracker) Close() error {
	schedErr := t.sched.Close()
	storeErr := t.store.Close()
	if schedErr != nil {
		return schedErr
	}
	return storeErr
}

// Store exposes the underlying store for read-only integrations.
func (t *Tracker) Store() storage.Store {
	return t.store
}

// withLock runs fn under the per-store exclusive lock. Acquisition waits
// a bounded time and surfaces a LockError; nothing is retried here.
func (t *Tracker) withLock(fn func() error) error {
	lock, err := lockfile.Acquire(t.lockPath, t.lockWait)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

// converge runs the automatic import when enabled. It happens before the
// requesting operation so every command observes the interchange file's
// latest state. The import writes to the store, so the caller must hold
// the store lock; mutation paths call this inside their own withLock.
func (t *Tracker) converge(ctx context.Context) error {
	if !t.autoImport || t.jsonlPath == "" {
		return nil
	}
	_, err := syncd.AutoImport(ctx, t.store, t.jsonlPath, t.logger)
	return err
}

// convergeRead is converge for the read entry points, which do not
// otherwise lock. The lock is taken only when the cheap gate says the
// interchange file actually moved, so an up-to-date store keeps reads
// lock-free.
func (t *Tracker) convergeRead(ctx context.Context) error {
	if !t.autoImport || t.jsonlPath == "" {
		return nil
	}
	if !syncd.ImportPending(ctx, t.store, t.jsonlPath) {
		return nil
	}
	return t.withLock(func() error { return t.converge(ctx) })
}

// Create persists a new issue (id assigned when empty) and any initial
// edges, then schedules an export. Edges go through the cycle guard.
func (t *Tracker) Create(ctx context.Context, issue *types.Issue, deps []*types.Dependency) error {
	return t.withLock(func() error {
		if err := t.converge(ctx); err != nil {
			return err
		}
		if err := t.store.CreateIssue(ctx, issue); err != nil {
			return err
		}
		for _, dep := range deps {
			if dep.FromID == "" {
				dep.FromID = issue.ID
			}
			if err := t.store.AddDependency(ctx, dep); err != nil {
				return err
			}
		}
		t.sched.MarkDirty()
		return nil
	})
}

// Get returns one issue.
func (t *Tracker) Get(ctx context.Context, id string) (*types.Issue, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}
	return t.store.GetIssue(ctx, id)
}

// Update applies a partial update and schedules an export.
func (t *Tracker) Update(ctx context.Context, id string, patch *types.IssuePatch) (*types.Issue, error) {
	var updated *types.Issue
	err := t.withLock(func() error {
		if err := t.converge(ctx); err != nil {
			return err
		}
		issue, err := t.store.UpdateIssue(ctx, id, patch)
		if err != nil {
			return err
		}
		updated = issue
		t.sched.MarkDirty()
		return nil
	})
	return updated, err
}

// CloseIssue transitions an issue to closed with a mandatory reason.
func (t *Tracker) CloseIssue(ctx context.Context, id, reason string) (*types.Issue, error) {
	var closed *types.Issue
	err := t.withLock(func() error {
		if err := t.converge(ctx); err != nil {
			return err
		}
		issue, err := t.store.CloseIssue(ctx, id, reason)
		if err != nil {
			return err
		}
		closed = issue
		t.sched.MarkDirty()
		return nil
	})
	return closed, err
}

// List returns issues matching the filter, with derived blocked status
// applied to the returned copies so callers see what ready/blocked see.
func (t *Tracker) List(ctx context.Context, filter *types.IssueFilter) ([]*types.Issue, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}

	// A blocked-status filter works on the derived status, so match
	// everything open first and narrow below.
	derived := filter != nil && filter.Status != nil && *filter.Status == types.StatusBlocked
	queryFilter := filter
	if derived {
		f := *filter
		open := types.StatusOpen
		f.Status = &open
		queryFilter = &f
	}

	issues, err := t.store.ListIssues(ctx, queryFilter)
	if err != nil {
		return nil, err
	}

	resolver, err := t.resolver(ctx)
	if err != nil {
		return nil, err
	}
	var out []*types.Issue
	for _, issue := range issues {
		if blocked, _ := resolver.IsBlocked(issue.ID); blocked {
			issue.Status = types.StatusBlocked
		} else if derived {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

// AddDependency inserts an edge through the cycle guard.
func (t *Tracker) AddDependency(ctx context.Context, dep *types.Dependency) error {
	return t.withLock(func() error {
		if err := t.converge(ctx); err != nil {
			return err
		}
		if err := t.store.AddDependency(ctx, dep); err != nil {
			return err
		}
		t.sched.MarkDirty()
		return nil
	})
}

// RemoveDependency deletes the from->to edge regardless of type.
func (t *Tracker) RemoveDependency(ctx context.Context, from, to string) error {
	return t.withLock(func() error {
		if err := t.converge(ctx); err != nil {
			return err
		}
		if err := t.store.RemoveDependency(ctx, from, to); err != nil {
			return err
		}
		t.sched.MarkDirty()
		return nil
	})
}

// Flush exports synchronously, bypassing the debounce window.
func (t *Tracker) Flush() error {
	return t.sched.Flush()
}

// MarkDirty re-arms the export debounce timer.
func (t *Tracker) MarkDirty() {
	t.sched.MarkDirty()
}

func (t *Tracker) resolver(ctx context.Context) (*graph.Resolver, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewResolver(snap), nil
}

func (t *Tracker) snapshot(ctx context.Context) (*graph.Snapshot, error) {
	issues, err := t.store.ListIssues(ctx, nil)
	if err != nil {
		return nil, err
	}
	deps, err := t.store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewSnapshot(issues, deps), nil
}

// Import merges interchange content under the store lock and schedules a
// re-export so the canonical file converges on the merge result.
func (t *Tracker) Import(ctx context.Context, data []byte, opts importer.Options) (*importer.Result, error) {
	var result *importer.Result
	err := t.withLock(func() error {
		res, err := importer.New(t.store, t.logger).Import(ctx, data, opts)
		if err != nil {
			return err
		}
		result = res
		if opts.Mode != importer.ModeDryRun {
			t.sched.MarkDirty()
		}
		return nil
	})
	return result, err
}

// Export writes the interchange form of the store. Writing the canonical
// path with no filter goes through the scheduler so sync metadata stays
// accurate; other targets are plain snapshots.
func (t *Tracker) Export(ctx context.Context, path string, filter *types.IssueFilter, format string) error {
	if path == t.jsonlPath && filter == nil && format == "" {
		return t.sched.Flush()
	}

	records, err := export.Snapshot(ctx, t.store, filter)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case "", "jsonl":
		data, err = export.EncodeJSONL(records)
	case "yaml":
		data, err = export.EncodeYAML(records)
	default:
		return &types.ValidationError{Field: "format", Reason: "unknown export format: " + format}
	}
	if err != nil {
		return err
	}
	return export.WriteFileAtomic(path, data)
}
