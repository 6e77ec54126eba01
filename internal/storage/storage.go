// Package storage defines the persistence contract for loom stores.
//
// A Store owns the issues table, the dependency adjacency table, and a
// small metadata key/value space used by the sync protocol (dirty flag,
// interchange content hash, id counter). Implementations must provide
// atomic multi-record transactions and consistent point-in-time reads.
package storage

import (
	"context"

	"github.com/loomworks/loom/internal/types"
)

// Metadata keys used by the sync protocol.
const (
	MetaDirty          = "dirty"
	MetaContentHash    = "jsonl_content_hash"
	MetaLastImportUnix = "last_import_unix"
	MetaLastExportUnix = "last_export_unix"
	MetaIssuePrefix    = "issue_prefix"
	MetaIssueCounter   = "issue_counter"
	MetaFormatVersion  = "format_version"
)

// Store is the persistence interface consumed by the tracker facade, the
// blocking resolver (via snapshots), and the sync engine.
type Store interface {
	// CreateIssue persists a new issue. An empty ID is assigned from the
	// store's prefix and counter; explicit ids are honored and advance the
	// counter past their numeric suffix so independent callers can allocate
	// ids safely.
	CreateIssue(ctx context.Context, issue *types.Issue) error

	// GetIssue returns the issue or a NotFoundError.
	GetIssue(ctx context.Context, id string) (*types.Issue, error)

	// UpdateIssue applies a partial update and returns the updated issue.
	UpdateIssue(ctx context.Context, id string, patch *types.IssuePatch) (*types.Issue, error)

	// CloseIssue transitions the issue to closed with a mandatory reason.
	CloseIssue(ctx context.Context, id, reason string) (*types.Issue, error)

	// ListIssues returns issues matching every set filter field, ordered by id.
	ListIssues(ctx context.Context, filter *types.IssueFilter) ([]*types.Issue, error)

	// AddDependency inserts an edge. For blocks edges the insert and the
	// cycle reachability check run in one transaction; a cycle-forming edge
	// is rejected with a CycleError and the graph is left unchanged.
	AddDependency(ctx context.Context, dep *types.Dependency) error

	// RemoveDependency deletes the edge between from and to regardless of type.
	RemoveDependency(ctx context.Context, from, to string) error

	// ListDependencies returns every edge, ordered by (from, to, type).
	ListDependencies(ctx context.Context) ([]*types.Dependency, error)

	// DependenciesOf returns outgoing edges of id; DependentsOf incoming.
	DependenciesOf(ctx context.Context, id string) ([]*types.Dependency, error)
	DependentsOf(ctx context.Context, id string) ([]*types.Dependency, error)

	// BulkUpsert applies issues and edges in one all-or-nothing
	// transaction. Edges are inserted without the cycle guard; this is the
	// unchecked path the advisory cycle scan exists to audit.
	BulkUpsert(ctx context.Context, issues []*types.Issue, deps []*types.Dependency) error

	// AllocateID reserves the next generated id, guaranteed absent from the
	// store at allocation time.
	AllocateID(ctx context.Context) (string, error)

	// GetMetadata returns "" (no error) for missing keys.
	GetMetadata(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error

	Close() error
}
