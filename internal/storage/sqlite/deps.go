package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/loomworks/loom/internal/types"
)

// maxCycleProbeDepth bounds the reachability CTE so the guard terminates
// even if a cycle was introduced through the unchecked bulk path.
const maxCycleProbeDepth = 100

// AddDependency implements storage.Store.
//
// For blocks edges, the reachability probe and the insert share one
// transaction: either the edge is proven safe and inserted, or the
// transaction rolls back and the graph is byte-for-byte unchanged.
func (s *Store) AddDependency(ctx context.Context, dep *types.Dependency) error {
	if err := dep.Validate(); err != nil {
		return err
	}
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now().UTC()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{dep.FromID, dep.ToID} {
		if _, err := getIssueTx(ctx, tx, id); err != nil {
			return err
		}
	}

	if dep.Type == types.DepBlocks {
		path, err := blocksPathTx(ctx, tx, dep.ToID, dep.FromID)
		if err != nil {
			return err
		}
		if path != nil {
			return &types.CycleError{From: dep.FromID, To: dep.ToID, Path: path}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deps (from_id, to_id, type, created_at)
		VALUES (?, ?, ?, ?)`,
		dep.FromID, dep.ToID, string(dep.Type), dep.CreatedAt.Format(timeFormat))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &types.ValidationError{
				Field:  "dependency",
				Reason: fmt.Sprintf("edge %s -> %s (%s) already exists", dep.FromID, dep.ToID, dep.Type),
			}
		}
		return fmt.Errorf("failed to insert dependency: %w", err)
	}

	if err := markDirtyTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dependency insert: %w", err)
	}
	return nil
}

// blocksPathTx walks blocks edges from start and returns the id chain to
// target, or nil if target is unreachable. Depth-capped recursive CTE.
func blocksPathTx(ctx context.Context, tx *sql.Tx, start, target string) ([]string, error) {
	var path string
	err := tx.QueryRowContext(ctx, `
		WITH RECURSIVE reach(id, path, depth) AS (
			SELECT ?, ?, 0
			UNION ALL
			SELECT d.to_id, reach.path || '>' || d.to_id, reach.depth + 1
			FROM deps d
			JOIN reach ON d.from_id = reach.id
			WHERE d.type = 'blocks' AND reach.depth < ?
		)
		SELECT path FROM reach WHERE id = ? LIMIT 1`,
		start, start, maxCycleProbeDepth, target).Scan(&path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to probe blocks reachability: %w", err)
	}
	return strings.Split(path, ">"), nil
}

// RemoveDependency implements storage.Store: deletes the from->to edge
// regardless of type. Removing an edge can flip readiness of a whole
// subtree; the caller reschedules export.
func (s *Store) RemoveDependency(ctx context.Context, from, to string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM deps WHERE from_id = ? AND to_id = ?", from, to)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if n == 0 {
		return &types.NotFoundError{ID: fmt.Sprintf("dependency %s -> %s", from, to)}
	}

	if err := markDirtyTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dependency delete: %w", err)
	}
	return nil
}

// ListDependencies implements storage.Store.
func (s *Store) ListDependencies(ctx context.Context) ([]*types.Dependency, error) {
	return s.queryDeps(ctx,
		"SELECT from_id, to_id, type, created_at FROM deps ORDER BY from_id, to_id, type")
}

// DependenciesOf returns outgoing edges of id (what id depends on).
func (s *Store) DependenciesOf(ctx context.Context, id string) ([]*types.Dependency, error) {
	return s.queryDeps(ctx,
		"SELECT from_id, to_id, type, created_at FROM deps WHERE from_id = ? ORDER BY to_id, type", id)
}

// DependentsOf returns incoming edges of id (what depends on id).
func (s *Store) DependentsOf(ctx context.Context, id string) ([]*types.Dependency, error) {
	return s.queryDeps(ctx,
		"SELECT from_id, to_id, type, created_at FROM deps WHERE to_id = ? ORDER BY from_id, type", id)
}

func (s *Store) queryDeps(ctx context.Context, query string, args ...any) ([]*types.Dependency, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*types.Dependency
	for rows.Next() {
		var (
			dep       types.Dependency
			depType   string
			createdAt string
		)
		if err := rows.Scan(&dep.FromID, &dep.ToID, &depType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		dep.Type = types.DependencyType(depType)
		if dep.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("corrupt dependency timestamp: %w", err)
		}
		deps = append(deps, &dep)
	}
	return deps, rows.Err()
}

// BulkUpsert implements storage.Store: one all-or-nothing transaction that
// upserts every issue and then every edge. Edges skip the cycle guard, so
// this is the path the advisory cycle scan audits after imports.
func (s *Store) BulkUpsert(ctx context.Context, issues []*types.Issue, deps []*types.Dependency) error {
	for _, issue := range issues {
		issue.NormalizeLabels()
		if err := issue.Validate(); err != nil {
			return err
		}
	}
	for _, dep := range deps {
		if err := dep.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, issue := range issues {
		if err := upsertIssueTx(ctx, tx, issue); err != nil {
			return err
		}
		if err := advanceCounterPastTx(ctx, tx, s.prefix, issue.ID); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(timeFormat)
	for _, dep := range deps {
		created := now
		if !dep.CreatedAt.IsZero() {
			created = dep.CreatedAt.Format(timeFormat)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deps (from_id, to_id, type, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(from_id, to_id, type) DO NOTHING`,
			dep.FromID, dep.ToID, string(dep.Type), created)
		if err != nil {
			return fmt.Errorf("failed to upsert dependency %s -> %s: %w", dep.FromID, dep.ToID, err)
		}
	}

	if err := markDirtyTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk upsert: %w", err)
	}
	return nil
}

func upsertIssueTx(ctx context.Context, tx *sql.Tx, issue *types.Issue) error {
	labels, err := marshalLabels(issue.Labels)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			design = excluded.design,
			acceptance_criteria = excluded.acceptance_criteria,
			notes = excluded.notes,
			status = excluded.status,
			priority = excluded.priority,
			issue_type = excluded.issue_type,
			assignee = excluded.assignee,
			labels = excluded.labels,
			estimated_hours = excluded.estimated_hours,
			actual_hours = excluded.actual_hours,
			updated_at = excluded.updated_at,
			closed_at = excluded.closed_at,
			close_reason = excluded.close_reason`,
		issue.ID, issue.Title, issue.Description, issue.Design,
		issue.AcceptanceCriteria, issue.Notes,
		string(issue.Status), issue.Priority, string(issue.IssueType),
		issue.Assignee, labels,
		issue.EstimatedHours, issue.ActualHours,
		issue.CreatedAt.Format(timeFormat), issue.UpdatedAt.Format(timeFormat),
		nullableTime(issue.ClosedAt), issue.CloseReason)
	if err != nil {
		return fmt.Errorf("failed to upsert issue %s: %w", issue.ID, err)
	}
	return nil
}
