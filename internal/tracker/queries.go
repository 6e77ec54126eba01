package tracker

import (
	"context"
	"slices"

	"github.com/loomworks/loom/internal/graph"
	"github.com/loomworks/loom/internal/types"
)

// Ready returns issues that are open, unblocked, and have no blocked
// ancestor, narrowed by filter, ordered by priority then id. A limit of 0
// means unlimited.
func (t *Tracker) Ready(ctx context.Context, filter *types.IssueFilter, limit int) ([]*types.Issue, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}

	issues, err := t.store.ListIssues(ctx, filter)
	if err != nil {
		return nil, err
	}
	resolver, err := t.resolver(ctx)
	if err != nil {
		return nil, err
	}

	var ready []*types.Issue
	for _, issue := range issues {
		ok, err := resolver.IsReady(issue.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			ready = append(ready, issue)
		}
	}

	slices.SortFunc(ready, func(a, b *types.Issue) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return types.CompareIDs(a.ID, b.ID)
	})
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

// Blocked returns every blocked open issue with the ids responsible.
func (t *Tracker) Blocked(ctx context.Context) ([]*types.BlockedIssue, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}

	issues, err := t.store.ListIssues(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	resolver, err := t.resolver(ctx)
	if err != nil {
		return nil, err
	}

	var blocked []*types.BlockedIssue
	for _, info := range resolver.Blocked() {
		issue := byID[info.ID]
		if issue == nil {
			continue
		}
		derived := *issue
		derived.Status = types.StatusBlocked
		blocked = append(blocked, &types.BlockedIssue{
			Issue:           derived,
			Blockers:        info.Blockers,
			BlockedAncestor: info.BlockedAncestor,
		})
	}
	return blocked, nil
}

// IsReady evaluates the readiness predicate for one issue.
func (t *Tracker) IsReady(ctx context.Context, id string) (bool, error) {
	if err := t.convergeRead(ctx); err != nil {
		return false, err
	}
	resolver, err := t.resolver(ctx)
	if err != nil {
		return false, err
	}
	return resolver.IsReady(id)
}

// Stats summarizes the store.
func (t *Tracker) Stats(ctx context.Context) (*types.Statistics, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}

	issues, err := t.store.ListIssues(ctx, nil)
	if err != nil {
		return nil, err
	}
	deps, err := t.store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}

	resolver := graph.NewResolver(graph.NewSnapshot(issues, deps))
	stats := &types.Statistics{Total: len(issues), Dependencies: len(deps)}
	for _, issue := range issues {
		switch issue.Status {
		case types.StatusOpen:
			stats.Open++
		case types.StatusInProgress:
			stats.InProgress++
		case types.StatusClosed:
			stats.Closed++
		}
		if ready, _ := resolver.IsReady(issue.ID); ready {
			stats.Ready++
		} else if blocked, _ := resolver.IsBlocked(issue.ID); blocked {
			stats.Blocked++
		}
	}
	return stats, nil
}

// Tree renders the readiness-relevant dependency tree below id: what id
// waits on (blocks edges) and its children (reversed parent_child edges),
// depth-capped and cycle-safe.
func (t *Tracker) Tree(ctx context.Context, id string) (*types.TreeNode, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}

	issues, err := t.store.ListIssues(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}
	if byID[id] == nil {
		return nil, &types.NotFoundError{ID: id}
	}

	deps, err := t.store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*types.Dependency)
	children := make(map[string][]string)
	for _, dep := range deps {
		if dep.Type == types.DepBlocks {
			out[dep.FromID] = append(out[dep.FromID], dep)
		}
		if dep.Type == types.DepParentChild {
			children[dep.ToID] = append(children[dep.ToID], dep.FromID)
		}
	}

	visited := make(map[string]bool)
	var build func(id, edge string, depth int) *types.TreeNode
	build = func(id, edge string, depth int) *types.TreeNode {
		issue := byID[id]
		if issue == nil {
			return nil
		}
		node := &types.TreeNode{Issue: *issue, Depth: depth, EdgeType: edge}
		if depth >= types.MaxHierarchyDepth || visited[id] {
			return node
		}
		visited[id] = true
		for _, dep := range out[id] {
			if child := build(dep.ToID, string(types.DepBlocks), depth+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		childIDs := slices.Clone(children[id])
		slices.SortFunc(childIDs, types.CompareIDs)
		for _, childID := range childIDs {
			if child := build(childID, string(types.DepParentChild), depth+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node
	}
	return build(id, "", 0), nil
}

// Cycles runs the advisory blocks-cycle scan. A non-nil error is a
// CorruptDataError carrying the cycles; the graph is never modified.
func (t *Tracker) Cycles(ctx context.Context) ([][]string, error) {
	if err := t.convergeRead(ctx); err != nil {
		return nil, err
	}
	snap, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	cycles := graph.DetectCycles(snap)
	if len(cycles) > 0 {
		return cycles, &types.CorruptDataError{Detail: "blocks graph contains cycles", Cycles: cycles}
	}
	return nil, nil
}
