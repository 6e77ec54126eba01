// Package graph computes readiness, blocking, and cycle diagnostics over
// a point-in-time snapshot of the issue store.
//
// The snapshot is an adjacency table keyed by issue id, loaded in one
// consistent read. Resolvers never mutate anything; "blocked" is a normal
// query outcome, not an error.
package graph

import (
	"slices"

	"github.com/loomworks/loom/internal/types"
)

// Snapshot is an immutable view of issue statuses and dependency edges.
type Snapshot struct {
	status   map[string]types.Status
	blockers map[string][]string // issue -> ids it depends on via blocks
	parents  map[string][]string // child -> parents via parent_child
	ids      []string            // all issue ids, sorted
}

// NewSnapshot builds a snapshot from issues and edges. Edges whose
// endpoints are unknown are kept (they can arrive through bulk import) but
// never block anything, since an unknown blocker has no status.
func NewSnapshot(issues []*types.Issue, deps []*types.Dependency) *Snapshot {
	s := &Snapshot{
		status:   make(map[string]types.Status, len(issues)),
		blockers: make(map[string][]string),
		parents:  make(map[string][]string),
	}
	for _, issue := range issues {
		s.status[issue.ID] = issue.Status
		s.ids = append(s.ids, issue.ID)
	}
	slices.SortFunc(s.ids, types.CompareIDs)

	for _, dep := range deps {
		switch dep.Type {
		case types.DepBlocks:
			s.blockers[dep.FromID] = append(s.blockers[dep.FromID], dep.ToID)
		case types.DepParentChild:
			s.parents[dep.FromID] = append(s.parents[dep.FromID], dep.ToID)
		}
	}
	for _, adj := range []map[string][]string{s.blockers, s.parents} {
		for id := range adj {
			slices.SortFunc(adj[id], types.CompareIDs)
		}
	}
	return s
}

// IDs returns every issue id in the snapshot, sorted.
func (s *Snapshot) IDs() []string {
	return s.ids
}

// Contains reports whether id exists in the snapshot.
func (s *Snapshot) Contains(id string) bool {
	_, ok := s.status[id]
	return ok
}

// openBlockers returns the blockers of id whose status is not closed.
func (s *Snapshot) openBlockers(id string) []string {
	var open []string
	for _, b := range s.blockers[id] {
		if st, ok := s.status[b]; ok && st != types.StatusClosed {
			open = append(open, b)
		}
	}
	return open
}

// unreachable sentinel for ancestor distance: anything past the hierarchy
// depth cap behaves as "no blocked ancestor".
const distInf = types.MaxHierarchyDepth + 1

// Resolver evaluates the readiness predicate against one snapshot.
// Ancestor distances are memoized for the resolver's lifetime, which is
// one query call; build a fresh resolver after any mutation.
type Resolver struct {
	snap *Snapshot
	dist map[string]int // memoized distance to nearest directly-blocked ancestor
}

// NewResolver creates a resolver over snap.
func NewResolver(snap *Snapshot) *Resolver {
	return &Resolver{
		snap: snap,
		dist: make(map[string]int),
	}
}

// IsReady reports whether the issue is open, has no open blocker, and has
// no directly-blocked ancestor within MaxHierarchyDepth parent_child hops.
func (r *Resolver) IsReady(id string) (bool, error) {
	if !r.snap.Contains(id) {
		return false, &types.NotFoundError{ID: id}
	}
	if r.snap.status[id] != types.StatusOpen {
		return false, nil
	}
	if len(r.snap.openBlockers(id)) > 0 {
		return false, nil
	}
	return r.blockedAncestorDistance(id, nil) > types.MaxHierarchyDepth, nil
}

// IsBlocked reports the complement of ready among open issues: closed and
// in_progress issues are neither ready nor blocked.
func (r *Resolver) IsBlocked(id string) (bool, error) {
	if !r.snap.Contains(id) {
		return false, &types.NotFoundError{ID: id}
	}
	if r.snap.status[id] != types.StatusOpen {
		return false, nil
	}
	ready, err := r.IsReady(id)
	if err != nil {
		return false, err
	}
	return !ready, nil
}

// Ready returns the ids of every ready issue, sorted.
func (r *Resolver) Ready() []string {
	var ready []string
	for _, id := range r.snap.ids {
		ok, _ := r.IsReady(id)
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// Blocked returns every blocked open issue with its open direct blockers
// and, when the cause is hierarchical, the nearest blocked ancestor.
func (r *Resolver) Blocked() []BlockedInfo {
	var blocked []BlockedInfo
	for _, id := range r.snap.ids {
		ok, _ := r.IsBlocked(id)
		if !ok {
			continue
		}
		info := BlockedInfo{ID: id, Blockers: r.snap.openBlockers(id)}
		if d := r.blockedAncestorDistance(id, nil); d <= types.MaxHierarchyDepth {
			info.BlockedAncestor = r.nearestBlockedAncestor(id)
		}
		blocked = append(blocked, info)
	}
	return blocked
}

// BlockedInfo names what blocks an issue.
type BlockedInfo struct {
	ID              string
	Blockers        []string
	BlockedAncestor string
}

// directlyBlocked reports whether id has an open blocker of its own.
func (r *Resolver) directlyBlocked(id string) bool {
	return len(r.snap.openBlockers(id)) > 0
}

// blockedAncestorDistance returns the hop count to the nearest ancestor
// with an open direct blocker, or distInf when none exists within the
// cap. The visiting set terminates accidental parent_child cycles; the
// cap alone already bounds the effect radius.
func (r *Resolver) blockedAncestorDistance(id string, visiting map[string]bool) int {
	if d, ok := r.dist[id]; ok {
		return d
	}
	if visiting[id] {
		return distInf
	}
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	visiting[id] = true
	defer delete(visiting, id)

	best := distInf
	for _, parent := range r.snap.parents[id] {
		var d int
		if r.directlyBlocked(parent) {
			d = 1
		} else {
			up := r.blockedAncestorDistance(parent, visiting)
			if up >= distInf {
				continue
			}
			d = up + 1
		}
		if d < best {
			best = d
		}
	}
	r.dist[id] = best
	return best
}

// nearestBlockedAncestor walks upward breadth-first and returns the first
// directly-blocked ancestor within the depth cap, preferring the smallest
// id at equal distance.
func (r *Resolver) nearestBlockedAncestor(id string) string {
	frontier := r.snap.parents[id]
	seen := map[string]bool{id: true}
	for depth := 1; depth <= types.MaxHierarchyDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, a := range frontier {
			if seen[a] {
				continue
			}
			seen[a] = true
			if r.directlyBlocked(a) {
				return a
			}
			next = append(next, r.snap.parents[a]...)
		}
		frontier = next
	}
	return ""
}
