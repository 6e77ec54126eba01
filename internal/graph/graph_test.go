package graph

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/loomworks/loom/internal/types"
)

func issue(id string, status types.Status) *types.Issue {
	return &types.Issue{
		ID:        id,
		Title:     "Issue " + id,
		Status:    status,
		Priority:  2,
		IssueType: types.TypeTask,
	}
}

func dep(from, to string, t types.DependencyType) *types.Dependency {
	return &types.Dependency{FromID: from, ToID: to, Type: t}
}

func TestResolver_DirectBlocking(t *testing.T) {
	tests := []struct {
		name          string
		blockerStatus types.Status
		wantReady     bool
	}{
		{"open blocker blocks", types.StatusOpen, false},
		{"in_progress blocker blocks", types.StatusInProgress, false},
		{"closed blocker releases", types.StatusClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot(
				[]*types.Issue{issue("lm-1", types.StatusOpen), issue("lm-2", tt.blockerStatus)},
				[]*types.Dependency{dep("lm-1", "lm-2", types.DepBlocks)},
			)
			ready, err := NewResolver(snap).IsReady("lm-1")
			if err != nil {
				t.Fatalf("IsReady() error = %v", err)
			}
			if ready != tt.wantReady {
				t.Errorf("IsReady(lm-1) = %v, want %v", ready, tt.wantReady)
			}
		})
	}
}

func TestResolver_NonBlockingEdgeTypes(t *testing.T) {
	// related and discovered_from never affect readiness.
	snap := NewSnapshot(
		[]*types.Issue{issue("lm-1", types.StatusOpen), issue("lm-2", types.StatusOpen)},
		[]*types.Dependency{
			dep("lm-1", "lm-2", types.DepRelated),
			dep("lm-1", "lm-2", types.DepDiscoveredFrom),
		},
	)
	ready, err := NewResolver(snap).IsReady("lm-1")
	if err != nil {
		t.Fatalf("IsReady() error = %v", err)
	}
	if !ready {
		t.Error("annotation edges must not block")
	}
}

// Epic E blocked by open task B; child C of E inherits the block even
// though C has no edges of its own besides parent_child.
func TestResolver_EpicWithBlockedParent(t *testing.T) {
	snap := NewSnapshot(
		[]*types.Issue{
			issue("E", types.StatusOpen),
			issue("C", types.StatusOpen),
			issue("B", types.StatusOpen),
		},
		[]*types.Dependency{
			dep("C", "E", types.DepParentChild),
			dep("E", "B", types.DepBlocks),
		},
	)
	r := NewResolver(snap)

	ready := r.Ready()
	if slices.Contains(ready, "E") || slices.Contains(ready, "C") {
		t.Errorf("Ready() = %v, must exclude E and C", ready)
	}
	if !slices.Contains(ready, "B") {
		t.Errorf("Ready() = %v, must include the blocker B itself", ready)
	}

	blocked := r.Blocked()
	var ids []string
	for _, b := range blocked {
		ids = append(ids, b.ID)
	}
	if !slices.Contains(ids, "E") || !slices.Contains(ids, "C") {
		t.Errorf("Blocked() = %v, must include E and C", ids)
	}
	for _, b := range blocked {
		if b.ID == "C" && b.BlockedAncestor != "E" {
			t.Errorf("Blocked(C).BlockedAncestor = %q, want E", b.BlockedAncestor)
		}
		if b.ID == "E" && !slices.Equal(b.Blockers, []string{"B"}) {
			t.Errorf("Blocked(E).Blockers = %v, want [B]", b.Blockers)
		}
	}
}

// Design -> Implement -> Test -> Deploy: only the head of the chain is
// ready; closing it releases exactly the next link.
func TestResolver_PipelineChain(t *testing.T) {
	issues := []*types.Issue{
		issue("design", types.StatusOpen),
		issue("implement", types.StatusOpen),
		issue("test", types.StatusOpen),
		issue("deploy", types.StatusOpen),
	}
	deps := []*types.Dependency{
		dep("implement", "design", types.DepBlocks),
		dep("test", "implement", types.DepBlocks),
		dep("deploy", "test", types.DepBlocks),
	}

	r := NewResolver(NewSnapshot(issues, deps))
	if got := r.Ready(); !slices.Equal(got, []string{"design"}) {
		t.Fatalf("Ready() = %v, want [design]", got)
	}

	issues[0].Status = types.StatusClosed
	r = NewResolver(NewSnapshot(issues, deps))
	if got := r.Ready(); !slices.Equal(got, []string{"implement"}) {
		t.Fatalf("Ready() after closing design = %v, want [implement]", got)
	}
}

// Hierarchical blocking reaches ancestors at distance 1..50 and stops
// there: a descendant 51 hops below a blocked ancestor is unaffected.
func TestResolver_HierarchyDepthBoundary(t *testing.T) {
	var issues []*types.Issue
	var deps []*types.Dependency

	issues = append(issues, issue("root", types.StatusOpen), issue("blocker", types.StatusOpen))
	deps = append(deps, dep("root", "blocker", types.DepBlocks))

	parent := "root"
	for i := 1; i <= types.MaxHierarchyDepth+1; i++ {
		id := fmt.Sprintf("n%03d", i)
		issues = append(issues, issue(id, types.StatusOpen))
		deps = append(deps, dep(id, parent, types.DepParentChild))
		parent = id
	}

	r := NewResolver(NewSnapshot(issues, deps))

	at50 := fmt.Sprintf("n%03d", types.MaxHierarchyDepth)
	at51 := fmt.Sprintf("n%03d", types.MaxHierarchyDepth+1)

	if ready, _ := r.IsReady(at50); ready {
		t.Errorf("descendant at depth %d must inherit the block", types.MaxHierarchyDepth)
	}
	if ready, _ := r.IsReady(at51); !ready {
		t.Errorf("descendant at depth %d must not inherit the block", types.MaxHierarchyDepth+1)
	}
}

func TestResolver_ParentCycleTerminates(t *testing.T) {
	// An accidental parent_child cycle must not hang the resolver.
	snap := NewSnapshot(
		[]*types.Issue{issue("a", types.StatusOpen), issue("b", types.StatusOpen)},
		[]*types.Dependency{
			dep("a", "b", types.DepParentChild),
			dep("b", "a", types.DepParentChild),
		},
	)
	ready, err := NewResolver(snap).IsReady("a")
	if err != nil {
		t.Fatalf("IsReady() error = %v", err)
	}
	if !ready {
		t.Error("cycle with no blockers anywhere must still be ready")
	}
}

func TestResolver_UnknownID(t *testing.T) {
	r := NewResolver(NewSnapshot(nil, nil))
	_, err := r.IsReady("ghost-1")
	var nf *types.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("IsReady(ghost) error = %T, want *types.NotFoundError", err)
	}
}

func TestResolver_ClosedNeitherReadyNorBlocked(t *testing.T) {
	snap := NewSnapshot(
		[]*types.Issue{issue("lm-1", types.StatusClosed), issue("lm-2", types.StatusOpen)},
		[]*types.Dependency{dep("lm-1", "lm-2", types.DepBlocks)},
	)
	r := NewResolver(snap)
	if ready, _ := r.IsReady("lm-1"); ready {
		t.Error("closed issue must not be ready")
	}
	if blocked, _ := r.IsBlocked("lm-1"); blocked {
		t.Error("closed issue must not be blocked")
	}
}

func TestResolver_SiblingsShareAncestorWalk(t *testing.T) {
	// Many children under one blocked parent: the memoized ancestor walk
	// must give every sibling the same answer.
	issues := []*types.Issue{
		issue("parent", types.StatusOpen),
		issue("blocker", types.StatusOpen),
	}
	deps := []*types.Dependency{dep("parent", "blocker", types.DepBlocks)}
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("child-%02d", i)
		issues = append(issues, issue(id, types.StatusOpen))
		deps = append(deps, dep(id, "parent", types.DepParentChild))
	}

	r := NewResolver(NewSnapshot(issues, deps))
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("child-%02d", i)
		if blocked, _ := r.IsBlocked(id); !blocked {
			t.Errorf("IsBlocked(%s) = false, want true", id)
		}
	}
}

func TestDetectCycles(t *testing.T) {
	tests := []struct {
		name  string
		deps  []*types.Dependency
		ids   []string
		want  [][]string
	}{
		{
			name: "acyclic chain",
			ids:  []string{"a", "b", "c"},
			deps: []*types.Dependency{
				dep("a", "b", types.DepBlocks),
				dep("b", "c", types.DepBlocks),
			},
			want: nil,
		},
		{
			name: "two-node cycle",
			ids:  []string{"a", "b"},
			deps: []*types.Dependency{
				dep("a", "b", types.DepBlocks),
				dep("b", "a", types.DepBlocks),
			},
			want: [][]string{{"a", "b"}},
		},
		{
			name: "three-node cycle normalized to smallest id",
			ids:  []string{"m", "a", "z"},
			deps: []*types.Dependency{
				dep("m", "z", types.DepBlocks),
				dep("z", "a", types.DepBlocks),
				dep("a", "m", types.DepBlocks),
			},
			want: [][]string{{"a", "m", "z"}},
		},
		{
			name: "parent_child cycle is not a blocks cycle",
			ids:  []string{"a", "b"},
			deps: []*types.Dependency{
				dep("a", "b", types.DepParentChild),
				dep("b", "a", types.DepParentChild),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var issues []*types.Issue
			for _, id := range tt.ids {
				issues = append(issues, issue(id, types.StatusOpen))
			}
			got := DetectCycles(NewSnapshot(issues, tt.deps))
			if len(got) != len(tt.want) {
				t.Fatalf("DetectCycles() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !slices.Equal(got[i], tt.want[i]) {
					t.Errorf("cycle %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCheckIntegrity(t *testing.T) {
	clean := NewSnapshot(
		[]*types.Issue{issue("a", types.StatusOpen), issue("b", types.StatusOpen)},
		[]*types.Dependency{dep("a", "b", types.DepBlocks)},
	)
	if err := CheckIntegrity(clean); err != nil {
		t.Errorf("CheckIntegrity(clean) = %v, want nil", err)
	}

	dirty := NewSnapshot(
		[]*types.Issue{issue("a", types.StatusOpen), issue("b", types.StatusOpen)},
		[]*types.Dependency{
			dep("a", "b", types.DepBlocks),
			dep("b", "a", types.DepBlocks),
		},
	)
	err := CheckIntegrity(dirty)
	var corrupt *types.CorruptDataError
	if !errors.As(err, &corrupt) {
		t.Fatalf("CheckIntegrity(dirty) = %T, want *types.CorruptDataError", err)
	}
	if len(corrupt.Cycles) != 1 {
		t.Errorf("CorruptDataError.Cycles = %v, want one cycle", corrupt.Cycles)
	}
}
