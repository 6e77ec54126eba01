// Package types defines the core domain model for loom: issues, typed
// dependency edges, filters, and the error taxonomy shared by every layer.
package types

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status represents the stored lifecycle state of an issue.
// StatusBlocked is never persisted; it is derived by the blocking
// resolver and appears only in query results.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
	StatusBlocked    Status = "blocked"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed, StatusBlocked:
		return true
	}
	return false
}

// IsStorable reports whether s may be written to the store.
// Derived statuses (blocked) are rejected at the storage boundary.
func (s Status) IsStorable() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed:
		return true
	}
	return false
}

// IssueType categorizes an issue.
type IssueType string

const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// IsValid reports whether t is a known issue type.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore:
		return true
	}
	return false
}

// DependencyType classifies a directed edge between two issues.
type DependencyType string

const (
	// DepBlocks means the target must close before the source is ready.
	DepBlocks DependencyType = "blocks"
	// DepRelated is a non-blocking contextual link.
	DepRelated DependencyType = "related"
	// DepParentChild links a child (from) to its parent (to).
	DepParentChild DependencyType = "parent_child"
	// DepDiscoveredFrom records which issue surfaced this one.
	DepDiscoveredFrom DependencyType = "discovered_from"
)

// IsValid reports whether dt is a known dependency type.
func (dt DependencyType) IsValid() bool {
	switch dt {
	case DepBlocks, DepRelated, DepParentChild, DepDiscoveredFrom:
		return true
	}
	return false
}

// AffectsReadiness reports whether edges of this type participate in the
// ready-work computation. Only blocks edges block directly; parent_child
// propagates blocking hierarchically.
func (dt DependencyType) AffectsReadiness() bool {
	return dt == DepBlocks || dt == DepParentChild
}

// MaxTitleLength bounds issue titles.
const MaxTitleLength = 500

// MaxHierarchyDepth bounds parent_child traversal during blocking
// propagation. An ancestor more than this many hops away cannot block a
// descendant, which also guarantees termination if a hierarchy cycle is
// introduced out-of-band.
const MaxHierarchyDepth = 50

// Issue is a single unit of work. Issues are never deleted; closing is a
// status transition that records a reason and timestamp.
type Issue struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Design             string     `json:"design,omitempty"`
	AcceptanceCriteria string     `json:"acceptance_criteria,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Status             Status     `json:"status"`
	Priority           int        `json:"priority"`
	IssueType          IssueType  `json:"issue_type"`
	Assignee           string     `json:"assignee,omitempty"`
	Labels             []string   `json:"labels,omitempty"`
	EstimatedHours     *float64   `json:"estimated_hours,omitempty"`
	ActualHours        *float64   `json:"actual_hours,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	CloseReason        string     `json:"close_reason,omitempty"`
}

// Validate checks field constraints. Status is validated against storable
// values: derived statuses never reach the store.
func (i *Issue) Validate() error {
	if i.ID == "" {
		return &ValidationError{Field: "id", Reason: "id is required"}
	}
	if i.Title == "" {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(i.Title) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("title must be %d characters or less", MaxTitleLength)}
	}
	if i.Priority < 0 || i.Priority > 4 {
		return &ValidationError{Field: "priority", Reason: "priority must be between 0 and 4"}
	}
	if !i.Status.IsStorable() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %q", i.Status)}
	}
	if !i.IssueType.IsValid() {
		return &ValidationError{Field: "issue_type", Reason: fmt.Sprintf("invalid issue type: %q", i.IssueType)}
	}
	return nil
}

// NormalizeLabels sorts labels and drops duplicates and empty strings,
// giving label sets a canonical form for comparison and export.
func (i *Issue) NormalizeLabels() {
	if len(i.Labels) == 0 {
		i.Labels = nil
		return
	}
	slices.Sort(i.Labels)
	i.Labels = slices.Compact(i.Labels)
	i.Labels = slices.DeleteFunc(i.Labels, func(l string) bool { return l == "" })
	if len(i.Labels) == 0 {
		i.Labels = nil
	}
}

// TextFields returns pointers to the free-text fields that may mention
// other issue ids. The importer rewrites these during collision remapping.
func (i *Issue) TextFields() []*string {
	return []*string{&i.Description, &i.Design, &i.AcceptanceCriteria, &i.Notes}
}

// ContentEqual reports whether two issues carry identical canonical
// content, ignoring volatile timestamps. Import bucketing uses this to
// distinguish exact matches from collisions.
func (i *Issue) ContentEqual(other *Issue) bool {
	if i.Title != other.Title ||
		i.Description != other.Description ||
		i.Design != other.Design ||
		i.AcceptanceCriteria != other.AcceptanceCriteria ||
		i.Notes != other.Notes ||
		i.Status != other.Status ||
		i.Priority != other.Priority ||
		i.IssueType != other.IssueType ||
		i.Assignee != other.Assignee ||
		i.CloseReason != other.CloseReason {
		return false
	}
	a, b := slices.Clone(i.Labels), slices.Clone(other.Labels)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Dependency is a directed edge: From depends on To. For blocks edges To
// blocks From; for parent_child edges To is the parent of From.
type Dependency struct {
	FromID    string         `json:"from_id"`
	ToID      string         `json:"to_id"`
	Type      DependencyType `json:"type"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// Validate checks edge constraints, including the self-loop ban.
func (d *Dependency) Validate() error {
	if d.FromID == "" || d.ToID == "" {
		return &ValidationError{Field: "dependency", Reason: "both endpoint ids are required"}
	}
	if d.FromID == d.ToID {
		return &ValidationError{Field: "dependency", Reason: fmt.Sprintf("self-loop on %s", d.FromID)}
	}
	if !d.Type.IsValid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("invalid dependency type: %q", d.Type)}
	}
	return nil
}

// IssueFilter narrows list queries. Fields combine by logical AND;
// nil/empty fields match everything.
type IssueFilter struct {
	Status       *Status
	Priority     *int
	Assignee     *string
	IssueType    *IssueType
	Labels       []string // issue must carry every listed label
	UpdatedSince *time.Time
}

// IssuePatch is a partial update. Nil fields are left unchanged.
type IssuePatch struct {
	Title              *string
	Description        *string
	Design             *string
	AcceptanceCriteria *string
	Notes              *string
	Status             *Status
	Priority           *int
	IssueType          *IssueType
	Assignee           *string
	Labels             *[]string
	EstimatedHours     *float64
	ActualHours        *float64
}

// Empty reports whether the patch changes nothing.
func (p *IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Design == nil &&
		p.AcceptanceCriteria == nil && p.Notes == nil && p.Status == nil &&
		p.Priority == nil && p.IssueType == nil && p.Assignee == nil &&
		p.Labels == nil && p.EstimatedHours == nil && p.ActualHours == nil
}

// BlockedIssue pairs an issue with the ids responsible for blocking it:
// open direct blockers and, when the cause is hierarchical, the nearest
// blocked ancestor.
type BlockedIssue struct {
	Issue
	Blockers        []string `json:"blockers,omitempty"`
	BlockedAncestor string   `json:"blocked_ancestor,omitempty"`
}

// TreeNode is one level of a dependency tree rendering.
type TreeNode struct {
	Issue
	Depth    int         `json:"depth"`
	EdgeType string      `json:"edge_type,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Statistics summarizes a store for the stats command.
type Statistics struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	InProgress   int `json:"in_progress"`
	Closed       int `json:"closed"`
	Ready        int `json:"ready"`
	Blocked      int `json:"blocked"`
	Dependencies int `json:"dependencies"`
}

// CompareIDs orders issue ids for deterministic export: ids sharing a
// textual prefix with numeric suffixes sort numerically ("bd-9" before
// "bd-10"), everything else falls back to plain lexical order.
func CompareIDs(a, b string) int {
	pa, na, oka := splitID(a)
	pb, nb, okb := splitID(b)
	if oka && okb && pa == pb {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return strings.Compare(a, b)
		}
	}
	return strings.Compare(a, b)
}

func splitID(id string) (prefix string, n int64, ok bool) {
	idx := strings.LastIndexByte(id, '-')
	if idx < 0 || idx == len(id)-1 {
		return "", 0, false
	}
	var v int64
	for _, r := range id[idx+1:] {
		if r < '0' || r > '9' {
			return "", 0, false
		}
		v = v*10 + int64(r-'0')
	}
	return id[:idx], v, true
}
