package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/loomworks/loom/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "loom.db"), "lm")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, store *Store, issue *types.Issue) *types.Issue {
	t.Helper()
	if issue.Title == "" {
		issue.Title = "Issue " + issue.ID
	}
	if issue.Status == "" {
		issue.Status = types.StatusOpen
	}
	if issue.IssueType == "" {
		issue.IssueType = types.TypeTask
	}
	if issue.Priority == 0 {
		issue.Priority = 2
	}
	if err := store.CreateIssue(context.Background(), issue); err != nil {
		t.Fatalf("CreateIssue(%s) error = %v", issue.ID, err)
	}
	return issue
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	issue := &types.Issue{
		Title:       "First issue",
		Description: "Some context",
		Status:      types.StatusOpen,
		Priority:    1,
		IssueType:   types.TypeFeature,
		Labels:      []string{"backend", "api"},
	}
	if err := store.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if issue.ID != "lm-1" {
		t.Errorf("assigned id = %q, want lm-1", issue.ID)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if got.Title != issue.Title || got.Priority != 1 || got.IssueType != types.TypeFeature {
		t.Errorf("GetIssue() = %+v, want fields of %+v", got, issue)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "api" {
		t.Errorf("labels = %v, want sorted [api backend]", got.Labels)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetIssue(context.Background(), "lm-404")
	var nf *types.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("GetIssue(missing) error = %T, want *types.NotFoundError", err)
	}
	if nf.ID != "lm-404" {
		t.Errorf("NotFoundError.ID = %q, want lm-404", nf.ID)
	}
}

func TestExplicitIDAdvancesCounter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &types.Issue{ID: "lm-7"})

	generated := &types.Issue{Title: "Next", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask}
	if err := store.CreateIssue(ctx, generated); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if generated.ID != "lm-8" {
		t.Errorf("generated id = %q, want lm-8 (counter must skip past explicit lm-7)", generated.ID)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	store := openTestStore(t)

	mustCreate(t, store, &types.Issue{ID: "lm-1"})
	err := store.CreateIssue(context.Background(), &types.Issue{
		ID: "lm-1", Title: "Again", Status: types.StatusOpen, Priority: 2, IssueType: types.TypeTask,
	})
	var ve *types.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("duplicate CreateIssue() error = %T, want *types.ValidationError", err)
	}
}

func TestUpdateIssue(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{ID: "lm-1"})

	title := "Renamed"
	status := types.StatusInProgress
	updated, err := store.UpdateIssue(ctx, issue.ID, &types.IssuePatch{Title: &title, Status: &status})
	if err != nil {
		t.Fatalf("UpdateIssue() error = %v", err)
	}
	if updated.Title != "Renamed" || updated.Status != types.StatusInProgress {
		t.Errorf("UpdateIssue() = %+v, want renamed in_progress issue", updated)
	}
	if !updated.UpdatedAt.After(issue.UpdatedAt) {
		t.Error("UpdatedAt must advance on update")
	}

	closed := types.StatusClosed
	if _, err := store.UpdateIssue(ctx, issue.ID, &types.IssuePatch{Status: &closed}); err == nil {
		t.Error("closing through update must be rejected")
	}
}

func TestCloseIssue(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	issue := mustCreate(t, store, &types.Issue{ID: "lm-1"})

	if _, err := store.CloseIssue(ctx, issue.ID, "   "); err == nil {
		t.Fatal("CloseIssue() with blank reason must fail")
	}

	closed, err := store.CloseIssue(ctx, issue.ID, "done")
	if err != nil {
		t.Fatalf("CloseIssue() error = %v", err)
	}
	if closed.Status != types.StatusClosed || closed.CloseReason != "done" || closed.ClosedAt == nil {
		t.Errorf("CloseIssue() = %+v, want closed with reason and timestamp", closed)
	}

	// Reopening clears close bookkeeping.
	open := types.StatusOpen
	reopened, err := store.UpdateIssue(ctx, issue.ID, &types.IssuePatch{Status: &open})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.ClosedAt != nil || reopened.CloseReason != "" {
		t.Errorf("reopened issue = %+v, want cleared close fields", reopened)
	}
}

func TestListFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, &types.Issue{ID: "lm-1", Priority: 1, Assignee: "ana", Labels: []string{"api"}})
	mustCreate(t, store, &types.Issue{ID: "lm-2", Priority: 1, Assignee: "ana", Labels: []string{"api", "urgent"}})
	mustCreate(t, store, &types.Issue{ID: "lm-3", Priority: 3, Assignee: "bo", IssueType: types.TypeBug})
	if _, err := store.CloseIssue(ctx, "lm-3", "fixed"); err != nil {
		t.Fatal(err)
	}

	prio := 1
	ana := "ana"
	tests := []struct {
		name   string
		filter types.IssueFilter
		want   []string
	}{
		{"by priority and assignee", types.IssueFilter{Priority: &prio, Assignee: &ana}, []string{"lm-1", "lm-2"}},
		{"by label membership", types.IssueFilter{Labels: []string{"urgent"}}, []string{"lm-2"}},
		{"all labels must match", types.IssueFilter{Labels: []string{"api", "urgent"}}, []string{"lm-2"}},
		{"by status", types.IssueFilter{Status: ptr(types.StatusClosed)}, []string{"lm-3"}},
		{"by type", types.IssueFilter{IssueType: ptr(types.TypeBug)}, []string{"lm-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListIssues(ctx, &tt.filter)
			if err != nil {
				t.Fatalf("ListIssues() error = %v", err)
			}
			var ids []string
			for _, issue := range got {
				ids = append(ids, issue.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ListIssues() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ListIssues()[%d] = %s, want %s", i, ids[i], tt.want[i])
				}
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestMetadataRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	got, err := store.GetMetadata(ctx, "nonexistent")
	if err != nil || got != "" {
		t.Fatalf("GetMetadata(missing) = (%q, %v), want (\"\", nil)", got, err)
	}

	if err := store.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.GetMetadata(ctx, "k"); got != "v2" {
		t.Errorf("GetMetadata(k) = %q, want v2", got)
	}
}
