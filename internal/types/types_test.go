package types

import (
	"strings"
	"testing"
	"time"
)

func TestIssue_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid issue",
			issue: Issue{
				ID:        "lm-1",
				Title:     "Implement feature X",
				Status:    StatusOpen,
				Priority:  1,
				IssueType: TypeTask,
				CreatedAt: now,
				UpdatedAt: now,
			},
			wantErr: false,
		},
		{
			name: "missing id",
			issue: Issue{
				Title:     "Test",
				Status:    StatusOpen,
				Priority:  2,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "id is required",
		},
		{
			name: "missing title",
			issue: Issue{
				ID:        "lm-1",
				Status:    StatusOpen,
				Priority:  2,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "title too long",
			issue: Issue{
				ID:        "lm-1",
				Title:     strings.Repeat("x", MaxTitleLength+1),
				Status:    StatusOpen,
				Priority:  2,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "500 characters or less",
		},
		{
			name: "priority too high",
			issue: Issue{
				ID:        "lm-1",
				Title:     "Test",
				Status:    StatusOpen,
				Priority:  5,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "between 0 and 4",
		},
		{
			name: "negative priority",
			issue: Issue{
				ID:        "lm-1",
				Title:     "Test",
				Status:    StatusOpen,
				Priority:  -1,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "between 0 and 4",
		},
		{
			name: "derived status rejected",
			issue: Issue{
				ID:        "lm-1",
				Title:     "Test",
				Status:    StatusBlocked,
				Priority:  2,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "invalid status",
		},
		{
			name: "unknown issue type",
			issue: Issue{
				ID:        "lm-1",
				Title:     "Test",
				Status:    StatusOpen,
				Priority:  2,
				IssueType: "saga",
			},
			wantErr: true,
			errMsg:  "invalid issue type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestDependency_Validate(t *testing.T) {
	tests := []struct {
		name    string
		dep     Dependency
		wantErr bool
	}{
		{"valid blocks", Dependency{FromID: "lm-1", ToID: "lm-2", Type: DepBlocks}, false},
		{"valid parent_child", Dependency{FromID: "lm-1", ToID: "lm-2", Type: DepParentChild}, false},
		{"self loop", Dependency{FromID: "lm-1", ToID: "lm-1", Type: DepBlocks}, true},
		{"missing endpoint", Dependency{FromID: "lm-1", Type: DepBlocks}, true},
		{"bad type", Dependency{FromID: "lm-1", ToID: "lm-2", Type: "requires"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.dep.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContentEqual(t *testing.T) {
	base := Issue{
		ID:        "lm-1",
		Title:     "Title",
		Status:    StatusOpen,
		Priority:  2,
		IssueType: TypeTask,
		Labels:    []string{"b", "a"},
	}

	same := base
	same.Labels = []string{"a", "b"} // order must not matter
	same.UpdatedAt = time.Now()      // timestamps must not matter
	if !base.ContentEqual(&same) {
		t.Error("expected label order and timestamps to be ignored")
	}

	diff := base
	diff.Description = "changed"
	if base.ContentEqual(&diff) {
		t.Error("expected description change to be detected")
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"lm-2", "lm-10", -1},
		{"lm-10", "lm-2", 1},
		{"lm-10", "lm-10", 0},
		{"aa-5", "ab-1", -1},
		{"plain", "lm-1", 1},
	}

	for _, tt := range tests {
		got := CompareIDs(tt.a, tt.b)
		if (got < 0) != (tt.want < 0) || (got > 0) != (tt.want > 0) {
			t.Errorf("CompareIDs(%q, %q) = %d, want sign of %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalizeLabels(t *testing.T) {
	i := Issue{Labels: []string{"z", "a", "z", ""}}
	i.NormalizeLabels()
	if len(i.Labels) != 2 || i.Labels[0] != "a" || i.Labels[1] != "z" {
		t.Errorf("NormalizeLabels() = %v, want [a z]", i.Labels)
	}

	empty := Issue{Labels: []string{""}}
	empty.NormalizeLabels()
	if empty.Labels != nil {
		t.Errorf("NormalizeLabels() on empties = %v, want nil", empty.Labels)
	}
}
