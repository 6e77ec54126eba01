package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/loomworks/loom/internal/types"
)

const issueColumns = `id, title, description, design, acceptance_criteria, notes,
	status, priority, issue_type, assignee, labels,
	estimated_hours, actual_hours, created_at, updated_at, closed_at, close_reason`

// CreateIssue implements storage.Store.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) error {
	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = now
	}
	if issue.Status == "" {
		issue.Status = types.StatusOpen
	}
	if issue.IssueType == "" {
		issue.IssueType = types.TypeTask
	}
	issue.NormalizeLabels()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if issue.ID == "" {
		id, err := allocateIDTx(ctx, tx, s.prefix)
		if err != nil {
			return err
		}
		issue.ID = id
	} else {
		if err := advanceCounterPastTx(ctx, tx, s.prefix, issue.ID); err != nil {
			return err
		}
	}

	if err := issue.Validate(); err != nil {
		return err
	}

	if err := insertIssueTx(ctx, tx, issue); err != nil {
		return err
	}
	if err := markDirtyTx(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issue create: %w", err)
	}
	return nil
}

func insertIssueTx(ctx context.Context, tx *sql.Tx, issue *types.Issue) error {
	labels, err := marshalLabels(issue.Labels)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (`+issueColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.Title, issue.Description, issue.Design,
		issue.AcceptanceCriteria, issue.Notes,
		string(issue.Status), issue.Priority, string(issue.IssueType),
		issue.Assignee, labels,
		issue.EstimatedHours, issue.ActualHours,
		issue.CreatedAt.Format(timeFormat), issue.UpdatedAt.Format(timeFormat),
		nullableTime(issue.ClosedAt), issue.CloseReason)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return &types.ValidationError{Field: "id", Reason: fmt.Sprintf("issue %s already exists", issue.ID)}
		}
		return fmt.Errorf("failed to insert issue %s: %w", issue.ID, err)
	}
	return nil
}

// GetIssue implements storage.Store.
func (s *Store) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+issueColumns+" FROM issues WHERE id = ?", id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read issue %s: %w", id, err)
	}
	return issue, nil
}

// UpdateIssue implements storage.Store. Closing through an update is
// rejected so the close-reason invariant cannot be bypassed.
func (s *Store) UpdateIssue(ctx context.Context, id string, patch *types.IssuePatch) (*types.Issue, error) {
	if patch == nil || patch.Empty() {
		return s.GetIssue(ctx, id)
	}
	if patch.Status != nil {
		if !patch.Status.IsStorable() {
			return nil, &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %q", *patch.Status)}
		}
		if *patch.Status == types.StatusClosed {
			return nil, &types.ValidationError{Field: "status", Reason: "close issues with the close operation, which records a reason"}
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	issue, err := getIssueTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	applyPatch(issue, patch)
	issue.UpdatedAt = time.Now().UTC()
	issue.NormalizeLabels()

	// Reopening clears the closed bookkeeping.
	if patch.Status != nil && issue.ClosedAt != nil && *patch.Status != types.StatusClosed {
		issue.ClosedAt = nil
		issue.CloseReason = ""
	}

	if err := issue.Validate(); err != nil {
		return nil, err
	}
	if err := writeIssueTx(ctx, tx, issue); err != nil {
		return nil, err
	}
	if err := markDirtyTx(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit issue update: %w", err)
	}
	return issue, nil
}

func applyPatch(issue *types.Issue, patch *types.IssuePatch) {
	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Design != nil {
		issue.Design = *patch.Design
	}
	if patch.AcceptanceCriteria != nil {
		issue.AcceptanceCriteria = *patch.AcceptanceCriteria
	}
	if patch.Notes != nil {
		issue.Notes = *patch.Notes
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	if patch.Priority != nil {
		issue.Priority = *patch.Priority
	}
	if patch.IssueType != nil {
		issue.IssueType = *patch.IssueType
	}
	if patch.Assignee != nil {
		issue.Assignee = *patch.Assignee
	}
	if patch.Labels != nil {
		issue.Labels = *patch.Labels
	}
	if patch.EstimatedHours != nil {
		issue.EstimatedHours = patch.EstimatedHours
	}
	if patch.ActualHours != nil {
		issue.ActualHours = patch.ActualHours
	}
}

// CloseIssue implements storage.Store. The reason is mandatory; closing is
// a status transition, never a deletion.
func (s *Store) CloseIssue(ctx context.Context, id, reason string) (*types.Issue, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &types.ValidationError{Field: "reason", Reason: "close requires a non-empty reason"}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	issue, err := getIssueTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	issue.Status = types.StatusClosed
	issue.CloseReason = reason
	issue.ClosedAt = &now
	issue.UpdatedAt = now

	if err := writeIssueTx(ctx, tx, issue); err != nil {
		return nil, err
	}
	if err := markDirtyTx(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit issue close: %w", err)
	}
	return issue, nil
}

// ListIssues implements storage.Store. Filter fields combine by AND.
func (s *Store) ListIssues(ctx context.Context, filter *types.IssueFilter) ([]*types.Issue, error) {
	query := "SELECT " + issueColumns + " FROM issues"
	var clauses []string
	var args []any

	if filter != nil {
		if filter.Status != nil {
			clauses = append(clauses, "status = ?")
			args = append(args, string(*filter.Status))
		}
		if filter.Priority != nil {
			clauses = append(clauses, "priority = ?")
			args = append(args, *filter.Priority)
		}
		if filter.Assignee != nil {
			clauses = append(clauses, "assignee = ?")
			args = append(args, *filter.Assignee)
		}
		if filter.IssueType != nil {
			clauses = append(clauses, "issue_type = ?")
			args = append(args, string(*filter.IssueType))
		}
		for _, label := range filter.Labels {
			clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(issues.labels) WHERE json_each.value = ?)")
			args = append(args, label)
		}
		if filter.UpdatedSince != nil {
			clauses = append(clauses, "updated_at >= ?")
			args = append(args, filter.UpdatedSince.UTC().Format(timeFormat))
		}
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func getIssueTx(ctx context.Context, tx *sql.Tx, id string) (*types.Issue, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+issueColumns+" FROM issues WHERE id = ?", id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, &types.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read issue %s: %w", id, err)
	}
	return issue, nil
}

func writeIssueTx(ctx context.Context, tx *sql.Tx, issue *types.Issue) error {
	labels, err := marshalLabels(issue.Labels)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE issues SET
			title = ?, description = ?, design = ?, acceptance_criteria = ?,
			notes = ?, status = ?, priority = ?, issue_type = ?, assignee = ?,
			labels = ?, estimated_hours = ?, actual_hours = ?,
			updated_at = ?, closed_at = ?, close_reason = ?
		WHERE id = ?`,
		issue.Title, issue.Description, issue.Design, issue.AcceptanceCriteria,
		issue.Notes, string(issue.Status), issue.Priority, string(issue.IssueType),
		issue.Assignee, labels, issue.EstimatedHours, issue.ActualHours,
		issue.UpdatedAt.Format(timeFormat), nullableTime(issue.ClosedAt),
		issue.CloseReason, issue.ID)
	if err != nil {
		return fmt.Errorf("failed to write issue %s: %w", issue.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var (
		issue     types.Issue
		status    string
		issueType string
		labels    string
		createdAt string
		updatedAt string
		closedAt  sql.NullString
	)
	err := row.Scan(&issue.ID, &issue.Title, &issue.Description, &issue.Design,
		&issue.AcceptanceCriteria, &issue.Notes,
		&status, &issue.Priority, &issueType, &issue.Assignee, &labels,
		&issue.EstimatedHours, &issue.ActualHours,
		&createdAt, &updatedAt, &closedAt, &issue.CloseReason)
	if err != nil {
		return nil, err
	}

	issue.Status = types.Status(status)
	issue.IssueType = types.IssueType(issueType)

	if labels != "" && labels != "[]" {
		if err := json.Unmarshal([]byte(labels), &issue.Labels); err != nil {
			return nil, fmt.Errorf("corrupt labels for %s: %w", issue.ID, err)
		}
	}

	if issue.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for %s: %w", issue.ID, err)
	}
	if issue.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for %s: %w", issue.ID, err)
	}
	if closedAt.Valid && closedAt.String != "" {
		t, err := time.Parse(timeFormat, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt closed_at for %s: %w", issue.ID, err)
		}
		issue.ClosedAt = &t
	}
	return &issue, nil
}

func marshalLabels(labels []string) (string, error) {
	if len(labels) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to marshal labels: %w", err)
	}
	return string(b), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
