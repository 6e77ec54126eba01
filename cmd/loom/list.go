package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "issues",
	Short:   "List issues matching filters",
	Long: `List issues. Filters combine with AND; a blocked status filter matches
the derived blocking state, not anything stored.

Example usage:
  loom list
  loom list -s open -a alice
  loom list -s blocked
  loom list -l backend -l urgent
  loom list --updated-since "2 days ago"`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		issues, err := t.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(issues)
		}
		printIssueTable(issues)
		return nil
	},
}

// filterFromFlags builds the issue filter shared by list and ready.
func filterFromFlags(cmd *cobra.Command) (*types.IssueFilter, error) {
	filter := &types.IssueFilter{}
	flags := cmd.Flags()
	empty := true

	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		status := types.Status(v)
		if !status.IsValid() {
			return nil, &types.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %q", v)}
		}
		filter.Status = &status
		empty = false
	}
	if flags.Changed("priority") {
		v, _ := flags.GetInt("priority")
		filter.Priority = &v
		empty = false
	}
	if flags.Changed("assignee") {
		v, _ := flags.GetString("assignee")
		filter.Assignee = &v
		empty = false
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		issueType := types.IssueType(v)
		if !issueType.IsValid() {
			return nil, &types.ValidationError{Field: "type", Reason: fmt.Sprintf("invalid issue type: %q", v)}
		}
		filter.IssueType = &issueType
		empty = false
	}
	if labels, _ := flags.GetStringSlice("label"); len(labels) > 0 {
		filter.Labels = labels
		empty = false
	}
	if flags.Changed("updated-since") {
		v, _ := flags.GetString("updated-since")
		since, err := parseSince(v)
		if err != nil {
			return nil, err
		}
		filter.UpdatedSince = &since
		empty = false
	}

	if empty {
		return nil, nil
	}
	return filter, nil
}

// parseSince accepts RFC 3339, a plain date, or natural language such as
// "yesterday" and "2 days ago".
func parseSince(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return ts, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	if r, err := w.Parse(s, time.Now()); err == nil && r != nil {
		return r.Time, nil
	}
	return time.Time{}, &types.ValidationError{Field: "updated-since", Reason: fmt.Sprintf("unparseable time: %q", s)}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("status", "s", "", "Filter by status (open, in_progress, closed, blocked)")
	cmd.Flags().IntP("priority", "p", 0, "Filter by priority")
	cmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	cmd.Flags().StringP("type", "t", "", "Filter by issue type")
	cmd.Flags().StringSliceP("label", "l", nil, "Filter by label, all must match (repeatable)")
	cmd.Flags().String("updated-since", "", "Only issues updated since this time")
}

func init() {
	addFilterFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}
