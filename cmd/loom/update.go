package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	GroupID: "issues",
	Short:   "Update fields of an issue",
	Long: `Apply a partial update. Only flags you pass change anything; everything
else is left as it was. Closing goes through loom close, which requires a
reason; update rejects --status closed.

Example usage:
  loom update lm-3 --status in_progress -a alice
  loom update lm-3 -p 0 --notes "customer escalation"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		patch := &types.IssuePatch{}
		flags := cmd.Flags()
		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			patch.Title = &v
		}
		if flags.Changed("description") {
			v, _ := flags.GetString("description")
			patch.Description = &v
		}
		if flags.Changed("design") {
			v, _ := flags.GetString("design")
			patch.Design = &v
		}
		if flags.Changed("acceptance") {
			v, _ := flags.GetString("acceptance")
			patch.AcceptanceCriteria = &v
		}
		if flags.Changed("notes") {
			v, _ := flags.GetString("notes")
			patch.Notes = &v
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			status := types.Status(v)
			patch.Status = &status
		}
		if flags.Changed("priority") {
			v, _ := flags.GetInt("priority")
			patch.Priority = &v
		}
		if flags.Changed("type") {
			v, _ := flags.GetString("type")
			issueType := types.IssueType(v)
			patch.IssueType = &issueType
		}
		if flags.Changed("assignee") {
			v, _ := flags.GetString("assignee")
			patch.Assignee = &v
		}
		if flags.Changed("labels") {
			v, _ := flags.GetStringSlice("labels")
			patch.Labels = &v
		}
		if flags.Changed("estimate") {
			v, _ := flags.GetFloat64("estimate")
			patch.EstimatedHours = &v
		}
		if flags.Changed("actual") {
			v, _ := flags.GetFloat64("actual")
			patch.ActualHours = &v
		}
		if patch.Empty() {
			return &types.ValidationError{Field: "patch", Reason: "no fields to update"}
		}

		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		issue, err := t.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(issue)
		}
		fmt.Printf("Updated issue %s\n", issue.ID)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().StringP("description", "d", "", "New description")
	updateCmd.Flags().String("design", "", "New design notes")
	updateCmd.Flags().String("acceptance", "", "New acceptance criteria")
	updateCmd.Flags().String("notes", "", "New notes")
	updateCmd.Flags().StringP("status", "s", "", "New status: open, in_progress")
	updateCmd.Flags().IntP("priority", "p", 0, "New priority 0-4")
	updateCmd.Flags().StringP("type", "t", "", "New issue type")
	updateCmd.Flags().StringP("assignee", "a", "", "New assignee (empty string unassigns)")
	updateCmd.Flags().StringSliceP("labels", "l", nil, "Replacement label set")
	updateCmd.Flags().Float64("estimate", 0, "Estimated hours")
	updateCmd.Flags().Float64("actual", 0, "Actual hours")
	rootCmd.AddCommand(updateCmd)
}
