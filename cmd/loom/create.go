package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	GroupID: "issues",
	Short:   "Create a new issue",
	Long: `Create an issue. The id is assigned from the project prefix unless --id
names one explicitly. Dependency edges can be attached at creation time;
they go through the same cycle guard as dep add.

Example usage:
  loom create "Fix login redirect" -t bug -p 1
  loom create "Ship OAuth" -t epic
  loom create "Add token refresh" --parent lm-2 --blocked-by lm-5
  loom create "Found while testing lm-5" --discovered-from lm-5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		issue := &types.Issue{Title: args[0]}
		issue.ID, _ = cmd.Flags().GetString("id")
		issue.Description, _ = cmd.Flags().GetString("description")
		issue.Design, _ = cmd.Flags().GetString("design")
		issue.AcceptanceCriteria, _ = cmd.Flags().GetString("acceptance")
		issue.Notes, _ = cmd.Flags().GetString("notes")
		issue.Assignee, _ = cmd.Flags().GetString("assignee")
		issue.Labels, _ = cmd.Flags().GetStringSlice("labels")
		issue.Priority, _ = cmd.Flags().GetInt("priority")
		issueType, _ := cmd.Flags().GetString("type")
		issue.IssueType = types.IssueType(issueType)
		if estimate, _ := cmd.Flags().GetFloat64("estimate"); cmd.Flags().Changed("estimate") {
			issue.EstimatedHours = &estimate
		}

		var deps []*types.Dependency
		blockedBy, _ := cmd.Flags().GetStringSlice("blocked-by")
		for _, id := range blockedBy {
			deps = append(deps, &types.Dependency{ToID: id, Type: types.DepBlocks})
		}
		if parent, _ := cmd.Flags().GetString("parent"); parent != "" {
			deps = append(deps, &types.Dependency{ToID: parent, Type: types.DepParentChild})
		}
		if origin, _ := cmd.Flags().GetString("discovered-from"); origin != "" {
			deps = append(deps, &types.Dependency{ToID: origin, Type: types.DepDiscoveredFrom})
		}

		if err = t.Create(cmd.Context(), issue, deps); err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(issue)
		}
		fmt.Printf("Created issue %s\n", issue.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().String("id", "", "Explicit issue id (default: next from prefix)")
	createCmd.Flags().StringP("description", "d", "", "Issue description")
	createCmd.Flags().String("design", "", "Design notes")
	createCmd.Flags().String("acceptance", "", "Acceptance criteria")
	createCmd.Flags().String("notes", "", "Free-form notes")
	createCmd.Flags().StringP("type", "t", "task", "Issue type: bug, feature, task, epic, chore")
	createCmd.Flags().IntP("priority", "p", 2, "Priority 0 (highest) to 4")
	createCmd.Flags().StringP("assignee", "a", "", "Assignee")
	createCmd.Flags().StringSliceP("labels", "l", nil, "Labels (repeatable)")
	createCmd.Flags().Float64("estimate", 0, "Estimated hours")
	createCmd.Flags().StringSlice("blocked-by", nil, "Ids this issue waits on (repeatable)")
	createCmd.Flags().String("parent", "", "Parent issue id")
	createCmd.Flags().String("discovered-from", "", "Issue this work was discovered from")
	rootCmd.AddCommand(createCmd)
}
