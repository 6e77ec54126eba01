package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var readyCmd = &cobra.Command{
	Use:     "ready",
	GroupID: "graph",
	Short:   "List issues that are ready to work on",
	Long: `List open issues with no open blocker and no blocked ancestor, ordered
by priority then id. This is the frontier: pick from the top.

Example usage:
  loom ready
  loom ready -n 1 -a alice`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		filter := &types.IssueFilter{}
		if cmd.Flags().Changed("assignee") {
			v, _ := cmd.Flags().GetString("assignee")
			filter.Assignee = &v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetInt("priority")
			filter.Priority = &v
		}
		if labels, _ := cmd.Flags().GetStringSlice("label"); len(labels) > 0 {
			filter.Labels = labels
		}
		limit, _ := cmd.Flags().GetInt("limit")

		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		issues, err := t.Ready(cmd.Context(), filter, limit)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(issues)
		}
		if len(issues) == 0 {
			fmt.Println("No issues are ready.")
			return nil
		}
		printIssueTable(issues)
		return nil
	},
}

func init() {
	readyCmd.Flags().IntP("limit", "n", 0, "Maximum issues to show (0 = all)")
	readyCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	readyCmd.Flags().IntP("priority", "p", 0, "Filter by priority")
	readyCmd.Flags().StringSliceP("label", "l", nil, "Filter by label (repeatable)")
	rootCmd.AddCommand(readyCmd)
}
