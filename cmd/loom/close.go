package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:     "close <id>...",
	GroupID: "issues",
	Short:   "Close issues with a reason",
	Long: `Close one or more issues. The reason is mandatory: it is the record of
why the work ended, and it travels with the issue through export and
import. Closed issues are kept forever; there is no delete.

Example usage:
  loom close lm-3 -r "fixed in commit 4f2a91c"
  loom close lm-4 lm-5 -r "obsoleted by the v2 design"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		reason, _ := cmd.Flags().GetString("reason")

		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		for _, id := range args {
			issue, cerr := t.CloseIssue(cmd.Context(), id, reason)
			if cerr != nil {
				return cerr
			}
			if jsonOutput(cmd) {
				if perr := printJSON(issue); perr != nil {
					return perr
				}
			} else {
				fmt.Printf("Closed issue %s: %s\n", issue.ID, reason)
			}
		}
		return nil
	},
}

func init() {
	closeCmd.Flags().StringP("reason", "r", "", "Why the issue is being closed (required)")
	_ = closeCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(closeCmd)
}
