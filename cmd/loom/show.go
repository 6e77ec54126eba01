package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "issues",
	Short:   "Show one issue in full",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		issue, err := t.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		// Surface the derived status so a blocked issue reads as blocked.
		if issue.Status == types.StatusOpen {
			if ready, rerr := t.IsReady(cmd.Context(), issue.ID); rerr == nil && !ready {
				issue.Status = types.StatusBlocked
			}
		}

		deps, err := t.Store().DependenciesOf(cmd.Context(), issue.ID)
		if err != nil {
			return err
		}
		dependents, err := t.Store().DependentsOf(cmd.Context(), issue.ID)
		if err != nil {
			return err
		}

		if jsonOutput(cmd) {
			return printJSON(struct {
				*types.Issue
				Dependencies []*types.Dependency `json:"dependencies,omitempty"`
				Dependents   []*types.Dependency `json:"dependents,omitempty"`
			}{issue, deps, dependents})
		}

		printIssueDetail(issue)
		if len(deps) > 0 {
			fmt.Println("\nDepends on:")
			for _, dep := range deps {
				fmt.Printf("  %s (%s)\n", dep.ToID, dep.Type)
			}
		}
		if len(dependents) > 0 {
			fmt.Println("\nDepended on by:")
			for _, dep := range dependents {
				fmt.Printf("  %s (%s)\n", dep.FromID, dep.Type)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
