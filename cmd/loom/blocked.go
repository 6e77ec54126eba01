package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: "graph",
	Short:   "List blocked issues and what blocks them",
	Long: `List open issues that are not ready, with the ids responsible: open
direct blockers, or the nearest blocked ancestor when the blocking is
inherited through the parent chain.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		blocked, err := t.Blocked(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(blocked)
		}
		if len(blocked) == 0 {
			fmt.Println("No issues are blocked.")
			return nil
		}
		for _, b := range blocked {
			fmt.Printf("%s: %s\n", b.ID, b.Title)
			if len(b.Blockers) > 0 {
				fmt.Printf("  blocked by %s\n", strings.Join(b.Blockers, ", "))
			}
			if b.BlockedAncestor != "" {
				fmt.Printf("  inherited from ancestor %s\n", b.BlockedAncestor)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blockedCmd)
}
