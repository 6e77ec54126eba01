package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "issues",
	Short:   "Show issue statistics",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		stats, err := t.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(stats)
		}
		fmt.Printf("Total:        %d\n", stats.Total)
		fmt.Printf("Open:         %d\n", stats.Open)
		fmt.Printf("In progress:  %d\n", stats.InProgress)
		fmt.Printf("Closed:       %d\n", stats.Closed)
		fmt.Printf("Ready:        %d\n", stats.Ready)
		fmt.Printf("Blocked:      %d\n", stats.Blocked)
		fmt.Printf("Dependencies: %d\n", stats.Dependencies)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
