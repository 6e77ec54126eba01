package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/types"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	GroupID: "graph",
	Short:   "Manage dependency edges",
	Long: `Manage typed edges between issues. An edge from A to B means A depends
on B: for blocks edges B must close before A is ready; for parent_child
edges B is the parent of A.`,
}

var depAddCmd = &cobra.Command{
	Use:   "add <from> <to>",
	Short: "Add a dependency edge",
	Long: `Add an edge. Blocks edges are checked against the existing graph and
rejected if they would create a cycle; the rejection names the cycle
path and leaves the graph untouched.

Example usage:
  loom dep add lm-3 lm-5                # lm-3 is blocked by lm-5
  loom dep add lm-3 lm-1 --type parent_child
  loom dep add lm-7 lm-3 --type discovered-from`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		depType, _ := cmd.Flags().GetString("type")
		// Accept dashes since flags usually use them.
		depType = strings.ReplaceAll(depType, "-", "_")

		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		dep := &types.Dependency{
			FromID: args[0],
			ToID:   args[1],
			Type:   types.DependencyType(depType),
		}
		if err = t.AddDependency(cmd.Context(), dep); err != nil {
			return err
		}
		fmt.Printf("Added %s edge %s -> %s\n", dep.Type, dep.FromID, dep.ToID)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <from> <to>",
	Short: "Remove dependency edges between two issues",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		if err = t.RemoveDependency(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed edges %s -> %s\n", args[0], args[1])
		return nil
	},
}

var depTreeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Show the dependency tree below an issue",
	Long: `Render what an issue waits on (blocks edges) and its children
(parent_child edges), recursively. Depth is capped and cycles are cut.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		tree, err := t.Tree(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(tree)
		}
		printTree(tree)
		return nil
	},
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Scan the blocks graph for cycles",
	Long: `Scan for cycles among blocks edges. Interactive edits cannot create one,
but bulk imports skip the guard for atomicity, so run this after large
merges. Finding cycles exits non-zero; fix them with dep remove.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		cycles, err := t.Cycles(cmd.Context())
		if jsonOutput(cmd) {
			if perr := printJSON(cycles); perr != nil {
				return perr
			}
			return err
		}
		if len(cycles) == 0 {
			fmt.Println("No cycles found.")
			return nil
		}
		fmt.Printf("Found %d cycle(s):\n", len(cycles))
		for _, cycle := range cycles {
			fmt.Printf("  %s -> %s\n", strings.Join(cycle, " -> "), cycle[0])
		}
		return err
	},
}

func init() {
	depAddCmd.Flags().StringP("type", "t", "blocks", "Edge type: blocks, related, parent_child, discovered_from")
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depTreeCmd)
	depCmd.AddCommand(depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
