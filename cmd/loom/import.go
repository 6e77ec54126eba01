package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/importer"
	"github.com/loomworks/loom/internal/types"
)

var importCmd = &cobra.Command{
	Use:     "import [file]",
	GroupID: "sync",
	Short:   "Import issues from a JSONL file",
	Long: `Merge interchange content into the store. Each incoming record is
classified against the store: new id, exact content match, or collision
(same id, different content). The whole batch applies in one
transaction or not at all.

By default collisions are updated in place (the file wins). --strict
refuses the batch instead and lists the colliding ids;
--resolve-collisions assigns fresh ids to colliding records and rewrites
every reference to them, printing the remap.

Example usage:
  loom import                          # from the project JSONL file
  loom import teammate.jsonl --dry-run
  loom import teammate.jsonl --skip-existing
  loom import teammate.jsonl --resolve-collisions
  cat batch.jsonl | loom import -`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, project, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		path := project.JSONLPath
		if len(args) == 1 {
			path = args[0]
		}
		var data []byte
		if path == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return err
		}

		opts := importer.Options{Mode: importer.ModeApply}
		if v, _ := cmd.Flags().GetBool("skip-existing"); v {
			opts.Mode = importer.ModeSkipExisting
		}
		if v, _ := cmd.Flags().GetBool("dry-run"); v {
			opts.Mode = importer.ModeDryRun
		}
		if v, _ := cmd.Flags().GetBool("resolve-collisions"); v {
			opts.Mode = importer.ModeResolveCollisions
		}
		opts.Strict, _ = cmd.Flags().GetBool("strict")

		result, err := t.Import(cmd.Context(), data, opts)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(result)
		}

		if result.DryRun {
			fmt.Println("Dry run, nothing applied.")
		}
		fmt.Printf("Created: %d, updated: %d, unchanged: %d, skipped: %d\n",
			result.Created, result.Updated, result.Unchanged, result.Skipped)
		if len(result.Collisions) > 0 {
			fmt.Printf("Collisions: %s\n", strings.Join(result.Collisions, ", "))
		}
		olds := make([]string, 0, len(result.Remap))
		for old := range result.Remap {
			olds = append(olds, old)
		}
		slices.SortFunc(olds, types.CompareIDs)
		for _, old := range olds {
			fmt.Printf("Remapped %s -> %s\n", old, result.Remap[old])
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("skip-existing", false, "Only create new ids, never touch existing issues")
	importCmd.Flags().Bool("dry-run", false, "Classify the batch without applying anything")
	importCmd.Flags().Bool("resolve-collisions", false, "Give colliding records fresh ids and rewrite references")
	importCmd.Flags().Bool("strict", false, "Fail on collisions instead of updating in place")
	importCmd.MarkFlagsMutuallyExclusive("skip-existing", "dry-run", "resolve-collisions")
	rootCmd.AddCommand(importCmd)
}
