package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/export"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "sync",
	Short:   "Export issues to the interchange format",
	Long: `Write the store as sorted JSONL: one issue per line with its outgoing
edges embedded, ordered by id. The output is deterministic, so exporting
an unchanged store reproduces the previous file byte for byte and diffs
stay meaningful under version control.

Example usage:
  loom export                       # refresh the project JSONL file
  loom export -o snapshot.jsonl
  loom export -o -                  # write to stdout
  loom export -o report.yaml --format yaml
  loom export -o open.jsonl -s open`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		out, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		t, project, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		if out == "-" {
			records, serr := export.Snapshot(cmd.Context(), t.Store(), filter)
			if serr != nil {
				return serr
			}
			var data []byte
			if format == "yaml" {
				data, serr = export.EncodeYAML(records)
			} else {
				data, serr = export.EncodeJSONL(records)
			}
			if serr != nil {
				return serr
			}
			_, err = os.Stdout.Write(data)
			return err
		}

		if out == "" {
			out = project.JSONLPath
		}
		if err = t.Export(cmd.Context(), out, filter, format); err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output path (default: project JSONL file, - for stdout)")
	exportCmd.Flags().String("format", "", "Output format: jsonl (default) or yaml")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
