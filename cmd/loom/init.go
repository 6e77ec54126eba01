package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/vcs"
)

var prefixPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "issues",
	Short:   "Initialize a loom project in the current directory",
	Long: `Create a loom.toml manifest and the .loom data directory. Issue ids are
built from the chosen prefix: prefix "web" yields web-1, web-2, and so on.

The project is anchored at the repository root when run inside git or
jj, so the interchange file lives next to the code it tracks; --here
anchors at the current directory instead.

Example usage:
  loom init                # interactive prompt
  loom init --prefix web   # non-interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root := cwd
		if here, _ := cmd.Flags().GetBool("here"); !here {
			if repo, rerr := vcs.Detect(cwd); rerr == nil {
				root = repo.Root
			}
		}
		if _, err := os.Stat(filepath.Join(root, config.ManifestName)); err == nil {
			return fmt.Errorf("%s already exists in %s", config.ManifestName, root)
		}

		project := config.Defaults(root)
		prefix, _ := cmd.Flags().GetString("prefix")
		if prefix != "" {
			project.Prefix = prefix
		} else if stdoutIsTerminal() {
			if err := promptProject(project); err != nil {
				return err
			}
		}
		if !prefixPattern.MatchString(project.Prefix) {
			return fmt.Errorf("invalid prefix %q: must be alphanumeric and start with a letter", project.Prefix)
		}

		if err := config.Write(root, project); err != nil {
			return err
		}

		// Opening the tracker creates the database; the flush writes the
		// initial (empty) interchange file so it exists from commit one.
		t, _, err := openTracker(cmd)
		if err != nil {
			return err
		}
		if err := closeTracker(t, t.Flush()); err != nil {
			return err
		}

		fmt.Printf("Initialized loom project in %s (prefix %q)\n", root, project.Prefix)
		return nil
	},
}

func promptProject(project *config.Project) error {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Issue prefix").
			Description("Short tag used in issue ids, e.g. \"web\" for web-1").
			Value(&project.Prefix).
			Validate(func(s string) error {
				if !prefixPattern.MatchString(s) {
					return fmt.Errorf("must be alphanumeric and start with a letter")
				}
				return nil
			}),
		huh.NewConfirm().
			Title("Automatically import JSONL changes?").
			Description("Commands converge from the interchange file when it is newer than the database").
			Value(&project.AutoImport),
	)).Run()
}

func init() {
	initCmd.Flags().String("prefix", "", "Issue id prefix (skips the interactive prompt)")
	initCmd.Flags().Bool("here", false, "Anchor the project at the current directory, not the repository root")
	rootCmd.AddCommand(initCmd)
}
