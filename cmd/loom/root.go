package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loomworks/loom/internal/config"
	"github.com/loomworks/loom/internal/logging"
	"github.com/loomworks/loom/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Dependency-aware issue tracker",
	Long: `loom tracks issues and the dependency edges between them, and answers
the question that matters: what is ready to work on right now?

State lives in a local SQLite database; a deterministic JSONL file next
to it is the interchange format for version control and merging. Exports
are debounced after writes, and by default every command first converges
from the JSONL file when someone else changed it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.AddGroup(
		&cobra.Group{ID: "issues", Title: "Issue commands:"},
		&cobra.Group{ID: "graph", Title: "Dependency commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Database path (default from loom.toml)")
	pf.String("jsonl", "", "Interchange JSONL path (default from loom.toml)")
	pf.String("prefix", "", "Issue id prefix (default from loom.toml)")
	pf.Bool("json", false, "Output machine-readable JSON")
	pf.Bool("quiet", false, "Suppress informational logging")
	pf.String("log-file", "", "Write logs to a rotated file instead of stderr")
	pf.Bool("no-auto-import", false, "Skip converging from the JSONL file before operations")

	for _, name := range []string{"db", "jsonl", "prefix", "log-file"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

// initViper layers user-level configuration under the flags: flag beats
// LOOM_* environment variable beats ~/.loom.yaml.
func initViper() {
	viper.SetEnvPrefix("loom")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".loom")
		viper.SetConfigType("yaml")
		_ = viper.ReadInConfig()
	}
}

// loadProject resolves the effective per-project settings for the
// working directory, applying flag/env/user-config overrides.
func loadProject() (*config.Project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	project, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("db"); v != "" {
		project.DBPath = absPath(v, cwd)
	}
	if v := viper.GetString("jsonl"); v != "" {
		project.JSONLPath = absPath(v, cwd)
	}
	if v := viper.GetString("prefix"); v != "" {
		project.Prefix = v
	}
	return project, nil
}

func absPath(path, base string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// openTracker opens the project tracker for one command invocation. The
// caller must Close it; Close flushes any pending export.
func openTracker(cmd *cobra.Command) (*tracker.Tracker, *config.Project, error) {
	project, err := loadProject()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(project.DBPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	noConverge, _ := cmd.Flags().GetBool("no-auto-import")
	t, err := tracker.Open(tracker.Config{
		DBPath:     project.DBPath,
		JSONLPath:  project.JSONLPath,
		Prefix:     project.Prefix,
		LockWait:   project.LockWait(),
		Quiescence: project.Debounce(),
		AutoImport: project.AutoImport && !noConverge,
		Logger:     commandLogger(cmd, "[loom] "),
	})
	if err != nil {
		return nil, nil, err
	}
	return t, project, nil
}

func commandLogger(cmd *cobra.Command, prefix string) *log.Logger {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return logging.Discard()
	}
	if path := viper.GetString("log-file"); path != "" {
		return logging.NewRotating(prefix, path)
	}
	return logging.New(prefix)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// closeTracker folds the tracker shutdown error into the command error
// without masking the primary failure. Shutdown flushes dirty state, so
// its errors matter.
func closeTracker(t *tracker.Tracker, err error) error {
	if cerr := t.Close(); err == nil {
		return cerr
	}
	return err
}
