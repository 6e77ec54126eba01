package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/storage/lockfile"
	"github.com/loomworks/loom/internal/syncd"
	"github.com/loomworks/loom/internal/tracker"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Watch the JSONL file and import changes as they land",
	Long: `Run in the foreground, importing the interchange file whenever it
changes on disk. Useful alongside editors, merges, and branch switches:
the database converges without anyone running import by hand.

Imports are strict: a change that collides with local edits is logged
and left alone rather than applied.

Example usage:
  loom watch
  loom watch --log-file .loom/watch.log`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		t, project, err := openTracker(cmd)
		if err != nil {
			return err
		}
		defer func() { err = closeTracker(t, err) }()

		logger := commandLogger(cmd, "[watch] ")

		watcher, err := syncd.NewFileWatcher()
		if err != nil {
			return err
		}
		if err = watcher.Start(project.JSONLPath); err != nil {
			return err
		}
		defer func() { _ = watcher.Stop() }()

		// Catch up on anything that changed before the watch began.
		importOnce(cmd.Context(), t, project.DBPath, project.JSONLPath, logger)

		fmt.Printf("Watching %s\n", project.JSONLPath)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nStopping watch...")
				return nil
			case event := <-watcher.Events():
				if event.Removed {
					logger.Printf("interchange file removed: %s", event.Path)
					continue
				}
				importOnce(ctx, t, project.DBPath, project.JSONLPath, logger)
			case werr := <-watcher.Errors():
				logger.Printf("watch error: %v", werr)
			}
		}
	},
}

// importOnce runs one auto-import under the store lock. Failures are
// logged, not fatal: the watcher outlives transient bad states such as
// half-merged files.
func importOnce(ctx context.Context, t *tracker.Tracker, dbPath, jsonlPath string, logger *log.Logger) {
	lock, err := lockfile.Acquire(dbPath+".lock", 0)
	if err != nil {
		logger.Printf("skipping import: %v", err)
		return
	}
	defer lock.Unlock()

	result, err := syncd.AutoImport(ctx, t.Store(), jsonlPath, logger)
	if err != nil {
		logger.Printf("import failed: %v", err)
		return
	}
	if result != nil {
		logger.Printf("imported: %d created, %d updated", result.Created, result.Updated)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
