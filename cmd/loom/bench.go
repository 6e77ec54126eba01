package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/benchmark"
)

var benchCmd = &cobra.Command{
	Use:    "bench",
	Hidden: true,
	Short:  "Benchmark readiness queries against a seeded store",
	Long: `Seed a throwaway database and hammer it with concurrent ready queries.
Useful for validating that the resolver holds up at a given graph size
before pointing a fleet of agents at one repository.

Example usage:
  loom bench
  loom bench --workers 200 --issues 5000 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := benchmark.DefaultConfig()
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
		cfg.Issues, _ = cmd.Flags().GetInt("issues")
		cfg.QueriesPerWorker, _ = cmd.Flags().GetInt("queries")
		cfg.BlockedPct, _ = cmd.Flags().GetFloat64("blocked")

		dir, err := os.MkdirTemp("", "loom-bench")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		cfg.DBPath = filepath.Join(dir, "bench.db")

		result, err := benchmark.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(result)
		}

		fmt.Printf("Benchmark: %d workers x %d queries over %d issues (%.0f%% blocked)\n\n",
			cfg.Workers, cfg.QueriesPerWorker, cfg.Issues, cfg.BlockedPct*100)
		fmt.Printf("Latency:\n")
		fmt.Printf("  Min:  %s\n", benchmark.FormatDuration(result.Latency.Min))
		fmt.Printf("  P50:  %s\n", benchmark.FormatDuration(result.Latency.P50))
		fmt.Printf("  Mean: %s\n", benchmark.FormatDuration(result.Latency.Mean))
		fmt.Printf("  P95:  %s\n", benchmark.FormatDuration(result.Latency.P95))
		fmt.Printf("  P99:  %s\n", benchmark.FormatDuration(result.Latency.P99))
		fmt.Printf("  Max:  %s\n", benchmark.FormatDuration(result.Latency.Max))
		fmt.Printf("\nThroughput: %.0f queries/sec (%d total, %d errors)\n",
			result.QueriesPerSecond, result.TotalQueries, result.Errors)
		fmt.Printf("Seed time:  %s for %d issues (%d ready)\n",
			benchmark.FormatDuration(result.SeedDuration), cfg.Issues, result.ReadyIssues)
		fmt.Printf("DB size:    %d bytes\n", result.DBSizeBytes)
		return nil
	},
}

func init() {
	benchCmd.Flags().Int("workers", 50, "Concurrent readers to simulate")
	benchCmd.Flags().Int("issues", 1000, "Issues seeded into the store")
	benchCmd.Flags().Int("queries", 10, "Ready queries per worker")
	benchCmd.Flags().Float64("blocked", 0.3, "Fraction of issues given an open blocker")
	rootCmd.AddCommand(benchCmd)
}
