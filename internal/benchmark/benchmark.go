// Package benchmark measures readiness-query performance against a
// seeded throwaway store. The resolver rebuilds its snapshot per query,
// exactly as a CLI invocation does, so the numbers reflect what commands
// actually pay as graphs grow.
package benchmark

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/loomworks/loom/internal/graph"
	"github.com/loomworks/loom/internal/storage/sqlite"
	"github.com/loomworks/loom/internal/types"
)

// Config defines the parameters for a benchmark run.
type Config struct {
	// Workers is the number of concurrent readers to simulate.
	Workers int

	// Issues is the total number of issues seeded into the store.
	Issues int

	// QueriesPerWorker is how many ready queries each worker performs.
	QueriesPerWorker int

	// BlockedPct is the fraction of issues given an open blocker (0.0-1.0).
	BlockedPct float64

	// DBPath is where the throwaway database is created.
	DBPath string
}

// DefaultConfig returns a configuration sized to expose contention
// without taking minutes to run.
func DefaultConfig() Config {
	return Config{
		Workers:          50,
		Issues:           1000,
		QueriesPerWorker: 10,
		BlockedPct:       0.3,
	}
}

// Latency captures query latency statistics.
type Latency struct {
	Min  time.Duration `json:"min"`
	P50  time.Duration `json:"p50"`
	Mean time.Duration `json:"mean"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
	Max  time.Duration `json:"max"`
}

// Result captures the metrics of one run.
type Result struct {
	Config           Config        `json:"config"`
	Latency          Latency       `json:"latency"`
	QueriesPerSecond float64       `json:"queries_per_second"`
	TotalQueries     int           `json:"total_queries"`
	TotalDuration    time.Duration `json:"total_duration"`
	Errors           int           `json:"errors"`
	SeedDuration     time.Duration `json:"seed_duration"`
	ReadyIssues      int           `json:"ready_issues"`
	DBSizeBytes      int64         `json:"db_size_bytes"`
	HeapBytes        uint64        `json:"heap_bytes"`
}

// Run seeds a store at cfg.DBPath and hammers it with concurrent ready
// queries. The database file is left behind for inspection.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	store, err := sqlite.Open(cfg.DBPath, "bench")
	if err != nil {
		return nil, err
	}
	defer store.Close()

	seedStart := time.Now()
	if err := seed(ctx, store, cfg); err != nil {
		return nil, fmt.Errorf("seeding benchmark store: %w", err)
	}
	seedDuration := time.Since(seedStart)

	var (
		mu        sync.Mutex
		durations []time.Duration
		errCount  int
	)
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := 0; q < cfg.QueriesPerWorker; q++ {
				qStart := time.Now()
				_, qErr := readyQuery(ctx, store)
				elapsed := time.Since(qStart)

				mu.Lock()
				durations = append(durations, elapsed)
				if qErr != nil {
					errCount++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	ready, err := readyQuery(ctx, store)
	if err != nil {
		return nil, err
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	result := &Result{
		Config:           cfg,
		Latency:          computeLatency(durations),
		TotalQueries:     len(durations),
		TotalDuration:    total,
		QueriesPerSecond: float64(len(durations)) / total.Seconds(),
		Errors:           errCount,
		SeedDuration:     seedDuration,
		ReadyIssues:      len(ready),
		HeapBytes:        mem.Alloc,
	}
	if info, serr := os.Stat(cfg.DBPath); serr == nil {
		result.DBSizeBytes = info.Size()
	}
	return result, nil
}

// seed fills the store in one bulk transaction: cfg.Issues open issues,
// with the first BlockedPct of them blocked by the last issue.
func seed(ctx context.Context, store *sqlite.Store, cfg Config) error {
	issues := make([]*types.Issue, 0, cfg.Issues)
	now := time.Now().UTC()
	for i := 1; i <= cfg.Issues; i++ {
		issues = append(issues, &types.Issue{
			ID:        fmt.Sprintf("bench-%d", i),
			Title:     fmt.Sprintf("Benchmark issue %d", i),
			Status:    types.StatusOpen,
			Priority:  i % 5,
			IssueType: types.TypeTask,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	blocker := fmt.Sprintf("bench-%d", cfg.Issues)
	blocked := int(float64(cfg.Issues) * cfg.BlockedPct)
	var deps []*types.Dependency
	for i := 1; i <= blocked && i < cfg.Issues; i++ {
		deps = append(deps, &types.Dependency{
			FromID: fmt.Sprintf("bench-%d", i),
			ToID:   blocker,
			Type:   types.DepBlocks,
		})
	}
	return store.BulkUpsert(ctx, issues, deps)
}

// readyQuery performs the full work of a ready command: list, snapshot,
// resolve.
func readyQuery(ctx context.Context, store *sqlite.Store) ([]string, error) {
	issues, err := store.ListIssues(ctx, nil)
	if err != nil {
		return nil, err
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}
	resolver := graph.NewResolver(graph.NewSnapshot(issues, deps))
	return resolver.Ready(), nil
}

func computeLatency(durations []time.Duration) Latency {
	if len(durations) == 0 {
		return Latency{}
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Latency{
		Min:  sorted[0],
		P50:  sorted[len(sorted)*50/100],
		Mean: sum / time.Duration(len(sorted)),
		P95:  sorted[len(sorted)*95/100],
		P99:  sorted[len(sorted)*99/100],
		Max:  sorted[len(sorted)-1],
	}
}

// FormatDuration renders a latency figure at a precision that matches
// its magnitude.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000.0)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000.0)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
