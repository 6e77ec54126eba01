package benchmark

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRunSmall(t *testing.T) {
	cfg := Config{
		Workers:          4,
		Issues:           50,
		QueriesPerWorker: 3,
		BlockedPct:       0.2,
		DBPath:           filepath.Join(t.TempDir(), "bench.db"),
	}

	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.TotalQueries != cfg.Workers*cfg.QueriesPerWorker {
		t.Errorf("TotalQueries = %d, want %d", result.TotalQueries, cfg.Workers*cfg.QueriesPerWorker)
	}
	if result.Errors != 0 {
		t.Errorf("Errors = %d, want 0", result.Errors)
	}
	// 10 of 50 issues are blocked by bench-50; the rest are ready.
	if result.ReadyIssues != 40 {
		t.Errorf("ReadyIssues = %d, want 40", result.ReadyIssues)
	}
	if result.Latency.Max < result.Latency.Min {
		t.Errorf("latency stats inverted: %+v", result.Latency)
	}
	if result.DBSizeBytes == 0 {
		t.Error("DBSizeBytes = 0, want the seeded database size")
	}
}

func TestComputeLatency(t *testing.T) {
	durations := []time.Duration{
		5 * time.Millisecond,
		time.Millisecond,
		3 * time.Millisecond,
		2 * time.Millisecond,
	}
	lat := computeLatency(durations)
	if lat.Min != time.Millisecond {
		t.Errorf("Min = %s, want 1ms", lat.Min)
	}
	if lat.Max != 5*time.Millisecond {
		t.Errorf("Max = %s, want 5ms", lat.Max)
	}
	if lat.P50 != 3*time.Millisecond {
		t.Errorf("P50 = %s, want 3ms", lat.P50)
	}
	if lat.Mean != 2750*time.Microsecond {
		t.Errorf("Mean = %s, want 2.75ms", lat.Mean)
	}
}

func TestComputeLatencyEmpty(t *testing.T) {
	if lat := computeLatency(nil); lat != (Latency{}) {
		t.Errorf("computeLatency(nil) = %+v, want zero value", lat)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1.50µs"},
		{2500 * time.Microsecond, "2.50ms"},
		{3 * time.Second, "3.00s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
