package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/storage/sqlite"
	"github.com/loomworks/loom/internal/types"
)

func seedStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "loom.db"), "lm")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, id := range []string{"lm-2", "lm-10", "lm-1"} {
		err := store.CreateIssue(ctx, &types.Issue{
			ID: id, Title: "Issue " + id, Status: types.StatusOpen,
			Priority: 2, IssueType: types.TypeTask,
		})
		if err != nil {
			t.Fatalf("CreateIssue(%s) error = %v", id, err)
		}
	}
	err = store.AddDependency(ctx, &types.Dependency{FromID: "lm-10", ToID: "lm-1", Type: types.DepBlocks})
	if err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	return store
}

func TestSnapshotOrdering(t *testing.T) {
	store := seedStore(t)

	records, err := Snapshot(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	want := []string{"lm-1", "lm-2", "lm-10"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("record order = %v, want %v (numeric suffix order)", ids, want)
		}
	}
}

func TestEncodeJSONLDeterministic(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	first, err := Snapshot(ctx, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := EncodeJSONL(first)
	if err != nil {
		t.Fatal(err)
	}

	second, err := Snapshot(ctx, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeJSONL(second)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a, b) {
		t.Error("exports of an unchanged store must be byte-identical")
	}
	if lines := bytes.Count(a, []byte("\n")); lines != 3 {
		t.Errorf("output has %d lines, want 3", lines)
	}
}

func TestRoundTripDecode(t *testing.T) {
	store := seedStore(t)

	records, err := Snapshot(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodeJSONL(records)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeJSONL(data)
	if err != nil {
		t.Fatalf("DecodeJSONL() error = %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("decoded %d records, want %d", len(decoded), len(records))
	}
	for i := range records {
		if !decoded[i].ContentEqual(&records[i].Issue) {
			t.Errorf("record %s changed across the round trip", records[i].ID)
		}
	}
	if len(decoded[2].Dependencies) != 1 || decoded[2].Dependencies[0].ToID != "lm-1" {
		t.Errorf("lm-10 dependencies = %+v, want embedded blocks edge to lm-1", decoded[2].Dependencies)
	}
}

func TestDecodeRejectsConflictMarkers(t *testing.T) {
	data := []byte("<<<<<<< HEAD\n{\"id\":\"lm-1\"}\n=======\n{\"id\":\"lm-2\"}\n>>>>>>> theirs\n")
	_, err := DecodeJSONL(data)
	var corrupt *types.CorruptDataError
	if !errors.As(err, &corrupt) {
		t.Fatalf("DecodeJSONL(conflict) error = %T, want *types.CorruptDataError", err)
	}
	if !strings.Contains(corrupt.Detail, "merge conflict") {
		t.Errorf("Detail = %q, want mention of merge conflict", corrupt.Detail)
	}
}

func TestDecodeRejectsGarbageLine(t *testing.T) {
	_, err := DecodeJSONL([]byte("{\"id\":\"lm-1\",\"title\":\"ok\"}\nnot json\n"))
	var corrupt *types.CorruptDataError
	if !errors.As(err, &corrupt) {
		t.Fatalf("DecodeJSONL(garbage) error = %T, want *types.CorruptDataError", err)
	}
	if !strings.Contains(corrupt.Detail, "line 2") {
		t.Errorf("Detail = %q, want offending line number", corrupt.Detail)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "issues.jsonl")

	if err := WriteFileAtomic(path, []byte("one\n")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two\n")); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "two\n" {
		t.Errorf("file content = %q, want %q", got, "two\n")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFullUpdatesMetadata(t *testing.T) {
	store := seedStore(t)
	path := filepath.Join(t.TempDir(), "issues.jsonl")

	hash, err := Full(context.Background(), store, path)
	if err != nil {
		t.Fatalf("Full() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if Hash(data) != hash {
		t.Error("returned hash must match the written file")
	}

	ctx := context.Background()
	if got, _ := store.GetMetadata(ctx, storage.MetaContentHash); got != hash {
		t.Errorf("stored content hash = %q, want %q", got, hash)
	}
	if got, _ := store.GetMetadata(ctx, storage.MetaDirty); got != "0" {
		t.Errorf("dirty flag after export = %q, want 0", got)
	}
	if got, _ := store.GetMetadata(ctx, storage.MetaFormatVersion); got != FormatVersion {
		t.Errorf("format version = %q, want %q", got, FormatVersion)
	}
}

func TestEncodeYAML(t *testing.T) {
	store := seedStore(t)

	records, err := Snapshot(context.Background(), store, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := EncodeYAML(records)
	if err != nil {
		t.Fatalf("EncodeYAML() error = %v", err)
	}
	text := string(out)
	if !strings.Contains(text, "issues:") || !strings.Contains(text, "lm-10") {
		t.Errorf("YAML output missing expected content:\n%s", text)
	}
}
