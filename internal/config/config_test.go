package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutManifest(t *testing.T) {
	dir := t.TempDir()

	project, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if project.Prefix != "lm" {
		t.Errorf("Prefix = %q, want default lm", project.Prefix)
	}
	if project.Root != dir {
		t.Errorf("Root = %q, want %q", project.Root, dir)
	}
	if project.DBPath != filepath.Join(dir, DataDirName, "loom.db") {
		t.Errorf("DBPath = %q, want under %s", project.DBPath, DataDirName)
	}
	if !project.AutoImport {
		t.Error("AutoImport must default to on")
	}
}

func TestLoadManifestFromParent(t *testing.T) {
	root := t.TempDir()
	manifest := `prefix = "web"
db_path = "data/loom.db"
debounce_seconds = 10
`
	if err := os.WriteFile(filepath.Join(root, ManifestName), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	project, err := Load(nested)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if project.Prefix != "web" {
		t.Errorf("Prefix = %q, want web", project.Prefix)
	}
	if project.Root != root {
		t.Errorf("Root = %q, want %q", project.Root, root)
	}
	if project.DBPath != filepath.Join(root, "data", "loom.db") {
		t.Errorf("DBPath = %q, relative paths must anchor at the root", project.DBPath)
	}
	if project.Debounce() != 10*time.Second {
		t.Errorf("Debounce() = %s, want 10s", project.Debounce())
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	want := Defaults(dir)
	want.Prefix = "api"
	want.LockWaitSeconds = 7
	if err := Write(dir, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Prefix != "api" || got.LockWaitSeconds != 7 {
		t.Errorf("Load() = %+v, want prefix api, lock wait 7s", got)
	}
}
