// Package config resolves project settings. Per-project options live in a
// loom.toml manifest discovered by walking up from the working directory;
// user-level defaults and environment overrides are handled by viper in
// the CLI layer on top of what this package returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ManifestName is the per-project configuration file.
const ManifestName = "loom.toml"

// DataDirName holds the database and interchange file next to the manifest.
const DataDirName = ".loom"

// Project is the resolved per-project configuration.
type Project struct {
	Prefix          string `toml:"prefix"`
	DBPath          string `toml:"db_path"`
	JSONLPath       string `toml:"jsonl_path"`
	DebounceSeconds int    `toml:"debounce_seconds"`
	LockWaitSeconds int    `toml:"lock_wait_seconds"`
	AutoImport      bool   `toml:"auto_import"`

	// Root is the directory containing the manifest (or the working
	// directory when none was found). Not read from the file.
	Root string `toml:"-"`
}

// Debounce returns the export quiescence window; zero selects the
// scheduler default.
func (p *Project) Debounce() time.Duration {
	return time.Duration(p.DebounceSeconds) * time.Second
}

// LockWait returns the lock acquisition budget; zero selects the
// lockfile default.
func (p *Project) LockWait() time.Duration {
	return time.Duration(p.LockWaitSeconds) * time.Second
}

// Defaults returns the configuration used when no manifest exists.
func Defaults(root string) *Project {
	return &Project{
		Prefix:     "lm",
		DBPath:     filepath.Join(root, DataDirName, "loom.db"),
		JSONLPath:  filepath.Join(root, DataDirName, "issues.jsonl"),
		AutoImport: true,
		Root:       root,
	}
}

// Load finds and parses the nearest manifest at or above dir. A missing
// manifest is not an error: defaults rooted at dir are returned.
func Load(dir string) (*Project, error) {
	path, err := findManifest(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Defaults(dir), nil
	}

	root := filepath.Dir(path)
	project := Defaults(root)
	if _, err := toml.DecodeFile(path, project); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Relative paths in the manifest are anchored at the project root.
	if !filepath.IsAbs(project.DBPath) {
		project.DBPath = filepath.Join(root, project.DBPath)
	}
	if !filepath.IsAbs(project.JSONLPath) {
		project.JSONLPath = filepath.Join(root, project.JSONLPath)
	}
	project.Root = root
	return project, nil
}

// Write saves the manifest into dir, for project initialization.
func Write(dir string, project *Project) error {
	f, err := os.Create(filepath.Join(dir, ManifestName))
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(project); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

func findManifest(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
