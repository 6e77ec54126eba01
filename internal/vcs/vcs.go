// Package vcs locates the version control root of a directory. The
// interchange file is designed to be committed, so a new project anchors
// its manifest and data directory at the repository root rather than
// wherever init happened to run.
package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Type identifies the version control system backing a repository.
type Type string

const (
	TypeGit       Type = "git"
	TypeJJ        Type = "jj"
	TypeColocated Type = "colocated" // both .jj and .git present
)

// ErrNotRepo is returned when no repository marker is found up the tree.
var ErrNotRepo = errors.New("not inside a version control repository")

// Info describes a detected repository.
type Info struct {
	Type Type
	// Root is the repository root. For a git worktree this is the main
	// repository root, so every worktree shares one issue database.
	Root string
	// Worktree is true when the starting directory is a linked git
	// worktree rather than the main checkout.
	Worktree bool
}

// Detect walks up from dir looking for a .jj or .git marker.
func Detect(dir string) (*Info, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for {
		hasJJ := isDir(filepath.Join(current, ".jj"))
		gitPath := filepath.Join(current, ".git")
		gitInfo, gitErr := os.Stat(gitPath)
		hasGit := gitErr == nil

		if hasJJ || hasGit {
			info := &Info{Root: current}
			switch {
			case hasJJ && hasGit:
				info.Type = TypeColocated
			case hasJJ:
				info.Type = TypeJJ
			default:
				info.Type = TypeGit
			}
			// A .git file (not directory) marks a linked worktree;
			// resolve back to the main repository.
			if hasGit && gitInfo.Mode().IsRegular() {
				info.Worktree = true
				if main := worktreeMainRoot(current, gitPath); main != "" {
					info.Root = main
				}
			}
			return info, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotRepo
		}
		current = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// worktreeMainRoot parses a worktree's .git file, which holds a line
// "gitdir: /main/.git/worktrees/<name>", and returns /main.
func worktreeMainRoot(worktreeDir, gitFile string) string {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(content))
	gitDir, ok := strings.CutPrefix(line, "gitdir: ")
	if !ok {
		return ""
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(worktreeDir, gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	sep := string(filepath.Separator)
	if idx := strings.Index(gitDir, sep+"worktrees"+sep); idx > 0 {
		return filepath.Dir(gitDir[:idx])
	}
	return ""
}
