package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/tools/txtar"
	"rsc.io/script"
	"rsc.io/script/scripttest"
)

var loomExe string

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	dir, err := os.MkdirTemp("", "loom-cli")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer os.RemoveAll(dir)

	loomExe = filepath.Join(dir, "loom")
	out, err := exec.Command("go", "build", "-o", loomExe, ".").CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "building loom: %v\n%s", err, out)
		return 1
	}
	return m.Run()
}

// TestScript runs the end-to-end scripts in testdata/script. Each .txt
// file is a txtar archive: the comment holds the script, the files are
// laid out in a fresh work directory before it runs.
func TestScript(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "script", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no scripts found in testdata/script")
	}

	engine := &script.Engine{
		Cmds:  script.DefaultCmds(),
		Conds: script.DefaultConds(),
	}
	engine.Cmds["loom"] = script.Program(loomExe, func(cmd *exec.Cmd) error { return cmd.Process.Signal(os.Interrupt) }, 100*time.Millisecond)

	// A throwaway HOME keeps any real ~/.loom.yaml out of the tests.
	home := t.TempDir()

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".txt")
		t.Run(name, func(t *testing.T) {
			archive, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			state, err := script.NewState(context.Background(), t.TempDir(), []string{
				"PATH=" + os.Getenv("PATH"),
				"HOME=" + home,
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := state.ExtractFiles(archive); err != nil {
				t.Fatal(err)
			}
			scripttest.Run(t, engine, state, name+".txt", bytes.NewReader(archive.Comment))
		})
	}
}
