// Package export serializes a store into the line-oriented interchange
// format: one JSON record per issue with its outgoing edges embedded,
// lines sorted by issue id. Repeated exports of an unchanged store are
// byte-identical, so the file diffs cleanly under version control.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

// FormatVersion tags exported data; import refuses a newer major version.
const FormatVersion = "v1.0.0"

// DepRef is an embedded dependency reference inside a record.
type DepRef struct {
	ToID string               `json:"to_id"`
	Type types.DependencyType `json:"type"`
}

// Record is one interchange line: the issue plus its outgoing edges.
type Record struct {
	types.Issue
	Dependencies []DepRef `json:"dependencies,omitempty"`
}

// Snapshot loads records for every issue matching filter (nil = all).
// When a filter is set, only edges between exported issues are embedded,
// so the output never references ids it does not contain.
func Snapshot(ctx context.Context, store storage.Store, filter *types.IssueFilter) ([]Record, error) {
	issues, err := store.ListIssues(ctx, filter)
	if err != nil {
		return nil, err
	}
	deps, err := store.ListDependencies(ctx)
	if err != nil {
		return nil, err
	}

	included := make(map[string]bool, len(issues))
	for _, issue := range issues {
		included[issue.ID] = true
	}

	byFrom := make(map[string][]DepRef)
	for _, d := range deps {
		if filter != nil && (!included[d.FromID] || !included[d.ToID]) {
			continue
		}
		byFrom[d.FromID] = append(byFrom[d.FromID], DepRef{ToID: d.ToID, Type: d.Type})
	}

	records := make([]Record, 0, len(issues))
	for _, issue := range issues {
		refs := byFrom[issue.ID]
		slices.SortFunc(refs, func(a, b DepRef) int {
			if c := types.CompareIDs(a.ToID, b.ToID); c != 0 {
				return c
			}
			return bytes.Compare([]byte(a.Type), []byte(b.Type))
		})
		issue.NormalizeLabels()
		records = append(records, Record{Issue: *issue, Dependencies: refs})
	}
	slices.SortFunc(records, func(a, b Record) int {
		return types.CompareIDs(a.ID, b.ID)
	})
	return records, nil
}

// EncodeJSONL renders records as interchange lines.
func EncodeJSONL(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal issue %s: %w", rec.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// EncodeYAML renders records as a single YAML document. The records are
// round-tripped through their JSON form so the YAML keys match the
// interchange field names exactly.
func EncodeYAML(records []Record) ([]byte, error) {
	jsonDoc, err := json.Marshal(map[string]any{"issues": records})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	var doc any
	if err := json.Unmarshal(jsonDoc, &doc); err != nil {
		return nil, fmt.Errorf("failed to rebind snapshot: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return out, nil
}

// WriteFileAtomic writes data through a temp file and rename so readers
// never observe a torn interchange file.
func WriteFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if err := os.Chmod(path, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	return nil
}

// Hash returns the hex sha256 of interchange content; the sync protocol
// compares these instead of mtimes because mtimes lie after checkouts.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Full exports the whole store to path and records the content hash,
// export time, and format version in store metadata, clearing the dirty
// flag. Returns the content hash.
func Full(ctx context.Context, store storage.Store, path string) (string, error) {
	records, err := Snapshot(ctx, store, nil)
	if err != nil {
		return "", err
	}
	data, err := EncodeJSONL(records)
	if err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}

	hash := Hash(data)
	for key, value := range map[string]string{
		storage.MetaContentHash:    hash,
		storage.MetaLastExportUnix: strconv.FormatInt(time.Now().Unix(), 10),
		storage.MetaFormatVersion:  FormatVersion,
		storage.MetaDirty:          "0",
	} {
		if err := store.SetMetadata(ctx, key, value); err != nil {
			return "", err
		}
	}
	return hash, nil
}
