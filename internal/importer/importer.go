// Package importer merges interchange data into a store.
//
// Every incoming record is bucketed against the store (exact match, new,
// or collision) and then applied according to the requested mode. All
// writes happen in one storage transaction: either the whole batch lands
// or the store is untouched.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"golang.org/x/mod/semver"

	"github.com/loomworks/loom/internal/export"
	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

// Mode selects how buckets are applied.
type Mode int

const (
	// ModeApply updates existing ids in place (last-writer-wins) and
	// creates new ones.
	ModeApply Mode = iota
	// ModeSkipExisting creates new ids only; collisions and exact matches
	// are left untouched.
	ModeSkipExisting
	// ModeDryRun reports the buckets without applying anything.
	ModeDryRun
	// ModeResolveCollisions assigns fresh ids to colliding records and
	// rewrites every reference to them before applying.
	ModeResolveCollisions
)

// Options tunes an import run.
type Options struct {
	Mode Mode
	// Strict aborts with a CollisionError instead of last-writer-wins
	// when ModeApply meets a collision. The automatic import trigger
	// always sets this: overwriting local edits silently is never okay
	// for an import nobody asked for.
	Strict bool
}

// Result reports what an import did (or, for dry runs, would do).
type Result struct {
	Created    int
	Updated    int
	Unchanged  int
	Skipped    int
	Collisions []string          // colliding ids, sorted
	Remap      map[string]string // old id -> fresh id, resolve mode only
	DryRun     bool
}

// Importer merges interchange batches into one store.
type Importer struct {
	store  storage.Store
	logger *log.Logger
}

// New creates an Importer. A nil logger discards output.
func New(store storage.Store, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(discard{}, "", 0)
	}
	return &Importer{store: store, logger: logger}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Import parses and merges interchange content. Validation failures,
// strict-mode collisions, and corrupt input abort before any write.
func (im *Importer) Import(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if err := im.checkFormatVersion(ctx); err != nil {
		return nil, err
	}

	records, err := export.DecodeJSONL(data)
	if err != nil {
		return nil, err
	}

	batch, err := dedupeBatch(records)
	if err != nil {
		return nil, err
	}

	for i := range batch {
		batch[i].NormalizeLabels()
		if err := batch[i].Validate(); err != nil {
			return nil, err
		}
		for _, ref := range batch[i].Dependencies {
			dep := types.Dependency{FromID: batch[i].ID, ToID: ref.ToID, Type: ref.Type}
			if err := dep.Validate(); err != nil {
				return nil, err
			}
		}
	}

	buckets, err := im.classify(ctx, batch)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Created:    len(buckets.fresh),
		Unchanged:  len(buckets.exact),
		Collisions: buckets.collisionIDs(),
	}

	switch opts.Mode {
	case ModeDryRun:
		result.DryRun = true
		result.Updated = len(buckets.collisions)
		return result, nil

	case ModeSkipExisting:
		result.Skipped = len(buckets.collisions)
		result.Collisions = nil
		return result, im.apply(ctx, batch, buckets.fresh)

	case ModeApply:
		if opts.Strict && len(buckets.collisions) > 0 {
			return nil, &types.CollisionError{IDs: buckets.collisionIDs()}
		}
		result.Updated = len(buckets.collisions)
		applied := append(slices.Clone(buckets.fresh), buckets.collisions...)
		return result, im.apply(ctx, batch, applied)

	case ModeResolveCollisions:
		remap, err := im.resolveCollisions(ctx, batch, buckets)
		if err != nil {
			return nil, err
		}
		result.Remap = remap
		result.Created += len(remap)
		result.Collisions = nil
		applied := slices.Clone(buckets.fresh)
		for _, newID := range remap {
			applied = append(applied, newID)
		}
		return result, im.apply(ctx, batch, applied)

	default:
		return nil, &types.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown import mode %d", opts.Mode)}
	}
}

// checkFormatVersion refuses to merge into a store exported by a newer
// major format than this build understands.
func (im *Importer) checkFormatVersion(ctx context.Context) error {
	stored, err := im.store.GetMetadata(ctx, storage.MetaFormatVersion)
	if err != nil {
		return err
	}
	if stored == "" || !semver.IsValid(stored) {
		return nil
	}
	if semver.Major(stored) != semver.Major(export.FormatVersion) &&
		semver.Compare(stored, export.FormatVersion) > 0 {
		return &types.CorruptDataError{
			Detail: fmt.Sprintf("store was written by interchange format %s, this build speaks %s", stored, export.FormatVersion),
		}
	}
	return nil
}

// dedupeBatch collapses identical duplicate lines and rejects conflicting
// ones: two records claiming the same id with different content is an
// authoring error nobody can resolve automatically.
func dedupeBatch(records []export.Record) ([]export.Record, error) {
	seen := make(map[string]int, len(records))
	var batch []export.Record
	for _, rec := range records {
		prev, ok := seen[rec.ID]
		if !ok {
			seen[rec.ID] = len(batch)
			batch = append(batch, rec)
			continue
		}
		if !batch[prev].ContentEqual(&rec.Issue) {
			return nil, &types.ValidationError{
				Field:  "id",
				Reason: fmt.Sprintf("id %s appears twice with different content", rec.ID),
			}
		}
	}
	return batch, nil
}

type bucketSet struct {
	fresh      []string // ids absent from the store
	exact      []string // ids present with identical content
	collisions []string // ids present with different content
}

func (b *bucketSet) collisionIDs() []string {
	ids := slices.Clone(b.collisions)
	slices.SortFunc(ids, types.CompareIDs)
	return ids
}

func (im *Importer) classify(ctx context.Context, batch []export.Record) (*bucketSet, error) {
	var buckets bucketSet
	for i := range batch {
		existing, err := im.store.GetIssue(ctx, batch[i].ID)
		var notFound *types.NotFoundError
		switch {
		case errors.As(err, &notFound):
			buckets.fresh = append(buckets.fresh, batch[i].ID)
		case err != nil:
			return nil, err
		case existing.ContentEqual(&batch[i].Issue):
			buckets.exact = append(buckets.exact, batch[i].ID)
		default:
			buckets.collisions = append(buckets.collisions, batch[i].ID)
		}
	}
	return &buckets, nil
}

// apply upserts the named records and their edges in one transaction.
func (im *Importer) apply(ctx context.Context, batch []export.Record, ids []string) error {
	include := make(map[string]bool, len(ids))
	for _, id := range ids {
		include[id] = true
	}

	var issues []*types.Issue
	var deps []*types.Dependency
	for i := range batch {
		if !include[batch[i].ID] {
			continue
		}
		issue := batch[i].Issue
		issues = append(issues, &issue)
		for _, ref := range batch[i].Dependencies {
			deps = append(deps, &types.Dependency{
				FromID: batch[i].ID,
				ToID:   ref.ToID,
				Type:   ref.Type,
			})
		}
	}
	if len(issues) == 0 {
		return nil
	}

	if err := im.store.BulkUpsert(ctx, issues, deps); err != nil {
		return err
	}
	im.logger.Printf("applied %d issue(s), %d edge(s)", len(issues), len(deps))
	return nil
}
