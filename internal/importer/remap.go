package importer

import (
	"context"
	"slices"
	"strings"

	"github.com/loomworks/loom/internal/export"
	"github.com/loomworks/loom/internal/types"
)

// resolveCollisions assigns a fresh id to every colliding record and
// rewrites all references to the old id across the batch: edge endpoints
// plus whole-token mentions in the free-text fields.
//
// Remap order is ascending by the old id's incoming reference count, so
// cheap renames happen first and the heavily-referenced ids are touched
// last; equal counts fall back to id order, keeping the table
// deterministic for a given batch. Records are renamed in place; the
// returned table maps old ids to their replacements.
func (im *Importer) resolveCollisions(ctx context.Context, batch []export.Record, buckets *bucketSet) (map[string]string, error) {
	if len(buckets.collisions) == 0 {
		return map[string]string{}, nil
	}

	counts := make(map[string]int, len(buckets.collisions))
	for _, old := range buckets.collisions {
		counts[old] = countReferences(batch, old)
	}

	order := slices.Clone(buckets.collisions)
	slices.SortFunc(order, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[a] - counts[b]
		}
		return types.CompareIDs(a, b)
	})

	taken := make(map[string]bool, len(batch))
	for i := range batch {
		taken[batch[i].ID] = true
	}

	remap := make(map[string]string, len(order))
	for _, old := range order {
		fresh, err := im.allocateFresh(ctx, taken)
		if err != nil {
			return nil, err
		}
		remap[old] = fresh
		renameInBatch(batch, old, fresh)
		im.logger.Printf("collision: %s -> %s (%d reference(s))", old, fresh, counts[old])
	}
	return remap, nil
}

// allocateFresh draws ids from the store counter until one is free in
// both the store and the incoming batch, then reserves it in taken.
func (im *Importer) allocateFresh(ctx context.Context, taken map[string]bool) (string, error) {
	for {
		id, err := im.store.AllocateID(ctx)
		if err != nil {
			return "", err
		}
		if taken[id] {
			continue
		}
		taken[id] = true
		return id, nil
	}
}

// countReferences totals the batch's references to id: edge endpoints
// plus whole-token text mentions. The record owning the id does not count
// itself, but its own text and edges referencing the id do.
func countReferences(batch []export.Record, id string) int {
	total := 0
	for i := range batch {
		for _, ref := range batch[i].Dependencies {
			if ref.ToID == id {
				total++
			}
		}
		for _, field := range batch[i].TextFields() {
			total += countTokenMentions(*field, id)
		}
	}
	return total
}

// renameInBatch rewrites every reference to old across the batch,
// including the colliding record's own id.
func renameInBatch(batch []export.Record, old, fresh string) {
	for i := range batch {
		if batch[i].ID == old {
			batch[i].ID = fresh
		}
		for j := range batch[i].Dependencies {
			if batch[i].Dependencies[j].ToID == old {
				batch[i].Dependencies[j].ToID = fresh
			}
		}
		for _, field := range batch[i].TextFields() {
			*field = replaceToken(*field, old, fresh)
		}
	}
}

// replaceToken substitutes whole-token occurrences of old with fresh.
// Token boundaries are anything outside the id alphabet, so a mention of
// "X-10" survives a remap of "X-100" untouched.
func replaceToken(text, old, fresh string) string {
	if !strings.Contains(text, old) {
		return text
	}

	var result strings.Builder
	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], old)
		if idx == -1 {
			result.WriteString(text[i:])
			break
		}
		at := i + idx
		end := at + len(old)
		beforeOK := at == 0 || isBoundary(text[at-1])
		afterOK := end >= len(text) || isBoundary(text[end])

		result.WriteString(text[i:at])
		if beforeOK && afterOK {
			result.WriteString(fresh)
		} else {
			result.WriteString(old)
		}
		i = end
	}
	return result.String()
}

func countTokenMentions(text, id string) int {
	count := 0
	i := 0
	for i < len(text) {
		idx := strings.Index(text[i:], id)
		if idx == -1 {
			break
		}
		at := i + idx
		end := at + len(id)
		if (at == 0 || isBoundary(text[at-1])) && (end >= len(text) || isBoundary(text[end])) {
			count++
		}
		i = end
	}
	return count
}

// isBoundary reports whether c ends an id token. Dashes are part of the
// id alphabet, so "lm-1" does not match inside "lm-1-archive".
func isBoundary(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return false
	case c >= 'A' && c <= 'Z':
		return false
	case c >= '0' && c <= '9':
		return false
	case c == '-':
		return false
	}
	return true
}
