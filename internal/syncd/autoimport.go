package syncd

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/loomworks/loom/internal/export"
	"github.com/loomworks/loom/internal/importer"
	"github.com/loomworks/loom/internal/storage"
)

// AutoImport merges the interchange file into the store when its content
// no longer matches what the store last saw. It runs synchronously:
// by the time it returns, either the merge committed or the store is
// exactly as it was.
//
// The mtime check against the last sync time is only a cheap gate; the
// real change test is the content hash, because mtimes lie after
// checkouts and clock skew. Collisions abort (strict mode): an import
// nobody asked for must never overwrite local edits.
//
// AutoImport mutates the store, so callers hold the per-store lock, the
// same as any explicit import.
func AutoImport(ctx context.Context, store storage.Store, path string, logger *log.Logger) (*importer.Result, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	if !ImportPending(ctx, store, path) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	hash := export.Hash(data)
	lastHash, err := store.GetMetadata(ctx, storage.MetaContentHash)
	if err != nil {
		return nil, err
	}
	if hash == lastHash {
		// Touched but unchanged; remember the mtime so the gate stays cheap.
		return nil, recordSync(ctx, store, hash)
	}

	logger.Printf("interchange file changed, importing %s", path)

	res, err := importer.New(store, logger).Import(ctx, data, importer.Options{
		Mode:   importer.ModeApply,
		Strict: true,
	})
	if err != nil {
		return nil, err
	}

	if err := recordSync(ctx, store, hash); err != nil {
		return nil, err
	}
	logger.Printf("auto-import done: %d created, %d updated, %d unchanged",
		res.Created, res.Updated, res.Unchanged)
	return res, nil
}

// ImportPending reports whether the interchange file looks newer than
// the last recorded sync. This is only the cheap mtime gate, safe to
// call without the store lock; AutoImport re-checks everything, so a
// pending import may still turn out to be a no-op.
func ImportPending(ctx context.Context, store storage.Store, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		// No interchange file, nothing to converge with.
		return false
	}
	lastSync := lastImportTime(ctx, store)
	return lastSync.IsZero() || info.ModTime().After(lastSync)
}

func lastImportTime(ctx context.Context, store storage.Store) time.Time {
	raw, err := store.GetMetadata(ctx, storage.MetaLastImportUnix)
	if err != nil || raw == "" {
		return time.Time{}
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func recordSync(ctx context.Context, store storage.Store, hash string) error {
	if err := store.SetMetadata(ctx, storage.MetaContentHash, hash); err != nil {
		return err
	}
	return store.SetMetadata(ctx, storage.MetaLastImportUnix,
		strconv.FormatInt(time.Now().Unix(), 10))
}
