// Package sqlite implements storage.Store on an embedded SQLite database.
//
// The database runs in WAL mode so readers see consistent snapshots while
// a writer is active. Issues, dependency edges, and sync metadata live in
// three tables; labels are stored as a JSON array column and queried with
// json_each. All multi-record operations run in transactions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/loomworks/loom/internal/storage"
)

// DefaultPrefix is used for generated ids when the store has no
// configured issue prefix.
const DefaultPrefix = "lm"

const timeFormat = time.RFC3339Nano

// Store is the SQLite-backed storage.Store implementation.
type Store struct {
	conn   *sql.DB
	path   string
	prefix string
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path and ensures the schema
// exists. The caller must Close() the returned store.
func Open(path, prefix string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, prefix: prefix}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}

	if s.prefix == "" {
		stored, err := s.GetMetadata(context.Background(), storage.MetaIssuePrefix)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if stored == "" {
			stored = DefaultPrefix
		}
		s.prefix = stored
	}
	if err := s.SetMetadata(context.Background(), storage.MetaIssuePrefix, s.prefix); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Prefix returns the id prefix used for generated ids.
func (s *Store) Prefix() string {
	return s.prefix
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		design TEXT NOT NULL DEFAULT '',
		acceptance_criteria TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		priority INTEGER NOT NULL DEFAULT 2,
		issue_type TEXT NOT NULL DEFAULT 'task',
		assignee TEXT NOT NULL DEFAULT '',
		labels TEXT NOT NULL DEFAULT '[]',  -- JSON array
		estimated_hours REAL,
		actual_hours REAL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		closed_at TEXT,
		close_reason TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS deps (
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (from_id, to_id, type),
		FOREIGN KEY (from_id) REFERENCES issues(id),
		FOREIGN KEY (to_id) REFERENCES issues(id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
	CREATE INDEX IF NOT EXISTS idx_issues_priority ON issues(priority);
	CREATE INDEX IF NOT EXISTS idx_issues_assignee ON issues(assignee);
	CREATE INDEX IF NOT EXISTS idx_deps_to ON deps(to_id);
	CREATE INDEX IF NOT EXISTS idx_deps_type ON deps(type);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetMetadata implements storage.Store. Missing keys return "".
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata implements storage.Store.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write metadata %s: %w", key, err)
	}
	return nil
}

// AllocateID implements storage.Store. The counter lives in metadata and
// is advanced inside a transaction; generated ids are re-checked against
// the issues table so explicit ids can never be clobbered.
func (s *Store) AllocateID(ctx context.Context) (string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := allocateIDTx(ctx, tx, s.prefix)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit id allocation: %w", err)
	}
	return id, nil
}

func allocateIDTx(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	counter, err := readCounterTx(ctx, tx)
	if err != nil {
		return "", err
	}

	for {
		counter++
		id := fmt.Sprintf("%s-%d", prefix, counter)
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM issues WHERE id = ?", id).Scan(&exists)
		if err == sql.ErrNoRows {
			if err := writeCounterTx(ctx, tx, counter); err != nil {
				return "", err
			}
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to probe id %s: %w", id, err)
		}
	}
}

func readCounterTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", storage.MetaIssueCounter).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read id counter: %w", err)
	}
	counter, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt id counter %q: %w", raw, err)
	}
	return counter, nil
}

func writeCounterTx(ctx context.Context, tx *sql.Tx, counter int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		storage.MetaIssueCounter, strconv.FormatInt(counter, 10))
	if err != nil {
		return fmt.Errorf("failed to write id counter: %w", err)
	}
	return nil
}

// advanceCounterPast bumps the counter when an explicit id with this
// store's prefix and a numeric suffix is inserted, so future generated
// ids cannot collide with it.
func advanceCounterPastTx(ctx context.Context, tx *sql.Tx, prefix, id string) error {
	suffix, ok := strings.CutPrefix(id, prefix+"-")
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return nil
	}
	counter, err := readCounterTx(ctx, tx)
	if err != nil {
		return err
	}
	if n > counter {
		return writeCounterTx(ctx, tx, n)
	}
	return nil
}

func markDirtyTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = '1'`, storage.MetaDirty)
	if err != nil {
		return fmt.Errorf("failed to mark store dirty: %w", err)
	}
	return nil
}
