package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/codescope/codescope/internal/errors"
)

// Persistence is the durable layer under the in-memory indexes. It
// holds the indexed documents keyed by path and chunk ID, plus the
// manifest of content hashes used for startup reconciliation. A file
// lock on the database guards against concurrent writers from other
// processes.
type Persistence struct {
	mu   sync.Mutex
	db   *sql.DB
	lock *flock.Flock
	path string
}

const persistenceSchema = `
CREATE TABLE IF NOT EXISTS documents (
	chunk_id TEXT PRIMARY KEY,
	path     TEXT NOT NULL,
	data     BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);

CREATE TABLE IF NOT EXISTS manifest (
	path         TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	indexed_at   INTEGER NOT NULL DEFAULT 0
);
`

// OpenPersistence opens (or creates) the store database inside dir and
// acquires the writer lock. A corrupted database surfaces as a
// corruption error so the caller can wipe and rebuild.
func OpenPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.StorageError("create data directory", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, errors.StorageError("acquire index lock", err)
	}
	if !acquired {
		return nil, errors.New(errors.ErrCodeIOFailure,
			fmt.Sprintf("index at %s is locked by another process", dir), nil)
	}

	dbPath := filepath.Join(dir, "index.db")
	if err := checkIntegrity(dbPath); err != nil {
		_ = lock.Unlock()
		return nil, errors.CorruptionError(fmt.Sprintf("index database at %s", dbPath), err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.StorageError("open index database", err)
	}
	// Single writer keeps SQLite lock contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, errors.StorageError("configure index database", err)
		}
	}

	if _, err := db.Exec(persistenceSchema); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, errors.CorruptionError("create index schema", err)
	}

	return &Persistence{db: db, lock: lock, path: dbPath}, nil
}

// checkIntegrity runs a quick integrity check before opening for real.
func checkIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}

// Wipe deletes the database files so a full rebuild starts clean. The
// receiver must be closed first.
func Wipe(dir string) error {
	dbPath := filepath.Join(dir, "index.db")
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.StorageError(fmt.Sprintf("remove %s", p), err)
		}
	}
	slog.Info("index database wiped", "dir", dir)
	return nil
}

// ReplacePath swaps the documents and manifest row for a path in one
// transaction.
func (p *Persistence) ReplacePath(ctx context.Context, path, contentHash string, docs []*IndexedDocument) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return errors.StorageError("clear old documents", err)
	}

	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			return errors.New(errors.ErrCodeInternal, fmt.Sprintf("encode document %s", d.Chunk.ID), err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO documents (chunk_id, path, data) VALUES (?, ?, ?)",
			d.Chunk.ID, path, data); err != nil {
			return errors.StorageError("write document", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO manifest (path, content_hash, indexed_at) VALUES (?, ?, unixepoch())",
		path, contentHash); err != nil {
		return errors.StorageError("write manifest", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("commit path update", err)
	}
	return nil
}

// RemovePath deletes a path's documents and manifest row.
func (p *Persistence) RemovePath(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path); err != nil {
		return errors.StorageError("delete documents", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM manifest WHERE path = ?", path); err != nil {
		return errors.StorageError("delete manifest row", err)
	}
	if err := tx.Commit(); err != nil {
		return errors.StorageError("commit path removal", err)
	}
	return nil
}

// Manifest returns the persisted path to content-hash map.
func (p *Persistence) Manifest(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT path, content_hash FROM manifest")
	if err != nil {
		return nil, errors.StorageError("read manifest", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, errors.CorruptionError("scan manifest row", err)
		}
		out[path] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("iterate manifest", err)
	}
	return out, nil
}

// LoadAll streams every stored document to fn, used to rebuild the
// in-memory indexes at startup.
func (p *Persistence) LoadAll(ctx context.Context, fn func(path string, doc *IndexedDocument) error) error {
	rows, err := p.db.QueryContext(ctx, "SELECT path, data FROM documents")
	if err != nil {
		return errors.StorageError("read documents", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path string
		var data []byte
		if err := rows.Scan(&path, &data); err != nil {
			return errors.CorruptionError("scan document row", err)
		}
		var doc IndexedDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.CorruptionError("decode stored document", err)
		}
		if err := fn(path, &doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.StorageError("iterate documents", err)
	}
	return nil
}

// Close closes the database and releases the writer lock.
func (p *Persistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dbErr := p.db.Close()
	lockErr := p.lock.Unlock()
	if dbErr != nil {
		return errors.StorageError("close index database", dbErr)
	}
	if lockErr != nil {
		return errors.StorageError("release index lock", lockErr)
	}
	return nil
}
