// Package index is the queryable metadata index over the corpus: a
// mapping of document path to title, kind, and outgoing wiki-links. The
// Inspector uses it to enumerate the corpus without re-reading every
// file; the engine signals Reindex after each write.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Entry is the indexed metadata for one document.
type Entry struct {
	Path  string   `json:"path"`
	Title string   `json:"title"`
	Kind  string   `json:"kind"`
	Links []string `json:"links,omitempty"`
}

// Index is the metadata store interface the engine depends on.
type Index interface {
	// Lookup returns the entry for a path, with ok=false when unindexed.
	Lookup(path string) (Entry, bool, error)
	// All returns every indexed entry, ordered by path.
	All() ([]Entry, error)
	// Reindex refreshes one path from the document store. A missing
	// document drops the entry.
	Reindex(path string) error
	// Remove drops one path from the index.
	Remove(path string) error
	Close() error
}

// SQLiteIndex implements Index on a vault-local SQLite database at
// .palace/index.db.
type SQLiteIndex struct {
	db    *sql.DB
	store vault.Store
}

// Open creates the index database under the vault's .palace directory,
// applies pragmas, and migrates the schema.
func Open(vaultRoot string, store vault.Store) (*SQLiteIndex, error) {
	dataDir := filepath.Join(vaultRoot, config.PalaceDir)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("index: create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("index: pragma %q: %w", p, err)
		}
	}

	x := &SQLiteIndex{db: db, store: store}
	if err := x.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: migration: %w", err)
	}
	return x, nil
}

// Close closes the underlying database connection.
func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

func (x *SQLiteIndex) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			kind       TEXT NOT NULL,
			indexed_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS links (
			source_path TEXT NOT NULL,
			target      TEXT NOT NULL,
			PRIMARY KEY (source_path, target)
		);
		CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
		CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);
	`
	_, err := x.db.Exec(schema)
	return err
}

// Lookup returns one indexed entry.
func (x *SQLiteIndex) Lookup(path string) (Entry, bool, error) {
	var e Entry
	err := x.db.QueryRow(
		"SELECT path, title, kind FROM documents WHERE path = ?", path,
	).Scan(&e.Path, &e.Title, &e.Kind)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("index: lookup %s: %w", path, err)
	}

	links, err := x.linksFor(path)
	if err != nil {
		return Entry{}, false, err
	}
	e.Links = links
	return e, true, nil
}

// All returns every indexed entry ordered by path.
func (x *SQLiteIndex) All() ([]Entry, error) {
	rows, err := x.db.Query("SELECT path, title, kind FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("index: listing documents: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Title, &e.Kind); err != nil {
			return nil, fmt.Errorf("index: scanning row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterating rows: %w", err)
	}

	for i := range entries {
		links, err := x.linksFor(entries[i].Path)
		if err != nil {
			return nil, err
		}
		entries[i].Links = links
	}
	return entries, nil
}

func (x *SQLiteIndex) linksFor(path string) ([]string, error) {
	rows, err := x.db.Query("SELECT target FROM links WHERE source_path = ? ORDER BY target", path)
	if err != nil {
		return nil, fmt.Errorf("index: links for %s: %w", path, err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		links = append(links, t)
	}
	return links, rows.Err()
}

// Reindex refreshes one path from the document store inside a single
// transaction. A document that no longer exists is dropped.
func (x *SQLiteIndex) Reindex(path string) error {
	if !x.store.Exists(path) {
		return x.Remove(path)
	}
	doc, err := x.store.ReadDocument(path)
	if err != nil {
		return fmt.Errorf("index: reindex %s: %w", path, err)
	}
	p, err := analyzer.Analyze(doc.Body, analyzer.Options{})
	if err != nil {
		return fmt.Errorf("index: reindex %s: %w", path, err)
	}

	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.Exec(`
		INSERT INTO documents (path, title, kind, indexed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET title = excluded.title, kind = excluded.kind, indexed_at = excluded.indexed_at`,
		path, doc.Title(), string(doc.Kind()), now)
	if err != nil {
		return fmt.Errorf("index: upsert %s: %w", path, err)
	}
	if _, err := tx.Exec("DELETE FROM links WHERE source_path = ?", path); err != nil {
		return fmt.Errorf("index: clearing links for %s: %w", path, err)
	}
	for _, link := range p.Links {
		target := strings.TrimSpace(link.Target)
		if target == "" {
			continue
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO links (source_path, target) VALUES (?, ?)",
			path, target); err != nil {
			return fmt.Errorf("index: inserting link %s -> %s: %w", path, target, err)
		}
	}
	return tx.Commit()
}

// Remove drops one path and its links.
func (x *SQLiteIndex) Remove(path string) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("index: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM documents WHERE path = ?", path); err != nil {
		return fmt.Errorf("index: removing %s: %w", path, err)
	}
	if _, err := tx.Exec("DELETE FROM links WHERE source_path = ?", path); err != nil {
		return fmt.Errorf("index: removing links for %s: %w", path, err)
	}
	return tx.Commit()
}

// RebuildAll re-indexes the whole vault. Used at startup and after
// repairs that rename files.
func (x *SQLiteIndex) RebuildAll() error {
	paths, err := x.store.ListDocuments("")
	if err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}
	onDisk := make(map[string]bool, len(paths))
	for _, p := range paths {
		onDisk[p] = true
		if err := x.Reindex(p); err != nil {
			return err
		}
	}

	// Drop entries whose files are gone.
	entries, err := x.All()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !onDisk[e.Path] {
			if err := x.Remove(e.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
