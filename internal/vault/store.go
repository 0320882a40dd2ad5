package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store defines the document persistence interface the engine depends on.
// Abstracted for testability (DIP): the engine never touches the
// filesystem directly.
type Store interface {
	ReadDocument(path string) (Document, error)
	WriteDocument(doc Document) error
	DeleteDocument(path string) error
	// ListDocuments returns vault-relative paths of all markdown documents
	// under dirPrefix ("" for the whole vault), sorted.
	ListDocuments(dirPrefix string) ([]string, error)
	Exists(path string) bool
}

// FileStore implements Store on the local filesystem, rooted at the
// vault directory. All paths in and out are vault-relative with forward
// slashes.
type FileStore struct {
	root string
}

// NewFileStore creates a filesystem-backed document store.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the vault root directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// ReadDocument loads and parses one document.
func (s *FileStore) ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDocument(path, string(data))
}

// WriteDocument encodes and writes the document, creating parent
// directories as needed.
func (s *FileStore) WriteDocument(doc Document) error {
	content, err := doc.Encode()
	if err != nil {
		return err
	}
	abs := s.abs(doc.Path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", doc.Path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", doc.Path, err)
	}
	return nil
}

// DeleteDocument removes the document file.
func (s *FileStore) DeleteDocument(path string) error {
	if err := os.Remove(s.abs(path)); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a document file is present at path.
func (s *FileStore) Exists(path string) bool {
	_, err := os.Stat(s.abs(path))
	return err == nil
}

// ListDocuments walks the vault for .md files under dirPrefix. Hidden
// directories (".palace", ".obsidian", ".trash") are skipped.
func (s *FileStore) ListDocuments(dirPrefix string) ([]string, error) {
	start := s.root
	if dirPrefix != "" {
		start = s.abs(dirPrefix)
	}
	var paths []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == start {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != start {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dirPrefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}
