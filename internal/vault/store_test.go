package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir())
}

func TestFileStore_WriteReadDelete(t *testing.T) {
	store := newTestStore(t)

	doc := Document{
		Path:        "topics/Docker.md",
		Frontmatter: Frontmatter{Title: "Docker", TypeTag: TagHub},
		Body:        "# Docker\n",
	}
	if err := store.WriteDocument(doc); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	if !store.Exists("topics/Docker.md") {
		t.Error("Exists = false after write")
	}

	back, err := store.ReadDocument("topics/Docker.md")
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if back.Frontmatter.Title != "Docker" {
		t.Errorf("title = %q, want %q", back.Frontmatter.Title, "Docker")
	}
	if back.Body != doc.Body {
		t.Errorf("body = %q, want %q", back.Body, doc.Body)
	}

	if err := store.DeleteDocument("topics/Docker.md"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if store.Exists("topics/Docker.md") {
		t.Error("Exists = true after delete")
	}
}

func TestFileStore_ReadMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.ReadDocument("nope.md"); err == nil {
		t.Error("expected error reading missing document")
	}
}

func TestFileStore_ListDocuments(t *testing.T) {
	store := newTestStore(t)

	for _, p := range []string{"b.md", "a/one.md", "a/two.md", "c/deep/three.md"} {
		if err := store.WriteDocument(Document{Path: p, Body: "x\n"}); err != nil {
			t.Fatalf("WriteDocument(%s) failed: %v", p, err)
		}
	}
	// Non-markdown and hidden-directory files must be skipped.
	if err := os.WriteFile(filepath.Join(store.Root(), "ignore.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(store.Root(), ".palace"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), ".palace", "hidden.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListDocuments("")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	want := []string{"a/one.md", "a/two.md", "b.md", "c/deep/three.md"}
	if len(all) != len(want) {
		t.Fatalf("ListDocuments returned %d paths %v, want %d", len(all), all, len(want))
	}
	for i, p := range want {
		if all[i] != p {
			t.Errorf("paths[%d] = %q, want %q", i, all[i], p)
		}
	}

	scoped, err := store.ListDocuments("a")
	if err != nil {
		t.Fatalf("ListDocuments(a) failed: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("scoped listing returned %d paths %v, want 2", len(scoped), scoped)
	}
}

func TestFileStore_ListDocuments_MissingPrefix(t *testing.T) {
	store := newTestStore(t)
	paths, err := store.ListDocuments("does/not/exist")
	if err != nil {
		t.Fatalf("ListDocuments on missing prefix failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no paths, got %v", paths)
	}
}

func TestFileStore_WriteCreatesParentDirs(t *testing.T) {
	store := newTestStore(t)
	doc := Document{Path: "deeply/nested/dir/note.md", Body: "x\n"}
	if err := store.WriteDocument(doc); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	if !store.Exists("deeply/nested/dir/note.md") {
		t.Error("nested document not written")
	}
}
