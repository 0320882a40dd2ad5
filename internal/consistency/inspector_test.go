package consistency

import (
	"strings"
	"testing"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// buildCorpus writes documents into a temp FileStore and returns the
// store plus index-style listings for the inspector.
func buildCorpus(t *testing.T, docs []vault.Document) (*vault.FileStore, []Listing) {
	t.Helper()
	store := vault.NewFileStore(t.TempDir())
	listings := make([]Listing, 0, len(docs))
	for _, doc := range docs {
		if err := store.WriteDocument(doc); err != nil {
			t.Fatalf("writing %s: %v", doc.Path, err)
		}
		listings = append(listings, Listing{
			Path:  doc.Path,
			Title: doc.Title(),
			Kind:  string(doc.Kind()),
		})
	}
	return store, listings
}

func hubDoc(path, title string, mapEntries ...string) vault.Document {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n## Knowledge Map\n\n")
	for _, e := range mapEntries {
		b.WriteString("- [[" + e + "]]\n")
	}
	return vault.Document{
		Path:        path,
		Frontmatter: vault.Frontmatter{Title: title, TypeTag: vault.TagHub},
		Body:        b.String(),
	}
}

func childDoc(path, title, body string) vault.Document {
	return vault.Document{
		Path:        path,
		Frontmatter: vault.Frontmatter{Title: title, TypeTag: vault.TagChild},
		Body:        body,
	}
}

func scan(t *testing.T, docs []vault.Document, categories ...Category) []Issue {
	t.Helper()
	store, listings := buildCorpus(t, docs)
	in := NewInspector(listings, store, config.Default())
	issues, err := in.Scan(categories, 0)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return issues
}

func issuesOf(issues []Issue, c Category) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Category == c {
			out = append(out, i)
		}
	}
	return out
}

func TestScan_UnknownCategory(t *testing.T) {
	store, listings := buildCorpus(t, nil)
	in := NewInspector(listings, store, config.Default())
	if _, err := in.Scan([]Category{"bogus"}, 0); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestScan_CleanCorpus(t *testing.T) {
	issues := scan(t, []vault.Document{
		hubDoc("k/Docker.md", "Docker", "Docker - Compose"),
		childDoc("k/Docker - Compose.md", "Docker - Compose", "# Docker - Compose\n\ntext\n"),
	})
	if len(issues) != 0 {
		t.Errorf("clean corpus produced issues: %+v", issues)
	}
}

func TestScan_UnprefixedChildren(t *testing.T) {
	issues := scan(t, []vault.Document{
		hubDoc("k/Docker.md", "Docker", "Compose"),
		childDoc("k/Compose.md", "Compose", "# Compose\n\ntext\n"),
	}, CategoryUnprefixedChildren)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	is := issues[0]
	if is.Path != "k/Compose.md" {
		t.Errorf("path = %q", is.Path)
	}
	if !is.Fixable {
		t.Error("unprefixed child must be fixable")
	}
	if got := is.Details[DetailSuggestedFilename]; got != "Docker - Compose.md" {
		t.Errorf("suggested filename = %q", got)
	}
	if got := is.Details[DetailHubPath]; got != "k/Docker.md" {
		t.Errorf("hub path = %q", got)
	}
}

func TestScan_UnprefixedChildren_MissingSeparatorOnly(t *testing.T) {
	// Name already starts with the hub title: only the separator is
	// inserted, the remainder is not duplicated.
	issues := scan(t, []vault.Document{
		hubDoc("k/Docker.md", "Docker"),
		childDoc("k/Docker Compose.md", "Docker Compose", "# Docker Compose\n\ntext\n"),
	}, CategoryUnprefixedChildren)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	if got := issues[0].Details[DetailSuggestedFilename]; got != "Docker - Compose.md" {
		t.Errorf("suggested filename = %q, want %q", got, "Docker - Compose.md")
	}
}

func TestScan_UnprefixedChildren_MultiHubAmbiguity(t *testing.T) {
	// Two hubs, sibling matches neither title prefix: no attribution,
	// no issue.
	issues := scan(t, []vault.Document{
		hubDoc("k/Alpha.md", "Alpha"),
		hubDoc("k/Beta.md", "Beta"),
		childDoc("k/Notes.md", "Notes", "# Notes\n\ntext\n"),
	}, CategoryUnprefixedChildren)
	if len(issues) != 0 {
		t.Errorf("ambiguous sibling flagged: %+v", issues)
	}
}

func TestScan_CorruptedHeadings(t *testing.T) {
	issues := scan(t, []vault.Document{
		childDoc("k/Docker Overview.md", "Docker Overview", "# [[Docker]] Overview\n\ntext\n"),
		childDoc("k/Fine.md", "Fine", "# Fine\n\n[[Docker]] in prose is fine.\n"),
	}, CategoryCorruptedHeadings)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	is := issues[0]
	if is.Path != "k/Docker Overview.md" {
		t.Errorf("path = %q", is.Path)
	}
	if !strings.Contains(is.Details[DetailReplacement], "# Docker Overview") {
		t.Errorf("replacement = %q, want link stripped to display text", is.Details[DetailReplacement])
	}
}

func TestScan_BrokenWikiLinks(t *testing.T) {
	issues := scan(t, []vault.Document{
		childDoc("k/Bad.md", "Bad", "# Bad\n\nSee [[Kubernetes]]es]] for details.\n"),
	}, CategoryBrokenWikiLinks)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	is := issues[0]
	if is.Details[DetailMalformed] != "[[Kubernetes]]es]]" {
		t.Errorf("malformed = %q", is.Details[DetailMalformed])
	}
	if is.Details[DetailReplacement] != "[[Kubernetes]]es" {
		t.Errorf("replacement = %q, want the stray brackets dropped", is.Details[DetailReplacement])
	}
}

func TestScan_BrokenWikiLinks_SkipsFences(t *testing.T) {
	issues := scan(t, []vault.Document{
		childDoc("k/Code.md", "Code", "# Code\n\n```\n[[X]]y]]\n```\n"),
	}, CategoryBrokenWikiLinks)
	if len(issues) != 0 {
		t.Errorf("fenced malformed link flagged: %+v", issues)
	}
}

func TestScan_CodeBlockLinks(t *testing.T) {
	issues := scan(t, []vault.Document{
		childDoc("k/Snip.md", "Snip", "# Snip\n\n```yaml\nimage: [[Docker|docker]]:latest\n```\n\n[[Docker]] in prose.\n"),
	}, CategoryCodeBlockLinks)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	is := issues[0]
	if is.Details[DetailMalformed] != "[[Docker|docker]]" {
		t.Errorf("malformed = %q", is.Details[DetailMalformed])
	}
	if is.Details[DetailReplacement] != "docker" {
		t.Errorf("replacement = %q, want display text", is.Details[DetailReplacement])
	}
}

func TestScan_NamingInconsistencies(t *testing.T) {
	issues := scan(t, []vault.Document{
		childDoc("a/setup.md", "setup", "# setup\n"),
		childDoc("b/Setup.md", "Setup", "# Setup\n"),
		childDoc("c/other.md", "other", "# other\n"),
	}, CategoryNamingInconsistencies)

	// Every occurrence of the colliding name is flagged, not just one.
	if len(issues) != 2 {
		t.Fatalf("issues = %+v, want 2", issues)
	}
	for _, is := range issues {
		if is.Fixable {
			t.Errorf("naming inconsistency %s marked fixable", is.Path)
		}
	}
}

func TestScan_OrphanedFragments(t *testing.T) {
	issues := scan(t, []vault.Document{
		hubDoc("k/Docker.md", "Docker", "Docker - Compose"),
		childDoc("k/Docker - Compose.md", "Docker - Compose", "# Docker - Compose\n\ntext\n"),
		childDoc("k/Docker - Swarm.md", "Docker - Swarm", "# Docker - Swarm\n\ntext\n"),
	}, CategoryOrphanedFragments)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	is := issues[0]
	if is.Path != "k/Docker - Swarm.md" {
		t.Errorf("path = %q", is.Path)
	}
	if is.Fixable {
		t.Error("orphaned fragment must not be mechanically fixable")
	}
	if got := is.Details[DetailHubPath]; got != "k/Docker.md" {
		t.Errorf("hub attribution = %q", got)
	}
}

func TestScan_OrphanedFragments_MultiHubFlaggedOnce(t *testing.T) {
	// A document unreferenced in a directory with several hubs yields
	// exactly one issue, attributed by longest prefix.
	issues := scan(t, []vault.Document{
		hubDoc("d/API.md", "API"),
		hubDoc("d/API Design.md", "API Design"),
		childDoc("d/API Design - Versioning.md", "API Design - Versioning", "# API Design - Versioning\n\ntext\n"),
	}, CategoryOrphanedFragments)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want exactly 1", issues)
	}
	if got := issues[0].Details[DetailHubPath]; got != "d/API Design.md" {
		t.Errorf("attributed to %q, want the longest-prefix hub", got)
	}
}

func TestScan_OrphanedFragments_NoPrefixMatch(t *testing.T) {
	issues := scan(t, []vault.Document{
		hubDoc("k/Docker.md", "Docker"),
		childDoc("k/Random.md", "Random", "# Random\n\ntext\n"),
	}, CategoryOrphanedFragments)

	if len(issues) != 1 {
		t.Fatalf("issues = %+v, want 1", issues)
	}
	if _, ok := issues[0].Details[DetailHubPath]; ok {
		t.Error("unattributable orphan must not carry a hub path")
	}
}

func TestScan_Limit(t *testing.T) {
	docs := []vault.Document{
		childDoc("k/A.md", "A", "# [[A]] One\n"),
		childDoc("k/B.md", "B", "# [[B]] Two\n"),
		childDoc("k/C.md", "C", "# [[C]] Three\n"),
	}
	store, listings := buildCorpus(t, docs)
	in := NewInspector(listings, store, config.Default())
	issues, err := in.Scan([]Category{CategoryCorruptedHeadings}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 2 {
		t.Errorf("issues = %d, want limit of 2", len(issues))
	}
}

func TestScan_Idempotent(t *testing.T) {
	docs := []vault.Document{
		hubDoc("k/Docker.md", "Docker"),
		childDoc("k/Compose.md", "Compose", "# [[Docker]] Compose\n\n[[X]]y]]\n"),
	}
	store, listings := buildCorpus(t, docs)
	in := NewInspector(listings, store, config.Default())

	first, err := in.Scan(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := in.Scan(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("scan not stable: %d then %d issues", len(first), len(second))
	}
	for i := range first {
		if first[i].Category != second[i].Category || first[i].Path != second[i].Path {
			t.Errorf("issue %d differs across scans", i)
		}
	}
}
