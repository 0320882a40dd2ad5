package hub

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

func TestIsHub(t *testing.T) {
	cfg := config.Default()

	tagged := vault.Document{Path: "x/Notes.md", Frontmatter: vault.Frontmatter{TypeTag: vault.TagHub}}
	if !IsHub(tagged, cfg) {
		t.Error("type-tagged hub not recognized")
	}

	child := vault.Document{Path: "x/Hub.md", Frontmatter: vault.Frontmatter{TypeTag: vault.TagChild}}
	cfg.HubFileName = "Hub.md"
	if IsHub(child, cfg) {
		t.Error("filename fallback must not override an explicit kind tag")
	}

	untagged := vault.Document{Path: "x/Hub.md"}
	if !IsHub(untagged, cfg) {
		t.Error("untagged document with the legacy hub filename not recognized")
	}

	plain := vault.Document{Path: "x/Other.md"}
	if IsHub(plain, cfg) {
		t.Error("plain document wrongly recognized as hub")
	}
}

func TestKnowledgeMapEntry(t *testing.T) {
	if got := KnowledgeMapEntry("Docker - Compose", "Multi-container setups."); got != "- [[Docker - Compose]] - Multi-container setups." {
		t.Errorf("entry = %q", got)
	}
	if got := KnowledgeMapEntry("Docker - Compose", ""); got != "- [[Docker - Compose]]" {
		t.Errorf("entry without description = %q", got)
	}
}

func TestKnowledgeMapTargets(t *testing.T) {
	body := `# Docker

Intro with a stray [[Not In Map]] link.

## Knowledge Map

- [[Docker - Compose]] - Compose notes
- [[Docker - Swarm]]

## Other

- [[Also Not In Map]]
`
	targets := KnowledgeMapTargets(body)
	if len(targets) != 2 {
		t.Fatalf("targets = %v, want 2", targets)
	}
	if targets[0] != "Docker - Compose" || targets[1] != "Docker - Swarm" {
		t.Errorf("targets = %v", targets)
	}
}

func TestKnowledgeMapTargets_IgnoresFencedLinks(t *testing.T) {
	body := "# H\n\n## Knowledge Map\n\n- [[Real]]\n\n```\n[[Fenced]]\n```\n"
	targets := KnowledgeMapTargets(body)
	if len(targets) != 1 || targets[0] != "Real" {
		t.Errorf("targets = %v, want only Real", targets)
	}
}

func TestAppendKnowledgeMapEntry_ExistingSection(t *testing.T) {
	doc := vault.Document{
		Path:        "Docker.md",
		Frontmatter: vault.Frontmatter{Title: "Docker", TypeTag: vault.TagHub, ChildrenCount: 1},
		Body:        "# Docker\n\n## Knowledge Map\n\n- [[Docker - Compose]]\n\n## Notes\n\ntext\n",
	}

	out, err := AppendKnowledgeMapEntry(doc, ChildRef{Title: "Docker - Swarm", Description: "Cluster mode."})
	if err != nil {
		t.Fatalf("AppendKnowledgeMapEntry failed: %v", err)
	}

	targets := KnowledgeMapTargets(out.Body)
	if len(targets) != 2 || targets[1] != "Docker - Swarm" {
		t.Fatalf("targets after append = %v", targets)
	}
	if out.Frontmatter.ChildrenCount != 2 {
		t.Errorf("children_count = %d, want 2", out.Frontmatter.ChildrenCount)
	}
	// The entry must land inside the Knowledge Map, not in Notes.
	kmIdx := strings.Index(out.Body, "## Knowledge Map")
	notesIdx := strings.Index(out.Body, "## Notes")
	entryIdx := strings.Index(out.Body, "[[Docker - Swarm]]")
	if entryIdx < kmIdx || entryIdx > notesIdx {
		t.Errorf("entry inserted outside the Knowledge Map section:\n%s", out.Body)
	}
	// Input document untouched.
	if strings.Contains(doc.Body, "Swarm") {
		t.Error("AppendKnowledgeMapEntry mutated its input")
	}
}

func TestAppendKnowledgeMapEntry_CreatesSection(t *testing.T) {
	doc := vault.Document{
		Path:        "Docker.md",
		Frontmatter: vault.Frontmatter{Title: "Docker", TypeTag: vault.TagHub},
		Body:        "# Docker\n\nIntro only.\n",
	}
	out, err := AppendKnowledgeMapEntry(doc, ChildRef{Title: "Docker - Compose"})
	if err != nil {
		t.Fatalf("AppendKnowledgeMapEntry failed: %v", err)
	}
	if !strings.Contains(out.Body, "## "+KnowledgeMapTitle) {
		t.Error("section not created")
	}
	targets := KnowledgeMapTargets(out.Body)
	if len(targets) != 1 || targets[0] != "Docker - Compose" {
		t.Errorf("targets = %v", targets)
	}
}

func TestAppendKnowledgeMapEntry_EmptyTitle(t *testing.T) {
	if _, err := AppendKnowledgeMapEntry(vault.Document{Body: "# X\n"}, ChildRef{Title: "  "}); err == nil {
		t.Error("expected error for empty child title")
	}
}

func TestBuildHub(t *testing.T) {
	doc, err := BuildHub("topics", "Kubernetes", []ChildRef{
		{Title: "Kubernetes - Pods", Description: "Pod lifecycle."},
		{Title: "Kubernetes - Services"},
	})
	if err != nil {
		t.Fatalf("BuildHub failed: %v", err)
	}
	if doc.Path != "topics/Kubernetes.md" {
		t.Errorf("path = %q", doc.Path)
	}
	if doc.Frontmatter.TypeTag != vault.TagHub {
		t.Errorf("tag = %q", doc.Frontmatter.TypeTag)
	}
	if doc.Frontmatter.ChildrenCount != 2 {
		t.Errorf("children_count = %d", doc.Frontmatter.ChildrenCount)
	}
	targets := KnowledgeMapTargets(doc.Body)
	if len(targets) != 2 {
		t.Errorf("targets = %v", targets)
	}

	if _, err := BuildHub("", "   ", nil); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestBuildChildNote(t *testing.T) {
	doc, err := BuildChildNote("topics", "Kubernetes - Pods", "Pod lifecycle notes.\n")
	if err != nil {
		t.Fatalf("BuildChildNote failed: %v", err)
	}
	if doc.Path != "topics/Kubernetes - Pods.md" {
		t.Errorf("path = %q", doc.Path)
	}
	if !strings.HasPrefix(doc.Body, "# Kubernetes - Pods") {
		t.Errorf("body = %q, want generated heading", doc.Body)
	}

	withHeading, err := BuildChildNote("", "X", "# Custom Heading\n\ntext\n")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(withHeading.Body, "# Custom Heading") != 1 || strings.HasPrefix(withHeading.Body, "# X") {
		t.Errorf("existing heading must be preserved, got %q", withHeading.Body)
	}
}

func TestDescribe(t *testing.T) {
	lines := []string{"", "# Heading", "<!-- comment -->", "First sentence. Second sentence.", "more"}
	if got := Describe(lines); got != "First sentence." {
		t.Errorf("Describe = %q", got)
	}

	long := strings.Repeat("word ", 40)
	if got := Describe([]string{long}); len(got) > 120 {
		t.Errorf("Describe returned %d chars, want <= 120", len(got))
	}

	if got := Describe([]string{"", "# only headings"}); got != "" {
		t.Errorf("Describe = %q, want empty", got)
	}
}

func TestDescribe_EmbeddedNewlines(t *testing.T) {
	// A whole note body passed as one element must not yield a
	// description spanning lines.
	got := Describe([]string{"Networking basics\nfor containers. More detail follows."})
	if got != "Networking basics" {
		t.Errorf("Describe = %q, want %q", got, "Networking basics")
	}
	if strings.Contains(got, "\n") {
		t.Errorf("Describe returned a multi-line description %q", got)
	}

	// Leading heading inside the same element is still skipped.
	if got := Describe([]string{"# Title\n\nProse after the heading."}); got != "Prose after the heading." {
		t.Errorf("Describe = %q", got)
	}
}

func TestDescribe_TruncatesOnRuneBoundary(t *testing.T) {
	line := strings.Repeat("a", 116) + "ééé"
	got := Describe([]string{line})
	if want := strings.Repeat("a", 116) + "..."; got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Errorf("Describe returned invalid UTF-8 %q", got)
	}
}

func TestAttributeToHub(t *testing.T) {
	hubs := []Ref{
		{Path: "a/API.md", Title: "API"},
		{Path: "a/API Design.md", Title: "API Design"},
	}

	// Longest prefix wins.
	idx, ok := AttributeToHub("API Design - Versioning", hubs)
	if !ok || hubs[idx].Title != "API Design" {
		t.Errorf("attributed to %v, want API Design", idx)
	}

	idx, ok = AttributeToHub("API - Errors", hubs)
	if !ok || hubs[idx].Title != "API" {
		t.Errorf("attributed to %v, want API", idx)
	}

	if _, ok := AttributeToHub("Unrelated - Note", hubs); ok {
		t.Error("unrelated name must not attribute")
	}
}

func TestAttributeToHub_AmbiguousEqualLength(t *testing.T) {
	hubs := []Ref{
		{Path: "a/Api.md", Title: "Api"},
		{Path: "a/API.md", Title: "API"},
	}
	if _, ok := AttributeToHub("API - Errors", hubs); ok {
		t.Error("equal-length prefix match from two hubs must be unattributed")
	}
}

func TestReconcileHubChildren(t *testing.T) {
	hubDoc := vault.Document{
		Path:        "k/Docker.md",
		Frontmatter: vault.Frontmatter{Title: "Docker", TypeTag: vault.TagHub, ChildrenCount: 1},
		Body:        "# Docker\n\n## Knowledge Map\n\n- [[Docker - Compose]]\n",
	}
	siblings := []vault.Document{
		hubDoc,
		{Path: "k/Docker - Compose.md", Frontmatter: vault.Frontmatter{Title: "Docker - Compose", TypeTag: vault.TagChild}, Body: "# Docker - Compose\n\nAlready mapped.\n"},
		{Path: "k/Docker - Swarm.md", Frontmatter: vault.Frontmatter{Title: "Docker - Swarm", TypeTag: vault.TagChild}, Body: "# Docker - Swarm\n\nCluster mode notes.\n"},
		{Path: "k/Unrelated.md", Body: "# Unrelated\n\nNo prefix.\n"},
	}
	dirHubs := []Ref{{Path: hubDoc.Path, Title: "Docker"}}

	res, err := ReconcileHubChildren(hubDoc, siblings, dirHubs)
	if err != nil {
		t.Fatalf("ReconcileHubChildren failed: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0] != "Docker - Swarm" {
		t.Fatalf("added = %v, want Docker - Swarm", res.Added)
	}
	targets := KnowledgeMapTargets(res.Hub.Body)
	if len(targets) != 2 {
		t.Errorf("targets = %v", targets)
	}
	if res.Hub.Frontmatter.ChildrenCount != 2 {
		t.Errorf("children_count = %d, want 2", res.Hub.Frontmatter.ChildrenCount)
	}

	// A second pass over the healed hub adds nothing.
	again, err := ReconcileHubChildren(res.Hub, siblings, dirHubs)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if len(again.Added) != 0 {
		t.Errorf("second pass added %v, want nothing", again.Added)
	}
	if again.Hub.Body != res.Hub.Body {
		t.Error("second pass changed the hub body")
	}
}

func TestReconcileHubChildren_MultiHubDirectory(t *testing.T) {
	apiHub := vault.Document{
		Path:        "d/API.md",
		Frontmatter: vault.Frontmatter{Title: "API", TypeTag: vault.TagHub},
		Body:        "# API\n\n## Knowledge Map\n",
	}
	designHub := vault.Document{
		Path:        "d/API Design.md",
		Frontmatter: vault.Frontmatter{Title: "API Design", TypeTag: vault.TagHub},
		Body:        "# API Design\n\n## Knowledge Map\n",
	}
	sibling := vault.Document{
		Path:        "d/API Design - Versioning.md",
		Frontmatter: vault.Frontmatter{Title: "API Design - Versioning", TypeTag: vault.TagChild},
		Body:        "# API Design - Versioning\n\nRules.\n",
	}
	siblings := []vault.Document{apiHub, designHub, sibling}
	dirHubs := []Ref{
		{Path: apiHub.Path, Title: "API"},
		{Path: designHub.Path, Title: "API Design"},
	}

	// The longer prefix owns the sibling; the shorter hub must skip it.
	res, err := ReconcileHubChildren(apiHub, siblings, dirHubs)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Added) != 0 {
		t.Errorf("API hub claimed %v, want nothing", res.Added)
	}

	res, err = ReconcileHubChildren(designHub, siblings, dirHubs)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Added) != 1 || res.Added[0] != "API Design - Versioning" {
		t.Errorf("API Design hub added %v", res.Added)
	}
}
