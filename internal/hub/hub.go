// Package hub maintains hub documents and their Knowledge Map: the
// reserved section listing wiki-links to the hub's children.
//
// Every mutation here is a pure (old Document) -> new Document
// transform; the caller performs the single write. This keeps in-memory
// and on-disk state from diverging on partial failures.
package hub

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// KnowledgeMapTitle is the reserved heading of the hub's child list.
const KnowledgeMapTitle = "Knowledge Map"

// ChildSeparator joins a hub title and a section title into a child
// title and filename prefix.
const ChildSeparator = " - "

// ChildRef names one child entry in a Knowledge Map.
type ChildRef struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Ref identifies a hub document for attribution purposes.
type Ref struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// IsHub reports whether the document is a hub. The frontmatter kind tag
// is authoritative: any tag ending in the hub marker. A config-supplied
// literal hub filename is honored only when the document carries no kind
// tag at all (backward compatibility).
func IsHub(doc vault.Document, cfg *config.VaultConfig) bool {
	if doc.Frontmatter.TypeTag != "" {
		return doc.Kind() == vault.KindHub
	}
	if cfg != nil && cfg.HubFileName != "" {
		return path.Base(doc.Path) == cfg.HubFileName
	}
	return false
}

// ChildPrefix returns the naming prefix a hub's children carry.
func ChildPrefix(hubTitle string) string {
	return vault.SanitizeTitle(hubTitle) + ChildSeparator
}

// KnowledgeMapEntry renders one child line for the Knowledge Map.
func KnowledgeMapEntry(title, description string) string {
	if description == "" {
		return "- [[" + title + "]]"
	}
	return "- [[" + title + "]] - " + description
}

// KnowledgeMapTargets extracts the ordered link targets of the hub's
// Knowledge Map section. Links inside code fences are ignored.
func KnowledgeMapTargets(body string) []string {
	p, err := analyzer.Analyze(body, analyzer.Options{})
	if err != nil {
		return nil
	}
	sec, ok := findKnowledgeMap(p)
	if !ok {
		return nil
	}
	var targets []string
	for _, occ := range p.LinkOccurrences {
		if occ.InCodeFence || occ.InHeading {
			continue
		}
		if occ.Line > sec.StartLine && occ.Line <= sec.EndLine {
			targets = append(targets, occ.Link.Target)
		}
	}
	return targets
}

func findKnowledgeMap(p *analyzer.Profile) (analyzer.Section, bool) {
	for _, sec := range p.Sections {
		if strings.EqualFold(sec.Title, KnowledgeMapTitle) {
			return sec, true
		}
	}
	return analyzer.Section{}, false
}

// AppendKnowledgeMapEntry returns a copy of the hub with one child entry
// appended to its Knowledge Map (creating the section when missing) and
// the cached children count incremented.
func AppendKnowledgeMapEntry(doc vault.Document, child ChildRef) (vault.Document, error) {
	if strings.TrimSpace(child.Title) == "" {
		return vault.Document{}, fmt.Errorf("child title is empty")
	}
	entry := KnowledgeMapEntry(child.Title, child.Description)

	p, err := analyzer.Analyze(doc.Body, analyzer.Options{})
	if err != nil {
		return vault.Document{}, fmt.Errorf("appending to knowledge map of %s: %w", doc.Path, err)
	}

	out := doc
	if sec, ok := findKnowledgeMap(p); ok {
		lines := strings.Split(doc.Body, "\n")
		insertAt := sec.StartLine // 0-based index just after the heading
		for i := sec.EndLine - 1; i >= sec.StartLine; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				insertAt = i + 1
				break
			}
		}
		updated := make([]string, 0, len(lines)+1)
		updated = append(updated, lines[:insertAt]...)
		updated = append(updated, entry)
		updated = append(updated, lines[insertAt:]...)
		out.Body = strings.Join(updated, "\n")
	} else {
		body := strings.TrimRight(doc.Body, "\n")
		out.Body = body + "\n\n## " + KnowledgeMapTitle + "\n\n" + entry + "\n"
	}
	out.Frontmatter.ChildrenCount = doc.Frontmatter.ChildrenCount + 1
	return out, nil
}

// BuildHub constructs a new hub document with an initial Knowledge Map.
func BuildHub(dir, title string, children []ChildRef) (vault.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return vault.Document{}, fmt.Errorf("hub title is empty")
	}
	rel := vault.FileNameForTitle(title)
	if dir != "" {
		rel = path.Join(dir, rel)
	}

	var body strings.Builder
	body.WriteString("# " + title + "\n\n## " + KnowledgeMapTitle + "\n\n")
	for _, c := range children {
		body.WriteString(KnowledgeMapEntry(c.Title, c.Description) + "\n")
	}

	return vault.Document{
		Path: rel,
		Frontmatter: vault.Frontmatter{
			Title:         title,
			TypeTag:       vault.TagHub,
			ChildrenCount: len(children),
		},
		Body: body.String(),
	}, nil
}

// BuildChildNote constructs a standalone child document. The caller
// decides whether to register it in a hub via AppendKnowledgeMapEntry.
func BuildChildNote(dir, title, content string) (vault.Document, error) {
	title = vault.SanitizeTitle(title)
	if title == "" {
		return vault.Document{}, fmt.Errorf("child title is empty")
	}
	rel := title + ".md"
	if dir != "" {
		rel = path.Join(dir, rel)
	}

	body := content
	if !strings.HasPrefix(strings.TrimSpace(body), "# ") {
		body = "# " + title + "\n\n" + content
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}

	return vault.Document{
		Path: rel,
		Frontmatter: vault.Frontmatter{
			Title:   title,
			TypeTag: vault.TagChild,
		},
		Body: body,
	}, nil
}

// Describe derives a one-line description from the first prose line of
// a document body, cut at the first sentence boundary. Elements carrying
// embedded newlines are treated as multiple lines, so the result never
// contains one and always fits a single Knowledge Map entry.
func Describe(lines []string) string {
	for _, raw := range lines {
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") ||
				strings.HasPrefix(trimmed, "<!--") || strings.HasPrefix(trimmed, "%%") ||
				strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				continue
			}
			if i := strings.Index(trimmed, ". "); i > 0 {
				trimmed = trimmed[:i+1]
			}
			const maxDesc = 120
			if len(trimmed) > maxDesc {
				cut := maxDesc - 3
				for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
					cut--
				}
				trimmed = trimmed[:cut] + "..."
			}
			return trimmed
		}
	}
	return ""
}

// AttributeToHub finds the hub whose "{Title} - " prefix is the longest
// match for name. When two distinct hubs match with equal prefix length
// the attribution is ambiguous and reported as no match rather than
// picking one arbitrarily.
func AttributeToHub(name string, hubs []Ref) (int, bool) {
	bestIdx := -1
	bestLen := 0
	ambiguous := false
	for i, h := range hubs {
		prefix := ChildPrefix(h.Title)
		if !hasFoldPrefix(name, prefix) {
			continue
		}
		switch {
		case len(prefix) > bestLen:
			bestIdx, bestLen = i, len(prefix)
			ambiguous = false
		case len(prefix) == bestLen && i != bestIdx:
			ambiguous = true
		}
	}
	if bestIdx < 0 || ambiguous {
		return -1, false
	}
	return bestIdx, true
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// ReconcileResult reports what a reconciliation pass changed.
type ReconcileResult struct {
	Hub   vault.Document `json:"-"`
	Added []string       `json:"added"`
}

// ReconcileHubChildren heals a hub's Knowledge Map: any sibling document
// carrying the hub's naming prefix and attributed to this hub by the
// longest-prefix rule, but missing from the map, is appended. The
// returned document replaces the hub on disk; the pass is idempotent.
//
// dirHubs must list every hub in the hub's directory (including this
// one) so siblings are never double-attributed when hubs share a
// directory.
func ReconcileHubChildren(hubDoc vault.Document, siblings []vault.Document, dirHubs []Ref) (ReconcileResult, error) {
	hubTitle := hubDoc.Title()
	known := make(map[string]bool)
	for _, t := range KnowledgeMapTargets(hubDoc.Body) {
		known[strings.ToLower(t)] = true
	}

	res := ReconcileResult{Hub: hubDoc}
	for _, sib := range siblings {
		if sib.Path == hubDoc.Path {
			continue
		}
		name := vault.SanitizeTitle(sib.Title())
		if !hasFoldPrefix(name, ChildPrefix(hubTitle)) {
			continue
		}
		idx, ok := AttributeToHub(name, dirHubs)
		if !ok || !strings.EqualFold(dirHubs[idx].Title, hubTitle) {
			continue
		}
		if known[strings.ToLower(name)] {
			continue
		}

		updated, err := AppendKnowledgeMapEntry(res.Hub, ChildRef{
			Title:       name,
			Description: Describe(strings.Split(sib.Body, "\n")),
		})
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("reconciling %s: %w", hubDoc.Path, err)
		}
		res.Hub = updated
		res.Added = append(res.Added, name)
		known[strings.ToLower(name)] = true
	}
	return res, nil
}
