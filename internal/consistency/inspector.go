package consistency

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/hub"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Reader is the minimal document access the Inspector needs for
// targeted reads; corpus enumeration comes from Listings (the metadata
// index) so a scan does not re-read every file.
type Reader interface {
	ReadDocument(path string) (vault.Document, error)
}

// Listing is one indexed document: the metadata the Inspector can use
// without reading the file.
type Listing struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

// Inspector scans the corpus for structural drift.
type Inspector struct {
	docs   []Listing
	source Reader
	cfg    *config.VaultConfig
}

// NewInspector creates an Inspector over an index snapshot.
func NewInspector(docs []Listing, source Reader, cfg *config.VaultConfig) *Inspector {
	sorted := make([]Listing, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return &Inspector{docs: sorted, source: source, cfg: cfg}
}

// Scan runs the requested categories (nil means all) and returns at most
// limit issues (0 means no limit). Two scans with no intervening writes
// return identical issue lists.
func (in *Inspector) Scan(categories []Category, limit int) ([]Issue, error) {
	if len(categories) == 0 {
		categories = AllCategories()
	}
	requested := make(map[Category]bool, len(categories))
	for _, c := range categories {
		if !c.Valid() {
			return nil, fmt.Errorf("unknown issue category %q", c)
		}
		requested[c] = true
	}

	var issues []Issue
	for _, c := range AllCategories() {
		if !requested[c] {
			continue
		}
		found, err := in.scanCategory(c)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
		if limit > 0 && len(issues) >= limit {
			return issues[:limit], nil
		}
	}
	return issues, nil
}

func (in *Inspector) scanCategory(c Category) ([]Issue, error) {
	switch c {
	case CategoryUnprefixedChildren:
		return in.scanUnprefixedChildren()
	case CategoryCorruptedHeadings:
		return in.scanDocuments(checkCorruptedHeading)
	case CategoryNamingInconsistencies:
		return in.scanNamingInconsistencies()
	case CategoryBrokenWikiLinks:
		return in.scanDocuments(checkBrokenWikiLinks)
	case CategoryCodeBlockLinks:
		return in.scanDocuments(checkCodeBlockLinks)
	case CategoryOrphanedFragments:
		return in.scanOrphanedFragments()
	}
	return nil, fmt.Errorf("unknown issue category %q", c)
}

// isHubListing mirrors hub.IsHub for index entries: the kind tag is
// authoritative, with the legacy literal filename honored only for
// untagged (standalone-kinded) documents.
func (in *Inspector) isHubListing(l Listing) bool {
	if l.Kind == string(vault.KindHub) {
		return true
	}
	return in.cfg != nil && in.cfg.HubFileName != "" &&
		l.Kind == string(vault.KindStandalone) && path.Base(l.Path) == in.cfg.HubFileName
}

func (in *Inspector) byDirectory() map[string][]Listing {
	dirs := make(map[string][]Listing)
	for _, l := range in.docs {
		d := path.Dir(l.Path)
		if d == "." {
			d = ""
		}
		dirs[d] = append(dirs[d], l)
	}
	return dirs
}

func stem(p string) string {
	return strings.TrimSuffix(path.Base(p), ".md")
}

func listingTitle(l Listing) string {
	if l.Title != "" {
		return l.Title
	}
	return stem(l.Path)
}

// ─── unprefixed_children ─────────────────────────────────────────────────────

func (in *Inspector) scanUnprefixedChildren() ([]Issue, error) {
	var issues []Issue
	dirMap := in.byDirectory()
	for _, dir := range sortedDirs(dirMap) {
		docs := dirMap[dir]
		var hubs []Listing
		for _, l := range docs {
			if in.isHubListing(l) {
				hubs = append(hubs, l)
			}
		}
		if len(hubs) == 0 {
			continue
		}
		for _, l := range docs {
			if in.isHubListing(l) {
				continue
			}
			name := stem(l.Path)
			owner, ok := attributableHub(name, hubs)
			if !ok {
				continue
			}
			prefix := hub.ChildPrefix(listingTitle(owner))
			if hasFoldPrefix(name, prefix) {
				continue
			}
			suggested := suggestPrefixedFilename(name, listingTitle(owner))
			issues = append(issues, Issue{
				Category:    CategoryUnprefixedChildren,
				Path:        l.Path,
				Description: fmt.Sprintf("document lacks hub prefix %q", prefix),
				Suggestion:  fmt.Sprintf("rename to %q", suggested),
				Fixable:     true,
				Details: map[string]string{
					DetailSuggestedFilename: suggested,
					DetailHubPath:           owner.Path,
				},
			})
		}
	}
	return issues, nil
}

// attributableHub resolves which single hub a sibling belongs to: the
// only hub in the directory, or the one hub whose title is a prefix of
// the sibling's name. Ambiguity means no attribution.
func attributableHub(name string, hubs []Listing) (Listing, bool) {
	if len(hubs) == 1 {
		return hubs[0], true
	}
	matched := -1
	for i, h := range hubs {
		if hasFoldPrefix(name, listingTitle(h)) {
			if matched >= 0 {
				return Listing{}, false
			}
			matched = i
		}
	}
	if matched < 0 {
		return Listing{}, false
	}
	return hubs[matched], true
}

// suggestPrefixedFilename builds the corrected child filename. When the
// name already begins with the hub title but lacks the separator, only
// the separator is inserted; otherwise the full prefix is prepended.
func suggestPrefixedFilename(name, hubTitle string) string {
	rest := name
	if hasFoldPrefix(name, hubTitle) {
		rest = strings.TrimSpace(name[len(hubTitle):])
		rest = strings.TrimPrefix(rest, "-")
		rest = strings.TrimSpace(rest)
	}
	if rest == "" {
		rest = name
	}
	return vault.FileNameForTitle(hubTitle + hub.ChildSeparator + rest)
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func sortedDirs(m map[string][]Listing) []string {
	dirs := make([]string, 0, len(m))
	for d := range m {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// ─── per-document scans ──────────────────────────────────────────────────────

type docCheck func(l Listing, doc vault.Document, p *analyzer.Profile) []Issue

func (in *Inspector) scanDocuments(check docCheck) ([]Issue, error) {
	var issues []Issue
	for _, l := range in.docs {
		doc, err := in.source.ReadDocument(l.Path)
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", l.Path, err)
		}
		p, err := analyzer.Analyze(doc.Body, analyzer.Options{})
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", l.Path, err)
		}
		issues = append(issues, check(l, doc, p)...)
	}
	return issues, nil
}

func checkCorruptedHeading(l Listing, doc vault.Document, p *analyzer.Profile) []Issue {
	if p.TitleLine == 0 {
		return nil
	}
	raw := p.Lines[p.TitleLine-1]
	if !strings.Contains(raw, "[[") {
		return nil
	}
	fixed := stripWikiLinks(raw)
	return []Issue{{
		Category:    CategoryCorruptedHeadings,
		Path:        l.Path,
		Description: fmt.Sprintf("title heading contains wiki-link syntax: %s", strings.TrimSpace(raw)),
		Suggestion:  strings.TrimSpace(fixed),
		Fixable:     true,
		Details: map[string]string{
			DetailLine:        lineDetail(p.TitleLine),
			DetailReplacement: fixed,
		},
	}}
}

// brokenLinkPattern matches a well-formed link immediately trailed by a
// stray "]]" with no reopening "[[" in between, e.g. "[[X]]Y]]".
var brokenLinkPattern = regexp.MustCompile(`(\[\[[^\[\]|]+(?:\|[^\[\]]+)?\]\])([^\[\]]*)\]\]`)

func checkBrokenWikiLinks(l Listing, doc vault.Document, p *analyzer.Profile) []Issue {
	var issues []Issue
	for i, line := range p.Lines {
		lineNo := i + 1
		if p.InCodeBlock(lineNo) {
			continue
		}
		for _, m := range brokenLinkPattern.FindAllStringSubmatch(line, -1) {
			replacement := m[1] + m[2]
			issues = append(issues, Issue{
				Category:    CategoryBrokenWikiLinks,
				Path:        l.Path,
				Description: fmt.Sprintf("malformed wiki-link %q on line %d", m[0], lineNo),
				Suggestion:  fmt.Sprintf("replace with %q (well-formed %s)", replacement, m[1]),
				Fixable:     true,
				Details: map[string]string{
					DetailLine:        lineDetail(lineNo),
					DetailMalformed:   m[0],
					DetailReplacement: replacement,
				},
			})
		}
	}
	return issues
}

func checkCodeBlockLinks(l Listing, doc vault.Document, p *analyzer.Profile) []Issue {
	var issues []Issue
	for _, occ := range p.LinkOccurrences {
		if !occ.InCodeFence {
			continue
		}
		plain := occ.Link.Target
		if occ.Link.DisplayText != "" {
			plain = occ.Link.DisplayText
		}
		issues = append(issues, Issue{
			Category:    CategoryCodeBlockLinks,
			Path:        l.Path,
			Description: fmt.Sprintf("wiki-link %s inside a code block on line %d is not a real reference", occ.Link.RawText, occ.Line),
			Suggestion:  fmt.Sprintf("convert to plain text %q", plain),
			Fixable:     true,
			Details: map[string]string{
				DetailLine:        lineDetail(occ.Line),
				DetailMalformed:   occ.Link.RawText,
				DetailReplacement: plain,
			},
		})
	}
	return issues
}

// stripWikiLinks removes link brackets keeping the display text:
// [[X|D]] becomes D, [[X]] becomes X.
func stripWikiLinks(s string) string {
	return analyzerLinkPattern.ReplaceAllStringFunc(s, func(raw string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "[["), "]]")
		if i := strings.Index(inner, "|"); i >= 0 {
			return strings.TrimSpace(inner[i+1:])
		}
		return strings.TrimSpace(inner)
	})
}

var analyzerLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)

// ─── naming_inconsistencies ──────────────────────────────────────────────────

func (in *Inspector) scanNamingInconsistencies() ([]Issue, error) {
	byName := make(map[string][]Listing)
	for _, l := range in.docs {
		byName[strings.ToLower(path.Base(l.Path))] = append(byName[strings.ToLower(path.Base(l.Path))], l)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	var issues []Issue
	for _, n := range names {
		group := byName[n]
		dirs := make(map[string]bool)
		for _, l := range group {
			dirs[path.Dir(l.Path)] = true
		}
		if len(dirs) < 2 {
			continue
		}
		others := make([]string, 0, len(group))
		for _, l := range group {
			others = append(others, l.Path)
		}
		for _, l := range group {
			issues = append(issues, Issue{
				Category:    CategoryNamingInconsistencies,
				Path:        l.Path,
				Description: fmt.Sprintf("filename %q appears in %d directories: %s", path.Base(l.Path), len(dirs), strings.Join(others, ", ")),
				Fixable:     false,
			})
		}
	}
	return issues, nil
}

// ─── orphaned_fragments ──────────────────────────────────────────────────────

func (in *Inspector) scanOrphanedFragments() ([]Issue, error) {
	var issues []Issue
	dirMap := in.byDirectory()
	for _, dir := range sortedDirs(dirMap) {
		docs := dirMap[dir]
		var hubs []Listing
		for _, l := range docs {
			if in.isHubListing(l) {
				hubs = append(hubs, l)
			}
		}
		if len(hubs) == 0 {
			continue
		}

		// One read per hub: the union of Knowledge Map targets in this
		// directory.
		known := make(map[string]bool)
		hubRefs := make([]hub.Ref, len(hubs))
		for i, h := range hubs {
			hubRefs[i] = hub.Ref{Path: h.Path, Title: listingTitle(h)}
			doc, err := in.source.ReadDocument(h.Path)
			if err != nil {
				return nil, fmt.Errorf("inspecting hub %s: %w", h.Path, err)
			}
			for _, t := range hub.KnowledgeMapTargets(doc.Body) {
				known[strings.ToLower(t)] = true
			}
		}

		for _, l := range docs {
			if in.isHubListing(l) {
				continue
			}
			name := stem(l.Path)
			title := listingTitle(l)
			if known[strings.ToLower(name)] || known[strings.ToLower(title)] {
				continue
			}

			issue := Issue{
				Category:    CategoryOrphanedFragments,
				Path:        l.Path,
				Fixable:     false,
				Description: fmt.Sprintf("document is not referenced by any hub Knowledge Map in %q", displayDir(dir)),
			}
			if idx, ok := hub.AttributeToHub(name, hubRefs); ok {
				issue.Details = map[string]string{DetailHubPath: hubRefs[idx].Path}
				issue.Suggestion = fmt.Sprintf("add to Knowledge Map of %s (or run reconcile on that hub)", hubRefs[idx].Path)
			} else {
				issue.Suggestion = "no hub prefix matches; attribute manually"
			}
			issues = append(issues, issue)
		}
	}
	return issues, nil
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
