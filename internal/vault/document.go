// Package vault models markdown documents stored in an Obsidian-style
// vault: a YAML frontmatter block followed by a markdown body.
//
// The document kind (hub, child, stub, standalone) is derived from the
// frontmatter type tag only; filename conventions are never authoritative.
package vault

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies a document's role in the hub/child hierarchy.
type Kind string

const (
	KindHub        Kind = "hub"
	KindChild      Kind = "child"
	KindStub       Kind = "stub"
	KindStandalone Kind = "standalone"
)

// HubMarkerSuffix is the suffix a frontmatter type tag must carry for the
// document to be treated as a hub (e.g. "hub", "palace/hub", "topic-hub").
const HubMarkerSuffix = "hub"

// Type tags written by this engine. Reading accepts any tag with the
// right suffix; writing always uses these.
const (
	TagHub   = "palace/hub"
	TagChild = "palace/child"
	TagStub  = "palace/stub"
)

// Frontmatter holds the typed metadata keys this engine uses, plus a
// side-map of unrecognized keys that are preserved verbatim on rewrite.
type Frontmatter struct {
	Title         string         `yaml:"title,omitempty"`
	TypeTag       string         `yaml:"type,omitempty"`
	ChildrenCount int            `yaml:"children_count,omitempty"`
	Extra         map[string]any `yaml:"-"`
}

// Document is one markdown file in the vault.
type Document struct {
	// Path is vault-relative, forward-slash separated.
	Path        string      `json:"path"`
	Frontmatter Frontmatter `json:"frontmatter"`
	Body        string      `json:"body"`
}

// Title returns the frontmatter title, falling back to the filename stem.
func (d Document) Title() string {
	if d.Frontmatter.Title != "" {
		return d.Frontmatter.Title
	}
	name := d.Path
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".md")
}

// Kind derives the document kind from the frontmatter type tag.
func (d Document) Kind() Kind {
	return KindFromTag(d.Frontmatter.TypeTag)
}

// KindFromTag maps a frontmatter type tag to a Kind. A tag ending in the
// hub marker suffix is a hub; "child" and "stub" map to their kinds;
// anything else (including an empty tag) is standalone.
func KindFromTag(tag string) Kind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	switch {
	case tag == "":
		return KindStandalone
	case strings.HasSuffix(tag, HubMarkerSuffix):
		return KindHub
	case tag == string(KindChild) || strings.HasSuffix(tag, "/"+string(KindChild)):
		return KindChild
	case tag == string(KindStub) || strings.HasSuffix(tag, "/"+string(KindStub)):
		return KindStub
	default:
		return KindStandalone
	}
}

const frontmatterDelim = "---"

// ParseDocument decodes raw file content into a Document. A missing
// frontmatter block is valid (the whole content is the body); an opened
// but unterminated block is an error.
func ParseDocument(path, raw string) (Document, error) {
	doc := Document{Path: path}

	fmBlock, body, err := SplitFrontmatter(raw)
	if err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.Body = body

	if fmBlock == "" {
		return doc, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(fmBlock), &fields); err != nil {
		return Document{}, fmt.Errorf("parsing %s frontmatter: %w", path, err)
	}

	fm := Frontmatter{Extra: map[string]any{}}
	for k, v := range fields {
		switch k {
		case "title":
			fm.Title = stringValue(v)
		case "type":
			fm.TypeTag = stringValue(v)
		case "children_count":
			if n, ok := intValue(v); ok {
				fm.ChildrenCount = n
			}
		default:
			fm.Extra[k] = v
		}
	}
	doc.Frontmatter = fm
	return doc, nil
}

// SplitFrontmatter separates the leading YAML block from the body.
// Returns the block content (without delimiters) and the body. The
// frontmatter line count is the block plus both delimiter lines.
func SplitFrontmatter(raw string) (frontmatter, body string, err error) {
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != frontmatterDelim {
		return "", raw, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == frontmatterDelim {
			block := strings.Join(lines[1:i], "\n")
			rest := strings.Join(lines[i+1:], "\n")
			return block, rest, nil
		}
	}
	return "", "", fmt.Errorf("unterminated frontmatter block")
}

// FrontmatterLines counts the lines consumed by the frontmatter block,
// including both delimiter lines. Zero when there is no block.
func FrontmatterLines(raw string) int {
	block, _, err := SplitFrontmatter(raw)
	if err != nil || block == "" {
		return 0
	}
	return len(strings.Split(block, "\n")) + 2
}

// Encode renders the document back to on-disk form. Known keys are
// emitted first in a fixed order, then extra keys sorted by name, so
// rewrites are deterministic.
func (d Document) Encode() (string, error) {
	var b strings.Builder

	hasFM := d.Frontmatter.Title != "" || d.Frontmatter.TypeTag != "" ||
		d.Frontmatter.ChildrenCount != 0 || len(d.Frontmatter.Extra) > 0
	if hasFM {
		b.WriteString(frontmatterDelim + "\n")
		if d.Frontmatter.Title != "" {
			writeYAMLField(&b, "title", d.Frontmatter.Title)
		}
		if d.Frontmatter.TypeTag != "" {
			writeYAMLField(&b, "type", d.Frontmatter.TypeTag)
		}
		if d.Frontmatter.ChildrenCount != 0 {
			b.WriteString(fmt.Sprintf("children_count: %d\n", d.Frontmatter.ChildrenCount))
		}
		keys := make([]string, 0, len(d.Frontmatter.Extra))
		for k := range d.Frontmatter.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out, err := yaml.Marshal(map[string]any{k: d.Frontmatter.Extra[k]})
			if err != nil {
				return "", fmt.Errorf("encoding frontmatter key %q: %w", k, err)
			}
			b.Write(out)
		}
		b.WriteString(frontmatterDelim + "\n")
	}
	b.WriteString(d.Body)
	return b.String(), nil
}

// writeYAMLField emits one scalar string field via the yaml encoder so
// quoting rules stay correct for titles with special characters.
func writeYAMLField(b *strings.Builder, key, value string) {
	out, err := yaml.Marshal(map[string]string{key: value})
	if err != nil {
		// A plain string marshal cannot fail; fall back to raw emit.
		fmt.Fprintf(b, "%s: %s\n", key, value)
		return
	}
	b.Write(out)
}

var unsafePathChars = regexp.MustCompile(`[/\\:*?"<>|]+`)

// SanitizeTitle converts a document title into a filesystem-safe filename
// stem. Path separators and other unsafe characters become a single
// hyphen; runs of whitespace collapse. The same function feeds both
// filename generation and Knowledge Map link text so they stay resolvable.
func SanitizeTitle(title string) string {
	s := unsafePathChars.ReplaceAllString(title, "-")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// FileNameForTitle returns the sanitized "<title>.md" filename.
func FileNameForTitle(title string) string {
	return SanitizeTitle(title) + ".md"
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
