// Package analyzer builds a structural profile of one markdown document:
// sections, sub-concepts, code fences, annotations, and wiki-links.
//
// The profile is computed in a single forward pass with an explicit
// fence state machine, so headings and links inside fenced code blocks
// are provably excluded. The analyzer is pure (no I/O) and recomputed
// on every read; nothing here is persisted.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Annotation is an inline placement marker following a section heading.
type Annotation string

const (
	AnnotationNone  Annotation = ""
	AnnotationKeep  Annotation = "keep"
	AnnotationSplit Annotation = "split"
)

// Section is a level-2 heading and its content span. Line numbers are
// 1-based over the full raw document, frontmatter included.
type Section struct {
	Title             string       `json:"title"`
	Level             int          `json:"level"`
	StartLine         int          `json:"start_line"`
	EndLine           int          `json:"end_line"`
	Annotation        Annotation   `json:"annotation,omitempty"`
	IsTemplateContent bool         `json:"is_template_content"`
	LineCount         int          `json:"line_count"`
	WordCount         int          `json:"word_count"`
	SubConcepts       []SubConcept `json:"sub_concepts,omitempty"`
}

// SubConcept is a level-3 heading nested under a Section.
type SubConcept struct {
	Title     string `json:"title"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	LineCount int    `json:"line_count"`
}

// CodeBlock is a fenced code span, delimiter lines included.
type CodeBlock struct {
	Language  string `json:"language,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// WikiLink is one [[Target]] or [[Target|Display]] reference.
type WikiLink struct {
	Target      string `json:"target"`
	DisplayText string `json:"display_text,omitempty"`
	RawText     string `json:"raw_text"`
}

// LinkOccurrence records one raw wiki-link position, including ones
// inside code fences; those are kept for drift detection but excluded
// from the deduplicated Links list.
type LinkOccurrence struct {
	Link        WikiLink `json:"link"`
	Line        int      `json:"line"`
	InCodeFence bool     `json:"in_code_fence"`
	InHeading   bool     `json:"in_heading"`
}

// Profile is the full structural analysis of one document.
type Profile struct {
	Title            string           `json:"title"`
	TitleLine        int              `json:"title_line"` // 0 when no H1
	FrontmatterLines int              `json:"frontmatter_lines"`
	BodyLines        int              `json:"body_lines"`
	CodeLines        int              `json:"code_lines"` // body lines inside fences
	WordCount        int              `json:"word_count"` // fence contents excluded
	Sections         []Section        `json:"sections"`
	CodeBlocks       []CodeBlock      `json:"code_blocks,omitempty"`
	Links            []WikiLink       `json:"links,omitempty"`
	LinkOccurrences  []LinkOccurrence `json:"link_occurrences,omitempty"`
	LargeSections    []int            `json:"large_sections,omitempty"` // indexes into Sections

	// Lines holds the raw document split on newlines so callers can
	// slice section content without re-reading the file.
	Lines []string `json:"-"`
}

// Options tune analysis; zero values disable the corresponding check.
type Options struct {
	// SectionMaxLines flags sections whose span exceeds this many lines.
	SectionMaxLines int
}

var wikiLinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]+))?\]\]`)

// Analyze scans raw document content (frontmatter included) and returns
// its structural profile. Malformed frontmatter is the only failure mode.
func Analyze(raw string, opts Options) (*Profile, error) {
	if _, _, err := vault.SplitFrontmatter(raw); err != nil {
		return nil, fmt.Errorf("analyzing document: %w", err)
	}

	lines := strings.Split(raw, "\n")
	p := &Profile{
		FrontmatterLines: vault.FrontmatterLines(raw),
		Lines:            lines,
	}
	p.BodyLines = len(lines) - p.FrontmatterLines

	var (
		insideFence bool
		fenceChar   byte
		block       CodeBlock
		curSection  = -1 // index into p.Sections
		pendingAnno = false
	)

	closeSection := func(endLine int) {
		if curSection < 0 {
			return
		}
		sec := &p.Sections[curSection]
		sec.EndLine = endLine
		sec.LineCount = endLine - sec.StartLine + 1
		if n := len(sec.SubConcepts); n > 0 {
			sc := &sec.SubConcepts[n-1]
			sc.EndLine = endLine
			sc.LineCount = endLine - sc.StartLine + 1
		}
		curSection = -1
	}

	for i := p.FrontmatterLines; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if insideFence {
			p.CodeLines++
			recordLinks(p, line, lineNo, true, false)
			if ch, ok := fenceDelimiter(trimmed); ok && ch == fenceChar {
				block.EndLine = lineNo
				p.CodeBlocks = append(p.CodeBlocks, block)
				insideFence = false
			}
			continue
		}

		if ch, ok := fenceDelimiter(trimmed); ok {
			insideFence = true
			fenceChar = ch
			block = CodeBlock{
				Language:  strings.TrimSpace(strings.TrimLeft(trimmed, string(ch))),
				StartLine: lineNo,
			}
			p.CodeLines++
			pendingAnno = false
			continue
		}

		level, title := headingLine(line)

		if pendingAnno && trimmed != "" {
			if anno, ok := annotationMarker(trimmed); ok && curSection >= 0 {
				p.Sections[curSection].Annotation = anno
			}
			pendingAnno = false
		}

		switch level {
		case 1:
			if p.TitleLine == 0 {
				p.Title = title
				p.TitleLine = lineNo
			}
		case 2:
			closeSection(lineNo - 1)
			p.Sections = append(p.Sections, Section{
				Title:     title,
				Level:     2,
				StartLine: lineNo,
			})
			curSection = len(p.Sections) - 1
			pendingAnno = true
		case 3:
			if curSection >= 0 {
				sec := &p.Sections[curSection]
				if n := len(sec.SubConcepts); n > 0 {
					sc := &sec.SubConcepts[n-1]
					sc.EndLine = lineNo - 1
					sc.LineCount = sc.EndLine - sc.StartLine + 1
				}
				sec.SubConcepts = append(sec.SubConcepts, SubConcept{
					Title:     title,
					StartLine: lineNo,
				})
			}
		}

		recordLinks(p, line, lineNo, false, level > 0)

		words := len(strings.Fields(line))
		p.WordCount += words
		if curSection >= 0 && lineNo > p.Sections[curSection].StartLine {
			p.Sections[curSection].WordCount += words
		}
	}

	if insideFence {
		// Unterminated fence runs to EOF.
		block.EndLine = len(lines)
		p.CodeBlocks = append(p.CodeBlocks, block)
	}
	closeSection(len(lines))

	for i := range p.Sections {
		p.Sections[i].IsTemplateContent = isTemplateContent(p, i)
		if opts.SectionMaxLines > 0 && p.Sections[i].LineCount > opts.SectionMaxLines {
			p.LargeSections = append(p.LargeSections, i)
		}
	}
	dedupeLinks(p)
	return p, nil
}

// SectionText returns the full lines of a section, heading included.
func (p *Profile) SectionText(sec Section) []string {
	return p.Lines[sec.StartLine-1 : sec.EndLine]
}

// SectionBody returns a section's lines without the heading line.
func (p *Profile) SectionBody(sec Section) []string {
	return p.Lines[sec.StartLine:sec.EndLine]
}

// SubConceptText returns the full lines of a sub-concept, heading included.
func (p *Profile) SubConceptText(sc SubConcept) []string {
	return p.Lines[sc.StartLine-1 : sc.EndLine]
}

// IntroLines returns the body content before the first section (the H1
// title and any intro prose). Empty when the document has no sections.
func (p *Profile) IntroLines() []string {
	if len(p.Sections) == 0 {
		return p.Lines[p.FrontmatterLines:]
	}
	return p.Lines[p.FrontmatterLines : p.Sections[0].StartLine-1]
}

// InCodeBlock reports whether a 1-based line number falls inside any
// fenced code block.
func (p *Profile) InCodeBlock(line int) bool {
	for _, b := range p.CodeBlocks {
		if line >= b.StartLine && line <= b.EndLine {
			return true
		}
	}
	return false
}

// fenceDelimiter reports whether a trimmed line opens or closes a fence:
// a run of three or more backticks or tildes, optionally followed by an
// info string.
func fenceDelimiter(trimmed string) (byte, bool) {
	if len(trimmed) < 3 {
		return 0, false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return 0, false
	}
	run := 0
	for run < len(trimmed) && trimmed[run] == ch {
		run++
	}
	if run < 3 {
		return 0, false
	}
	return ch, true
}

// headingLine returns the ATX heading level (1-6) and title text, or 0
// when the line is not a heading.
func headingLine(line string) (int, string) {
	s := line
	level := 0
	for level < len(s) && level < 7 && s[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, ""
	}
	if level >= len(s) || (s[level] != ' ' && s[level] != '\t') {
		return 0, ""
	}
	return level, strings.TrimSpace(s[level:])
}

// annotationMarker recognizes the inline keep/split markers in both the
// HTML-comment and Obsidian-comment forms.
func annotationMarker(trimmed string) (Annotation, bool) {
	switch trimmed {
	case "<!-- palace:keep -->", "%%keep%%":
		return AnnotationKeep, true
	case "<!-- palace:split -->", "%%split%%":
		return AnnotationSplit, true
	}
	return AnnotationNone, false
}

func recordLinks(p *Profile, line string, lineNo int, inFence, inHeading bool) {
	for _, m := range wikiLinkPattern.FindAllStringSubmatch(line, -1) {
		link := WikiLink{
			Target:  strings.TrimSpace(m[1]),
			RawText: m[0],
		}
		if m[2] != "" {
			link.DisplayText = strings.TrimSpace(m[2])
		}
		p.LinkOccurrences = append(p.LinkOccurrences, LinkOccurrence{
			Link:        link,
			Line:        lineNo,
			InCodeFence: inFence,
			InHeading:   inHeading,
		})
	}
}

// dedupeLinks builds the Links list from occurrences outside code
// fences, deduplicated by target (case-insensitive, first wins).
func dedupeLinks(p *Profile) {
	seen := make(map[string]bool)
	for _, occ := range p.LinkOccurrences {
		if occ.InCodeFence {
			continue
		}
		key := strings.ToLower(occ.Link.Target)
		if seen[key] {
			continue
		}
		seen[key] = true
		p.Links = append(p.Links, occ.Link)
	}
}

// Template detection thresholds: a section is template content when its
// title carries a template keyword, when its body is primarily block
// quotes, or when it carries an explicit marker pair.
const (
	templateQuoteRatio    = 0.7
	templateMinQuoteLines = 3
)

var templateKeywords = []string{"template", "example", "boilerplate", "sample"}

func isTemplateContent(p *Profile, idx int) bool {
	sec := p.Sections[idx]
	lower := strings.ToLower(sec.Title)
	for _, kw := range templateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	body := p.SectionBody(sec)
	var nonBlank, quoted int
	hasStart, hasEnd := false, false
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonBlank++
		if strings.HasPrefix(trimmed, ">") {
			quoted++
		}
		switch trimmed {
		case "<!-- template:start -->":
			hasStart = true
		case "<!-- template:end -->":
			hasEnd = true
		}
	}
	if hasStart && hasEnd {
		return true
	}
	return nonBlank > templateMinQuoteLines &&
		float64(quoted) > templateQuoteRatio*float64(nonBlank)
}
