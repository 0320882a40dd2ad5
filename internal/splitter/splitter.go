package splitter

import (
	"fmt"
	"path"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/hub"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Options direct where and under which title the split materializes.
type Options struct {
	// TargetDir is the vault-relative directory for child documents;
	// defaults to the original document's directory.
	TargetDir string
	// Title overrides the parent title; defaults to the document title.
	Title string
	// HubSections lists section titles always retained in the hub.
	HubSections []string
}

// ChildDoc is one extracted child document plus its naming metadata.
type ChildDoc struct {
	Title        string         `json:"title"`
	FileName     string         `json:"file_name"`
	RelativePath string         `json:"relative_path"`
	Description  string         `json:"description"`
	SourceTitle  string         `json:"source_title"` // section or sub-concept title
	Doc          vault.Document `json:"-"`
}

// SplitResult holds the fully computed decomposition. Nothing touches
// disk until the result validates.
type SplitResult struct {
	Hub      vault.Document `json:"-"`
	HubPath  string         `json:"hub_path"`
	Children []ChildDoc     `json:"children"`
	Retained []string       `json:"retained"` // hub-kept section titles
	Strategy Strategy       `json:"strategy"`
}

// Split partitions the document according to the decision's strategy and
// returns the computed, validated result.
func Split(doc vault.Document, p *analyzer.Profile, d Decision, opts Options) (*SplitResult, error) {
	if !d.ShouldSplit {
		return nil, fmt.Errorf("document %s does not need splitting: %s", doc.Path, d.Reason)
	}
	title := opts.Title
	if title == "" {
		title = doc.Title()
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("split requires a non-empty title")
	}
	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = path.Dir(doc.Path)
		if targetDir == "." {
			targetDir = ""
		}
	}

	var res *SplitResult
	var err error
	switch d.Strategy {
	case StrategyBySubconcepts:
		res, err = splitBySubconcepts(doc, p, title, targetDir, opts.HubSections)
	default:
		res, err = splitBySections(doc, p, title, targetDir, opts.HubSections)
	}
	if err != nil {
		return nil, err
	}
	if err := ValidateSplitResult(p, res); err != nil {
		return nil, err
	}
	return res, nil
}

func splitBySections(doc vault.Document, p *analyzer.Profile, title, targetDir string, hubSections []string) (*SplitResult, error) {
	if len(p.Sections) == 0 {
		return nil, fmt.Errorf("document %s has no sections to split", doc.Path)
	}

	res := &SplitResult{HubPath: doc.Path, Strategy: StrategyBySections}
	var retained []analyzer.Section

	for _, sec := range p.Sections {
		if retainSection(sec, hubSections) {
			retained = append(retained, sec)
			res.Retained = append(res.Retained, sec.Title)
			continue
		}
		child, err := buildChild(title, sec.Title, p.SectionBody(sec), targetDir)
		if err != nil {
			return nil, err
		}
		res.Children = append(res.Children, child)
	}

	var body strings.Builder
	for _, line := range p.IntroLines() {
		body.WriteString(line + "\n")
	}
	for _, sec := range retained {
		for _, line := range p.SectionText(sec) {
			body.WriteString(line + "\n")
		}
	}
	mapped, err := appendKnowledgeMap(body.String(), res.Children)
	if err != nil {
		return nil, err
	}

	res.Hub = vault.Document{
		Path: doc.Path,
		Frontmatter: vault.Frontmatter{
			Title:         title,
			TypeTag:       vault.TagHub,
			ChildrenCount: doc.Frontmatter.ChildrenCount + len(res.Children),
			Extra:         doc.Frontmatter.Extra,
		},
		Body: mapped,
	}
	return res, nil
}

// splitBySubconcepts extracts the sub-concepts of the single oversized
// section, leaving every other section in place.
func splitBySubconcepts(doc vault.Document, p *analyzer.Profile, title, targetDir string, hubSections []string) (*SplitResult, error) {
	if len(p.LargeSections) != 1 {
		return nil, fmt.Errorf("by_subconcepts requires exactly one oversized section, found %d", len(p.LargeSections))
	}
	big := p.Sections[p.LargeSections[0]]
	if len(big.SubConcepts) < 2 {
		return nil, fmt.Errorf("section %q has %d sub-concepts, need at least 2", big.Title, len(big.SubConcepts))
	}

	res := &SplitResult{HubPath: doc.Path, Strategy: StrategyBySubconcepts}
	extracted := make(map[int]bool) // index into big.SubConcepts

	for i, sc := range big.SubConcepts {
		if matchesHubSection(sc.Title, hubSections) {
			res.Retained = append(res.Retained, sc.Title)
			continue
		}
		child, err := buildChild(title, sc.Title, p.Lines[sc.StartLine:sc.EndLine], targetDir)
		if err != nil {
			return nil, err
		}
		res.Children = append(res.Children, child)
		extracted[i] = true
	}

	var body strings.Builder
	for i := p.FrontmatterLines; i < len(p.Lines); i++ {
		lineNo := i + 1
		if inExtractedSubConcept(lineNo, big, extracted) {
			continue
		}
		body.WriteString(p.Lines[i] + "\n")
	}
	mapped, err := appendKnowledgeMap(body.String(), res.Children)
	if err != nil {
		return nil, err
	}

	res.Hub = vault.Document{
		Path: doc.Path,
		Frontmatter: vault.Frontmatter{
			Title:         title,
			TypeTag:       vault.TagHub,
			ChildrenCount: doc.Frontmatter.ChildrenCount + len(res.Children),
			Extra:         doc.Frontmatter.Extra,
		},
		Body: mapped,
	}
	return res, nil
}

func inExtractedSubConcept(lineNo int, sec analyzer.Section, extracted map[int]bool) bool {
	for i, sc := range sec.SubConcepts {
		if extracted[i] && lineNo >= sc.StartLine && lineNo <= sc.EndLine {
			return true
		}
	}
	return false
}

// retainSection applies the hub-retention rule: a keep annotation,
// template content, or a configured hub-section title keeps the section
// in the hub. A split annotation forces extraction regardless.
func retainSection(sec analyzer.Section, hubSections []string) bool {
	if sec.Annotation == analyzer.AnnotationSplit {
		return false
	}
	if sec.Annotation == analyzer.AnnotationKeep || sec.IsTemplateContent {
		return true
	}
	return matchesHubSection(sec.Title, hubSections)
}

func matchesHubSection(title string, hubSections []string) bool {
	for _, h := range hubSections {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(title)) {
			return true
		}
	}
	return false
}

func buildChild(parentTitle, sourceTitle string, bodyLines []string, targetDir string) (ChildDoc, error) {
	childTitle := vault.SanitizeTitle(parentTitle + " - " + sourceTitle)
	if childTitle == "" {
		return ChildDoc{}, fmt.Errorf("cannot derive child title from %q", sourceTitle)
	}
	fileName := childTitle + ".md"
	rel := fileName
	if targetDir != "" {
		rel = path.Join(targetDir, fileName)
	}

	var body strings.Builder
	body.WriteString("# " + childTitle + "\n\n")
	for _, line := range bodyLines {
		body.WriteString(line + "\n")
	}

	return ChildDoc{
		Title:        childTitle,
		FileName:     fileName,
		RelativePath: rel,
		Description:  hub.Describe(bodyLines),
		SourceTitle:  sourceTitle,
		Doc: vault.Document{
			Path: rel,
			Frontmatter: vault.Frontmatter{
				Title:   childTitle,
				TypeTag: vault.TagChild,
			},
			Body: body.String(),
		},
	}, nil
}

// appendKnowledgeMap registers every child in the hub body's Knowledge
// Map. A re-split hub may retain a Knowledge Map section of its own;
// entries merge into that section rather than opening a second one.
func appendKnowledgeMap(body string, children []ChildDoc) (string, error) {
	doc := vault.Document{Body: body}
	for _, c := range children {
		updated, err := hub.AppendKnowledgeMapEntry(doc, hub.ChildRef{
			Title:       c.Title,
			Description: c.Description,
		})
		if err != nil {
			return "", err
		}
		doc = updated
	}
	return doc.Body, nil
}

// ValidateSplitResult confirms no two children share a title and that
// hub-retained plus child content reconstructs the original section set,
// modulo the generated Knowledge Map. A failure here means nothing may
// be written.
func ValidateSplitResult(p *analyzer.Profile, res *SplitResult) error {
	seen := make(map[string]bool)
	for _, c := range res.Children {
		key := strings.ToLower(c.Title)
		if seen[key] {
			return fmt.Errorf("split produced duplicate child title %q", c.Title)
		}
		seen[key] = true
	}

	switch res.Strategy {
	case StrategyBySections:
		return validateSectionCoverage(p, res)
	case StrategyBySubconcepts:
		return validateSubconceptCoverage(p, res)
	}
	return fmt.Errorf("unknown split strategy %q", res.Strategy)
}

func validateSectionCoverage(p *analyzer.Profile, res *SplitResult) error {
	if len(res.Retained)+len(res.Children) != len(p.Sections) {
		return fmt.Errorf("split lost sections: %d retained + %d extracted != %d original",
			len(res.Retained), len(res.Children), len(p.Sections))
	}

	childBySource := make(map[string]ChildDoc, len(res.Children))
	for _, c := range res.Children {
		childBySource[strings.ToLower(c.SourceTitle)] = c
	}
	retained := make(map[string]bool, len(res.Retained))
	for _, t := range res.Retained {
		retained[strings.ToLower(t)] = true
	}

	for _, sec := range p.Sections {
		key := strings.ToLower(sec.Title)
		if retained[key] {
			want := strings.Join(p.SectionText(sec), "\n")
			if !strings.Contains(res.Hub.Body, want) {
				return fmt.Errorf("retained section %q missing from hub body", sec.Title)
			}
			continue
		}
		child, ok := childBySource[key]
		if !ok {
			return fmt.Errorf("section %q neither retained nor extracted", sec.Title)
		}
		want := normalizeContent(strings.Join(p.SectionBody(sec), "\n"))
		got := normalizeContent(stripLeadingHeading(child.Doc.Body))
		if want != got {
			return fmt.Errorf("child %q content does not match source section %q", child.Title, sec.Title)
		}
	}
	return nil
}

func validateSubconceptCoverage(p *analyzer.Profile, res *SplitResult) error {
	big := p.Sections[p.LargeSections[0]]
	if len(res.Retained)+len(res.Children) != len(big.SubConcepts) {
		return fmt.Errorf("split lost sub-concepts: %d retained + %d extracted != %d original",
			len(res.Retained), len(res.Children), len(big.SubConcepts))
	}
	for _, c := range res.Children {
		if !strings.Contains(c.Doc.Body, "### "+c.SourceTitle) {
			// Child body drops the level-3 heading; content check instead.
			found := false
			for _, sc := range big.SubConcepts {
				if strings.EqualFold(sc.Title, c.SourceTitle) {
					want := normalizeContent(strings.Join(p.Lines[sc.StartLine:sc.EndLine], "\n"))
					got := normalizeContent(stripLeadingHeading(c.Doc.Body))
					found = want == got
					break
				}
			}
			if !found {
				return fmt.Errorf("child %q content does not match sub-concept %q", c.Title, c.SourceTitle)
			}
		}
	}
	return nil
}

func stripLeadingHeading(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return strings.Join(lines[i+1:], "\n")
		}
		break
	}
	return body
}

func normalizeContent(s string) string {
	return strings.TrimSpace(s)
}
