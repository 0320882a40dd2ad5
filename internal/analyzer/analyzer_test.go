package analyzer

import (
	"strings"
	"testing"
)

func mustAnalyze(t *testing.T, raw string, opts Options) *Profile {
	t.Helper()
	p, err := Analyze(raw, opts)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return p
}

func TestAnalyze_SectionsAndSubConcepts(t *testing.T) {
	raw := `# Networking

Intro line.

## Basics

Some basics.

### TCP

tcp text

### UDP

udp text

## Advanced

advanced text
`
	p := mustAnalyze(t, raw, Options{})

	if p.Title != "Networking" {
		t.Errorf("title = %q, want %q", p.Title, "Networking")
	}
	if p.TitleLine != 1 {
		t.Errorf("title line = %d, want 1", p.TitleLine)
	}
	if len(p.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(p.Sections))
	}

	basics := p.Sections[0]
	if basics.Title != "Basics" {
		t.Errorf("sections[0] = %q, want %q", basics.Title, "Basics")
	}
	if len(basics.SubConcepts) != 2 {
		t.Fatalf("sub-concepts = %d, want 2", len(basics.SubConcepts))
	}
	if basics.SubConcepts[0].Title != "TCP" || basics.SubConcepts[1].Title != "UDP" {
		t.Errorf("sub-concept titles = %q, %q", basics.SubConcepts[0].Title, basics.SubConcepts[1].Title)
	}

	// Basics spans from its heading to the line before "## Advanced".
	if basics.StartLine != 5 {
		t.Errorf("Basics start = %d, want 5", basics.StartLine)
	}
	if basics.EndLine != 16 {
		t.Errorf("Basics end = %d, want 16", basics.EndLine)
	}

	advanced := p.Sections[1]
	if advanced.EndLine != len(p.Lines) {
		t.Errorf("last section end = %d, want %d", advanced.EndLine, len(p.Lines))
	}
}

func TestAnalyze_FrontmatterOffsetsLineNumbers(t *testing.T) {
	raw := `---
title: X
---
# X

## First

text
`
	p := mustAnalyze(t, raw, Options{})
	if p.FrontmatterLines != 3 {
		t.Errorf("frontmatter lines = %d, want 3", p.FrontmatterLines)
	}
	if p.TitleLine != 4 {
		t.Errorf("title line = %d, want 4", p.TitleLine)
	}
	if len(p.Sections) != 1 || p.Sections[0].StartLine != 6 {
		t.Fatalf("sections = %+v, want one starting at line 6", p.Sections)
	}
	if p.BodyLines != len(p.Lines)-3 {
		t.Errorf("body lines = %d, want %d", p.BodyLines, len(p.Lines)-3)
	}
}

func TestAnalyze_HeadingsInsideFencesIgnored(t *testing.T) {
	raw := "# Doc\n\n## Real\n\n```bash\n## not a heading\n# also not\n```\n\ntext\n"
	p := mustAnalyze(t, raw, Options{})

	if len(p.Sections) != 1 {
		t.Fatalf("sections = %d, want 1 (fence content must not create sections)", len(p.Sections))
	}
	if len(p.CodeBlocks) != 1 {
		t.Fatalf("code blocks = %d, want 1", len(p.CodeBlocks))
	}
	cb := p.CodeBlocks[0]
	if cb.Language != "bash" {
		t.Errorf("language = %q, want %q", cb.Language, "bash")
	}
	if cb.StartLine != 5 || cb.EndLine != 8 {
		t.Errorf("code block span = %d-%d, want 5-8", cb.StartLine, cb.EndLine)
	}
	if !p.InCodeBlock(6) {
		t.Error("InCodeBlock(6) = false, want true")
	}
	if p.InCodeBlock(9) {
		t.Error("InCodeBlock(9) = true, want false")
	}
}

func TestAnalyze_TildeFences(t *testing.T) {
	raw := "# Doc\n\n~~~python\n## nope\n~~~\n\n## Yes\n\ntext\n"
	p := mustAnalyze(t, raw, Options{})
	if len(p.Sections) != 1 || p.Sections[0].Title != "Yes" {
		t.Fatalf("sections = %+v, want only %q", p.Sections, "Yes")
	}
}

func TestAnalyze_UnterminatedFenceRunsToEOF(t *testing.T) {
	raw := "# Doc\n\n```\ncode\n## swallowed\n"
	p := mustAnalyze(t, raw, Options{})
	if len(p.Sections) != 0 {
		t.Errorf("sections = %d, want 0", len(p.Sections))
	}
	if len(p.CodeBlocks) != 1 || p.CodeBlocks[0].EndLine != len(p.Lines) {
		t.Errorf("unterminated fence should close at EOF, got %+v", p.CodeBlocks)
	}
}

func TestAnalyze_Annotations(t *testing.T) {
	raw := `# Doc

## Keep Me
<!-- palace:keep -->

kept text

## Split Me

%%split%%

split text

## Plain

plain text
`
	p := mustAnalyze(t, raw, Options{})
	if len(p.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(p.Sections))
	}
	if p.Sections[0].Annotation != AnnotationKeep {
		t.Errorf("Keep Me annotation = %q, want keep", p.Sections[0].Annotation)
	}
	// Blank lines between heading and marker are allowed.
	if p.Sections[1].Annotation != AnnotationSplit {
		t.Errorf("Split Me annotation = %q, want split", p.Sections[1].Annotation)
	}
	if p.Sections[2].Annotation != AnnotationNone {
		t.Errorf("Plain annotation = %q, want none", p.Sections[2].Annotation)
	}
}

func TestAnalyze_AnnotationOnlyBindsToNextNonBlank(t *testing.T) {
	raw := "# Doc\n\n## A\n\nprose first\n<!-- palace:keep -->\n\n## B\n\ntext\n"
	p := mustAnalyze(t, raw, Options{})
	if p.Sections[0].Annotation != AnnotationNone {
		t.Errorf("marker after prose should not bind, got %q", p.Sections[0].Annotation)
	}
}

func TestAnalyze_WordCountExcludesFences(t *testing.T) {
	raw := "# Doc\n\none two three\n\n```\nfour five six seven\n```\n"
	p := mustAnalyze(t, raw, Options{})
	// "# Doc" counts 2 words, prose counts 3; fence content none.
	if p.WordCount != 5 {
		t.Errorf("word count = %d, want 5", p.WordCount)
	}
	if p.CodeLines != 3 {
		t.Errorf("code lines = %d, want 3 (delimiters included)", p.CodeLines)
	}
}

func TestAnalyze_WikiLinks(t *testing.T) {
	raw := "# Doc\n\nSee [[Docker]] and [[K8s|Kubernetes]].\n\n```\n[[InFence]]\n```\n\nAgain [[docker]].\n"
	p := mustAnalyze(t, raw, Options{})

	if len(p.Links) != 2 {
		t.Fatalf("links = %d %v, want 2 (fence excluded, duplicate folded)", len(p.Links), p.Links)
	}
	if p.Links[0].Target != "Docker" {
		t.Errorf("links[0] = %q, want Docker", p.Links[0].Target)
	}
	if p.Links[1].Target != "K8s" || p.Links[1].DisplayText != "Kubernetes" {
		t.Errorf("links[1] = %+v, want K8s|Kubernetes", p.Links[1])
	}

	var inFence int
	for _, occ := range p.LinkOccurrences {
		if occ.InCodeFence {
			inFence++
			if occ.Link.Target != "InFence" {
				t.Errorf("fenced occurrence target = %q", occ.Link.Target)
			}
		}
	}
	if inFence != 1 {
		t.Errorf("in-fence occurrences = %d, want 1", inFence)
	}
}

func TestAnalyze_LinkInHeadingFlagged(t *testing.T) {
	raw := "# [[Docker]] Overview\n\ntext\n"
	p := mustAnalyze(t, raw, Options{})
	if len(p.LinkOccurrences) != 1 {
		t.Fatalf("occurrences = %d, want 1", len(p.LinkOccurrences))
	}
	if !p.LinkOccurrences[0].InHeading {
		t.Error("heading link not flagged InHeading")
	}
}

func TestAnalyze_LargeSections(t *testing.T) {
	var b strings.Builder
	b.WriteString("# Doc\n\n## Small\n\nshort\n\n## Big\n")
	for i := 0; i < 30; i++ {
		b.WriteString("filler line\n")
	}
	p := mustAnalyze(t, b.String(), Options{SectionMaxLines: 10})

	if len(p.LargeSections) != 1 {
		t.Fatalf("large sections = %v, want exactly one", p.LargeSections)
	}
	if p.Sections[p.LargeSections[0]].Title != "Big" {
		t.Errorf("large section = %q, want Big", p.Sections[p.LargeSections[0]].Title)
	}
}

func TestAnalyze_TemplateContent(t *testing.T) {
	byTitle := "# Doc\n\n## Meeting Template\n\ncontent\n"
	p := mustAnalyze(t, byTitle, Options{})
	if !p.Sections[0].IsTemplateContent {
		t.Error("title keyword section not marked template")
	}

	byQuotes := "# Doc\n\n## Notes\n\n> a\n> b\n> c\n> d\n> e\n"
	p = mustAnalyze(t, byQuotes, Options{})
	if !p.Sections[0].IsTemplateContent {
		t.Error("quote-dominated section not marked template")
	}

	byMarkers := "# Doc\n\n## Form\n\n<!-- template:start -->\nfield\n<!-- template:end -->\n"
	p = mustAnalyze(t, byMarkers, Options{})
	if !p.Sections[0].IsTemplateContent {
		t.Error("marker-pair section not marked template")
	}

	plain := "# Doc\n\n## Notes\n\nregular prose here\nand more\nand more\nand more\n"
	p = mustAnalyze(t, plain, Options{})
	if p.Sections[0].IsTemplateContent {
		t.Error("plain section wrongly marked template")
	}
}

func TestAnalyze_SectionBodyAndIntro(t *testing.T) {
	raw := "# Doc\n\nintro prose\n\n## A\n\nbody line\n"
	p := mustAnalyze(t, raw, Options{})

	intro := p.IntroLines()
	joined := strings.Join(intro, "\n")
	if !strings.Contains(joined, "intro prose") {
		t.Errorf("intro = %q, missing prose", joined)
	}
	if strings.Contains(joined, "## A") {
		t.Error("intro must stop before first section heading")
	}

	body := strings.Join(p.SectionBody(p.Sections[0]), "\n")
	if strings.Contains(body, "## A") {
		t.Error("SectionBody must exclude the heading")
	}
	if !strings.Contains(body, "body line") {
		t.Errorf("SectionBody = %q, missing content", body)
	}

	full := strings.Join(p.SectionText(p.Sections[0]), "\n")
	if !strings.HasPrefix(full, "## A") {
		t.Errorf("SectionText = %q, should include heading", full)
	}
}

func TestAnalyze_MalformedFrontmatter(t *testing.T) {
	if _, err := Analyze("---\ntitle: x\nnope", Options{}); err == nil {
		t.Error("expected error for unterminated frontmatter")
	}
}
