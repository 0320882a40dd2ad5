package consistency

import (
	"fmt"
	"path"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// FixError records one failed repair. The batch continues past it.
type FixError struct {
	Issue Issue  `json:"issue"`
	Err   string `json:"error"`
}

// Result summarizes an Executor batch. Callers needing all-or-nothing
// semantics must check len(Errors) == 0 and roll back externally;
// applied fixes stay applied.
type Result struct {
	Fixed   []Issue           `json:"fixed"`
	Errors  []FixError        `json:"errors,omitempty"`
	Renamed map[string]string `json:"renamed,omitempty"` // old path -> new path
}

// Executor applies mechanical repairs for fixable issues.
type Executor struct {
	store  vault.Store
	dryRun bool
}

// NewExecutor creates an Executor. With dryRun set, fixes are computed
// and reported but nothing is written.
func NewExecutor(store vault.Store, dryRun bool) *Executor {
	return &Executor{store: store, dryRun: dryRun}
}

// Apply repairs each issue independently. The caller is expected to have
// already filtered out non-fixable categories; any that slip through are
// recorded as per-item errors, never a batch abort.
func (e *Executor) Apply(issues []Issue) Result {
	res := Result{Renamed: make(map[string]string)}
	for _, issue := range issues {
		if err := e.applyOne(issue, &res); err != nil {
			res.Errors = append(res.Errors, FixError{Issue: issue, Err: err.Error()})
			continue
		}
		res.Fixed = append(res.Fixed, issue)
	}
	return res
}

func (e *Executor) applyOne(issue Issue, res *Result) error {
	// An earlier rename in the batch may have moved this issue's file.
	if newPath, ok := res.Renamed[issue.Path]; ok && !e.dryRun {
		issue.Path = newPath
	}
	switch issue.Category {
	case CategoryUnprefixedChildren:
		return e.fixRename(issue, res)
	case CategoryCorruptedHeadings:
		return e.fixCorruptedHeading(issue)
	case CategoryBrokenWikiLinks:
		return e.fixBrokenWikiLinks(issue)
	case CategoryCodeBlockLinks:
		return e.fixCodeBlockLinks(issue)
	}
	return fmt.Errorf("category %s is not mechanically fixable", issue.Category)
}

func (e *Executor) fixRename(issue Issue, res *Result) error {
	newName := issue.Details[DetailSuggestedFilename]
	if newName == "" {
		return fmt.Errorf("missing %s detail", DetailSuggestedFilename)
	}
	doc, err := e.store.ReadDocument(issue.Path)
	if err != nil {
		return err
	}

	dir := path.Dir(issue.Path)
	newPath := newName
	if dir != "." {
		newPath = path.Join(dir, newName)
	}
	if e.store.Exists(newPath) {
		return fmt.Errorf("target %s already exists", newPath)
	}
	if e.dryRun {
		res.Renamed[issue.Path] = newPath
		return nil
	}

	doc.Path = newPath
	if doc.Frontmatter.Title != "" {
		doc.Frontmatter.Title = strings.TrimSuffix(newName, ".md")
	}
	if err := e.store.WriteDocument(doc); err != nil {
		return err
	}
	if err := e.store.DeleteDocument(issue.Path); err != nil {
		return fmt.Errorf("renamed copy written but old file not removed: %w", err)
	}
	res.Renamed[issue.Path] = newPath
	return nil
}

func (e *Executor) fixCorruptedHeading(issue Issue) error {
	return e.rewriteBody(issue.Path, func(p *analyzer.Profile) (string, error) {
		if p.TitleLine == 0 {
			return "", fmt.Errorf("document has no title heading")
		}
		lines := append([]string(nil), p.Lines...)
		lines[p.TitleLine-1] = stripWikiLinks(lines[p.TitleLine-1])
		return strings.Join(lines, "\n"), nil
	})
}

// The link fixes sweep the whole document, so a batch holding several
// issues for one file converges on the first application and the rest
// are no-ops. Re-applying a fix is always safe.
func (e *Executor) fixBrokenWikiLinks(issue Issue) error {
	return e.rewriteBody(issue.Path, func(p *analyzer.Profile) (string, error) {
		lines := append([]string(nil), p.Lines...)
		for i := range lines {
			if p.InCodeBlock(i + 1) {
				continue
			}
			lines[i] = brokenLinkPattern.ReplaceAllString(lines[i], "$1$2")
		}
		return strings.Join(lines, "\n"), nil
	})
}

func (e *Executor) fixCodeBlockLinks(issue Issue) error {
	return e.rewriteBody(issue.Path, func(p *analyzer.Profile) (string, error) {
		lines := append([]string(nil), p.Lines...)
		for i := range lines {
			if !p.InCodeBlock(i + 1) {
				continue
			}
			lines[i] = stripWikiLinks(lines[i])
		}
		return strings.Join(lines, "\n"), nil
	})
}

// rewriteBody reads, transforms, and writes one document body. The
// transform sees a profile of the body so fence positions are exact.
func (e *Executor) rewriteBody(docPath string, transform func(*analyzer.Profile) (string, error)) error {
	doc, err := e.store.ReadDocument(docPath)
	if err != nil {
		return err
	}
	p, err := analyzer.Analyze(doc.Body, analyzer.Options{})
	if err != nil {
		return err
	}
	body, err := transform(p)
	if err != nil {
		return err
	}
	if e.dryRun {
		return nil
	}
	doc.Body = body
	return e.store.WriteDocument(doc)
}
