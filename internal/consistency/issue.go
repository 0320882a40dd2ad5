// Package consistency detects and repairs structural drift in the
// corpus: orphaned children, mis-named children, corrupted headings, and
// malformed or misplaced cross-references.
//
// The Inspector is read-only and produces Issues fresh on every run;
// nothing is persisted. The Executor consumes a caller-filtered snapshot
// of fixable Issues and applies each repair independently.
package consistency

import "strconv"

// Category enumerates the drift categories the Inspector detects.
type Category string

const (
	CategoryUnprefixedChildren    Category = "unprefixed_children"
	CategoryCorruptedHeadings     Category = "corrupted_headings"
	CategoryNamingInconsistencies Category = "naming_inconsistencies"
	CategoryBrokenWikiLinks       Category = "broken_wiki_links"
	CategoryCodeBlockLinks        Category = "code_block_links"
	CategoryOrphanedFragments     Category = "orphaned_fragments"
)

// AllCategories returns every category in canonical scan order.
func AllCategories() []Category {
	return []Category{
		CategoryUnprefixedChildren,
		CategoryCorruptedHeadings,
		CategoryNamingInconsistencies,
		CategoryBrokenWikiLinks,
		CategoryCodeBlockLinks,
		CategoryOrphanedFragments,
	}
}

// Fixable reports whether the category has a deterministic,
// content-safe mechanical repair. Naming inconsistencies and orphaned
// fragments need human or agent judgment.
func (c Category) Fixable() bool {
	switch c {
	case CategoryUnprefixedChildren, CategoryCorruptedHeadings,
		CategoryBrokenWikiLinks, CategoryCodeBlockLinks:
		return true
	}
	return false
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Issue is one detected drift instance.
type Issue struct {
	Category    Category          `json:"category"`
	Path        string            `json:"path"`
	Description string            `json:"description"`
	Suggestion  string            `json:"suggestion,omitempty"`
	Fixable     bool              `json:"fixable"`
	Details     map[string]string `json:"details,omitempty"`
}

// Detail keys used by the Executor.
const (
	DetailSuggestedFilename = "suggested_filename"
	DetailHubPath           = "hub_path"
	DetailLine              = "line"
	DetailMalformed         = "malformed"
	DetailReplacement       = "replacement"
)

func lineDetail(n int) string { return strconv.Itoa(n) }
