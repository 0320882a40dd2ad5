// Package splitter decides whether a document should be decomposed into
// a hub plus children, and performs the decomposition. Both halves are
// pure: the decision consumes a profile and thresholds, the split
// computes its full result in memory so callers write nothing until the
// result validates.
package splitter

import (
	"fmt"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/analyzer"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
)

// Strategy selects how a document is partitioned.
type Strategy string

const (
	StrategyBySections    Strategy = "by_sections"
	StrategyBySubconcepts Strategy = "by_subconcepts"
)

// ViolationType enumerates the threshold checks.
type ViolationType string

const (
	ViolationLines        ViolationType = "lines"
	ViolationSections     ViolationType = "sections"
	ViolationLargeSection ViolationType = "largeSection"
)

// Violation is one exceeded threshold.
type Violation struct {
	Type   ViolationType `json:"type"`
	Actual int           `json:"actual"`
	Limit  int           `json:"limit"`
	Detail string        `json:"detail,omitempty"`
}

// Decision is the split verdict for one document.
type Decision struct {
	ShouldSplit bool        `json:"should_split"`
	Violations  []Violation `json:"violations,omitempty"`
	Strategy    Strategy    `json:"suggested_strategy,omitempty"`
	Reason      string      `json:"reason"`
}

// Decide evaluates a profile against the configured thresholds. Pure and
// deterministic, no I/O.
func Decide(p *analyzer.Profile, cfg *config.VaultConfig) Decision {
	effectiveMax := cfg.MaxLines
	codeHeavy := false
	if p.BodyLines > 0 {
		ratio := float64(p.CodeLines) / float64(p.BodyLines)
		if ratio > cfg.CodeHeavyRatio {
			effectiveMax = int(float64(cfg.MaxLines) * cfg.CodeHeavyMultiplier)
			codeHeavy = true
		}
	}

	var violations []Violation
	if p.BodyLines > effectiveMax {
		detail := ""
		if codeHeavy {
			detail = fmt.Sprintf("code-heavy limit %d (%.1fx of %d)", effectiveMax, cfg.CodeHeavyMultiplier, cfg.MaxLines)
		}
		violations = append(violations, Violation{
			Type:   ViolationLines,
			Actual: p.BodyLines,
			Limit:  effectiveMax,
			Detail: detail,
		})
	}
	if len(p.Sections) > cfg.MaxSections {
		violations = append(violations, Violation{
			Type:   ViolationSections,
			Actual: len(p.Sections),
			Limit:  cfg.MaxSections,
		})
	}
	for _, idx := range p.LargeSections {
		sec := p.Sections[idx]
		violations = append(violations, Violation{
			Type:   ViolationLargeSection,
			Actual: sec.LineCount,
			Limit:  cfg.SectionMaxLines,
			Detail: sec.Title,
		})
	}

	if len(violations) == 0 {
		msg := fmt.Sprintf("document is within limits (%d lines, %d sections)", p.BodyLines, len(p.Sections))
		if codeHeavy {
			msg += fmt.Sprintf("; code-heavy limit %d applied", effectiveMax)
		}
		return Decision{ShouldSplit: false, Reason: msg}
	}

	return Decision{
		ShouldSplit: true,
		Violations:  violations,
		Strategy:    suggestStrategy(p, violations),
		Reason:      describeViolations(violations),
	}
}

// suggestStrategy picks by_subconcepts only when the sole problem is a
// single oversized section holding at least two sub-concepts; section
// count being the dominant problem, or having two or more sections,
// selects by_sections.
func suggestStrategy(p *analyzer.Profile, violations []Violation) Strategy {
	onlyLargeSection := true
	largeCount := 0
	for _, v := range violations {
		switch v.Type {
		case ViolationLargeSection:
			largeCount++
		default:
			onlyLargeSection = false
		}
	}
	if onlyLargeSection && largeCount == 1 && len(p.LargeSections) == 1 {
		sec := p.Sections[p.LargeSections[0]]
		if len(sec.SubConcepts) >= 2 {
			return StrategyBySubconcepts
		}
	}
	return StrategyBySections
}

func describeViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		switch v.Type {
		case ViolationLines:
			parts = append(parts, fmt.Sprintf("body has %d lines (limit %d)", v.Actual, v.Limit))
		case ViolationSections:
			parts = append(parts, fmt.Sprintf("%d sections (limit %d)", v.Actual, v.Limit))
		case ViolationLargeSection:
			parts = append(parts, fmt.Sprintf("section %q has %d lines (limit %d)", v.Detail, v.Actual, v.Limit))
		}
	}
	return "split recommended: " + strings.Join(parts, "; ")
}
