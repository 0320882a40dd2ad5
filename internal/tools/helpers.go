// Package tools implements the MCP tool handlers that expose the
// decomposition engine.
//
// Each tool is a struct holding its dependencies (DIP) with a
// Definition() and a Handle() compatible with mcp-go's CallToolRequest
// signature. Handlers validate inputs, call the engine, and render text
// results; no engine logic lives here.
package tools

import (
	"fmt"
	"strings"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/consistency"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/splitter"
)

// formatDecision renders a split decision for tool output.
func formatDecision(d splitter.Decision) string {
	var b strings.Builder
	if d.ShouldSplit {
		b.WriteString("Split recommended")
		if d.Strategy != "" {
			fmt.Fprintf(&b, " (strategy: %s)", d.Strategy)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No split needed\n")
	}
	fmt.Fprintf(&b, "Reason: %s\n", d.Reason)
	for _, v := range d.Violations {
		fmt.Fprintf(&b, "- %s: %d (limit %d)", v.Type, v.Actual, v.Limit)
		if v.Detail != "" {
			fmt.Fprintf(&b, " [%s]", v.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatIssues renders an inspection result for tool output.
func formatIssues(issues []consistency.Issue) string {
	if len(issues) == 0 {
		return "No issues found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d issue(s):\n\n", len(issues))
	for i, issue := range issues {
		fixable := "manual"
		if issue.Fixable {
			fixable = "fixable"
		}
		fmt.Fprintf(&b, "%d. [%s] (%s) %s\n   %s\n", i+1, issue.Category, fixable, issue.Path, issue.Description)
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, "   Suggestion: %s\n", issue.Suggestion)
		}
	}
	return b.String()
}

// parseCategories converts a comma-separated category list, validating
// each name.
func parseCategories(raw string) ([]consistency.Category, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var cats []consistency.Category
	for _, part := range strings.Split(raw, ",") {
		c := consistency.Category(strings.TrimSpace(part))
		if !c.Valid() {
			return nil, fmt.Errorf("unknown category %q", part)
		}
		cats = append(cats, c)
	}
	return cats, nil
}
