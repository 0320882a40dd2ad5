package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// AnalyzeTool handles the palace_analyze MCP tool.
type AnalyzeTool struct {
	eng *engine.Engine
}

// NewAnalyzeTool creates an AnalyzeTool bound to the engine.
func NewAnalyzeTool(eng *engine.Engine) *AnalyzeTool {
	return &AnalyzeTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_analyze.
func (t *AnalyzeTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_analyze",
		mcp.WithDescription(
			"Analyze a markdown document's structure (sections, code blocks, wiki-links, word counts) "+
				"and report whether it exceeds the vault's split thresholds. Read-only.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path to the document (e.g. 'Topics/Docker.md')"),
		),
	)
}

// Handle processes the palace_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}

	report, err := t.eng.Analyze(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analyze failed: %v", err)), nil
	}

	p := report.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "# Analysis: %s\n\n", path)
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Body lines: %d (code: %d) | Words: %d | Sections: %d | Links: %d\n\n",
		p.BodyLines, p.CodeLines, p.WordCount, len(p.Sections), len(p.Links))

	if len(p.Sections) > 0 {
		b.WriteString("## Sections\n")
		for i, sec := range p.Sections {
			fmt.Fprintf(&b, "- %s (%d lines, %d words", sec.Title, sec.LineCount, sec.WordCount)
			if sec.Annotation != "" {
				fmt.Fprintf(&b, ", annotation: %s", sec.Annotation)
			}
			if sec.IsTemplateContent {
				b.WriteString(", template")
			}
			if len(sec.SubConcepts) > 0 {
				fmt.Fprintf(&b, ", %d sub-concepts", len(sec.SubConcepts))
			}
			b.WriteString(")")
			for _, li := range p.LargeSections {
				if li == i {
					b.WriteString(" [LARGE]")
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Decision\n")
	b.WriteString(formatDecision(report.Decision))

	return mcp.NewToolResultText(b.String()), nil
}
