package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/consistency"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// InspectTool handles the palace_inspect MCP tool.
type InspectTool struct {
	eng *engine.Engine
}

// NewInspectTool creates an InspectTool bound to the engine.
func NewInspectTool(eng *engine.Engine) *InspectTool {
	return &InspectTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_inspect.
func (t *InspectTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_inspect",
		mcp.WithDescription(
			"Scan the vault for structural drift: unprefixed_children, corrupted_headings, "+
				"naming_inconsistencies, broken_wiki_links, code_block_links, orphaned_fragments. "+
				"Read-only; pass the fixable issues to palace_repair.",
		),
		mcp.WithString("categories",
			mcp.Description("Comma-separated category subset (default: all)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of issues to return (default: no limit)"),
		),
	)
}

// Handle processes the palace_inspect tool call.
func (t *InspectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := parseCategories(req.GetString("categories", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := int(req.GetFloat("limit", 0))

	issues, err := t.eng.Inspect(cats, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}

	text := formatIssues(issues)
	if fixable := countFixable(issues); fixable > 0 {
		text += fmt.Sprintf("\n%d issue(s) are mechanically fixable via palace_repair.", fixable)
	}
	return mcp.NewToolResultText(text), nil
}

func countFixable(issues []consistency.Issue) int {
	n := 0
	for _, i := range issues {
		if i.Fixable {
			n++
		}
	}
	return n
}
