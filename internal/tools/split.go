package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// SplitTool handles the palace_split MCP tool.
type SplitTool struct {
	eng *engine.Engine
}

// NewSplitTool creates a SplitTool bound to the engine.
func NewSplitTool(eng *engine.Engine) *SplitTool {
	return &SplitTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_split.
func (t *SplitTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_split",
		mcp.WithDescription(
			"Split an oversized document into a hub plus child documents. Sections marked keep, "+
				"template content, and configured hub sections stay in the hub; everything else is "+
				"extracted into children linked from the hub's Knowledge Map. Use dry_run to preview "+
				"without writing.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Vault-relative path to the document to split"),
		),
		mcp.WithString("target_dir",
			mcp.Description("Directory for child documents (default: the document's own directory)"),
		),
		mcp.WithString("title",
			mcp.Description("Override the parent title used for child naming"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Split even when the document is within limits"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview the split without writing any files"),
		),
	)
}

// Handle processes the palace_split tool call.
func (t *SplitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}

	report, err := t.eng.Split(path, engine.SplitOptions{
		TargetDir: req.GetString("target_dir", ""),
		Title:     req.GetString("title", ""),
		Force:     req.GetBool("force", false),
		DryRun:    req.GetBool("dry_run", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("split failed: %v", err)), nil
	}

	var b strings.Builder
	if !report.Performed {
		b.WriteString(formatDecision(report.Decision))
		b.WriteString("\nNothing was split. Pass force=true to split anyway.")
		return mcp.NewToolResultText(b.String()), nil
	}

	if report.DryRun {
		fmt.Fprintf(&b, "DRY RUN: split of %s (no files written)\n\n", path)
	} else {
		fmt.Fprintf(&b, "Split %s\n\n", path)
	}
	b.WriteString(formatDecision(report.Decision))
	fmt.Fprintf(&b, "\nHub: %s (%d sections retained)\n", report.Result.HubPath, len(report.Result.Retained))
	fmt.Fprintf(&b, "Children (%d):\n", len(report.Result.Children))
	for _, c := range report.Result.Children {
		fmt.Fprintf(&b, "- %s", c.RelativePath)
		if c.Description != "" {
			fmt.Fprintf(&b, " (%s)", c.Description)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
