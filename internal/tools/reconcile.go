package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// ReconcileTool handles the palace_reconcile MCP tool.
type ReconcileTool struct {
	eng *engine.Engine
}

// NewReconcileTool creates a ReconcileTool bound to the engine.
func NewReconcileTool(eng *engine.Engine) *ReconcileTool {
	return &ReconcileTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_reconcile.
func (t *ReconcileTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_reconcile",
		mcp.WithDescription(
			"Heal a hub's Knowledge Map: sibling documents carrying the hub's naming prefix but "+
				"missing from the map are appended. Idempotent and safe to retry. Run this after "+
				"creating child files manually so they catch up into the hierarchy.",
		),
		mcp.WithString("hub_path",
			mcp.Required(),
			mcp.Description("Vault-relative path to the hub document"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview without writing"),
		),
	)
}

// Handle processes the palace_reconcile tool call.
func (t *ReconcileTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hubPath := req.GetString("hub_path", "")
	if hubPath == "" {
		return mcp.NewToolResultError("'hub_path' is required"), nil
	}

	report, err := t.eng.Reconcile(hubPath, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reconcile failed: %v", err)), nil
	}

	if len(report.Added) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Knowledge Map of %s is already complete.", hubPath)), nil
	}

	var b strings.Builder
	if report.DryRun {
		fmt.Fprintf(&b, "DRY RUN: %d entries would be added to %s:\n", len(report.Added), hubPath)
	} else {
		fmt.Fprintf(&b, "Added %d entries to %s:\n", len(report.Added), hubPath)
	}
	for _, a := range report.Added {
		fmt.Fprintf(&b, "- [[%s]]\n", a)
	}
	return mcp.NewToolResultText(b.String()), nil
}
