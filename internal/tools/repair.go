package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/consistency"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// RepairTool handles the palace_repair MCP tool.
type RepairTool struct {
	eng *engine.Engine
}

// NewRepairTool creates a RepairTool bound to the engine.
func NewRepairTool(eng *engine.Engine) *RepairTool {
	return &RepairTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_repair.
func (t *RepairTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_repair",
		mcp.WithDescription(
			"Apply mechanical repairs for fixable issues found by palace_inspect: renames for "+
				"unprefixed children, heading rewrites, and link-text rewrites. Each fix is applied "+
				"independently; per-issue failures are reported without aborting the batch. "+
				"Alternatively pass categories to inspect-and-repair in one call.",
		),
		mcp.WithString("issues_json",
			mcp.Description("JSON array of issues (as reported by palace_inspect) to fix; non-fixable categories are rejected per item"),
		),
		mcp.WithString("categories",
			mcp.Description("Instead of issues_json: comma-separated fixable categories to inspect and repair"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview without writing"),
		),
	)
}

// Handle processes the palace_repair tool call.
func (t *RepairTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, err := t.collectIssues(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultText("Nothing to repair."), nil
	}

	dryRun := req.GetBool("dry_run", false)
	res, err := t.eng.Repair(issues, dryRun)

	var partial *engine.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		return mcp.NewToolResultError(fmt.Sprintf("repair failed: %v", err)), nil
	}

	var b strings.Builder
	if dryRun {
		fmt.Fprintf(&b, "DRY RUN: %d fix(es) would be applied\n", len(res.Fixed))
	} else {
		fmt.Fprintf(&b, "Applied %d fix(es)\n", len(res.Fixed))
	}
	for _, f := range res.Fixed {
		fmt.Fprintf(&b, "- [%s] %s", f.Category, f.Path)
		if newPath, ok := res.Renamed[f.Path]; ok {
			fmt.Fprintf(&b, " -> %s", newPath)
		}
		b.WriteString("\n")
	}
	if len(res.Errors) > 0 {
		fmt.Fprintf(&b, "\n%d fix(es) FAILED (already-applied fixes stay in place):\n", len(res.Errors))
		for _, fe := range res.Errors {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", fe.Issue.Category, fe.Issue.Path, fe.Err)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// collectIssues resolves the issue batch from either issues_json or a
// fresh categorized inspection, keeping only fixable issues in the
// latter mode.
func (t *RepairTool) collectIssues(req mcp.CallToolRequest) ([]consistency.Issue, error) {
	raw := req.GetString("issues_json", "")
	if raw != "" {
		var issues []consistency.Issue
		if err := json.Unmarshal([]byte(raw), &issues); err != nil {
			return nil, fmt.Errorf("invalid issues_json: %v", err)
		}
		return issues, nil
	}

	cats, err := parseCategories(req.GetString("categories", ""))
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("either 'issues_json' or 'categories' is required")
	}
	for _, c := range cats {
		if !c.Fixable() {
			return nil, fmt.Errorf("category %s is not mechanically fixable", c)
		}
	}

	all, err := t.eng.Inspect(cats, 0)
	if err != nil {
		return nil, fmt.Errorf("inspect failed: %v", err)
	}
	var fixable []consistency.Issue
	for _, i := range all {
		if i.Fixable {
			fixable = append(fixable, i)
		}
	}
	return fixable, nil
}
