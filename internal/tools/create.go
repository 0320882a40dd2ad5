package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
)

// CreateHubTool handles the palace_create_hub MCP tool.
type CreateHubTool struct {
	eng *engine.Engine
}

// NewCreateHubTool creates a CreateHubTool bound to the engine.
func NewCreateHubTool(eng *engine.Engine) *CreateHubTool {
	return &CreateHubTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_create_hub.
func (t *CreateHubTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_create_hub",
		mcp.WithDescription(
			"Create a new hub document with an empty Knowledge Map. Children are added later "+
				"via palace_create_note (add_to_hub=true) or healed in via palace_reconcile.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Hub title; the filename is derived from it"),
		),
		mcp.WithString("dir",
			mcp.Description("Vault-relative directory for the hub (default: vault root)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview without writing"),
		),
	)
}

// Handle processes the palace_create_hub tool call.
func (t *CreateHubTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	doc, err := t.eng.CreateHub(req.GetString("dir", ""), title, nil, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create hub failed: %v", err)), nil
	}
	if req.GetBool("dry_run", false) {
		return mcp.NewToolResultText(fmt.Sprintf("DRY RUN: would create hub %s", doc.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created hub %s", doc.Path)), nil
}

// CreateNoteTool handles the palace_create_note MCP tool.
type CreateNoteTool struct {
	eng *engine.Engine
}

// NewCreateNoteTool creates a CreateNoteTool bound to the engine.
func NewCreateNoteTool(eng *engine.Engine) *CreateNoteTool {
	return &CreateNoteTool{eng: eng}
}

// Definition returns the MCP tool definition for palace_create_note.
func (t *CreateNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("palace_create_note",
		mcp.WithDescription(
			"Create a child note. With add_to_hub=true the note is appended to the named hub's "+
				"Knowledge Map in the same operation; otherwise it is standalone and stays an "+
				"orphan candidate until a reconcile pass picks it up.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Note title; unsafe filename characters are replaced with hyphens"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Markdown body of the note"),
		),
		mcp.WithString("dir",
			mcp.Description("Vault-relative directory (default: vault root)"),
		),
		mcp.WithString("hub_path",
			mcp.Description("Hub to register the note under (required with add_to_hub)"),
		),
		mcp.WithBoolean("add_to_hub",
			mcp.Description("Append a Knowledge Map entry to hub_path (default false)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Preview without writing"),
		),
	)
}

// Handle processes the palace_create_note tool call.
func (t *CreateNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	content := req.GetString("content", "")
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	doc, err := t.eng.CreateChildNote(engine.CreateNoteParams{
		Dir:      req.GetString("dir", ""),
		Title:    title,
		Content:  content,
		HubPath:  req.GetString("hub_path", ""),
		AddToHub: req.GetBool("add_to_hub", false),
		DryRun:   req.GetBool("dry_run", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create note failed: %v", err)), nil
	}

	msg := fmt.Sprintf("Created note %s", doc.Path)
	if req.GetBool("dry_run", false) {
		msg = fmt.Sprintf("DRY RUN: would create note %s", doc.Path)
	}
	if req.GetBool("add_to_hub", false) {
		msg += fmt.Sprintf("\nRegistered in Knowledge Map of %s", req.GetString("hub_path", ""))
	}
	return mcp.NewToolResultText(msg), nil
}
