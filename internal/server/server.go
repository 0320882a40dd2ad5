// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root (DIP): it creates the concrete
// collaborators (file store, SQLite index, operations log) and injects
// them into the engine and tools. No business logic lives here, only
// wiring.
package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Probably-Computers/obsidian-palace-mcp/internal/config"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/engine"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/index"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/oplog"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/tools"
	"github.com/Probably-Computers/obsidian-palace-mcp/internal/vault"
)

// Version is set at build time via ldflags.
var Version = "dev"

// VaultRootEnv names the environment variable that pins the vault root.
const VaultRootEnv = "PALACE_VAULT"

// New creates and configures the MCP server with all tools registered.
//
// The returned cleanup function closes the index database and must be
// called on shutdown (typically via defer). It is always non-nil.
func New(vaultRoot string) (*server.MCPServer, func(), error) {
	if vaultRoot == "" {
		var err error
		vaultRoot, err = FindVaultRoot()
		if err != nil {
			return nil, noop, err
		}
	}

	cfg, err := config.Load(vaultRoot)
	if err != nil {
		return nil, noop, fmt.Errorf("loading vault config: %w", err)
	}

	store := vault.NewFileStore(vaultRoot)

	idx, err := index.Open(vaultRoot, store)
	if err != nil {
		return nil, noop, fmt.Errorf("opening metadata index: %w", err)
	}
	cleanup := func() {
		if err := idx.Close(); err != nil {
			log.Printf("WARNING: index close: %v", err)
		}
	}

	// Catch up with edits made while the server was down. Failures are
	// non-fatal: individual reindex signals after each write keep the
	// index converging.
	if err := idx.RebuildAll(); err != nil {
		log.Printf("WARNING: index rebuild: %v", err)
	}

	eng, err := engine.New(store, idx, oplog.NewFileLog(vaultRoot), cfg)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating engine: %w", err)
	}

	s := server.NewMCPServer(
		"palace",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	analyzeTool := tools.NewAnalyzeTool(eng)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	splitTool := tools.NewSplitTool(eng)
	s.AddTool(splitTool.Definition(), splitTool.Handle)

	createHubTool := tools.NewCreateHubTool(eng)
	s.AddTool(createHubTool.Definition(), createHubTool.Handle)

	createNoteTool := tools.NewCreateNoteTool(eng)
	s.AddTool(createNoteTool.Definition(), createNoteTool.Handle)

	reconcileTool := tools.NewReconcileTool(eng)
	s.AddTool(reconcileTool.Definition(), reconcileTool.Handle)

	inspectTool := tools.NewInspectTool(eng)
	s.AddTool(inspectTool.Definition(), inspectTool.Handle)

	repairTool := tools.NewRepairTool(eng)
	s.AddTool(repairTool.Definition(), repairTool.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// FindVaultRoot resolves the vault directory: the PALACE_VAULT
// environment variable, else the nearest ancestor of the working
// directory containing a .palace/ directory, else the working directory
// itself.
func FindVaultRoot() (string, error) {
	if root := os.Getenv(VaultRootEnv); root != "" {
		return root, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, config.PalaceDir)); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}

// serverInstructions tells the AI how to use the palace tools together.
func serverInstructions() string {
	return `You have access to Palace, a vault maintenance MCP server for
hierarchical markdown knowledge bases.

## Document model

The vault is a directed forest. A HUB summarizes a topic and links to its
CHILD documents from a reserved "## Knowledge Map" section. A document's
role comes from its frontmatter type tag, never from its filename. Children
are named "{Hub Title} - {Section Title}.md".

## When to use which tool

- palace_analyze: before editing a large document, check whether it exceeds
  the vault's size thresholds and how a split would partition it.
- palace_split: when analyze recommends it, split the document into a hub
  plus children. ALWAYS run with dry_run=true first and show the user the
  planned files. Sections annotated with "<!-- palace:keep -->" (or
  "%%keep%%"), template/example sections, and configured hub sections stay
  in the hub.
- palace_create_hub / palace_create_note: create documents through these
  tools instead of writing files directly so the Knowledge Map and the
  metadata index stay consistent.
- palace_reconcile: after files were created or renamed outside the tools,
  heal the hub's Knowledge Map. It is idempotent; run it freely.
- palace_inspect: scan for structural drift. Categories:
  unprefixed_children, corrupted_headings, naming_inconsistencies,
  broken_wiki_links, code_block_links, orphaned_fragments.
- palace_repair: apply the mechanical fixes. Only the first four categories
  above are fixable; naming_inconsistencies and orphaned_fragments need
  your judgment (usually a reconcile or a manual move).

## Rules

- Never write hub or child files with generic file tools; use the palace
  tools so no content is lost and navigation stays intact.
- Preview (dry_run=true) before any mutating call when the user has not
  explicitly confirmed.
- After repairs that rename files, mention the renames to the user: other
  documents may reference the old names.`
}
