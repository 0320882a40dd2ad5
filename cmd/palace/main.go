// Palace: Vault Maintenance MCP Server
//
// An MCP server that keeps hierarchical markdown vaults (Obsidian and
// compatible) healthy: it analyzes oversized documents, splits them into
// hub/child structures, maintains Knowledge Map navigation, and detects
// and repairs structural drift.
//
// Usage:
//
//	palace serve [vault-dir]   # Start MCP server (stdio transport)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	palaceserver "github.com/Probably-Computers/obsidian-palace-mcp/internal/server"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		root := ""
		if len(os.Args) > 2 {
			root = os.Args[2]
		}
		if err := run(root); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("palace v%s\n", palaceserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(vaultRoot string) error {
	s, cleanup, err := palaceserver.New(vaultRoot)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Println(`Palace - Vault Maintenance MCP Server

Usage:
  palace serve [vault-dir]   Start the MCP server (stdio transport)
  palace version             Show version
  palace help                Show this help

The vault directory is resolved from the argument, the PALACE_VAULT
environment variable, or the nearest ancestor directory containing a
.palace/ marker.

Configuration for Claude Code / Claude Desktop:
  {
    "mcpServers": {
      "palace": {
        "command": "/path/to/palace",
        "args": ["serve", "/path/to/vault"]
      }
    }
  }`)
}
