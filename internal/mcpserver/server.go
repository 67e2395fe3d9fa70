// Package mcpserver exposes the loaded manifest to MCP clients over stdio.
// Every tool is read-only; nothing here talks to a language model.
package mcpserver

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dbtai-dev/dbtai/internal/manifest"
)

const Name = "dbtai"

const instructions = `dbtai serves the compiled dbt manifest of the current project.
Use describe_model and upstream_context before editing a model, model_columns
for its documented columns, model_location to find its SQL and YAML files,
model_lineage to see what a change affects, and search_models when the model
name is not known.`

// New registers the manifest tools on a fresh server.
func New(compiler *manifest.Compiler, version string) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	describeTool := NewDescribeTool(compiler)
	s.AddTool(describeTool.Definition(), describeTool.Handle)

	upstreamTool := NewUpstreamTool(compiler)
	s.AddTool(upstreamTool.Definition(), upstreamTool.Handle)

	locationTool := NewLocationTool(compiler.Document())
	s.AddTool(locationTool.Definition(), locationTool.Handle)

	columnsTool := NewColumnsTool(compiler.Document())
	s.AddTool(columnsTool.Definition(), columnsTool.Handle)

	lineageTool := NewLineageTool(compiler.Document())
	s.AddTool(lineageTool.Definition(), lineageTool.Handle)

	searchTool := NewSearchTool(compiler.Document())
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	return s
}

// Serve blocks until in is closed or ctx is canceled.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}
