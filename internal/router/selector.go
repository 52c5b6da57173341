// Package router implements optional LLM-side tool retrieval: instead of
// handing every registered tool's schema to the provider on every turn,
// a selector narrows the catalog to the tools most relevant to the
// current request by similarity search over an in-memory index.
package router

import (
	"context"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// ToolSelector indexes tool schemas and retrieves the most relevant
// subset for a query. Entirely optional: a TurnEngine with no selector
// configured just sends every allowed tool's schema, as before.
type ToolSelector interface {
	// IndexTools (re)indexes every tool under extensionName, replacing
	// whatever was previously indexed for it.
	IndexTools(ctx context.Context, tools []providers.ToolDefinition, extensionName string) error

	// RemoveTool drops one tool from the index by name.
	RemoveTool(ctx context.Context, name string) error

	// RemoveExtension drops every tool indexed under extensionName,
	// used when an MCP server disconnects.
	RemoveExtension(ctx context.Context, extensionName string) error

	// SelectTools returns up to k tool names ranked by relevance to query.
	SelectTools(ctx context.Context, query string, k int) ([]string, error)
}
