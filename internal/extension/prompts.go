package extension

import (
	"context"
	"fmt"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

// PromptInfo describes one prompt advertised by a connected MCP server,
// aggregated and namespaced the same way bridged tools are.
type PromptInfo struct {
	ServerName  string
	Name        string // namespaced "<server>__<prompt>"
	Description string
	Arguments   []mcpgo.PromptArgument
}

// GetPrompts aggregates every prompt advertised by every connected
// server into a single namespaced map.
func (m *Manager) GetPrompts() map[string]PromptInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]PromptInfo)
	for serverName, ss := range m.servers {
		for _, p := range ss.prompts {
			namespaced := serverName + "__" + p.Name
			out[namespaced] = PromptInfo{
				ServerName:  serverName,
				Name:        namespaced,
				Description: p.Description,
				Arguments:   p.Arguments,
			}
		}
	}
	return out
}

// GetPrompt fetches one prompt's rendered messages (MCP's prompts/get)
// from the server that owns it, given its namespaced name.
func (m *Manager) GetPrompt(ctx context.Context, namespaced string, args map[string]string) (*mcpgo.GetPromptResult, error) {
	serverName, origName, ok := strings.Cut(namespaced, "__")
	if !ok {
		return nil, fmt.Errorf("extension: malformed prompt name %q, want <server>__<prompt>", namespaced)
	}

	m.mu.RLock()
	ss, exists := m.servers[serverName]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("extension: no connected server %q for prompt %q", serverName, namespaced)
	}

	req := mcpgo.GetPromptRequest{}
	req.Params.Name = origName
	req.Params.Arguments = args
	return ss.client.GetPrompt(ctx, req)
}
