package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

// BridgeTool exposes one tool discovered on an MCP server as a
// tool.Tool, translating calls through the server's mcp-go client.
type BridgeTool struct {
	serverName string
	origName   string
	desc       string
	schema     mcpgo.ToolInputSchema
	client     *mcpclient.Client
	timeoutSec int
	connected  *atomic.Bool
	limiter    *rate.Limiter
	name       string
}

func NewBridgeTool(serverName string, t mcpgo.Tool, client *mcpclient.Client, toolPrefix string, timeoutSec int, connected *atomic.Bool, limiter *rate.Limiter) *BridgeTool {
	prefix := toolPrefix
	if prefix == "" {
		prefix = serverName
	}
	return &BridgeTool{
		serverName: serverName,
		origName:   t.Name,
		desc:       t.Description,
		schema:     t.InputSchema,
		client:     client,
		timeoutSec: timeoutSec,
		connected:  connected,
		limiter:    limiter,
		name:       fmt.Sprintf("%s__%s", sanitize(prefix), sanitize(t.Name)),
	}
}

func (b *BridgeTool) Name() string { return b.name }

// OriginalName returns the tool's name as the MCP server knows it,
// before the "<extension>__" namespacing applied to Name().
func (b *BridgeTool) OriginalName() string { return b.origName }

func (b *BridgeTool) Description() string {
	desc := strings.TrimSpace(b.desc)
	if desc == "" {
		return fmt.Sprintf("MCP tool %s.%s", b.serverName, b.origName)
	}
	return fmt.Sprintf("MCP tool %s.%s: %s", b.serverName, b.origName, desc)
}

func (b *BridgeTool) Parameters() map[string]interface{} {
	props := b.schema.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	schemaType := b.schema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	out := map[string]interface{}{
		"type":       schemaType,
		"properties": props,
	}
	if len(b.schema.Required) > 0 {
		out["required"] = b.schema.Required
	}
	return out
}

func (b *BridgeTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	if b.connected != nil && !b.connected.Load() {
		return tool.ErrorResult(fmt.Sprintf("mcp server %q is not connected", b.serverName)), nil
	}

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return tool.ErrorResult(fmt.Sprintf("mcp call %s.%s: rate limit wait: %v", b.serverName, b.origName, err)), nil
		}
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.origName
	req.Params.Arguments = args

	result, err := b.client.CallTool(ctx, req)
	if err != nil {
		return tool.ErrorResult(fmt.Sprintf("mcp call %s.%s: %v", b.serverName, b.origName, err)), nil
	}

	text, isError := flattenCallToolResult(result)
	if isError {
		return &tool.Result{ForLLM: text, IsError: true}, nil
	}
	return tool.NewResult(text), nil
}

// flattenCallToolResult joins every text content block with newlines; if
// the result carries non-text content it falls back to a JSON dump so no
// information is silently dropped.
func flattenCallToolResult(result *mcpgo.CallToolResult) (string, bool) {
	if result == nil {
		return "", false
	}
	if len(result.Content) == 0 {
		return "", result.IsError
	}

	allText := true
	var combined strings.Builder
	for _, item := range result.Content {
		textContent, ok := item.(mcpgo.TextContent)
		if !ok {
			allText = false
			break
		}
		if textContent.Text == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(textContent.Text)
	}

	if allText && combined.Len() > 0 {
		return combined.String(), result.IsError
	}

	payload, err := json.Marshal(result.Content)
	if err != nil {
		return "", result.IsError
	}
	return string(payload), result.IsError
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	underscore := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		switch {
		case isAlnum:
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	clean := strings.Trim(b.String(), "_")
	if clean == "" {
		return "tool"
	}
	return strings.ToLower(clean)
}
