// Package tool defines the callable-tool contract shared by built-in
// tools and MCP-bridged extension tools, plus the registry and policy
// groups the turn engine consults when deciding what the model may
// call on a given run.
package tool

import (
	"context"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// Result is the unified return type from tool execution. ForLLM is
// folded back into the conversation as the tool-role message content;
// ForUser, when non-empty, is what a CLI/UI surfaces to the operator
// instead of (or alongside) the raw LLM-facing text.
type Result struct {
	ForLLM  string
	ForUser string
	Silent  bool
	IsError bool

	Usage    *providers.Usage
	Provider string
	Model    string

	Err error
}

func NewResult(forLLM string) *Result       { return &Result{ForLLM: forLLM} }
func SilentResult(forLLM string) *Result    { return &Result{ForLLM: forLLM, Silent: true} }
func ErrorResult(message string) *Result    { return &Result{ForLLM: message, IsError: true} }
func UserResult(content string) *Result     { return &Result{ForLLM: content, ForUser: content} }

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}

// Tool is anything the model can invoke: a built-in (filesystem, shell)
// or a BridgeTool backed by an MCP server.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Definition converts a Tool into the wire schema a provider expects.
func Definition(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
