package subagent

import (
	"context"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input back" }
func (echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
	}
}
func (echoTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	text, _ := args["text"].(string)
	return tool.NewResult("echo: " + text), nil
}

func TestExecutorCompletesWithoutToolCalls(t *testing.T) {
	fake := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "all done", FinishReason: "stop"})
	reg := tool.NewRegistry()
	exec := NewExecutor(reg, tool.Policy{Profile: tool.ProfileFull}, fake, nil)

	task := NewTask("t1", "main", "test task", "say hi", 1)
	exec.Run(context.Background(), task)

	if task.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status())
	}
	if task.Result() != "all done" {
		t.Fatalf("result = %q", task.Result())
	}
}

func TestExecutorRunsToolCallThenCompletes(t *testing.T) {
	fake := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls:    []providers.ToolCall{{ID: "call1", Name: "echo", Arguments: map[string]interface{}{"text": "hello"}}},
			FinishReason: "tool_calls",
		},
		&providers.ChatResponse{Content: "finished", FinishReason: "stop"},
	)
	reg := tool.NewRegistry()
	reg.Register(echoTool{})
	exec := NewExecutor(reg, tool.Policy{Profile: tool.ProfileFull}, fake, nil)

	task := NewTask("t2", "main", "test task", "echo hello", 1)
	exec.Run(context.Background(), task)

	if task.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status())
	}
	if task.Result() != "finished" {
		t.Fatalf("result = %q", task.Result())
	}

	// The tool result should have been fed back as a tool message.
	lastReq := fake.Requests[len(fake.Requests)-1]
	found := false
	for _, m := range lastReq.Messages {
		if m.Role == "tool" && strings.Contains(m.Content, "echo: hello") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tool result message in second request, got %+v", lastReq.Messages)
	}
}

func TestExecutorExcludesSpawnSubagentTool(t *testing.T) {
	fake := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "ok", FinishReason: "stop"})
	reg := tool.NewRegistry()
	reg.Register(echoTool{})
	reg.Register(stubTool{name: "spawn_subagent"})
	exec := NewExecutor(reg, tool.Policy{Profile: tool.ProfileFull}, fake, nil)

	task := NewTask("t3", "main", "test task", "do something", 1)
	exec.Run(context.Background(), task)

	req := fake.Requests[0]
	for _, def := range req.Tools {
		if def.Function.Name == "spawn_subagent" {
			t.Fatalf("spawn_subagent tool must not be exposed to a subagent")
		}
	}
}

type stubTool struct{ name string }

func (s stubTool) Name() string                                    { return s.name }
func (s stubTool) Description() string                             { return "stub" }
func (s stubTool) Parameters() map[string]interface{}               { return map[string]interface{}{"type": "object"} }
func (s stubTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	return tool.NewResult(""), nil
}
