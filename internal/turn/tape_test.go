package turn

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/inspect"
	"github.com/nextlevelbuilder/agentrt/internal/permission"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/session"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

// TestReplyAgainstRecordedTape drives the engine from a Tape written to
// disk and reloaded, instead of a FakeProvider built in-process, proving
// the recorded-fixture replay path round-trips through JSON.
func TestReplyAgainstRecordedTape(t *testing.T) {
	tape := session.NewTape("fake-model")
	tape.Record(
		providers.ChatRequest{},
		providers.ChatResponse{
			ToolCalls:    []providers.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}},
			FinishReason: "tool_calls",
		},
	)
	tape.Record(
		providers.ChatRequest{},
		providers.ChatResponse{Content: "done", FinishReason: "stop"},
	)

	path := filepath.Join(t.TempDir(), "fixture.tape.json")
	if err := tape.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := session.LoadTape(path)
	if err != nil {
		t.Fatal(err)
	}

	p := session.NewTapeProvider("fake", loaded)

	registry := tool.NewRegistry()
	registry.Register(echoTool{})
	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store, inspect.WithAutoApprove()))
	e := NewEngine(Config{Provider: p, Registry: registry, Policy: tool.Policy{}, Pipeline: pipeline})

	res, err := e.Reply(context.Background(), "", "run echo", ReplyOptions{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "done" {
		t.Fatalf("got %q", res.Content)
	}
	if p.Remaining() != 0 {
		t.Fatalf("expected tape fully consumed, got %d turns remaining", p.Remaining())
	}
	if len(p.Requests()) != 2 {
		t.Fatalf("expected 2 recorded requests replayed, got %d", len(p.Requests()))
	}

	if _, err := p.Chat(context.Background(), providers.ChatRequest{}); err != session.ErrTapeExhausted {
		t.Fatalf("expected ErrTapeExhausted past the last turn, got %v", err)
	}
}
