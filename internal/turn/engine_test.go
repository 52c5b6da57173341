package turn

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/inspect"
	"github.com/nextlevelbuilder/agentrt/internal/permission"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

type echoTool struct{}

func (echoTool) Name() string                       { return "echo" }
func (echoTool) Description() string                 { return "echoes a fixed reply" }
func (echoTool) Parameters() map[string]interface{} { return nil }
func (echoTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	return tool.NewResult("echo: ok"), nil
}

func newTestEngine(t *testing.T, provider providers.Provider, pipeline *inspect.Pipeline) *Engine {
	t.Helper()
	registry := tool.NewRegistry()
	registry.Register(echoTool{})
	return NewEngine(Config{
		Provider: provider,
		Registry: registry,
		Policy:   tool.Policy{},
		Pipeline: pipeline,
	})
}

func TestReplyCompletesWithoutToolCalls(t *testing.T) {
	p := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "hello there", FinishReason: "stop"})
	e := newTestEngine(t, p, nil)

	res, err := e.Reply(context.Background(), "", "hi", ReplyOptions{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "hello there" {
		t.Fatalf("got %q", res.Content)
	}
	if res.Turns != 1 {
		t.Fatalf("expected 1 turn, got %d", res.Turns)
	}
}

func TestReplyDispatchesAllowedToolThenCompletes(t *testing.T) {
	p := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls:    []providers.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}},
			FinishReason: "tool_calls",
		},
		&providers.ChatResponse{Content: "finished", FinishReason: "stop"},
	)

	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Record("echo", map[string]interface{}{}, true, 0); err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store))

	e := newTestEngine(t, p, pipeline)

	var events []Event
	sink := EventSink(func(ev Event) { events = append(events, ev) })

	res, err := e.Reply(context.Background(), "", "run echo", ReplyOptions{}, sink, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "finished" {
		t.Fatalf("got %q", res.Content)
	}
	if res.Turns != 2 {
		t.Fatalf("expected 2 turns, got %d", res.Turns)
	}

	if len(p.Requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(p.Requests))
	}
	second := p.Requests[1]
	var sawToolResult bool
	for _, m := range second.Messages {
		if m.Role == "tool" && m.Content == "echo: ok" {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("expected second request to include echo's tool result, got %+v", second.Messages)
	}

	var sawToolCallEvent, sawToolResultEvent bool
	for _, ev := range events {
		if ev.Type == EventToolCall && ev.ToolName == "echo" {
			sawToolCallEvent = true
		}
		if ev.Type == EventToolResult && ev.ToolName == "echo" && !ev.ToolIsError {
			sawToolResultEvent = true
		}
	}
	if !sawToolCallEvent || !sawToolResultEvent {
		t.Fatalf("expected tool_call and tool_result events, got %+v", events)
	}
}

func TestReplyDeniesUnapprovedToolsWithNilApprover(t *testing.T) {
	p := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls:    []providers.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}},
			FinishReason: "tool_calls",
		},
		&providers.ChatResponse{Content: "done after denial", FinishReason: "stop"},
	)

	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store))
	e := newTestEngine(t, p, pipeline)

	res, err := e.Reply(context.Background(), "", "run echo", ReplyOptions{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "done after denial" {
		t.Fatalf("got %q", res.Content)
	}

	second := p.Requests[1]
	var sawDenied bool
	for _, m := range second.Messages {
		if m.Role == "tool" && m.Content == "denied by operator" {
			sawDenied = true
		}
	}
	if !sawDenied {
		t.Fatalf("expected denied tool response in second request, got %+v", second.Messages)
	}
}

func TestReplyCancelApprovalAbortsTurn(t *testing.T) {
	p := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls:    []providers.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}},
			FinishReason: "tool_calls",
		},
	)
	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store))
	e := newTestEngine(t, p, pipeline)

	approve := Approver(func(ctx context.Context, reqs []ApprovalRequest) (map[string]permission.Permission, error) {
		out := make(map[string]permission.Permission, len(reqs))
		for _, r := range reqs {
			out[r.RequestID] = permission.PermissionCancel
		}
		return out, nil
	})

	res, err := e.Reply(context.Background(), "", "run echo", ReplyOptions{}, nil, approve)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled {
		t.Fatal("expected cancelled result")
	}
	if len(p.Requests) != 1 {
		t.Fatalf("expected provider called exactly once before cancellation, got %d", len(p.Requests))
	}
}

// cancelAwareTool blocks until its context is done and reports the
// context error, simulating a tool dispatch caught mid-flight by a
// cancellation token (Scenario S6).
type cancelAwareTool struct{}

func (cancelAwareTool) Name() string                       { return "slow" }
func (cancelAwareTool) Description() string                { return "blocks until cancelled" }
func (cancelAwareTool) Parameters() map[string]interface{} { return nil }
func (cancelAwareTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestReplyStopsAfterCancellationDuringDispatch(t *testing.T) {
	p := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls: []providers.ToolCall{
				{ID: "1", Name: "slow", Arguments: map[string]interface{}{}},
				{ID: "2", Name: "slow", Arguments: map[string]interface{}{}},
			},
			FinishReason: "tool_calls",
		},
		&providers.ChatResponse{Content: "should never be reached", FinishReason: "stop"},
	)

	registry := tool.NewRegistry()
	registry.Register(cancelAwareTool{})
	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store, inspect.WithAutoApprove()))
	e := NewEngine(Config{Provider: p, Registry: registry, Policy: tool.Policy{}, Pipeline: pipeline})

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already fired: both dispatches see it the instant they start

	var events []Event
	sink := EventSink(func(ev Event) { events = append(events, ev) })

	res, err := e.Reply(ctx, "", "run slow twice", ReplyOptions{}, sink, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled {
		t.Fatal("expected cancelled result")
	}
	if len(p.Requests) != 1 {
		t.Fatalf("expected no further provider call once cancelled, got %d calls", len(p.Requests))
	}

	var errorTags int
	for _, ev := range events {
		if ev.Type == EventToolResult && ev.ToolIsError {
			errorTags++
		}
	}
	if errorTags != 2 {
		t.Fatalf("expected both in-flight dispatches to produce an error-tagged response, got %d", errorTags)
	}
}

// delayTool finishes after its own configurable delay, letting a test
// force two concurrent dispatches to complete out of request order.
type delayTool struct{}

func (delayTool) Name() string                       { return "delay" }
func (delayTool) Description() string                { return "sleeps then returns its label" }
func (delayTool) Parameters() map[string]interface{} { return nil }
func (delayTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	ms, _ := args["delay_ms"].(float64)
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	label, _ := args["label"].(string)
	return tool.NewResult("done:" + label), nil
}

func TestReplyAppendsToolResponsesInCompletionOrder(t *testing.T) {
	p := providers.NewFakeProvider("fake",
		&providers.ChatResponse{
			ToolCalls: []providers.ToolCall{
				{ID: "slow-call", Name: "delay", Arguments: map[string]interface{}{"delay_ms": float64(40), "label": "slow"}},
				{ID: "fast-call", Name: "delay", Arguments: map[string]interface{}{"delay_ms": float64(2), "label": "fast"}},
			},
			FinishReason: "tool_calls",
		},
		&providers.ChatResponse{Content: "done", FinishReason: "stop"},
	)

	registry := tool.NewRegistry()
	registry.Register(delayTool{})
	store, err := permission.NewStore(filepath.Join(t.TempDir(), "perm.json"))
	if err != nil {
		t.Fatal(err)
	}
	pipeline := inspect.NewPipeline(inspect.NewPermissionInspector(store, inspect.WithAutoApprove()))
	e := NewEngine(Config{Provider: p, Registry: registry, Policy: tool.Policy{}, Pipeline: pipeline})

	res, err := e.Reply(context.Background(), "", "run two delays", ReplyOptions{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "done" {
		t.Fatalf("got %q", res.Content)
	}

	second := p.Requests[1]
	var order []string
	for _, m := range second.Messages {
		if m.Role == "tool" {
			order = append(order, m.Content)
		}
	}
	if len(order) != 2 || order[0] != "done:fast" || order[1] != "done:slow" {
		t.Fatalf("expected tool responses in completion order [done:fast done:slow], got %v", order)
	}
}
