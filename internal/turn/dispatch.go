package turn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
	"github.com/nextlevelbuilder/agentrt/internal/toolmonitor"
	"github.com/nextlevelbuilder/agentrt/internal/tracing"
)

const (
	defaultToolTimeout       = 300 * time.Second
	defaultMaxConcurrentTool = 8
)

// toolOutcome is one tool call's result.
type toolOutcome struct {
	idx     int
	call    providers.ToolCall
	forLLM  string
	isError bool
}

// dispatchTools runs every approved call concurrently, bounded by
// maxConcurrentTools, consulting the ToolMonitor immediately before
// each dispatch and honoring a per-call timeout layered onto ctx.
// Results come back in completion order, not request order: the
// conversation records tool responses as they actually arrive.
func (e *Engine) dispatchTools(ctx context.Context, approved []providers.ToolCall, monitor *toolmonitor.Monitor, sink EventSink) []toolOutcome {
	maxConcurrent := e.maxConcurrentTools
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTool
	}

	sem := make(chan struct{}, maxConcurrent)
	done := make(chan toolOutcome, len(approved))
	var wg sync.WaitGroup

	for i, tc := range approved {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, tc providers.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			done <- e.dispatchOne(ctx, idx, tc, monitor, sink)
		}(i, tc)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	results := make([]toolOutcome, 0, len(approved))
	for o := range done {
		results = append(results, o)
	}
	return results
}

func (e *Engine) dispatchOne(ctx context.Context, idx int, tc providers.ToolCall, monitor *toolmonitor.Monitor, sink EventSink) toolOutcome {
	sink.emit(Event{Type: EventToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments})

	req := toolmonitor.CallToolRequest{Name: tc.Name, Arguments: tc.Arguments}
	if !monitor.CheckToolCall(req) {
		out := toolOutcome{idx: idx, call: tc, isError: true,
			forLLM: fmt.Sprintf("tool %q rejected: repeated the same call too many times in this turn", tc.Name)}
		sink.emit(Event{Type: EventRepetitionLimit, ToolCallID: tc.ID, ToolName: tc.Name})
		sink.emit(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, ToolForLLM: out.forLLM, ToolIsError: true})
		return out
	}

	t, ok := e.registry.Get(tc.Name)
	if !ok {
		out := toolOutcome{idx: idx, call: tc, isError: true,
			forLLM: fmt.Sprintf("tool %q is not registered", tc.Name)}
		sink.emit(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, ToolForLLM: out.forLLM, ToolIsError: true})
		return out
	}

	if e.validator != nil {
		if err := e.validator.Validate(t, tc.Arguments); err != nil {
			out := toolOutcome{idx: idx, call: tc, isError: true, forLLM: err.Error()}
			sink.emit(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, ToolForLLM: out.forLLM, ToolIsError: true})
			return out
		}
	}

	timeout := defaultToolTimeout
	if e.toolTimeout != nil {
		if d := e.toolTimeout(tc.Name); d > 0 {
			timeout = d
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spanCtx, span := e.traceCollector.ToolSpan(callCtx, tc.Name, tc.ID)

	result, err := t.Execute(spanCtx, tc.Arguments)
	if err != nil {
		result = tool.ErrorResult(err.Error()).WithError(err)
	}
	e.traceCollector.EndToolSpan(span, fmt.Sprint(tc.Arguments), result)

	return toolOutcome{idx: idx, call: tc, forLLM: result.ForLLM, isError: result.IsError}
}
