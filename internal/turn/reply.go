package turn

import (
	"fmt"
	"time"

	"context"

	"github.com/nextlevelbuilder/agentrt/internal/contextmgr"
	"github.com/nextlevelbuilder/agentrt/internal/conversation"
	"github.com/nextlevelbuilder/agentrt/internal/inspect"
	"github.com/nextlevelbuilder/agentrt/internal/permission"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/toolmonitor"
)

// ReplyOptions configures one turn. SystemPrompt is rebuilt by the
// caller every turn (persona, workspace, tool list) and is never
// persisted to the session; only user/assistant/tool messages are.
type ReplyOptions struct {
	Model             string
	SystemPrompt      string
	ExtraSystemPrompt string
	Todos             []contextmgr.TodoItem
	IsSubagent        bool
	RouterQuery       string // defaults to the user message when empty
}

// Result is what a completed (or cancelled) turn returns.
type Result struct {
	Content  string
	Turns    int
	Usage    providers.Usage
	Cancelled bool
}

// Reply runs the TurnEngine algorithm for one user message against
// sessionID's conversation: pre-flight budget + MOIM, provider call,
// tool inspection and approval, bounded concurrent dispatch, repeating
// until the model stops requesting tools or the turn budget runs out.
func (e *Engine) Reply(ctx context.Context, sessionID, userMessage string, opts ReplyOptions, sink EventSink, approve Approver) (res *Result, err error) {
	conv, err := e.loadConversation(sessionID)
	if err != nil {
		sink.emit(Event{Type: EventError, Err: err})
		return nil, err
	}

	conv = conv.Append(providers.Message{Role: "user", Content: userMessage})
	e.persist(sessionID, []providers.Message{{Role: "user", Content: userMessage}})

	model := opts.Model
	if model == "" {
		model = e.provider.DefaultModel()
	}
	if e.traceCollector != nil {
		turnCtx, agentSpan := e.traceCollector.AgentSpan(ctx, "turn", e.provider.Name(), model)
		ctx = turnCtx
		defer func() {
			content := ""
			if res != nil {
				content = res.Content
			}
			e.traceCollector.EndAgentSpan(agentSpan, content, err)
		}()
	}
	window := e.contextWindow(model)
	target := contextmgr.EstimateTargetContextLimit(window)

	conv, err = e.preflight(ctx, conv, model, target, sink)
	if err != nil {
		return nil, err
	}
	if contextmgr.MOIMEnabledFromEnv() {
		conv = contextmgr.InjectMOIM(conv, contextmgr.MOIMOptions{Now: time.Now().UTC(), Todos: opts.Todos})
	}

	monitor := toolmonitor.New(e.maxRepetitions)
	routerQuery := opts.RouterQuery
	if routerQuery == "" {
		routerQuery = userMessage
	}

	var totalUsage providers.Usage
	turnCounter := 0

	for {
		turnCounter++
		if turnCounter > e.maxTurns {
			conv = conv.Append(providers.Message{Role: "assistant", Content: "[Turn limit exceeded: stopping after " + fmt.Sprint(e.maxTurns) + " turns]"})
			e.persist(sessionID, conv[len(conv)-1:])
			sink.emit(Event{Type: EventDone, Turn: turnCounter - 1})
			return &Result{Content: conv[len(conv)-1].Content, Turns: turnCounter - 1, Usage: totalUsage}, nil
		}

		allowed := e.policy.Allowed(e.registry.Names(), opts.IsSubagent)
		if e.selector != nil && e.routerTopK > 0 {
			allowed = e.narrowByRouter(ctx, allowed, routerQuery)
		}
		toolDefs := e.toolDefinitions(allowed)

		messages := e.withSystemPrompt(conv, opts.SystemPrompt, opts.ExtraSystemPrompt)
		resp, err := e.callProvider(ctx, messages, toolDefs, model, turnCounter, sink)
		if err != nil && isContextLengthExceeded(err) {
			summarized, serr := contextmgr.Summarize(ctx, e.provider, model, conv, contextmgr.DefaultSummarizeKeepLast)
			if serr == nil {
				sink.emit(Event{Type: EventSummarizing, Turn: turnCounter})
				conv = summarized
				resp, err = e.callProvider(ctx, e.withSystemPrompt(conv, opts.SystemPrompt, opts.ExtraSystemPrompt), toolDefs, model, turnCounter, sink)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				sink.emit(Event{Type: EventCancelled, Turn: turnCounter})
				return &Result{Turns: turnCounter - 1, Usage: totalUsage, Cancelled: true}, nil
			}
			sink.emit(Event{Type: EventError, Err: err, Turn: turnCounter})
			return nil, err
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
		}
		if resp.Thinking != "" {
			sink.emit(Event{Type: EventThinking, Content: resp.Thinking, Turn: turnCounter})
		}

		// Step 3: classify output.
		if len(resp.ToolCalls) == 0 {
			sink.emit(Event{Type: EventText, Content: resp.Content, Turn: turnCounter})
			assistantMsg := providers.Message{Role: "assistant", Content: resp.Content, RawAssistantContent: resp.RawAssistantContent}
			conv = conv.Append(assistantMsg)
			e.persist(sessionID, []providers.Message{assistantMsg})
			sink.emit(Event{Type: EventDone, Turn: turnCounter})
			return &Result{Content: resp.Content, Turns: turnCounter, Usage: totalUsage}, nil
		}

		assistantMsg := providers.Message{
			Role:                "assistant",
			Content:             resp.Content,
			ToolCalls:           resp.ToolCalls,
			RawAssistantContent: resp.RawAssistantContent,
		}
		conv = conv.Append(assistantMsg)
		e.persist(sessionID, []providers.Message{assistantMsg})

		toolMessages, cancelled, err := e.resolveAndDispatch(ctx, resp.ToolCalls, monitor, sink, approve)
		if err != nil {
			sink.emit(Event{Type: EventError, Err: err, Turn: turnCounter})
			return nil, err
		}
		if cancelled {
			sink.emit(Event{Type: EventCancelled, Turn: turnCounter})
			return &Result{Turns: turnCounter, Usage: totalUsage, Cancelled: true}, nil
		}

		conv = append(conv, toolMessages...)
		e.persist(sessionID, toolMessages)

		// Dispatch itself may have run to completion under a context
		// that was cancelled partway through: dispatchOne still returns
		// an error-tagged ToolResponse for each in-flight call rather
		// than dropping it, so the transcript above is complete. Stop
		// here instead of making another provider call once the token
		// has fired.
		if ctx.Err() != nil {
			sink.emit(Event{Type: EventCancelled, Turn: turnCounter})
			return &Result{Turns: turnCounter, Usage: totalUsage, Cancelled: true}, nil
		}
	}
}

func (e *Engine) loadConversation(sessionID string) (conversation.Conversation, error) {
	if e.sessions == nil || sessionID == "" {
		return conversation.New(), nil
	}
	msgs, err := e.sessions.ReadMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("turn: load session %s: %w", sessionID, err)
	}
	return conversation.FromMessages(msgs), nil
}

func (e *Engine) persist(sessionID string, msgs []providers.Message) {
	if e.sessions == nil || sessionID == "" || len(msgs) == 0 {
		return
	}
	_ = e.sessions.PersistMessagesBackground(sessionID, msgs)
}

func (e *Engine) preflight(ctx context.Context, conv conversation.Conversation, model string, target int, sink EventSink) (conversation.Conversation, error) {
	if contextmgr.EstimateConversationTokens(conv) <= target {
		return conv, nil
	}

	if e.provider != nil {
		summarized, err := contextmgr.Summarize(ctx, e.provider, model, conv, contextmgr.DefaultSummarizeKeepLast)
		if err == nil {
			sink.emit(Event{Type: EventSummarizing})
			conv = summarized
		}
	}
	if contextmgr.EstimateConversationTokens(conv) > target {
		conv, _ = contextmgr.Truncate(conv, target)
	}
	return conv, nil
}

func (e *Engine) withSystemPrompt(conv conversation.Conversation, systemPrompt, extra string) []providers.Message {
	prompt := systemPrompt
	if extra != "" {
		if prompt != "" {
			prompt += "\n\n" + extra
		} else {
			prompt = extra
		}
	}
	if prompt == "" {
		return conv
	}
	out := make([]providers.Message, 0, len(conv)+1)
	out = append(out, providers.Message{Role: "system", Content: prompt})
	out = append(out, conv...)
	return out
}

func (e *Engine) toolDefinitions(allowedNames []string) []providers.ToolDefinition {
	defs := make([]providers.ToolDefinition, 0, len(allowedNames))
	for _, name := range allowedNames {
		t, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

func (e *Engine) narrowByRouter(ctx context.Context, allowed []string, query string) []string {
	selected, err := e.selector.SelectTools(ctx, query, e.routerTopK)
	if err != nil || len(selected) == 0 {
		return allowed
	}
	selectedSet := make(map[string]bool, len(selected))
	for _, n := range selected {
		selectedSet[n] = true
	}
	out := make([]string, 0, len(allowed))
	for _, n := range allowed {
		if selectedSet[n] {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return allowed
	}
	return out
}

func (e *Engine) callProvider(ctx context.Context, messages []providers.Message, toolDefs []providers.ToolDefinition, model string, turn int, sink EventSink) (*providers.ChatResponse, error) {
	req := providers.ChatRequest{Messages: messages, Tools: toolDefs, Model: model}

	spanCtx, span := e.traceCollector.LLMSpan(ctx, e.provider.Name(), model, turn)
	resp, err := e.provider.Chat(spanCtx, req)
	e.traceCollector.EndLLMSpan(span, messages, resp, err)
	return resp, err
}

// resolveAndDispatch runs steps 4-7 of the algorithm: inspection,
// approval, bounded dispatch, and conversion of outcomes into
// tool-role messages: denials first in call order, then dispatched
// calls in completion order.
func (e *Engine) resolveAndDispatch(ctx context.Context, calls []providers.ToolCall, monitor *toolmonitor.Monitor, sink EventSink, approve Approver) ([]providers.Message, bool, error) {
	requests := make([]inspect.ToolRequest, len(calls))
	byID := make(map[string]providers.ToolCall, len(calls))
	for i, tc := range calls {
		requests[i] = inspect.ToolRequest{ID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments}
		byID[tc.ID] = tc
	}

	var decisions map[string]inspect.Decision
	if e.pipeline == nil {
		decisions = make(map[string]inspect.Decision, len(requests))
		for _, r := range requests {
			decisions[r.ID] = inspect.DecisionRequireApproval
		}
	} else {
		var err error
		decisions, _, err = e.pipeline.Run(ctx, requests)
		if err != nil {
			return nil, false, fmt.Errorf("turn: inspection: %w", err)
		}
	}

	var approved, needsApproval []providers.ToolCall
	denied := make(map[string]bool)
	for _, tc := range calls {
		switch decisions[tc.ID] {
		case inspect.DecisionAllow:
			approved = append(approved, tc)
		case inspect.DecisionDeny:
			denied[tc.ID] = true
		default:
			needsApproval = append(needsApproval, tc)
		}
	}

	if len(needsApproval) > 0 {
		if approve == nil {
			for _, tc := range needsApproval {
				denied[tc.ID] = true
			}
		} else {
			reqs := make([]ApprovalRequest, len(needsApproval))
			for i, tc := range needsApproval {
				reqs[i] = ApprovalRequest{RequestID: tc.ID, ToolName: tc.Name, Arguments: tc.Arguments}
			}
			perms, err := approve(ctx, reqs)
			if err != nil {
				return nil, false, fmt.Errorf("turn: approval: %w", err)
			}
			for _, tc := range needsApproval {
				switch perms[tc.ID] {
				case permission.PermissionAlwaysAllow:
					if e.permissions != nil {
						_ = e.permissions.Record(tc.Name, tc.Arguments, true, 0)
					}
					approved = append(approved, tc)
				case permission.PermissionAllowOnce:
					approved = append(approved, tc)
				case permission.PermissionCancel:
					return nil, true, nil
				default: // DenyOnce or unset
					denied[tc.ID] = true
				}
			}
		}
	}

	// Denials are resolved synchronously above (no concurrent dispatch),
	// so emit them in call order for a deterministic transcript. Approved
	// calls are appended after, in whatever order dispatchTools reports
	// them completing — per spec, tool responses land in arrival order,
	// not request order.
	var messages []providers.Message
	for _, tc := range calls {
		if !denied[tc.ID] {
			continue
		}
		sink.emit(Event{Type: EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, ToolForLLM: "denied by operator", ToolIsError: true})
		messages = append(messages, providers.Message{Role: "tool", Content: "denied by operator", ToolCallID: tc.ID})
	}

	if len(approved) > 0 {
		outcomes := e.dispatchTools(ctx, approved, monitor, sink)
		for _, o := range outcomes {
			messages = append(messages, providers.Message{Role: "tool", Content: o.forLLM, ToolCallID: o.call.ID})
		}
	}

	return messages, false, nil
}
