package subagent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

// Executor runs one subagent task to completion: a bounded LLM/tool loop
// sharing the host's tool registry, scoped by a deny-list policy so a
// subagent can't spawn further subagents.
type Executor struct {
	registry *tool.Registry
	policy   tool.Policy

	fallbackProvider providers.Provider
	resolveProvider  func(providerName, model string) (providers.Provider, error)
}

func NewExecutor(registry *tool.Registry, policy tool.Policy, fallbackProvider providers.Provider, resolveProvider func(providerName, model string) (providers.Provider, error)) *Executor {
	return &Executor{
		registry:         registry,
		policy:           policy,
		fallbackProvider: fallbackProvider,
		resolveProvider:  resolveProvider,
	}
}

// Run drives task's LLM/tool loop until the model stops requesting tools
// or MaxTurns is reached, recording the outcome on task when it returns.
// If task.Timeout is set, Run enforces it independently of ctx so one
// slow task in a Parallel batch can't starve its siblings' deadlines.
func (e *Executor) Run(ctx context.Context, task *Task) {
	task.setOutcome(StatusRunning, "")

	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		status, reason := classifyCancellation(err)
		task.setOutcome(status, reason+" before execution")
		return
	}

	cfg := NewTaskConfig(e.fallbackProvider, e.resolveProvider)
	provider := cfg.Provider
	if provider == nil {
		task.setOutcome(StatusFailed, "no provider available for subagent execution")
		return
	}

	model := provider.DefaultModel()
	if task.Model != "" {
		model = task.Model
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	allowedNames := applyExtensionFilter(e.policy.Allowed(e.registry.Names(), true), task.ExtensionFilter)
	defs := make([]providers.ToolDefinition, 0, len(allowedNames))
	for _, name := range allowedNames {
		if t, ok := e.registry.Get(name); ok {
			defs = append(defs, tool.Definition(t))
		}
	}

	messages := []providers.Message{
		{Role: "system", Content: buildSystemPrompt(task)},
		{Role: "user", Content: task.Prompt},
	}

	var finalContent, lastPartial string
	turn := 0

	for turn < maxTurns {
		turn++

		if err := ctx.Err(); err != nil {
			status, reason := classifyCancellation(err)
			task.setPartial(lastPartial)
			task.setOutcome(status, reason+" during execution")
			return
		}

		resp, err := provider.Chat(ctx, providers.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    model,
			Options: map[string]interface{}{
				providers.OptMaxTokens:   4096,
				providers.OptTemperature: 0.5,
			},
		})
		if err != nil {
			slog.Warn("subagent.chat_error", "task", task.ID, "turn", turn, "error", err)
			task.setPartial(lastPartial)
			if cerr := ctx.Err(); cerr != nil {
				status, reason := classifyCancellation(cerr)
				task.setOutcome(status, reason+": "+err.Error())
				return
			}
			task.setOutcome(StatusFailed, "provider error: "+err.Error())
			return
		}

		if resp.Content != "" {
			lastPartial = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			messages = append(messages, e.runOne(ctx, task, tc))
		}
	}

	if finalContent == "" {
		finalContent = "Task completed but no final response was generated."
	}
	task.CompletedAt = time.Now()
	task.setOutcome(StatusCompleted, finalContent)
	slog.Info("subagent.completed", "task", task.ID, "turns", turn)
}

// classifyCancellation distinguishes a task's own deadline expiring from
// an outer cancellation (parent turn cancelled, process shutting down).
func classifyCancellation(err error) (Status, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimedOut, "timed out"
	}
	return StatusCancelled, "cancelled"
}

// applyExtensionFilter narrows names per filter, preserving order.
func applyExtensionFilter(names []string, filter *ExtensionFilter) []string {
	if filter == nil || filter.Mode == FilterNone || filter.Mode == "" {
		return names
	}
	set := toNameSet(filter.Names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		switch filter.Mode {
		case FilterInclude:
			if set[n] {
				out = append(out, n)
			}
		case FilterExclude:
			if !set[n] {
				out = append(out, n)
			}
		default:
			out = append(out, n)
		}
	}
	return out
}

func toNameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func (e *Executor) runOne(ctx context.Context, task *Task, tc providers.ToolCall) providers.Message {
	t, ok := e.registry.Get(tc.Name)
	if !ok {
		return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: "unknown tool: " + tc.Name}
	}

	slog.Debug("subagent.tool_call", "task", task.ID, "tool", tc.Name)
	result, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: "tool error: " + err.Error()}
	}
	return providers.Message{Role: "tool", ToolCallID: tc.ID, Content: result.ForLLM}
}
