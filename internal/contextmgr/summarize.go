package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/agentrt/internal/conversation"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// DefaultSummarizeKeepLast is how many of the most recent messages
// Summarize preserves verbatim, never folding them into the summary.
const DefaultSummarizeKeepLast = 6

// Summarize asks provider to compress everything in conv except the
// last keepLast messages into one system-role summary message, and
// returns the rewritten conversation: [summary, ...last keepLast
// messages]. A conv no longer than keepLast is returned unchanged. The
// cut point never splits a tool-request/response pair — keepLast is
// extended backward by one if it would otherwise start on a lone tool
// response.
func Summarize(ctx context.Context, provider providers.Provider, model string, conv conversation.Conversation, keepLast int) (conversation.Conversation, error) {
	if keepLast <= 0 {
		keepLast = DefaultSummarizeKeepLast
	}
	if len(conv) <= keepLast {
		return conv, nil
	}

	cut := len(conv) - keepLast
	if cut > 0 && conv.IsToolResponse(cut) {
		cut--
	}

	toSummarize := conv[:cut]
	kept := conv[cut:]

	var b strings.Builder
	for _, m := range toSummarize {
		switch m.Role {
		case "user":
			fmt.Fprintf(&b, "user: %s\n", m.Content)
		case "assistant":
			if m.Content != "" {
				fmt.Fprintf(&b, "assistant: %s\n", m.Content)
			}
		case "tool":
			fmt.Fprintf(&b, "tool result: %s\n", truncateForPrompt(m.Content, 500))
		}
	}

	prompt := "Summarize this conversation segment concisely, preserving facts, decisions, " +
		"and any state the assistant will need to continue the task:\n\n" + b.String()

	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: prompt}},
		Model:    model,
		Options: map[string]interface{}{
			providers.OptMaxTokens:   1024,
			providers.OptTemperature: 0.3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("contextmgr: summarize: %w", err)
	}

	out := make(conversation.Conversation, 0, len(kept)+1)
	out = append(out, providers.Message{Role: "system", Content: "Summary of earlier conversation:\n" + resp.Content})
	out = append(out, kept...)
	return out, nil
}

func truncateForPrompt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
