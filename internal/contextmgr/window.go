// Package contextmgr estimates token usage against a model's context
// window, decides how much headroom a turn has before compaction is
// required, and injects timestamp/todo preamble messages at a safe
// point in the conversation.
package contextmgr

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nextlevelbuilder/agentrt/internal/conversation"
)

// tokensPerChar approximates BPE tokenization without a real tokenizer:
// ~4 characters per token for English prose, matching the ratio used
// for pre-flight budget checks elsewhere in the ecosystem.
const tokensPerChar = 0.25

// modelContextWindows maps a model name (or prefix) to its context
// window size in tokens. Longest-prefix match wins so "claude-3-5"
// entries still apply to dated snapshots like "claude-3-5-sonnet-20241022".
var modelContextWindows = map[string]int{
	"claude-opus-4":     200_000,
	"claude-sonnet-4":   200_000,
	"claude-3-7-sonnet": 200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-5-haiku":  200_000,
	"claude-3-opus":     200_000,
	"claude-3-sonnet":   200_000,
	"claude-3-haiku":    200_000,
	"gpt-4o":            128_000,
	"gpt-4-turbo":       128_000,
	"gpt-4":             8_192,
	"gpt-3.5-turbo":     16_385,
	"o1":                200_000,
	"o3":                200_000,
	"gemini-2.5-pro":    1_048_576,
	"gemini-2.5-flash":  1_048_576,
	"gemini-1.5-pro":    2_097_152,
	"gemini-1.5-flash":  1_048_576,
	"qwen3-max":         256_000,
	"gemma-2-27b":       8_192,
}

var (
	registryMu sync.RWMutex
	defaultWindow = 128_000
)

// RegisterModelContextWindow adds or overrides an entry, for providers
// whose models aren't in the built-in table (custom deployments,
// fine-tunes, new releases).
func RegisterModelContextWindow(model string, tokens int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	modelContextWindows[model] = tokens
}

// ModelWindow returns the context window for model, falling back to
// defaultWindow on no match. Matching is by longest registered prefix
// so "claude-3-5-sonnet-20241022" resolves via "claude-3-5-sonnet".
func ModelWindow(model string) int {
	registryMu.RLock()
	defer registryMu.RUnlock()

	best := -1
	bestLen := -1
	for prefix, tokens := range modelContextWindows {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = tokens
			bestLen = len(prefix)
		}
	}
	if best == -1 {
		return defaultWindow
	}
	return best
}

// EstimateTokens gives a rough token count for arbitrary text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return int(float64(n) * tokensPerChar)
}

// EstimateConversationTokens sums estimated tokens across every
// message's content, tool call arguments, and tool result content.
func EstimateConversationTokens(conv conversation.Conversation) int {
	total := 0
	for _, m := range conv {
		total += messageTokens(m)
	}
	return total
}
