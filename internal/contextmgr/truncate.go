package contextmgr

import "github.com/nextlevelbuilder/agentrt/internal/conversation"

// Truncate drops the oldest messages from conv until its estimated
// token count is at or under targetTokens, never splitting a
// tool-request/response pair: if the oldest surviving message would be
// a tool call whose response follows it, both are dropped together.
// Returns the truncated conversation and each surviving message's
// estimated token count, in order.
func Truncate(conv conversation.Conversation, targetTokens int) (conversation.Conversation, []int) {
	start := 0
	total := EstimateConversationTokens(conv)

	for total > targetTokens && start < len(conv)-1 {
		drop := 1
		if conv.IsToolCall(start) && conv.IsToolResponse(start+1) {
			drop = 2
		}
		for i := 0; i < drop && start < len(conv); i++ {
			total -= messageTokens(conv[start])
			start++
		}
	}

	out := conv[start:]
	tokens := make([]int, len(out))
	for i, m := range out {
		tokens[i] = messageTokens(m)
	}
	return out, tokens
}

func messageTokens(m conversation.Message) int {
	n := EstimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		n += EstimateTokens(tc.Name)
		for k, v := range tc.Arguments {
			n += EstimateTokens(k)
			if s, ok := v.(string); ok {
				n += EstimateTokens(s)
			} else {
				n += 8
			}
		}
	}
	return n
}
