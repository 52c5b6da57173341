// Package conversation holds the in-memory message sequence exchanged
// between a caller, the model, and tools during a run, plus the small
// set of predicates the context manager and turn engine need to reason
// about message boundaries without reaching into provider wire types.
package conversation

import "github.com/nextlevelbuilder/agentrt/internal/providers"

// Message is an alias for the provider wire message. Conversation code
// never needs a richer representation than what providers already
// define — introducing a second type here would just mean translating
// back and forth on every turn.
type Message = providers.Message

// Conversation is an ordered message history. It is intentionally a
// plain slice type (not a struct wrapping one) so existing slice
// operations — append, slicing for truncation, range — keep working
// without an extra accessor layer.
type Conversation []Message

// New returns an empty conversation.
func New() Conversation {
	return Conversation{}
}

// FromMessages wraps an existing slice without copying.
func FromMessages(msgs []Message) Conversation {
	return Conversation(msgs)
}

// IsToolCall reports whether the message at index i is an assistant
// message carrying one or more tool calls.
func (c Conversation) IsToolCall(i int) bool {
	if i < 0 || i >= len(c) {
		return false
	}
	return c[i].Role == "assistant" && len(c[i].ToolCalls) > 0
}

// IsToolResponse reports whether the message at index i is a tool
// result message.
func (c Conversation) IsToolResponse(i int) bool {
	if i < 0 || i >= len(c) {
		return false
	}
	return c[i].Role == "tool"
}

// Last returns the last message and true, or the zero value and false
// if the conversation is empty.
func (c Conversation) Last() (Message, bool) {
	if len(c) == 0 {
		return Message{}, false
	}
	return c[len(c)-1], true
}

// Append returns a new conversation with msg appended.
func (c Conversation) Append(msg Message) Conversation {
	return append(c, msg)
}

// PendingToolCalls returns the IDs of tool calls in the last assistant
// message that do not yet have a matching tool-role response later in
// the conversation. Used by the turn engine to know when a turn is
// fully resolved and by the context manager to avoid splitting a
// call/response pair during compaction or injection.
func (c Conversation) PendingToolCalls() []string {
	lastAssistant := -1
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == "assistant" {
			lastAssistant = i
			break
		}
	}
	if lastAssistant == -1 || len(c[lastAssistant].ToolCalls) == 0 {
		return nil
	}

	answered := make(map[string]bool)
	for i := lastAssistant + 1; i < len(c); i++ {
		if c[i].Role == "tool" && c[i].ToolCallID != "" {
			answered[c[i].ToolCallID] = true
		}
	}

	var pending []string
	for _, tc := range c[lastAssistant].ToolCalls {
		if !answered[tc.ID] {
			pending = append(pending, tc.ID)
		}
	}
	return pending
}
