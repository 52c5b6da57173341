package contextmgr

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/conversation"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

func longMessage(role string, n int) providers.Message {
	return providers.Message{Role: role, Content: strings.Repeat("x", n)}
}

func TestTruncateDropsOldestFirst(t *testing.T) {
	conv := conversation.Conversation{
		longMessage("user", 4000),
		longMessage("assistant", 4000),
		longMessage("user", 4000),
		longMessage("assistant", 100),
	}
	out, tokens := Truncate(conv, 300)

	if len(out) != 1 {
		t.Fatalf("expected 1 surviving message, got %d: %+v", len(out), out)
	}
	if out[0].Content != conv[3].Content {
		t.Fatalf("expected the newest message to survive, got %q", out[0].Content)
	}
	if len(tokens) != len(out) {
		t.Fatalf("expected one token count per surviving message")
	}
}

func TestTruncateNeverSplitsToolPair(t *testing.T) {
	conv := conversation.Conversation{
		longMessage("user", 4000),
		providers.Message{
			Role:      "assistant",
			Content:   strings.Repeat("y", 4000),
			ToolCalls: []providers.ToolCall{{ID: "1", Name: "read_file", Arguments: map[string]interface{}{"path": "a.go"}}},
		},
		providers.Message{Role: "tool", Content: "file contents", ToolCallID: "1"},
		longMessage("assistant", 50),
	}

	out, _ := Truncate(conv, 100)

	if len(out) == 0 {
		t.Fatal("expected at least the final message to survive")
	}
	if out[0].Role == "tool" {
		t.Fatalf("truncation left a lone tool response with its call dropped: %+v", out[0])
	}
}

func TestTruncateKeepsWholeConversationUnderBudget(t *testing.T) {
	conv := conversation.Conversation{
		longMessage("user", 10),
		longMessage("assistant", 10),
	}
	out, _ := Truncate(conv, 1_000_000)
	if len(out) != len(conv) {
		t.Fatalf("expected nothing dropped when already under budget, got %d of %d", len(out), len(conv))
	}
}

func TestTruncateNeverDropsTheLastMessage(t *testing.T) {
	conv := conversation.Conversation{longMessage("user", 1_000_000)}
	out, _ := Truncate(conv, 1)
	if len(out) != 1 {
		t.Fatalf("expected the sole message to survive even over budget, got %d", len(out))
	}
}
