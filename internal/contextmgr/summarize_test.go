package contextmgr

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/conversation"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

func TestSummarizeLeavesShortConversationUntouched(t *testing.T) {
	conv := conversation.Conversation{
		longMessage("user", 10),
		longMessage("assistant", 10),
	}
	p := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "should not be called"})

	out, err := Summarize(context.Background(), p, "fake-model", conv, DefaultSummarizeKeepLast)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(conv) {
		t.Fatalf("expected conversation under keepLast to pass through unchanged, got %d messages", len(out))
	}
	if len(p.Requests) != 0 {
		t.Fatal("expected no provider call for a conversation at or under keepLast")
	}
}

func TestSummarizeFoldsOlderMessagesIntoOneSystemMessage(t *testing.T) {
	var conv conversation.Conversation
	for i := 0; i < 10; i++ {
		conv = append(conv, longMessage("user", 10), longMessage("assistant", 10))
	}
	p := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "earlier turns covered X and Y"})

	out, err := Summarize(context.Background(), p, "fake-model", conv, 4)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Role != "system" {
		t.Fatalf("expected the summary to be a leading system message, got role %q", out[0].Role)
	}
	if len(out) != 5 {
		t.Fatalf("expected 1 summary + 4 kept messages, got %d", len(out))
	}
	if len(p.Requests) != 1 {
		t.Fatalf("expected exactly one summarization call, got %d", len(p.Requests))
	}
}

func TestSummarizeKeepsToolPairTogether(t *testing.T) {
	// keepLast=2 would naively cut at index 3, which is the lone tool
	// response belonging to the call at index 2 — the cut must back up
	// to index 2 so the pair stays together in the kept segment.
	conv := conversation.Conversation{
		longMessage("user", 10),
		longMessage("assistant", 10),
		providers.Message{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{{ID: "1", Name: "echo"}},
		},
		providers.Message{Role: "tool", Content: "result", ToolCallID: "1"},
		longMessage("assistant", 10),
	}
	p := providers.NewFakeProvider("fake", &providers.ChatResponse{Content: "summary"})

	out, err := Summarize(context.Background(), p, "fake-model", conv, 2)
	if err != nil {
		t.Fatal(err)
	}
	if out[1].Role == "tool" {
		t.Fatalf("kept segment starts with a lone tool response: %+v", out[1])
	}
	if out[1].Role != "assistant" || len(out[1].ToolCalls) == 0 {
		t.Fatalf("expected the tool call to lead the kept segment, got %+v", out[1])
	}
	if out[2].Role != "tool" {
		t.Fatalf("expected the tool response to immediately follow its call, got %+v", out[2])
	}
}
