package router

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

func defs() []providers.ToolDefinition {
	return []providers.ToolDefinition{
		{Type: "function", Function: providers.ToolFunctionSchema{Name: "read_file", Description: "read a file from disk by path"}},
		{Type: "function", Function: providers.ToolFunctionSchema{Name: "write_file", Description: "write content to a file on disk"}},
		{Type: "function", Function: providers.ToolFunctionSchema{Name: "send_email", Description: "send an email message to a recipient"}},
	}
}

func TestSelectToolsRanksRelevantToolsHigher(t *testing.T) {
	idx := NewInMemoryIndex()
	if err := idx.IndexTools(context.Background(), defs(), "builtin"); err != nil {
		t.Fatal(err)
	}

	names, err := idx.SelectTools(context.Background(), "read a file from disk", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("got %v", names)
	}
	if names[0] != "read_file" {
		t.Fatalf("expected read_file ranked first, got %v", names)
	}
}

func TestRemoveExtensionDropsItsTools(t *testing.T) {
	idx := NewInMemoryIndex()
	idx.IndexTools(context.Background(), defs(), "builtin")
	if err := idx.RemoveExtension(context.Background(), "builtin"); err != nil {
		t.Fatal(err)
	}
	names, err := idx.SelectTools(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty index, got %v", names)
	}
}

func TestReindexingExtensionReplacesPriorTools(t *testing.T) {
	idx := NewInMemoryIndex()
	idx.IndexTools(context.Background(), defs(), "builtin")
	idx.IndexTools(context.Background(), defs()[:1], "builtin")

	names, err := idx.SelectTools(context.Background(), "file email message", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "read_file" {
		t.Fatalf("expected only read_file to remain after reindex, got %v", names)
	}
}
