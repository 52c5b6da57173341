package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

func TestAppendThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.PersistMessagesBackground("s1", []providers.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.FlushBackgroundSaves(); err != nil {
		t.Fatal(err)
	}

	msgs, err := store.ReadMessages("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != "hi there" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestUpdateMetadataRewritesHeadAndPreservesMessages(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	store.PersistMessagesBackground("s2", []providers.Message{{Role: "user", Content: "a"}})
	store.FlushBackgroundSaves()

	if err := store.UpdateMetadata("s2", func(m *Metadata) {
		m.Label = "renamed"
		m.Provider = "anthropic"
	}); err != nil {
		t.Fatal(err)
	}

	store.PersistMessagesBackground("s2", []providers.Message{{Role: "assistant", Content: "b"}})
	if err := store.FlushBackgroundSaves(); err != nil {
		t.Fatal(err)
	}

	meta, err := store.ReadMetadata("s2")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Label != "renamed" || meta.Provider != "anthropic" {
		t.Fatalf("metadata not updated: %+v", meta)
	}

	msgs, err := store.ReadMessages("s2")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "a" || msgs[1].Content != "b" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestReopenReplaysFromDisk(t *testing.T) {
	dir := t.TempDir()
	store1, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	store1.PersistMessagesBackground("s3", []providers.Message{{Role: "user", Content: "persisted"}})
	if err := store1.ShutdownBackgroundSaves(); err != nil {
		t.Fatal(err)
	}

	store2, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := store2.ReadMessages("s3")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "persisted" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestCorruptTailLineTruncatesReadablePrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s4.ndjson")

	good := `{"kind":"metadata","metadata":{"version":1,"id":"s4"}}` + "\n" +
		`{"kind":"message","message":{"role":"user","content":"ok"}}` + "\n" +
		`{not valid json` + "\n"
	if err := os.WriteFile(path, []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := store.ReadMessages("s4")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "ok" {
		t.Fatalf("expected recovery of the readable prefix only, got %+v", msgs)
	}
}

func TestMissingJournalStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := store.ReadMessages("does-not-exist")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %+v", msgs)
	}
}

func TestSanitizeIDAvoidsPathSeparators(t *testing.T) {
	if strings.ContainsAny(sanitizeID("agent:abc/def"), "/:") {
		t.Fatal("sanitizeID left a path separator in place")
	}
}
