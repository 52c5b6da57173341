// Package session implements the append-only, newline-delimited JSON
// journal each conversation is persisted to: one metadata record at the
// head of the file, one message record per subsequent line.
package session

import (
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

const journalVersion = 1

// recordKind discriminates a journal line without needing a schema registry.
type recordKind string

const (
	kindMetadata recordKind = "metadata"
	kindMessage  recordKind = "message"
)

// line is the on-disk envelope for every journal record.
type line struct {
	Kind     recordKind        `json:"kind"`
	Metadata *Metadata         `json:"metadata,omitempty"`
	Message  *providers.Message `json:"message,omitempty"`
}

// Metadata is the sidecar record written as the journal's first line,
// rewritten in full whenever UpdateMetadata is called.
type Metadata struct {
	Version  int       `json:"version"`
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Label    string `json:"label,omitempty"`

	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`

	CompactionCount int `json:"compaction_count,omitempty"`

	SpawnedBy  string `json:"spawned_by,omitempty"`
	SpawnDepth int    `json:"spawn_depth,omitempty"`

	ContextWindow    int `json:"context_window,omitempty"`
	LastPromptTokens int `json:"last_prompt_tokens,omitempty"`
	LastMessageCount int `json:"last_message_count,omitempty"`
}

func newMetadata(id string) *Metadata {
	now := time.Now().UTC()
	return &Metadata{
		Version: journalVersion,
		ID:      id,
		Created: now,
		Updated: now,
	}
}
