package contextmgr

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/conversation"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// EnvMOIMEnabled gates MOIM injection; unset or unparseable defaults to
// enabled, matching the documented config surface's default.
const EnvMOIMEnabled = "GOOSE_MOIM_ENABLED"

// MOIMEnabledFromEnv reports whether InjectMOIM should run this turn.
func MOIMEnabledFromEnv() bool {
	v := os.Getenv(EnvMOIMEnabled)
	if v == "" {
		return true
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return enabled
}

// TodoItem is one line of the caller's outstanding task list, surfaced
// to the model as part of the injected preamble so a long-running
// agent doesn't lose track of its own plan across compaction.
type TodoItem struct {
	Content string
	Done    bool
}

// MOIMOptions controls preamble construction.
type MOIMOptions struct {
	Now   time.Time
	Todos []TodoItem
}

// BuildMOIMContent renders the "moment-in-messages" preamble: a
// timestamp line, followed by an optional todo block when any items
// are present.
func BuildMOIMContent(opts MOIMOptions) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Current time: %s", opts.Now.Format(time.RFC3339)))

	active := make([]TodoItem, 0, len(opts.Todos))
	for _, t := range opts.Todos {
		if strings.TrimSpace(t.Content) != "" {
			active = append(active, t)
		}
	}
	if len(active) > 0 {
		b.WriteString("\n\nCurrent tasks and notes:")
		for _, t := range active {
			mark := " "
			if t.Done {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("\n- [%s] %s", mark, t.Content))
		}
	}
	return b.String()
}

// FindSafeInsertionPoint returns the index at which a new message can
// be inserted without separating a tool-call message from its
// response. The default insertion point is immediately before the last
// message, and it only ever looks one message back from there: if the
// message immediately before the last one is a tool call and the last
// message is that call's response, insertion moves one slot earlier so
// the pair stays adjacent. Any other arrangement inserts before the last
// message as usual.
func FindSafeInsertionPoint(conv conversation.Conversation) int {
	lastPos := len(conv) - 1
	if lastPos <= 0 {
		return lastPos
	}
	if conv.IsToolCall(lastPos-1) && conv.IsToolResponse(lastPos) {
		return lastPos - 1
	}
	return lastPos
}

// InjectMOIM inserts a user-role preamble message into conv at the
// safe insertion point and returns the new conversation. An empty
// conversation just gets the preamble appended as its first message.
func InjectMOIM(conv conversation.Conversation, opts MOIMOptions) conversation.Conversation {
	content := BuildMOIMContent(opts)
	msg := providers.Message{Role: "user", Content: content}

	if len(conv) == 0 {
		return conv.Append(msg)
	}

	pos := FindSafeInsertionPoint(conv)
	out := make(conversation.Conversation, 0, len(conv)+1)
	out = append(out, conv[:pos]...)
	out = append(out, msg)
	out = append(out, conv[pos:]...)
	return out
}
