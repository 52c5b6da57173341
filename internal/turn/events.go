package turn

// EventType labels what a turn is reporting back to its caller as it
// progresses. A turn is a stream of these, terminated by EventDone,
// EventCancelled, or EventError.
type EventType string

const (
	EventThinking         EventType = "thinking"
	EventText             EventType = "text"
	EventApprovalRequired EventType = "approval_required"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventRepetitionLimit  EventType = "repetition_limit"
	EventSummarizing      EventType = "summarizing"
	EventDone             EventType = "done"
	EventCancelled        EventType = "cancelled"
	EventError            EventType = "error"
)

// Event is one item in the stream a Reply call emits through its
// EventSink as the turn progresses.
type Event struct {
	Type EventType

	Content string // EventThinking, EventText
	Turn    int

	ToolCallID string // EventApprovalRequired, EventToolCall, EventToolResult, EventRepetitionLimit
	ToolName   string
	Arguments  map[string]interface{}

	ToolForLLM  string // EventToolResult
	ToolIsError bool   // EventToolResult

	Err error // EventError
}

// EventSink receives events as a turn executes. nil is valid: every
// emit call becomes a no-op.
type EventSink func(Event)

func (s EventSink) emit(e Event) {
	if s != nil {
		s(e)
	}
}
