package providers

import (
	"context"
	"encoding/json"
)

// Provider is the interface all LLM providers must implement.
type Provider interface {
	// Chat sends messages to the LLM and returns a response.
	// tools defines available tool schemas; model overrides the default.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and streams response chunks via callback.
	// Returns the final complete response after streaming ends. The
	// engine's turn loop only ever calls Chat (there's no line to a
	// streaming UI client on this boundary) so every adapter here
	// implements this by calling Chat and synthesizing chunks from the
	// complete response — see SynthesizeStream. A real caller that needs
	// token-by-token delivery can still get it through a ProviderPort
	// adapter that does real SSE parsing; that's outside this module's
	// scope (spec.md §1: concrete provider wire clients are represented
	// only via this boundary contract).
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// ChatRequest contains the input for a Chat/ChatStream call.
type ChatRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Model    string           `json:"model,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is the result from an LLM call.
type ChatResponse struct {
	Content      string     `json:"content"`
	Thinking     string     `json:"thinking,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"` // "stop", "tool_calls", "length"
	Usage        *Usage     `json:"usage,omitempty"`

	// RawAssistantContent preserves the provider's native content-block
	// encoding (Anthropic thinking/signature blocks) so it can be replayed
	// verbatim on the next turn instead of being reconstructed from the
	// normalized fields above, which would drop signatures and break
	// tool-use passback.
	RawAssistantContent json.RawMessage `json:"raw_assistant_content,omitempty"`
}

// StreamChunk is a piece of a streaming response.
type StreamChunk struct {
	Content   string `json:"content,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

// ImageContent represents a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string `json:"mime_type"` // e.g. "image/jpeg"
	Data     string `json:"data"`      // base64-encoded image bytes
}

// Message represents a conversation message.
type Message struct {
	Role       string         `json:"role"`                  // "system", "user", "assistant", "tool"
	Content    string         `json:"content"`
	Images     []ImageContent `json:"images,omitempty"`      // vision: base64 images
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"` // for role="tool" responses

	// RawAssistantContent carries a provider-native content block array
	// (e.g. Anthropic thinking blocks) through to the next request body
	// instead of being reconstructed from Content/ToolCalls.
	RawAssistantContent json.RawMessage `json:"raw_assistant_content,omitempty"`
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Metadata  map[string]string      `json:"metadata,omitempty"` // e.g. Gemini thought_signature
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the schema for a function tool.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens     int `json:"cache_read_input_tokens,omitempty"`
	ThinkingTokens      int `json:"thinking_tokens,omitempty"`
}

// Option keys recognized in ChatRequest.Options. Kept as plain strings
// (rather than an enum) so callers can pass provider-specific knobs
// without this package knowing about every provider.
const (
	OptMaxTokens       = "max_tokens"
	OptTemperature     = "temperature"
	OptThinkingLevel   = "thinking_level"   // "off", "low", "medium", "high"
	OptReasoningEffort = "reasoning_effort" // OpenAI o-series wire key
	OptEnableThinking  = "enable_thinking"  // DashScope wire key
	OptThinkingBudget  = "thinking_budget"  // DashScope wire key
)

// SynthesizeStream delivers a completed response through onChunk as if it
// had streamed: one chunk carrying the thinking text (if any), one
// carrying the content, then Done. Shared by every adapter's ChatStream so
// none of them need real SSE parsing for a callback no caller in this
// module drives with more than one pending chunk.
func SynthesizeStream(resp *ChatResponse, onChunk func(StreamChunk)) {
	if onChunk == nil {
		return
	}
	if resp.Thinking != "" {
		onChunk(StreamChunk{Thinking: resp.Thinking})
	}
	if resp.Content != "" {
		onChunk(StreamChunk{Content: resp.Content})
	}
	onChunk(StreamChunk{Done: true})
}
