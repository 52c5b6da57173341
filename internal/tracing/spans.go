package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

const (
	previewLimitDefault = 500
	previewLimitVerbose = 100_000
)

// AgentSpan starts the root span for one turn.
func (c *Collector) AgentSpan(ctx context.Context, name, provider, model string) (context.Context, oteltrace.Span) {
	return c.StartSpan(ctx, name, SpanAgent,
		attribute.String("agentrt.provider", provider),
		attribute.String("agentrt.model", model),
	)
}

// EndAgentSpan closes the root span, attaching the turn's final content
// (truncated unless verbose) and marking it errored if runErr is set.
func (c *Collector) EndAgentSpan(span oteltrace.Span, finalContent string, runErr error) {
	if span == nil {
		return
	}
	defer span.End()
	if runErr != nil {
		RecordError(span, runErr)
		return
	}
	limit := previewLimitDefault
	if c.Verbose() {
		limit = previewLimitVerbose
	}
	span.SetAttributes(attribute.String("agentrt.output_preview", TruncateForSpan(finalContent, limit)))
}

// LLMSpan starts a span for one provider.Chat call within a turn.
func (c *Collector) LLMSpan(ctx context.Context, providerName, model string, turn int) (context.Context, oteltrace.Span) {
	return c.StartSpan(ctx, fmt.Sprintf("%s/%s #%d", providerName, model, turn), SpanLLMCall,
		attribute.String("agentrt.provider", providerName),
		attribute.String("agentrt.model", model),
		attribute.Int("agentrt.turn", turn),
	)
}

// EndLLMSpan closes an LLM span, recording usage and (when verbose) the
// request messages and response content. Image payloads are always
// replaced with a size placeholder, verbose or not, to keep spans from
// ballooning on vision requests.
func (c *Collector) EndLLMSpan(span oteltrace.Span, messages []providers.Message, resp *providers.ChatResponse, callErr error) {
	if span == nil {
		return
	}
	defer span.End()

	if callErr != nil {
		RecordError(span, callErr)
		return
	}
	if resp == nil {
		return
	}

	limit := previewLimitDefault
	if c.Verbose() {
		limit = previewLimitVerbose
	}
	span.SetAttributes(
		attribute.String("agentrt.finish_reason", resp.FinishReason),
		attribute.String("agentrt.output_preview", TruncateForSpan(resp.Content, limit)),
	)
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("agentrt.input_tokens", resp.Usage.PromptTokens),
			attribute.Int("agentrt.output_tokens", resp.Usage.CompletionTokens),
		)
		if resp.Usage.CacheCreationTokens > 0 {
			span.SetAttributes(attribute.Int("agentrt.cache_creation_tokens", resp.Usage.CacheCreationTokens))
		}
		if resp.Usage.CacheReadTokens > 0 {
			span.SetAttributes(attribute.Int("agentrt.cache_read_tokens", resp.Usage.CacheReadTokens))
		}
		if resp.Usage.ThinkingTokens > 0 {
			span.SetAttributes(attribute.Int("agentrt.thinking_tokens", resp.Usage.ThinkingTokens))
		}
	}

	if c.Verbose() && len(messages) > 0 {
		if b, err := json.Marshal(stripImages(messages)); err == nil {
			span.SetAttributes(attribute.String("agentrt.input_preview", TruncateForSpan(string(b), previewLimitVerbose)))
		}
	}
}

func stripImages(messages []providers.Message) []providers.Message {
	out := make([]providers.Message, len(messages))
	copy(out, messages)
	for i := range out {
		if len(out[i].Images) == 0 {
			continue
		}
		placeholder := make([]providers.ImageContent, len(out[i].Images))
		for j, img := range out[i].Images {
			placeholder[j] = providers.ImageContent{
				MimeType: img.MimeType,
				Data:     fmt.Sprintf("[base64 %s, %d bytes]", img.MimeType, len(img.Data)),
			}
		}
		out[i].Images = placeholder
	}
	return out
}

// ToolSpan starts a span for one tool dispatch.
func (c *Collector) ToolSpan(ctx context.Context, toolName, toolCallID string) (context.Context, oteltrace.Span) {
	return c.StartSpan(ctx, toolName, SpanToolCall,
		attribute.String("agentrt.tool_name", toolName),
		attribute.String("agentrt.tool_call_id", toolCallID),
	)
}

// EndToolSpan closes a tool span, recording its input/output (truncated
// unless verbose) and any usage the tool's own inner LLM call reported
// (e.g. an image-description tool that itself calls a vision model).
func (c *Collector) EndToolSpan(span oteltrace.Span, input string, result *tool.Result) {
	if span == nil {
		return
	}
	defer span.End()
	if result == nil {
		return
	}

	limit := previewLimitDefault
	if c.Verbose() {
		limit = previewLimitVerbose
	}
	span.SetAttributes(
		attribute.String("agentrt.input_preview", TruncateForSpan(input, limit)),
		attribute.String("agentrt.output_preview", TruncateForSpan(result.ForLLM, limit)),
	)
	if result.IsError {
		span.SetStatus(codes.Error, TruncateForSpan(result.ForLLM, 200))
	}
	if result.Usage != nil {
		span.SetAttributes(
			attribute.String("agentrt.inner_provider", result.Provider),
			attribute.String("agentrt.inner_model", result.Model),
			attribute.Int("agentrt.input_tokens", result.Usage.PromptTokens),
			attribute.Int("agentrt.output_tokens", result.Usage.CompletionTokens),
		)
	}
}

func RecordError(span oteltrace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TruncateForSpan clips s to at most limit bytes without splitting a
// multi-byte rune and appends "..." when anything was clipped, matching
// the preview truncation every span attribute above uses.
func TruncateForSpan(s string, limit int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
