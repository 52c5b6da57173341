// Package tracing instruments turn execution with OpenTelemetry spans:
// one root span per turn, child spans per provider call and per tool
// dispatch, nested via the standard trace-context propagation in
// context.Context. Verbose mode additionally attaches truncated
// message/tool payloads as span attributes; the default mode keeps
// spans small enough to leave always-on.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nextlevelbuilder/agentrt/internal/tracing"

// SpanKind labels what stage of a turn a span represents.
type SpanKind string

const (
	SpanAgent    SpanKind = "agent"
	SpanLLMCall  SpanKind = "llm_call"
	SpanToolCall SpanKind = "tool_call"
)

// Collector wraps an OTel tracer with this runtime's verbosity policy.
// A nil *Collector is valid and makes every span a no-op, so turn code
// doesn't need to branch on whether tracing is configured.
type Collector struct {
	tracer  oteltrace.Tracer
	verbose bool
}

// NewCollector builds a Collector from a TracerProvider. Pass nil to use
// the globally registered provider (otel.Tracer), which defaults to a
// no-op tracer until one is set with otel.SetTracerProvider.
func NewCollector(tp *sdktrace.TracerProvider, verbose bool) *Collector {
	var tracer oteltrace.Tracer
	if tp != nil {
		tracer = tp.Tracer(instrumentationName)
	} else {
		tracer = otel.Tracer(instrumentationName)
	}
	return &Collector{tracer: tracer, verbose: verbose}
}

// NewTracerProvider builds a TracerProvider with an always-on sampler and
// no exporter attached. Spans are recorded (so attributes, timing, and
// parent/child nesting all work, and an exporter can be wired later
// without touching call sites) but not shipped anywhere until the caller
// registers a span processor on the returned provider.
func NewTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
}

// Verbose reports whether full message/tool payloads should be attached
// to spans. Safe to call on a nil Collector.
func (c *Collector) Verbose() bool { return c != nil && c.verbose }

type collectorCtxKey struct{}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorCtxKey{}, c)
}

func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorCtxKey{}).(*Collector)
	return c
}

// StartSpan starts a child span nested under whatever span ctx already
// carries (none, if this is the first span of a turn). Safe to call on a
// nil Collector: it returns ctx unchanged and context.Context's no-op
// span, so End() and SetAttributes calls on it are harmless.
func (c *Collector) StartSpan(ctx context.Context, name string, kind SpanKind, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if c == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	attrs = append(attrs, attribute.String("agentrt.span_kind", string(kind)))
	return c.tracer.Start(ctx, name, oteltrace.WithAttributes(attrs...))
}
