// Package turn implements the TurnEngine: the per-conversation loop that
// calls the provider, classifies its output, routes any tool requests
// through inspection and approval, dispatches approved calls concurrently,
// and repeats until the model stops asking for tools or the turn runs out
// of iterations.
package turn

import (
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/contextmgr"
	"github.com/nextlevelbuilder/agentrt/internal/inspect"
	"github.com/nextlevelbuilder/agentrt/internal/permission"
	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/router"
	"github.com/nextlevelbuilder/agentrt/internal/session"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
	"github.com/nextlevelbuilder/agentrt/internal/toolvalidate"
	"github.com/nextlevelbuilder/agentrt/internal/tracing"
)

const defaultMaxTurns = 1000

// Config configures an Engine. Everything but Provider and Registry has
// a workable zero value; with a nil Permissions, AlwaysAllow approvals
// are not recorded.
type Config struct {
	Provider   providers.Provider
	Registry   *tool.Registry
	Policy     tool.Policy
	Permissions *permission.Store
	Pipeline   *inspect.Pipeline // nil: every request requires approval (permission inspector absent is a misconfiguration, not an Allow-by-default)
	Sessions   *session.Store    // nil: turns run without persistence (tests, throwaway runs)
	Tracing    *tracing.Collector
	Validator  *toolvalidate.Validator
	Selector   router.ToolSelector // optional: narrows the tool catalog sent to the provider

	MaxTurns              int
	MaxRepetitions        *uint32
	MaxConcurrentTools    int
	ToolTimeout           func(toolName string) time.Duration
	RouterTopK            int // 0 disables router-based narrowing even if Selector is set
}

// Engine runs turns for one conversation/session. Not safe for
// concurrent Reply calls on the same session id; the spec assigns the
// TurnEngine exclusive ownership of a Conversation for the duration of
// a turn, and concurrent turns on one session are a caller bug, not
// something this package arbitrates.
type Engine struct {
	provider    providers.Provider
	registry    *tool.Registry
	policy      tool.Policy
	permissions *permission.Store
	pipeline    *inspect.Pipeline
	sessions    *session.Store
	traceCollector *tracing.Collector
	validator   *toolvalidate.Validator
	selector    router.ToolSelector

	maxTurns           int
	maxRepetitions     *uint32
	maxConcurrentTools int
	toolTimeout        func(toolName string) time.Duration
	routerTopK         int
}

func NewEngine(cfg Config) *Engine {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &Engine{
		provider:           cfg.Provider,
		registry:           cfg.Registry,
		policy:             cfg.Policy,
		permissions:        cfg.Permissions,
		pipeline:           cfg.Pipeline,
		sessions:           cfg.Sessions,
		traceCollector:     cfg.Tracing,
		validator:          cfg.Validator,
		selector:           cfg.Selector,
		maxTurns:           maxTurns,
		maxRepetitions:     cfg.MaxRepetitions,
		maxConcurrentTools: cfg.MaxConcurrentTools,
		toolTimeout:        cfg.ToolTimeout,
		routerTopK:         cfg.RouterTopK,
	}
}

// contextWindow resolves the model's context window for ContextManager
// budget checks; the provider's own DefaultModel feeds ModelWindow's
// prefix lookup when no model override is in play.
func (e *Engine) contextWindow(model string) int {
	if model == "" {
		model = e.provider.DefaultModel()
	}
	return contextmgr.ModelWindow(model)
}
