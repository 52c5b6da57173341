package providers

import "context"

const (
	dashscopeDefaultBase  = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	dashscopeDefaultModel = "qwen3-max"
)

// DashScopeProvider wraps OpenAIProvider to translate the generic
// thinking_level option into DashScope's own enable_thinking/
// thinking_budget wire keys before delegating to the OpenAI-compatible
// request builder.
type DashScopeProvider struct {
	*OpenAIProvider
}

func NewDashScopeProvider(apiKey, apiBase, defaultModel string) *DashScopeProvider {
	if apiBase == "" {
		apiBase = dashscopeDefaultBase
	}
	if defaultModel == "" {
		defaultModel = dashscopeDefaultModel
	}
	return &DashScopeProvider{
		OpenAIProvider: NewOpenAIProvider("dashscope", apiKey, apiBase, defaultModel),
	}
}

func (p *DashScopeProvider) Name() string          { return "dashscope" }
func (p *DashScopeProvider) SupportsThinking() bool { return true }

func (p *DashScopeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.OpenAIProvider.Chat(ctx, p.translateThinking(req))
}

// ChatStream has no real SSE client behind it — see SynthesizeStream. It
// must go through DashScopeProvider.Chat (not the embedded OpenAIProvider's)
// so the thinking_level translation below still applies.
func (p *DashScopeProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	SynthesizeStream(resp, onChunk)
	return resp, nil
}

// translateThinking maps the generic thinking_level option to DashScope's
// own wire keys without mutating the caller's Options map.
func (p *DashScopeProvider) translateThinking(req ChatRequest) ChatRequest {
	level, ok := req.Options[OptThinkingLevel].(string)
	if !ok || level == "" || level == "off" {
		return req
	}

	opts := make(map[string]interface{}, len(req.Options)+2)
	for k, v := range req.Options {
		opts[k] = v
	}
	opts[OptEnableThinking] = true
	opts[OptThinkingBudget] = dashscopeThinkingBudget(level)
	delete(opts, OptThinkingLevel) // don't pass the generic key to buildRequestBody
	req.Options = opts
	return req
}

// dashscopeThinkingBudget maps a thinking level to a DashScope thinking_budget value.
func dashscopeThinkingBudget(level string) int {
	switch level {
	case "low":
		return 4096
	case "medium":
		return 16384
	case "high":
		return 32768
	default:
		return 16384
	}
}
