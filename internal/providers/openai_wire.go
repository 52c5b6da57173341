package providers

import "strings"

// openAIResponse mirrors the chat/completions response body.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content          string               `json:"content"`
			ReasoningContent string               `json:"reasoning_content"`
			ToolCalls        []openAIWireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openAIWireUsage `json:"usage"`
}

type openAIWireToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name             string `json:"name"`
		Arguments        string `json:"arguments"`
		ThoughtSignature string `json:"thought_signature,omitempty"`
	} `json:"function"`
}

type openAIWireUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// CleanSchemaForProvider strips JSON Schema keywords a given provider's
// tool-call validator rejects. Anthropic rejects "$schema" and
// "additionalProperties: false" at the top level of input_schema.
func CleanSchemaForProvider(providerName string, schema map[string]interface{}) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if k == "$schema" {
			continue
		}
		if providerName == "anthropic" && k == "additionalProperties" {
			continue
		}
		cleaned[k] = v
	}
	if _, ok := cleaned["type"]; !ok {
		cleaned["type"] = "object"
	}
	return cleaned
}

// CleanToolSchemas adapts tool schemas to provider quirks: OpenRouter and
// DashScope reject a "strict" field some callers set for OpenAI proper,
// and all OpenAI-compatible backends want bare JSON schema (no $schema key).
func CleanToolSchemas(providerName string, tools []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		params := make(map[string]interface{}, len(t.Function.Parameters))
		for k, v := range t.Function.Parameters {
			if k == "$schema" {
				continue
			}
			params[k] = v
		}
		fn := map[string]interface{}{
			"name":        t.Function.Name,
			"description": t.Function.Description,
			"parameters":  params,
		}
		if strings.EqualFold(providerName, "openai") {
			fn["strict"] = false
		}
		out = append(out, map[string]interface{}{
			"type":     "function",
			"function": fn,
		})
	}
	return out
}
