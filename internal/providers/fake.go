package providers

import (
	"context"
	"time"
)

// FakeProvider is a scripted Provider for tests: each call to Chat/ChatStream
// pops the next response off Responses, in order. Used by turn engine and
// subagent executor tests that need deterministic multi-turn tool-call loops
// without a network dependency.
type FakeProvider struct {
	NameStr   string
	Model     string
	Responses []*ChatResponse
	calls     int
	Requests  []ChatRequest

	// Delay, if set, makes Chat block before responding — long enough to
	// let a caller-imposed deadline (e.g. Task.Timeout) fire first.
	Delay time.Duration
}

func NewFakeProvider(name string, responses ...*ChatResponse) *FakeProvider {
	return &FakeProvider{NameStr: name, Model: "fake-model", Responses: responses}
}

func (f *FakeProvider) Name() string        { return f.NameStr }
func (f *FakeProvider) DefaultModel() string { return f.Model }

func (f *FakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.Requests = append(f.Requests, req)

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.calls >= len(f.Responses) {
		return &ChatResponse{Content: "", FinishReason: "stop"}, nil
	}
	resp := f.Responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *FakeProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	resp, err := f.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		if resp.Content != "" {
			onChunk(StreamChunk{Content: resp.Content})
		}
		onChunk(StreamChunk{Done: true})
	}
	return resp, nil
}
