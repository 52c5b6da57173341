package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
)

// ErrTapeExhausted is returned once every recorded turn has been replayed.
var ErrTapeExhausted = errors.New("session: tape exhausted, no more turns to replay")

const tapeVersion = 1

// Tape is a recorded sequence of provider turns, serialised independently
// of the conversation journal so a fixture can be captured once (against a
// real provider) and replayed deterministically afterward without a
// network call. Grounded on haasonsaas-nexus's internal/agent/tape
// package; Turn here collapses Request+Chunks+ToolCalls down to the single
// ChatResponse this module's Provider.Chat already returns whole.
type Tape struct {
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	Model     string     `json:"model,omitempty"`
	Turns     []TapeTurn `json:"turns"`
}

// TapeTurn records one provider call: the request that produced it (kept
// for diagnostics, not replayed) and the response to hand back.
type TapeTurn struct {
	Request  providers.ChatRequest  `json:"request"`
	Response providers.ChatResponse `json:"response"`
}

// NewTape returns an empty tape stamped with the current time.
func NewTape(model string) *Tape {
	return &Tape{Version: tapeVersion, CreatedAt: time.Now().UTC(), Model: model}
}

// Record appends one request/response pair to the tape.
func (t *Tape) Record(req providers.ChatRequest, resp providers.ChatResponse) {
	t.Turns = append(t.Turns, TapeTurn{Request: req, Response: resp})
}

// WriteFile marshals the tape as indented JSON to path.
func (t *Tape) WriteFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal tape: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTape reads a tape previously written by WriteFile.
func LoadTape(path string) (*Tape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read tape: %w", err)
	}
	var t Tape
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("session: unmarshal tape: %w", err)
	}
	return &t, nil
}

// TapeProvider replays a Tape's recorded responses in order, implementing
// providers.Provider so the turn engine can run against it exactly as it
// would against any live provider. It never inspects the incoming request
// beyond recording it for Requests — like the nexus replayer's
// ReplayLoose mode, request content isn't asserted by default.
type TapeProvider struct {
	name string

	mu    sync.Mutex
	tape  *Tape
	idx   int
	seen  []providers.ChatRequest
}

// NewTapeProvider wraps tape for replay under the given provider name
// (used only for Provider.Name(); the tape's own Model field drives
// DefaultModel).
func NewTapeProvider(name string, tape *Tape) *TapeProvider {
	return &TapeProvider{name: name, tape: tape}
}

func (p *TapeProvider) Name() string         { return p.name }
func (p *TapeProvider) DefaultModel() string { return p.tape.Model }

// Chat returns the next recorded response in sequence, ignoring req other
// than recording it for later inspection via Requests().
func (p *TapeProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.idx >= len(p.tape.Turns) {
		return nil, ErrTapeExhausted
	}
	turn := p.tape.Turns[p.idx]
	p.idx++
	p.seen = append(p.seen, req)

	resp := turn.Response
	return &resp, nil
}

// ChatStream synthesizes chunks from the next recorded response, the same
// way every live provider adapter in this package does.
func (p *TapeProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	providers.SynthesizeStream(resp, onChunk)
	return resp, nil
}

// Requests returns every request Chat has been called with so far, in
// replay order.
func (p *TapeProvider) Requests() []providers.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]providers.ChatRequest(nil), p.seen...)
}

// Remaining reports how many recorded turns have not yet been replayed.
func (p *TapeProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tape.Turns) - p.idx
}

// Reset rewinds replay to the first recorded turn.
func (p *TapeProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx = 0
	p.seen = nil
}
