// Package toolmonitor detects a model stuck calling the same tool with
// the same arguments over and over, so the turn engine can break the
// loop instead of burning iterations (and tokens) on a call that will
// never produce a different result.
package toolmonitor

import (
	"reflect"
	"sync"
)

// CallToolRequest is the shape the monitor compares calls on: the tool
// name plus its arguments. Argument equality is structural (deep
// equal), matching serde_json::Value equality in the source semantics
// this is ported from.
type CallToolRequest struct {
	Name      string
	Arguments map[string]interface{}
}

// Matches reports whether two calls are the tool-and-arguments
// equivalent of the same request.
func (c CallToolRequest) Matches(other CallToolRequest) bool {
	return c.Name == other.Name && reflect.DeepEqual(c.Arguments, other.Arguments)
}

// Stats reports monitor state for diagnostics/tests.
type Stats struct {
	RepeatCount int
	CallCounts  map[string]uint32
}

// Monitor tracks consecutive identical tool calls and decides whether
// the next one should be admitted. maxRepetitions == nil means
// unlimited: every call is admitted and only the running counters are
// maintained.
type Monitor struct {
	mu             sync.Mutex
	maxRepetitions *uint32
	lastCall       *CallToolRequest
	repeatCount    uint32
	callCounts     map[string]uint32
}

// New creates a monitor. Pass nil for unlimited repetitions.
func New(maxRepetitions *uint32) *Monitor {
	return &Monitor{
		maxRepetitions: maxRepetitions,
		callCounts:     make(map[string]uint32),
	}
}

// CheckToolCall registers call and reports whether it should be
// admitted (true) or rejected as an excessive repeat (false).
//
// call_counts is always incremented, independent of the admit
// decision. When maxRepetitions is nil, every call is admitted and
// repeatCount is pinned to 1 (there is no limit to compare against).
// Otherwise: a call identical to the previous one increments
// repeatCount and is rejected once repeatCount exceeds the limit; any
// other call resets repeatCount to 1 and is admitted.
func (m *Monitor) CheckToolCall(call CallToolRequest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCounts[call.Name]++

	if m.maxRepetitions == nil {
		m.repeatCount = 1
		m.lastCall = &call
		return true
	}

	if m.lastCall != nil && m.lastCall.Matches(call) {
		m.repeatCount++
	} else {
		m.repeatCount = 1
	}
	m.lastCall = &call

	return m.repeatCount <= *m.maxRepetitions
}

// GetStats returns a snapshot of current counters.
func (m *Monitor) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]uint32, len(m.callCounts))
	for k, v := range m.callCounts {
		counts[k] = v
	}
	return Stats{RepeatCount: int(m.repeatCount), CallCounts: counts}
}

// Reset clears all tracked state, used between runs/turns.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCall = nil
	m.repeatCount = 0
	m.callCounts = make(map[string]uint32)
}
