package subagent

import (
	"fmt"
	"sync"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// ExtensionFilterMode selects how a task's ExtensionFilter narrows the
// tool catalog a subagent sees.
type ExtensionFilterMode string

const (
	FilterNone    ExtensionFilterMode = "none"
	FilterInclude ExtensionFilterMode = "include"
	FilterExclude ExtensionFilterMode = "exclude"
)

// ExtensionFilter restricts the tools visible to a task beyond the
// host's own policy: Include limits the catalog to Names, Exclude
// removes them, None leaves the host policy untouched.
type ExtensionFilter struct {
	Mode  ExtensionFilterMode
	Names []string
}

// Task describes one unit of work handed to a subagent: an instruction,
// its place in the spawn tree, and (once the run finishes) its outcome.
type Task struct {
	ID       string
	ParentID string
	Label    string
	Prompt   string
	Model    string // per-task override, takes priority over every other source
	Depth    int    // 1 = spawned by the main agent, 2+ = spawned by a subagent

	Timeout         time.Duration // 0 = no per-task deadline beyond the caller's ctx
	ExtensionFilter *ExtensionFilter

	CreatedAt   time.Time
	CompletedAt time.Time

	mu      sync.Mutex
	status  Status
	result  string
	partial string
}

func NewTask(id, parentID, label, prompt string, depth int) *Task {
	return &Task{
		ID:        id,
		ParentID:  parentID,
		Label:     label,
		Prompt:    prompt,
		Depth:     depth,
		CreatedAt: time.Now(),
		status:    StatusPending,
	}
}

func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task) setOutcome(status Status, result string) {
	t.mu.Lock()
	t.status = status
	t.result = result
	t.mu.Unlock()
}

// PartialOutput returns whatever assistant content the task produced
// before a failure, timeout, or cancellation cut it off. Empty when the
// task completed normally or never produced any content at all.
func (t *Task) PartialOutput() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partial
}

func (t *Task) setPartial(partial string) {
	t.mu.Lock()
	t.partial = partial
	t.mu.Unlock()
}

// Summary renders a short, user-facing report of the task's outcome,
// suitable for surfacing to the agent that spawned it.
func (t *Task) Summary(iterations int) string {
	elapsed := time.Since(t.CreatedAt)
	return fmt.Sprintf("Subagent %q completed in %d turn(s), %s.\n\nResult:\n%s",
		t.Label, iterations, elapsed.Round(time.Millisecond), t.Result())
}
