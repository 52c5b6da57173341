package subagent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/agentrt/internal/providers"
	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

func newTestPool(fake *providers.FakeProvider) *Pool {
	registry := tool.NewRegistry()
	executor := NewExecutor(registry, tool.Policy{}, fake, nil)
	return NewPool(executor, DefaultMaxConcurrent)
}

// TestExecuteParallelReportsTimeoutWithoutCancellingSiblings is Scenario
// S5: three parallel tasks, one (the middle) times out, and the batch
// still reports the other two as completed.
func TestExecuteParallelReportsTimeoutWithoutCancellingSiblings(t *testing.T) {
	fake := providers.NewFakeProvider("fake",
		&providers.ChatResponse{Content: "done 1", FinishReason: "stop"},
		&providers.ChatResponse{Content: "done 2", FinishReason: "stop"},
		&providers.ChatResponse{Content: "done 3", FinishReason: "stop"},
	)
	fake.Delay = 30 * time.Millisecond

	pool := newTestPool(fake)

	t1 := NewTask("task-1", "parent", "first", "do the first thing", 1)
	t1.Timeout = time.Second

	t2 := NewTask("task-2", "parent", "second", "do the second thing", 1)
	t2.Timeout = 5 * time.Millisecond // shorter than the provider's delay

	t3 := NewTask("task-3", "parent", "third", "do the third thing", 1)
	t3.Timeout = time.Second

	var notified []string
	notifier := func(task *Task) { notified = append(notified, task.ID) }

	resp, err := Execute(context.Background(), pool, []*Task{t1, t2, t3}, ModeParallel, notifier)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if resp.Stats.Total != 3 || resp.Stats.Completed != 2 || resp.Stats.Failed != 1 {
		t.Fatalf("stats = %+v, want {Total:3 Completed:2 Failed:1}", resp.Stats)
	}

	if t2.Status() != StatusTimedOut {
		t.Fatalf("task-2 status = %s, want %s", t2.Status(), StatusTimedOut)
	}
	if t1.Status() != StatusCompleted || t3.Status() != StatusCompleted {
		t.Fatalf("sibling tasks did not complete: t1=%s t3=%s", t1.Status(), t3.Status())
	}

	if !strings.Contains(resp.ErrorSummary, "Task 'task-2'") {
		t.Fatalf("error summary missing failing task id: %q", resp.ErrorSummary)
	}
	if !strings.Contains(resp.ErrorSummary, "Output: ") {
		t.Fatalf("error summary missing an Output line: %q", resp.ErrorSummary)
	}

	if len(notified) != 3 {
		t.Fatalf("notifier fired %d times, want 3", len(notified))
	}
}

func TestExecuteSequentialRunsInOrder(t *testing.T) {
	fake := providers.NewFakeProvider("fake",
		&providers.ChatResponse{Content: "a", FinishReason: "stop"},
		&providers.ChatResponse{Content: "b", FinishReason: "stop"},
	)
	pool := newTestPool(fake)

	t1 := NewTask("task-1", "parent", "first", "first", 1)
	t2 := NewTask("task-2", "parent", "second", "second", 1)

	var order []string
	notifier := func(task *Task) { order = append(order, task.ID) }

	resp, err := Execute(context.Background(), pool, []*Task{t1, t2}, ModeSequential, notifier)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if resp.Stats.Completed != 2 {
		t.Fatalf("stats = %+v, want both completed", resp.Stats)
	}
	if order[0] != "task-1" || order[1] != "task-2" {
		t.Fatalf("notifier order = %v, want [task-1 task-2]", order)
	}
}
