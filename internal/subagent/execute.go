package subagent

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects how Execute runs a batch of tasks.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// Notifier is called once per task after it reaches a terminal status.
// Sequential mode calls it right after each task finishes, in request
// order. Parallel mode calls it only once every task has finished, for
// each task in request order; it is not called from the workers as
// individual tasks finish. May be nil.
type Notifier func(task *Task)

// ExecutionStats summarizes a batch's outcome.
type ExecutionStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ExecutionResponse is the result of running a batch of tasks through
// Execute.
type ExecutionResponse struct {
	Results      []*Task
	Stats        ExecutionStats
	ErrorSummary string
}

// Execute runs tasks to completion under mode, reporting each task's
// terminal status to notifier. Sequential mode runs one task at a time,
// in order, on pool's executor directly. Parallel mode fans every task
// out across pool's bounded worker set and returns once all of them
// have reached a terminal status — one task failing, being cancelled,
// or timing out never cancels its siblings.
func Execute(ctx context.Context, pool *Pool, tasks []*Task, mode Mode, notifier Notifier) (*ExecutionResponse, error) {
	switch mode {
	case ModeParallel:
		runParallel(ctx, pool, tasks, notifier)
	default:
		runSequential(ctx, pool.executor, tasks, notifier)
	}
	return summarize(tasks), nil
}

func runSequential(ctx context.Context, executor *Executor, tasks []*Task, notifier Notifier) {
	for _, task := range tasks {
		executor.Run(ctx, task)
		if notifier != nil {
			notifier(task)
		}
	}
}

func runParallel(ctx context.Context, pool *Pool, tasks []*Task, notifier Notifier) {
	for _, task := range tasks {
		// Spawn only fails if ctx is already done before a worker slot
		// frees up; record that outcome directly since the task never ran.
		if err := pool.Spawn(ctx, task); err != nil {
			status, reason := classifyCancellation(err)
			task.setOutcome(status, reason+" before a worker slot was free")
		}
	}
	pool.Wait()
	if notifier != nil {
		for _, task := range tasks {
			notifier(task)
		}
	}
}

func summarize(tasks []*Task) *ExecutionResponse {
	resp := &ExecutionResponse{Results: tasks}
	var failures []*Task
	for _, t := range tasks {
		resp.Stats.Total++
		switch t.Status() {
		case StatusCompleted:
			resp.Stats.Completed++
		default:
			resp.Stats.Failed++
			failures = append(failures, t)
		}
	}
	if len(failures) > 0 {
		resp.ErrorSummary = buildErrorSummary(failures, resp.Stats.Total)
	}
	return resp
}

// buildErrorSummary renders one block per failed task: its id,
// description, terminal-status reason, and whatever partial output it
// produced before being cut off (or "No output captured" when none was).
func buildErrorSummary(failures []*Task, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d task(s) did not complete:\n", len(failures), total)
	for _, t := range failures {
		output := t.PartialOutput()
		if output == "" {
			output = "No output captured"
		}
		fmt.Fprintf(&b, "\nTask '%s' (%s): %s\nError: %s\nOutput: %s\n", t.ID, t.Label, t.Status(), t.Result(), output)
	}
	return strings.TrimRight(b.String(), "\n")
}
