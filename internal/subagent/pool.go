package subagent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent bounds how many subagent tasks may run at once.
const DefaultMaxConcurrent = 8

// Pool runs subagent tasks on a bounded worker set so a burst of spawns
// from an agent's tool calls can't exhaust provider rate limits or the
// host process's resources. The semaphore still gates admission (so a
// caller blocked on a full pool can bail out via ctx), while the
// errgroup tracks the in-flight goroutines themselves instead of a raw
// WaitGroup — goroutine errors never escape here (a task's own failure
// is recorded on the Task, not returned).
type Pool struct {
	sem      chan struct{}
	executor *Executor

	mu    sync.Mutex
	tasks map[string]*Task
	g     errgroup.Group
}

func NewPool(executor *Executor, maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Pool{
		sem:      make(chan struct{}, maxConcurrent),
		executor: executor,
		tasks:    make(map[string]*Task),
	}
}

// Spawn starts task running on the pool, blocking only until a worker
// slot is free or ctx is cancelled, then returns immediately. The task's
// Status()/Result() become meaningful once it finishes; use Wait or
// poll Status to observe completion.
func (p *Pool) Spawn(ctx context.Context, task *Task) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.tasks[task.ID] = task
	p.mu.Unlock()

	p.g.Go(func() error {
		defer func() { <-p.sem }()
		p.executor.Run(ctx, task)
		return nil
	})
	return nil
}

// Get returns a previously spawned task by ID.
func (p *Pool) Get(id string) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[id]
	return t, ok
}

// Wait blocks until every task spawned on this pool has finished.
func (p *Pool) Wait() {
	_ = p.g.Wait()
}

// RunningForParent counts tasks under parentID that haven't reached a
// terminal status yet.
func (p *Pool) RunningForParent(parentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, t := range p.tasks {
		if t.ParentID != parentID {
			continue
		}
		switch t.Status() {
		case StatusPending, StatusRunning:
			count++
		}
	}
	return count
}
