// Package loop provides the host task loop the scheduler yields to between
// fired commands.
package loop

import (
	"context"
	"fmt"
)

// Task is a unit of deferred work. A non-nil error stops the loop that runs
// it.
type Task func() error

// Yielder defers a task by one scheduling turn. Implementations must run
// deferred tasks eventually and in the order they were yielded.
type Yielder interface {
	Yield(task Task)
}

// YielderFunc adapts a function to the Yielder interface.
type YielderFunc func(Task)

// Yield calls f(task).
func (f YielderFunc) Yield(task Task) {
	f(task)
}

// TaskQueue is a deterministic FIFO task loop. Tasks yielded while the loop
// runs are appended and run in later turns. It is not safe for concurrent
// use.
type TaskQueue struct {
	tasks []Task
	turns uint64
}

// NewTaskQueue creates an empty TaskQueue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Yield appends task to the queue.
func (q *TaskQueue) Yield(task Task) {
	q.tasks = append(q.tasks, task)
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// Turns returns the number of tasks run so far.
func (q *TaskQueue) Turns() uint64 {
	return q.turns
}

// RunOnce runs the oldest pending task. It reports whether a task ran.
func (q *TaskQueue) RunOnce() (bool, error) {
	if len(q.tasks) == 0 {
		return false, nil
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.turns++
	if err := task(); err != nil {
		return true, fmt.Errorf("turn %d: %w", q.turns, err)
	}
	return true, nil
}

// Run runs tasks until the queue is empty or a task returns an error.
// Panics raised by a task propagate to the caller.
func (q *TaskQueue) Run() error {
	return q.RunContext(context.Background())
}

// RunContext is like Run but also stops, between turns, when ctx is done.
func (q *TaskQueue) RunContext(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ran, err := q.RunOnce()
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}
