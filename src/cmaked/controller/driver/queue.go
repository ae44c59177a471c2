package driver

import (
	"context"

	"github.com/uber/cmake-driver/src/cmaked/internal/errors"
)

// taskQueue runs submitted tasks one at a time on a single worker goroutine.
// Configure, clean, restart, and stop all flow through the queue, so a
// restart can never overlap an in-flight configure.
type taskQueue struct {
	tasks chan *queuedTask
	quit  chan struct{}
	done  chan struct{}
}

type queuedTask struct {
	fn  func() error
	err chan error
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{
		tasks: make(chan *queuedTask),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go q.worker()
	return q
}

func (q *taskQueue) worker() {
	defer close(q.done)
	for {
		select {
		case t := <-q.tasks:
			t.err <- t.fn()
		case <-q.quit:
			return
		}
	}
}

// run submits fn and waits for it to finish. Submission is abandoned if ctx
// is cancelled first; once fn starts it runs to completion.
func (q *taskQueue) run(ctx context.Context, fn func() error) error {
	t := &queuedTask{fn: fn, err: make(chan error, 1)}
	select {
	case q.tasks <- t:
	case <-q.quit:
		return errors.ErrDriverClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-t.err
}

// close stops the worker after the current task, if any, finishes.
func (q *taskQueue) close() {
	close(q.quit)
	<-q.done
}