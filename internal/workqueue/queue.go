// Package workqueue provides a FIFO queue whose tasks run strictly one at a time.
//
// Tasks are executed on a worker goroutine that is started on demand and exits
// as soon as the queue is empty, so an idle Queue holds no goroutine.
package workqueue

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is passed to the abort callback of tasks that are submitted to, or
// still pending on, a closed queue.
var ErrClosed = errors.New("workqueue: queue closed")

const (
	statePending int32 = iota
	stateStarted
	stateCancelled
)

type task struct {
	run   func()
	abort func(error)
	state atomic.Int32
}

// Ticket identifies a submitted task.
type Ticket struct {
	t *task
}

// Cancel withdraws the task if it has not started yet. It reports whether the
// task was withdrawn; a withdrawn task never runs and its abort callback is
// never called.
func (tk Ticket) Cancel() bool {
	if tk.t == nil {
		return false
	}
	return tk.t.state.CompareAndSwap(statePending, stateCancelled)
}

// Queue runs submitted tasks one at a time in submission order.
// The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []*task
	running bool
	closed  bool
}

// Submit appends run to the queue. run starts only after every task submitted
// before it has returned. If the queue is closed before run starts, abort is
// called with ErrClosed instead. abort may be nil.
func (q *Queue) Submit(run func(), abort func(error)) Ticket {
	t := &task{run: run, abort: abort}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.state.Store(stateStarted)
		t.fail(ErrClosed)
		return Ticket{t: t}
	}
	q.pending = append(q.pending, t)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return Ticket{t: t}
}

// Close stops the queue. The task currently running, if any, completes
// normally. Pending tasks are aborted with ErrClosed before Close returns, and
// so are tasks submitted later.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, t := range pending {
		if t.state.CompareAndSwap(statePending, stateStarted) {
			t.fail(ErrClosed)
		}
	}
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		closed := q.closed
		q.mu.Unlock()

		if !t.state.CompareAndSwap(statePending, stateStarted) {
			continue // cancelled by its submitter
		}
		if closed {
			t.fail(ErrClosed)
			continue
		}
		t.run()
	}
}

func (t *task) fail(err error) {
	if t.abort != nil {
		t.abort(err)
	}
}
