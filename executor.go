package bscript

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/eapache/queue"
)

// ErrExecutorClosed is reported for tasks that were still queued when their executor closed.
var ErrExecutorClosed = errors.New("executor is closed")

// DecideFunc is called by the executor every time a task suspends. Returning true resumes the task, false finalizes
// it: the task is abandoned and the suspension event is delivered as the task's outcome.
type DecideFunc func(ev Event) (resume bool)

type job struct {
	ctx    context.Context
	task   *Task
	decide DecideFunc
	done   chan Event
}

// Executor is an event loop that steps tasks one at a time. A task that suspends and is resumed goes to the back of
// the run queue, so every suspension is a point where other requests get to run.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ready   *queue.Queue
	closed  bool
	stopped chan struct{}
}

// NewExecutor inits an executor and starts its loop.
func NewExecutor() *Executor {
	e := &Executor{ready: queue.New(), stopped: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)

	go e.loop()

	return e
}

// Spawn queues the task. The returned channel receives the event that ended the task: it finished, failed, was
// finalized while suspended, or was abandoned because ctx was done before it could be stepped again.
func (e *Executor) Spawn(ctx context.Context, t *Task, decide DecideFunc) <-chan Event {
	j := &job{ctx: ctx, task: t, decide: decide, done: make(chan Event, 1)}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		e.abandon(j, ErrExecutorClosed)
		return j.done
	}

	e.ready.Add(j)
	e.cond.Signal()

	return j.done
}

// Close stops the loop. Tasks that are still queued are abandoned.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()

	<-e.stopped
}

func (e *Executor) loop() {
	defer close(e.stopped)

	for {
		e.mu.Lock()
		for e.ready.Length() == 0 && !e.closed {
			e.cond.Wait()
		}

		if e.ready.Length() == 0 {
			e.mu.Unlock()
			return
		}

		j := e.ready.Remove().(*job) //nolint:forcetypeassert
		closed := e.closed
		e.mu.Unlock()

		if closed {
			e.abandon(j, ErrExecutorClosed)
			continue
		}

		if e.step(j) {
			e.mu.Lock()
			e.ready.Add(j)
			e.mu.Unlock()
		}
	}
}

func (e *Executor) step(j *job) (requeue bool) {
	if err := j.ctx.Err(); err != nil {
		e.abandon(j, err)
		return false
	}

	ev, err := j.task.Step()
	if err != nil {
		j.done <- Event{Status: j.task.Status(), Err: err}
		return false
	}

	if ev.Status != TaskSuspended {
		j.done <- ev
		return false
	}

	if j.decide(ev) {
		return true
	}

	j.task.Abandon()
	j.done <- ev

	return false
}

func (e *Executor) abandon(j *job, err error) {
	j.task.Abandon()
	j.done <- Event{Status: TaskAbandoned, Err: err}
}

// ExecutorPool spreads tasks over a fixed number of executors.
type ExecutorPool struct {
	execs []*Executor
	next  atomic.Uint64
}

// NewExecutorPool starts n executors, at least one.
func NewExecutorPool(n int) *ExecutorPool {
	p := &ExecutorPool{execs: make([]*Executor, max(n, 1))}
	for i := range p.execs {
		p.execs[i] = NewExecutor()
	}

	return p
}

// Spawn queues the task on the next executor in turn.
func (p *ExecutorPool) Spawn(ctx context.Context, t *Task, decide DecideFunc) <-chan Event {
	i := p.next.Add(1) - 1
	return p.execs[i%uint64(len(p.execs))].Spawn(ctx, t, decide)
}

// Close closes all executors.
func (p *ExecutorPool) Close() {
	for _, e := range p.execs {
		e.Close()
	}
}
