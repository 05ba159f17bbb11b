package bscript

import (
	"runtime"

	"github.com/cockroachdb/errors"
)

// TaskStatus describes where a [Task] is in its lifecycle.
type TaskStatus int

const (
	TaskCreated TaskStatus = iota
	TaskRunning
	TaskSuspended
	TaskFinished
	TaskFailed
	TaskAbandoned
)

func (s TaskStatus) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskRunning:
		return "running"
	case TaskSuspended:
		return "suspended"
	case TaskFinished:
		return "finished"
	case TaskFailed:
		return "failed"
	case TaskAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether a task in this status will never run again.
func (s TaskStatus) Terminal() bool {
	return s == TaskFinished || s == TaskFailed || s == TaskAbandoned
}

// ErrTaskDone is returned when stepping a task that already reached a terminal status.
var ErrTaskDone = errors.New("task is done")

// Event is what a single step of a [Task] produced.
type Event struct {
	Status TaskStatus
	Err    error
}

type taskEvent struct {
	status TaskStatus
	err    error
}

// Task runs a script body as a coroutine. The body runs on its own goroutine but never concurrently with the code
// that steps it: [Task.Step] blocks until the body suspends, aborts or returns. The body keeps its stack across
// suspensions, which is what lets a script yield from deep inside a call into the host.
type Task struct {
	body    func(t *Task) error
	status  TaskStatus
	resumec chan bool
	eventc  chan taskEvent
}

// NewTask inits a task that will run body on the first call to [Task.Step].
func NewTask(body func(t *Task) error) *Task {
	return &Task{
		body:    body,
		resumec: make(chan bool),
		eventc:  make(chan taskEvent),
	}
}

// Status returns the status after the last step.
func (t *Task) Status() TaskStatus { return t.status }

// Step starts or resumes the body and blocks until it hands control back.
func (t *Task) Step() (Event, error) {
	switch t.status {
	case TaskCreated:
		t.status = TaskRunning
		go t.run()
	case TaskSuspended:
		t.status = TaskRunning
		t.resumec <- true
	default:
		return Event{Status: t.status}, errors.Wrapf(ErrTaskDone, "cannot step a %s task", t.status)
	}

	ev := <-t.eventc
	t.status = ev.status

	return Event{Status: ev.status, Err: ev.err}, nil
}

// Abandon ends a suspended task without running any more of its body. It is a no-op for a task that is not
// suspended, a task that never started is simply marked abandoned.
func (t *Task) Abandon() {
	switch t.status {
	case TaskCreated:
		t.status = TaskAbandoned
	case TaskSuspended:
		t.status = TaskAbandoned
		t.resumec <- false
	default:
	}
}

// Suspend hands control back to the caller of [Task.Step]. It must only be called from the body. It returns when the
// task is stepped again, there is no resume value. If the task is abandoned instead, Suspend does not return.
func (t *Task) Suspend() {
	t.eventc <- taskEvent{status: TaskSuspended}
	if !<-t.resumec {
		runtime.Goexit()
	}
}

// Abort ends the task from within the body with err, without returning to the body's caller. It must only be called
// from the body and does not return.
func (t *Task) Abort(err error) {
	t.eventc <- taskEvent{status: TaskFailed, err: err}
	runtime.Goexit()
}

func (t *Task) run() {
	var returned bool

	defer func() {
		if returned {
			return
		}

		if p := recover(); p != nil {
			t.eventc <- taskEvent{status: TaskFailed, err: errors.Newf("panic in task: %v", p)}
		}
		// Goexit from Suspend or Abort: whoever ended the task is no longer waiting for an event.
	}()

	err := t.body(t)
	returned = true

	t.eventc <- taskEvent{status: TaskFinished, err: err}
}
