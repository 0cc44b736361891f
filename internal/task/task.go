// Package task runs long network operations on the main loop without ever
// blocking it.
//
// A Task advances by one bounded step per scheduler tick. The package never
// logs: outcomes reach the caller once, through the completion callback.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull    = errors.New("task queue full")
	ErrInvalidTask  = errors.New("task is nil or already submitted")
	ErrTimeout      = errors.New("task timed out")
	ErrAborted      = errors.New("task aborted")
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Code, e.URL)
}

// Phase is the lifecycle position of a task.
type Phase int

const (
	Pending    Phase = iota // constructed, not yet submitted
	Admitted                // queued, waiting for a concurrency slot
	InProgress              // started, advancing one step per tick
	Completed               // terminal
	Failed                  // terminal
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Admitted:
		return "admitted"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition can occur.
func (p Phase) Terminal() bool {
	return p == Completed || p == Failed
}

// Outcome is what a single progress step reports.
type Outcome int

const (
	Running Outcome = iota
	Done
	Error
)

// Result is delivered to the completion callback. Err is nil on success.
type Result struct {
	Code  int
	Body  []byte
	Bytes int64
	Files []string
	Err   error

	// Warning reports a cleanup problem of a task that still succeeded.
	Warning error
}

// Callback receives the result of a task exactly once.
type Callback func(Result)

// Preprocess transforms a successful response body before the callback sees
// it, typically projecting a large document down to the fields the caller
// needs. An error fails the task.
type Preprocess func(body []byte) ([]byte, error)

// Runner is the capability behind a task kind: start, make progress, report
// whether it finished and with what result. Start and Step must return
// quickly; Step reads only data that is already available.
type Runner interface {
	Start(now time.Time) error
	Step(now time.Time) Outcome
	Finished() bool
	Result() Result
}

// Task is a unit of asynchronous work owned by the Scheduler once submitted.
type Task struct {
	id         uuid.UUID
	kind       string
	phase      Phase
	runner     Runner
	preprocess Preprocess
	onComplete Callback
	result     Result
	tick       uint64
}

// New wraps a runner. It returns nil if runner or onComplete is nil.
func New(kind string, r Runner, onComplete Callback, preprocess Preprocess) *Task {
	if r == nil || onComplete == nil {
		return nil
	}
	return &Task{
		id:         uuid.New(),
		kind:       kind,
		phase:      Pending,
		runner:     r,
		preprocess: preprocess,
		onComplete: onComplete,
	}
}

// ID returns the opaque task handle.
func (t *Task) ID() uuid.UUID { return t.id }

// Kind names the task variant ("fetch", "batch").
func (t *Task) Kind() string { return t.kind }

// Phase returns the current phase.
func (t *Task) Phase() Phase { return t.phase }

// Result returns the terminal result; it is zero until the task finishes.
func (t *Task) Result() Result { return t.result }

// Err returns the terminal error, or nil.
func (t *Task) Err() error { return t.result.Err }

func (t *Task) start(now time.Time) {
	t.phase = InProgress
	if err := t.runner.Start(now); err != nil {
		t.finish(Result{Err: err})
	}
}

func (t *Task) step(now time.Time) {
	switch t.runner.Step(now) {
	case Running:
		if !t.runner.Finished() {
			return
		}
	case Error:
		res := t.runner.Result()
		if res.Err == nil {
			res.Err = errors.New("task failed")
		}
		t.finish(res)
		return
	}
	t.finish(t.runner.Result())
}

// finish moves the task to its terminal phase and invokes the callback. It
// is the only place the callback is called, and only once.
func (t *Task) finish(res Result) {
	if t.phase.Terminal() {
		return
	}
	if res.Err == nil && t.preprocess != nil {
		body, err := t.preprocess(res.Body)
		if err != nil {
			res.Err = fmt.Errorf("preprocess: %w", err)
		} else {
			res.Body = body
		}
	}
	t.result = res
	if res.Err != nil {
		t.phase = Failed
	} else {
		t.phase = Completed
	}
	t.onComplete(res)
}
