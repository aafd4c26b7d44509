package importer

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle state of a job. Completed, cancelled, and failed are
// terminal.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Request describes the range to import for one owner.
type Request struct {
	Owner      string
	OwnerEmail string
	From       time.Time
	To         time.Time
}

// Status is a point-in-time view of a job.
type Status struct {
	ID         string
	Owner      string
	State      State
	From       time.Time
	To         time.Time
	Progress   Progress
	StartedAt  time.Time
	FinishedAt *time.Time
	Message    string
}

// Job is one running streaming import. Consumers must drain Events until it
// is closed; the job blocks while the buffer is full.
type Job struct {
	id      string
	owner   string
	request Request
	chunks  []Chunk

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	done   chan struct{}

	mu         sync.Mutex
	state      State
	progress   Progress
	startedAt  time.Time
	finishedAt *time.Time
	message    string
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Owner returns the owning account.
func (j *Job) Owner() string { return j.owner }

// Events returns the progress stream. It is closed after the terminal event.
func (j *Job) Events() <-chan Event { return j.events }

// Done is closed once the job reaches a terminal state and its last event has
// been delivered.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel requests cooperative cancellation. It is safe to call repeatedly and
// after the job finished.
func (j *Job) Cancel() { j.cancel() }

// Discard drains the event stream in the background, for callers that stop
// listening before the job ends.
func (j *Job) Discard() {
	go func() {
		for range j.events {
		}
	}()
}

// Status returns a snapshot of the job.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Status{
		ID:         j.id,
		Owner:      j.owner,
		State:      j.state,
		From:       j.request.From,
		To:         j.request.To,
		Progress:   j.progress,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
		Message:    j.message,
	}
}

func (j *Job) cancelled() bool {
	return j.ctx.Err() != nil
}

// bump applies fn to the counters and returns the new values.
func (j *Job) bump(fn func(p *Progress)) Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.progress)
	return j.progress
}

func (j *Job) snapshotProgress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *Job) finish(state State, message string, at time.Time) Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	j.message = message
	j.finishedAt = &at
	return j.progress
}
