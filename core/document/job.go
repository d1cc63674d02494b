package document

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/ceparser/internal/logging"
)

// Status is the lifecycle state of a Job.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusDone
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Job is a parse running in the background.
type Job struct {
	// ID identifies the job in logs.
	ID string

	doc    *Document
	done   chan struct{}
	cancel context.CancelFunc
	status atomic.Int32
	err    error
}

// Start parses d on a new goroutine. Cancelling ctx, or calling Cancel, before
// the parse begins prevents it; a parse that has begun always runs to the end.
func (d *Document) Start(ctx context.Context) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		ID:     uuid.NewString(),
		doc:    d,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go j.run(logging.WithJobID(ctx, j.ID))
	return j
}

func (j *Job) run(ctx context.Context) {
	defer close(j.done)
	defer j.cancel()

	if err := ctx.Err(); err != nil {
		j.err = err
		j.status.Store(int32(StatusCancelled))
		logging.DebugContext(ctx, "parse job cancelled before start", "name", j.doc.name)
		return
	}
	j.status.Store(int32(StatusRunning))
	logging.DebugContext(ctx, "parse job started", "name", j.doc.name)
	j.err = j.doc.Parse()
	j.status.Store(int32(StatusDone))
}

// Done is closed when the job has finished or was cancelled.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job ends and returns the document. The error is the
// cancellation cause when the parse never started, or the Parse error.
func (j *Job) Wait() (*Document, error) {
	<-j.done
	return j.doc, j.err
}

// Cancel prevents the parse from starting if it has not started yet.
func (j *Job) Cancel() { j.cancel() }

// Status reports the current state.
func (j *Job) Status() Status { return Status(j.status.Load()) }
