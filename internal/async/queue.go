// Package async runs post-analysis side effects (evidence archive, audit log)
// off the upload path.
package async

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// Job is one side effect. Run receives a context bounded by the queue's
// process timeout.
type Job struct {
	Name        string
	SessionID   string
	TraceID     string
	SubmittedAt time.Time
	Run         func(ctx context.Context) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Inline runs jobs synchronously in the caller. Used by CLIs and tests.
type Inline struct{}

func (Inline) Enqueue(ctx context.Context, job Job) error {
	if job.Run == nil {
		return nil
	}
	return job.Run(ctx)
}

func (Inline) Shutdown(context.Context) {}
