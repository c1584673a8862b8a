package progress

import (
	"context"
	"fmt"
	"log/slog"

	"grimoire/internal/logging"
)

// Callback receives job lifecycle events. Implementations must tolerate being
// invoked from a pipeline worker goroutine and should honor the context, which
// carries the orchestrator's per-callback deadline.
type Callback interface {
	OnJobStart(ctx context.Context, job *JobProgress) error
	OnPassStart(ctx context.Context, job *JobProgress, pass *PassProgress) error
	OnPassProgress(ctx context.Context, job *JobProgress, pass *PassProgress, metrics map[string]any) error
	OnPassComplete(ctx context.Context, job *JobProgress, pass *PassProgress) error
	OnPassFailed(ctx context.Context, job *JobProgress, pass *PassProgress) error
	OnJobComplete(ctx context.Context, job *JobProgress) error
}

// Composite fans one event out to an ordered list of callbacks. Each child is
// invoked in registration order and awaited before the next. A child's error or
// panic is logged and swallowed so that one broken subscriber cannot starve the
// rest of the event.
type Composite struct {
	callbacks []Callback
	logger    *slog.Logger
}

// NewComposite builds a composite over the given callbacks.
func NewComposite(logger *slog.Logger, callbacks ...Callback) *Composite {
	return &Composite{
		callbacks: append([]Callback{}, callbacks...),
		logger:    logging.NewComponentLogger(logger, "progress"),
	}
}

// Add appends a callback to the invocation order.
func (c *Composite) Add(callback Callback) {
	if callback != nil {
		c.callbacks = append(c.callbacks, callback)
	}
}

func (c *Composite) OnJobStart(ctx context.Context, job *JobProgress) error {
	c.each(ctx, "on_job_start", job, func(cb Callback) error {
		return cb.OnJobStart(ctx, job)
	})
	return nil
}

func (c *Composite) OnPassStart(ctx context.Context, job *JobProgress, pass *PassProgress) error {
	c.each(ctx, "on_pass_start", job, func(cb Callback) error {
		return cb.OnPassStart(ctx, job, pass)
	})
	return nil
}

func (c *Composite) OnPassProgress(ctx context.Context, job *JobProgress, pass *PassProgress, metrics map[string]any) error {
	c.each(ctx, "on_pass_progress", job, func(cb Callback) error {
		return cb.OnPassProgress(ctx, job, pass, metrics)
	})
	return nil
}

func (c *Composite) OnPassComplete(ctx context.Context, job *JobProgress, pass *PassProgress) error {
	c.each(ctx, "on_pass_complete", job, func(cb Callback) error {
		return cb.OnPassComplete(ctx, job, pass)
	})
	return nil
}

func (c *Composite) OnPassFailed(ctx context.Context, job *JobProgress, pass *PassProgress) error {
	c.each(ctx, "on_pass_failed", job, func(cb Callback) error {
		return cb.OnPassFailed(ctx, job, pass)
	})
	return nil
}

func (c *Composite) OnJobComplete(ctx context.Context, job *JobProgress) error {
	c.each(ctx, "on_job_complete", job, func(cb Callback) error {
		return cb.OnJobComplete(ctx, job)
	})
	return nil
}

func (c *Composite) each(ctx context.Context, event string, job *JobProgress, invoke func(Callback) error) {
	for _, callback := range c.callbacks {
		if err := c.invokeOne(callback, invoke); err != nil {
			jobID := ""
			if job != nil {
				jobID = job.JobID
			}
			c.logger.Warn("progress callback failed",
				logging.String("event", event),
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *Composite) invokeOne(callback Callback, invoke func(Callback) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return invoke(callback)
}
