package jobstatus

import (
	"context"

	"grimoire/internal/progress"
)

// Recorder is the store-backed progress callback: every lifecycle event
// re-projects the live job snapshot into the store.
type Recorder struct {
	store *Store
}

// NewRecorder builds the store-backed callback.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) OnJobStart(_ context.Context, job *progress.JobProgress) error {
	return r.store.UpdateFromProgress(job)
}

func (r *Recorder) OnPassStart(_ context.Context, job *progress.JobProgress, _ *progress.PassProgress) error {
	return r.store.UpdateFromProgress(job)
}

func (r *Recorder) OnPassProgress(_ context.Context, job *progress.JobProgress, _ *progress.PassProgress, _ map[string]any) error {
	return r.store.UpdateFromProgress(job)
}

func (r *Recorder) OnPassComplete(_ context.Context, job *progress.JobProgress, _ *progress.PassProgress) error {
	return r.store.UpdateFromProgress(job)
}

func (r *Recorder) OnPassFailed(_ context.Context, job *progress.JobProgress, _ *progress.PassProgress) error {
	return r.store.UpdateFromProgress(job)
}

func (r *Recorder) OnJobComplete(_ context.Context, job *progress.JobProgress) error {
	return r.store.UpdateFromProgress(job)
}
