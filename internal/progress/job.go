package progress

import (
	"time"
)

// JobStatus represents the overall lifecycle of one ingestion job.
type JobStatus string

const (
	JobStarting  JobStatus = "starting"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobProgress is the live progress state of one six-pass run over a single
// source document. It is owned by the orchestrator goroutine driving the job;
// callbacks receive a Clone taken at notification time, never the live state.
type JobProgress struct {
	JobID         string                     `json:"job_id"`
	SourcePath    string                     `json:"source_path"`
	Environment   string                     `json:"environment"`
	StartTime     time.Time                  `json:"start_time"`
	Passes        map[PassType]*PassProgress `json:"passes"`
	CurrentPass   PassType                   `json:"current_pass,omitempty"`
	OverallStatus JobStatus                  `json:"overall_status"`
}

// NewJobProgress creates job state for a fresh run.
func NewJobProgress(jobID, sourcePath, environment string) *JobProgress {
	return &JobProgress{
		JobID:         jobID,
		SourcePath:    sourcePath,
		Environment:   environment,
		StartTime:     time.Now().UTC(),
		Passes:        make(map[PassType]*PassProgress, len(passOrder)),
		OverallStatus: JobStarting,
	}
}

// Pass returns the progress entry for a pass, or nil when it has not started.
func (j *JobProgress) Pass(passType PassType) *PassProgress {
	return j.Passes[passType]
}

// Clone returns a deep copy safe to read from another goroutine while the
// owning run keeps mutating the original.
func (j *JobProgress) Clone() *JobProgress {
	cp := *j
	cp.Passes = make(map[PassType]*PassProgress, len(j.Passes))
	for passType, pass := range j.Passes {
		cp.Passes[passType] = pass.Clone()
	}
	return &cp
}

// Percentage returns weighted overall progress in [0, 100]. A completed pass
// contributes its full weight, a starting or in-progress pass contributes half,
// and everything else (including passes not yet created) contributes nothing.
func (j *JobProgress) Percentage() float64 {
	var total float64
	for _, passType := range passOrder {
		pass, ok := j.Passes[passType]
		if !ok {
			continue
		}
		switch pass.Status {
		case PassCompleted:
			total += float64(passType.Weight())
		case PassStarting, PassInProgress:
			total += float64(passType.Weight()) * 0.5
		}
	}
	return total
}

// EstimatedCompletion projects the remaining duration from elapsed time and
// current percentage. The boolean is false when no progress has been made yet.
func (j *JobProgress) EstimatedCompletion(now time.Time) (time.Duration, bool) {
	pct := j.Percentage()
	if pct <= 0 {
		return 0, false
	}
	elapsed := now.Sub(j.StartTime)
	estimatedTotal := time.Duration(float64(elapsed) / (pct / 100))
	return estimatedTotal - elapsed, true
}
