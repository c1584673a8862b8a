package jobstatus

import (
	"time"

	"grimoire/internal/progress"
)

// State represents the lifecycle of a job status record.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// PassSummary is the flattened per-pass slice of a record.
type PassSummary struct {
	Status          string `json:"status"`
	DurationMillis  int64  `json:"duration_ms,omitempty"`
	TOCEntries      int    `json:"toc_entries,omitempty"`
	ChunksProcessed int    `json:"chunks_processed,omitempty"`
	VectorsCreated  int    `json:"vectors_created,omitempty"`
	GraphNodes      int    `json:"graph_nodes,omitempty"`
	GraphEdges      int    `json:"graph_edges,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	BypassReason    string `json:"bypass_reason,omitempty"`
}

// Record is the serializable projection of one job. A record lives in exactly
// one of the store's two sets (active or completed), never both.
type Record struct {
	JobID           string                 `json:"job_id"`
	SourcePath      string                 `json:"source_path"`
	Environment     string                 `json:"environment"`
	State           State                  `json:"status"`
	CurrentPass     string                 `json:"current_pass,omitempty"`
	ProgressPercent float64                `json:"progress_percent"`
	Passes          map[string]PassSummary `json:"passes,omitempty"`
	QueuedAt        time.Time              `json:"queued_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	EndedAt         *time.Time             `json:"ended_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
	ProcessingTime  float64                `json:"processing_time_seconds,omitempty"`
	WaitTime        float64                `json:"wait_time_seconds,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	ArtifactsPath   string                 `json:"artifacts_path,omitempty"`
	Worker          string                 `json:"thread_name,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Result carries the terminal fields applied by CompleteJob.
type Result struct {
	Status         State
	EndedAt        time.Time
	ProcessingTime float64
	ErrorMessage   string
	ArtifactsPath  string
	Worker         string
}

// Stats aggregates completed and active job counts for one environment
// (or all environments when the filter is empty).
type Stats struct {
	ActiveJobs            int     `json:"active_jobs"`
	TotalCompleted        int     `json:"total_completed"`
	Successful            int     `json:"successful"`
	Failed                int     `json:"failed"`
	SuccessRate           float64 `json:"success_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

func (r *Record) clone() *Record {
	cp := *r
	if r.Passes != nil {
		cp.Passes = make(map[string]PassSummary, len(r.Passes))
		for name, summary := range r.Passes {
			cp.Passes[name] = summary
		}
	}
	return &cp
}

// stateFromProgress maps live job status onto the record lifecycle.
func stateFromProgress(status progress.JobStatus) State {
	switch status {
	case progress.JobRunning:
		return StateRunning
	case progress.JobCompleted:
		return StateCompleted
	case progress.JobFailed:
		return StateFailed
	default:
		return StateQueued
	}
}

// projectProgress flattens live progress into record fields, leaving
// queue/bookkeeping fields for the store to manage.
func projectProgress(job *progress.JobProgress) *Record {
	record := &Record{
		JobID:           job.JobID,
		SourcePath:      job.SourcePath,
		Environment:     job.Environment,
		State:           stateFromProgress(job.OverallStatus),
		CurrentPass:     string(job.CurrentPass),
		ProgressPercent: job.Percentage(),
		QueuedAt:        job.StartTime,
		CreatedAt:       job.StartTime,
	}
	if job.OverallStatus != progress.JobStarting {
		started := job.StartTime
		record.StartedAt = &started
	}
	if len(job.Passes) > 0 {
		record.Passes = make(map[string]PassSummary, len(job.Passes))
		for passType, pass := range job.Passes {
			summary := PassSummary{
				Status:          string(pass.Status),
				TOCEntries:      pass.TOCEntries,
				ChunksProcessed: pass.ChunksProcessed,
				VectorsCreated:  pass.VectorsCreated,
				GraphNodes:      pass.GraphNodes,
				GraphEdges:      pass.GraphEdges,
				ErrorMessage:    pass.ErrorMessage,
				BypassReason:    pass.BypassReason,
			}
			if pass.DurationMillis != nil {
				summary.DurationMillis = *pass.DurationMillis
			}
			record.Passes[string(passType)] = summary
		}
	}
	return record
}
