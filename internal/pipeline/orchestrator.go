package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"grimoire/internal/artifacts"
	"grimoire/internal/bypass"
	"grimoire/internal/ledger"
	"grimoire/internal/logging"
	"grimoire/internal/progress"
)

// DefaultCallbackTimeout bounds how long one progress event may block the
// pipeline before it is abandoned.
const DefaultCallbackTimeout = 5 * time.Second

// JobResult is the final, flattened outcome of one job.
type JobResult struct {
	JobID          string
	Status         progress.JobStatus
	ProcessingTime float64
	Environment    string
	ArtifactsPath  string
	ErrorMessage   string
	ExceptionType  string
	Worker         string
}

// Options configure an Orchestrator. Passes and ArtifactsRoot are required.
type Options struct {
	Passes          PassSet
	Callbacks       progress.Callback
	Validator       *bypass.Validator
	Artifacts       *artifacts.Manager
	ArtifactsRoot   string
	Environment     string
	CallbackTimeout time.Duration
	Worker          string
	Logger          *slog.Logger
}

// Orchestrator runs the six passes for one source at a time. It is safe to
// reuse across jobs but runs each job synchronously.
type Orchestrator struct {
	passes          PassSet
	callbacks       progress.Callback
	validator       *bypass.Validator
	artifacts       *artifacts.Manager
	artifactsRoot   string
	environment     string
	callbackTimeout time.Duration
	worker          string
	logger          *slog.Logger
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if len(opts.Passes) == 0 {
		return nil, errors.New("orchestrator needs at least one pass handler")
	}
	if opts.ArtifactsRoot == "" {
		return nil, errors.New("orchestrator needs an artifacts root")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	callbacks := opts.Callbacks
	if callbacks == nil {
		callbacks = progress.NewComposite(logger)
	}
	manager := opts.Artifacts
	if manager == nil {
		manager = artifacts.NewManager(logger)
	}
	timeout := opts.CallbackTimeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}
	worker := opts.Worker
	if worker == "" {
		if host, err := os.Hostname(); err == nil {
			worker = host
		} else {
			worker = "grimoire"
		}
	}
	return &Orchestrator{
		passes:          opts.Passes,
		callbacks:       callbacks,
		validator:       opts.Validator,
		artifacts:       manager,
		artifactsRoot:   opts.ArtifactsRoot,
		environment:     opts.Environment,
		callbackTimeout: timeout,
		worker:          worker,
		logger:          logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}, nil
}

// ProcessSource runs all six passes over one source document. The job ID is
// generated when empty. Every outcome, including a handler panic, produces a
// JobResult; ProcessSource never panics outward.
func (o *Orchestrator) ProcessSource(ctx context.Context, jobID, sourcePath string) JobResult {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	job := progress.NewJobProgress(jobID, sourcePath, o.environment)
	artifactsPath := filepath.Join(o.artifactsRoot, jobID)

	result := JobResult{
		JobID:         jobID,
		Environment:   o.environment,
		ArtifactsPath: artifactsPath,
		Worker:        o.worker,
	}

	start := time.Now()
	o.notifyJob(ctx, "on_job_start", job, o.callbacks.OnJobStart)

	errType, err := o.runPasses(ctx, job, sourcePath, artifactsPath)
	if err != nil {
		job.OverallStatus = progress.JobFailed
		result.Status = progress.JobFailed
		result.ErrorMessage = err.Error()
		result.ExceptionType = errType
		o.logger.Error("job failed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldSourcePath, sourcePath),
			logging.Error(err))
	} else {
		job.OverallStatus = progress.JobCompleted
		result.Status = progress.JobCompleted
		o.logger.Info("job completed",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldSourcePath, sourcePath))
	}
	result.ProcessingTime = time.Since(start).Seconds()

	job.CurrentPass = ""
	o.notifyJob(ctx, "on_job_complete", job, o.callbacks.OnJobComplete)
	return result
}

func (o *Orchestrator) runPasses(ctx context.Context, job *progress.JobProgress, sourcePath, artifactsPath string) (errType string, err error) {
	defer func() {
		if r := recover(); r != nil {
			errType = "panic"
			err = fmt.Errorf("pass handler panicked: %v", r)
			if pass := job.Pass(job.CurrentPass); pass != nil && !pass.Status.IsTerminal() {
				pass.Fail(err.Error(), errType)
			}
		}
	}()

	if mkErr := os.MkdirAll(artifactsPath, 0o755); mkErr != nil {
		return "io", fmt.Errorf("create artifacts directory: %w", mkErr)
	}

	fingerprint := ""
	if fp, fpErr := SourceFingerprint(sourcePath); fpErr != nil {
		o.logger.Warn("source fingerprint unavailable, bypass and ledger disabled for this job",
			logging.String(logging.FieldSourcePath, sourcePath),
			logging.Error(fpErr))
	} else {
		fingerprint = fp
	}

	job.OverallStatus = progress.JobRunning

	request := PassRequest{
		JobID:         job.JobID,
		SourcePath:    sourcePath,
		ArtifactsPath: artifactsPath,
		Environment:   o.environment,
	}

	for _, passType := range progress.AllPasses() {
		handler, ok := o.passes[passType]
		if !ok {
			return "configuration", fmt.Errorf("no handler registered for pass %s", passType)
		}

		pass := progress.NewPassProgress(passType)
		job.Passes[passType] = pass
		job.CurrentPass = passType

		o.notifyPass(ctx, "on_pass_start", job, passType, o.callbacks.OnPassStart)

		if passType == progress.PassExtraction && o.tryBypass(ctx, fingerprint, artifactsPath, pass) {
			o.notifyPass(ctx, "on_pass_complete", job, passType, o.callbacks.OnPassComplete)
			continue
		}

		pass.Begin()
		passResult := handler(ctx, request)
		if !passResult.Success {
			message := passResult.ErrorMessage
			if message == "" {
				message = fmt.Sprintf("pass %s failed", passType)
			}
			pass.Fail(message, passResult.ErrorType)
			o.notifyPass(ctx, "on_pass_failed", job, passType, o.callbacks.OnPassFailed)
			return passResult.ErrorType, fmt.Errorf("pass %s: %s", passType, message)
		}

		metrics := passResult.metrics()
		pass.Complete(metrics)
		if passType == progress.PassExtraction {
			// The ledger row is written as soon as extraction itself succeeds,
			// so a failure in a later pass cannot lose the completed work.
			o.recordProcessedSource(ctx, fingerprint, sourcePath, artifactsPath, passResult.ChunksCreated)
		}
		snapshot := job.Clone()
		o.notify(ctx, "on_pass_progress", snapshot.JobID, func(c context.Context) error {
			return o.callbacks.OnPassProgress(c, snapshot, snapshot.Pass(passType), metrics)
		})
		o.notifyPass(ctx, "on_pass_complete", job, passType, o.callbacks.OnPassComplete)
	}

	return "", nil
}

// tryBypass attempts to serve extraction from a previous run. Any obstacle
// falls back to running the pass normally; a stale ledger entry additionally
// purges its chunks so re-extraction starts clean.
func (o *Orchestrator) tryBypass(ctx context.Context, fingerprint, artifactsPath string, pass *progress.PassProgress) bool {
	if o.validator == nil || fingerprint == "" {
		return false
	}

	decision := o.validator.CanBypass(ctx, fingerprint)
	if !decision.CanBypass {
		if decision.CountMismatch {
			o.validator.RemoveChunksForSource(ctx, fingerprint)
		}
		o.logger.Info("extraction will run",
			logging.String(logging.FieldSourceHash, fingerprint),
			logging.String("reason", decision.Reason))
		return false
	}

	copyResult := o.artifacts.CopyFromPreviousRun(decision.Record.ArtifactsPath, artifactsPath)
	if !copyResult.Success {
		o.logger.Warn("bypass approved but artifact restore failed, running extraction",
			logging.String(logging.FieldSourceHash, fingerprint),
			logging.String("error", copyResult.ErrorMessage))
		return false
	}
	if err := o.artifacts.WriteBypassMarker(artifactsPath, fingerprint, decision.Reason); err != nil {
		o.logger.Warn("failed to write bypass marker", logging.Error(err))
	}

	pass.Complete(map[string]any{
		progress.MetricChunksProcessed: decision.ExpectedChunkCount,
		"bypassed":                     true,
		"chunks_loaded":                decision.ExpectedChunkCount,
		"artifacts_restored":           copyResult.ArtifactsCopied,
	})
	pass.BypassReason = decision.Reason
	o.logger.Info("extraction bypassed",
		logging.String(logging.FieldSourceHash, fingerprint),
		logging.Int("chunks_loaded", decision.VectorChunkCount))
	return true
}

func (o *Orchestrator) recordProcessedSource(ctx context.Context, fingerprint, sourcePath, artifactsPath string, chunkCount int) {
	if o.validator == nil || fingerprint == "" {
		return
	}
	err := o.validator.RecordSuccessfulProcessing(ctx, &ledger.Record{
		SourceHash:    fingerprint,
		SourcePath:    sourcePath,
		ChunkCount:    chunkCount,
		ArtifactsPath: artifactsPath,
	})
	if err != nil {
		o.logger.Warn("failed to record processed source",
			logging.String(logging.FieldSourceHash, fingerprint),
			logging.Error(err))
	}
}

// notifyJob delivers a job-level event. The callback chain gets a deep clone
// of the job state so an abandoned delivery goroutine never shares memory
// with the still-running worker.
func (o *Orchestrator) notifyJob(ctx context.Context, event string, job *progress.JobProgress, deliver func(context.Context, *progress.JobProgress) error) {
	snapshot := job.Clone()
	o.notify(ctx, event, snapshot.JobID, func(c context.Context) error {
		return deliver(c, snapshot)
	})
}

// notifyPass delivers a pass-level event against a cloned snapshot.
func (o *Orchestrator) notifyPass(ctx context.Context, event string, job *progress.JobProgress, passType progress.PassType, deliver func(context.Context, *progress.JobProgress, *progress.PassProgress) error) {
	snapshot := job.Clone()
	o.notify(ctx, event, snapshot.JobID, func(c context.Context) error {
		return deliver(c, snapshot, snapshot.Pass(passType))
	})
}

// notify delivers one event to the callback chain with a bounded wait. A slow
// or stuck subscriber is abandoned after the timeout and the pipeline moves
// on; delivery failures are logged, never propagated. Callers pass only
// snapshot state into deliver.
func (o *Orchestrator) notify(ctx context.Context, event, jobID string, deliver func(context.Context) error) {
	cctx, cancel := context.WithTimeout(ctx, o.callbackTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- deliver(cctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			o.logger.Warn("progress event delivery failed",
				logging.String(logging.FieldEventType, event),
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err))
		}
	case <-cctx.Done():
		o.logger.Warn("progress event delivery timed out",
			logging.String(logging.FieldEventType, event),
			logging.String(logging.FieldJobID, jobID),
			logging.Duration("timeout", o.callbackTimeout))
	}
}
