package progress

import (
	"context"
	"log/slog"
	"time"

	"grimoire/internal/logging"
)

// LogCallback writes job lifecycle events to structured logs. It is the
// default subscriber wired by the CLI.
type LogCallback struct {
	logger *slog.Logger
}

// NewLogCallback builds a logging subscriber.
func NewLogCallback(logger *slog.Logger) *LogCallback {
	return &LogCallback{logger: logging.NewComponentLogger(logger, "pipeline")}
}

func (l *LogCallback) OnJobStart(_ context.Context, job *JobProgress) error {
	l.logger.Info("job started",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.String(logging.FieldEnvironment, job.Environment),
	)
	return nil
}

func (l *LogCallback) OnPassStart(_ context.Context, job *JobProgress, pass *PassProgress) error {
	l.logger.Info("pass started",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldPass, string(pass.Type)),
	)
	return nil
}

func (l *LogCallback) OnPassProgress(_ context.Context, job *JobProgress, pass *PassProgress, metrics map[string]any) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldPass, string(pass.Type)),
		logging.Float64("percent", job.Percentage()),
	}
	for key, value := range metrics {
		attrs = append(attrs, logging.Any(key, value))
	}
	l.logger.Debug("pass progress", logging.Args(attrs...)...)
	return nil
}

func (l *LogCallback) OnPassComplete(_ context.Context, job *JobProgress, pass *PassProgress) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldPass, string(pass.Type)),
		logging.Float64("percent", job.Percentage()),
	}
	if pass.DurationMillis != nil {
		attrs = append(attrs, logging.Int64("duration_ms", *pass.DurationMillis))
	}
	if pass.BypassReason != "" {
		attrs = append(attrs, logging.String("bypass_reason", pass.BypassReason))
	}
	if remaining, ok := job.EstimatedCompletion(time.Now()); ok && job.OverallStatus == JobRunning {
		attrs = append(attrs, logging.Duration("eta", remaining.Round(time.Second)))
	}
	l.logger.Info("pass completed", logging.Args(attrs...)...)
	return nil
}

func (l *LogCallback) OnPassFailed(_ context.Context, job *JobProgress, pass *PassProgress) error {
	l.logger.Error("pass failed",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String(logging.FieldPass, string(pass.Type)),
		logging.String("error_message", pass.ErrorMessage),
		logging.String("error_type", pass.ErrorType),
	)
	return nil
}

func (l *LogCallback) OnJobComplete(_ context.Context, job *JobProgress) error {
	l.logger.Info("job finished",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String("overall_status", string(job.OverallStatus)),
		logging.Float64("percent", job.Percentage()),
	)
	return nil
}
