package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"grimoire/internal/artifacts"
	"grimoire/internal/bypass"
	"grimoire/internal/jobstatus"
	"grimoire/internal/logging"
	"grimoire/internal/passes"
	"grimoire/internal/pipeline"
	"grimoire/internal/progress"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <source> [source...]",
		Short: "Run the six-pass ingestion pipeline over one or more sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			store, err := ctx.openStatusStore(jobstatus.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("open job status store: %w", err)
			}
			defer store.Close()

			ledgerStore, err := ctx.openLedger()
			if err != nil {
				return fmt.Errorf("open processing ledger: %w", err)
			}
			defer ledgerStore.Close()

			index, err := ctx.openVectorIndex()
			if err != nil {
				return fmt.Errorf("open chunk index: %w", err)
			}
			defer index.Close()

			var validator *bypass.Validator
			if cfg.Pipeline.BypassEnabled {
				validator = bypass.NewValidator(ledgerStore, index, cfg.Pipeline.Environment, logger)
			}

			callbacks := progress.NewComposite(logger,
				progress.NewLogCallback(logger),
				jobstatus.NewRecorder(store),
			)

			orch, err := pipeline.NewOrchestrator(pipeline.Options{
				Passes:          passes.NewBuiltinSet(index, logger),
				Callbacks:       callbacks,
				Validator:       validator,
				Artifacts:       artifacts.NewManager(logger),
				ArtifactsRoot:   cfg.Paths.ArtifactsDir,
				Environment:     cfg.Pipeline.Environment,
				CallbackTimeout: time.Duration(cfg.Pipeline.CallbackTimeout) * time.Second,
				Logger:          logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var firstErr error
			for _, source := range args {
				jobID := uuid.NewString()
				if _, err := store.CreateJob(jobID, source, cfg.Pipeline.Environment); err != nil {
					return fmt.Errorf("register job for %s: %w", source, err)
				}

				result := orch.ProcessSource(cmd.Context(), jobID, source)
				if err := store.CompleteJob(jobID, jobstatus.Result{
					Status:         stateFromJobStatus(result.Status),
					EndedAt:        time.Now().UTC(),
					ProcessingTime: result.ProcessingTime,
					ErrorMessage:   result.ErrorMessage,
					ArtifactsPath:  result.ArtifactsPath,
					Worker:         result.Worker,
				}); err != nil {
					logger.Warn("failed to finalize job record",
						logging.String(logging.FieldJobID, jobID),
						logging.Error(err))
				}

				if result.Status == progress.JobCompleted {
					fmt.Fprintf(out, "%s: completed in %.1fs (artifacts: %s)\n",
						source, result.ProcessingTime, result.ArtifactsPath)
				} else {
					fmt.Fprintf(out, "%s: FAILED after %.1fs: %s\n",
						source, result.ProcessingTime, result.ErrorMessage)
					if firstErr == nil {
						firstErr = fmt.Errorf("processing %s failed: %s", source, result.ErrorMessage)
					}
				}
			}
			return firstErr
		},
	}
}

func stateFromJobStatus(status progress.JobStatus) jobstatus.State {
	if status == progress.JobCompleted {
		return jobstatus.StateCompleted
	}
	return jobstatus.StateFailed
}
