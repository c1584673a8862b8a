package bypass

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"grimoire/internal/ledger"
	"grimoire/internal/logging"
	"grimoire/internal/vectorstore"
)

// Decision is the outcome of a bypass check. Reason is always populated so
// operators can see why extraction ran or was skipped.
type Decision struct {
	CanBypass          bool
	Reason             string
	Record             *ledger.Record
	VectorChunkCount   int
	ExpectedChunkCount int
	CountMismatch      bool
}

// Validator answers whether a source's extraction output can be reused from a
// previous run. It degrades instead of failing: any backend trouble yields a
// deny decision and the pipeline runs extraction normally.
type Validator struct {
	ledger      *ledger.Store
	vectors     vectorstore.Store
	environment string
	logger      *slog.Logger
}

func NewValidator(store *ledger.Store, vectors vectorstore.Store, environment string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{
		ledger:      store,
		vectors:     vectors,
		environment: environment,
		logger:      logger.With(logging.String(logging.FieldComponent, "bypass")),
	}
}

// CheckSourceProcessed looks up the ledger record for a source in the
// validator's environment. A missing record is (nil, nil).
func (v *Validator) CheckSourceProcessed(ctx context.Context, sourceHash string) (*ledger.Record, error) {
	return v.ledger.Get(ctx, sourceHash, v.environment)
}

// VectorChunkCount returns the live chunk count for a source. Backend errors
// are logged and reported as zero so the caller denies bypass rather than
// aborting the job.
func (v *Validator) VectorChunkCount(ctx context.Context, sourceHash string) int {
	count, err := v.vectors.CountDocumentsForSource(ctx, sourceHash)
	if err != nil {
		v.logger.Warn("vector backend unavailable, assuming zero chunks",
			logging.String(logging.FieldSourceHash, sourceHash),
			logging.Error(err))
		return 0
	}
	return count
}

// CanBypass runs the full decision sequence: ledger record, live chunk count,
// artifact directory presence. Every deny path names its cause.
func (v *Validator) CanBypass(ctx context.Context, sourceHash string) Decision {
	record, err := v.CheckSourceProcessed(ctx, sourceHash)
	if err != nil {
		v.logger.Warn("ledger lookup failed, denying bypass",
			logging.String(logging.FieldSourceHash, sourceHash),
			logging.Error(err))
		return Decision{Reason: "processing ledger unavailable"}
	}
	if record == nil {
		return Decision{Reason: "first time processing this source"}
	}

	live := v.VectorChunkCount(ctx, sourceHash)
	decision := Decision{
		Record:             record,
		VectorChunkCount:   live,
		ExpectedChunkCount: record.ChunkCount,
	}
	if live != record.ChunkCount {
		decision.CountMismatch = true
		decision.Reason = fmt.Sprintf("chunk count mismatch: ledger records %d, vector store has %d", record.ChunkCount, live)
		return decision
	}

	if record.ArtifactsPath != "" {
		if _, statErr := os.Stat(record.ArtifactsPath); statErr != nil {
			decision.Reason = fmt.Sprintf("artifacts directory missing: %s", record.ArtifactsPath)
			return decision
		}
	}

	decision.CanBypass = true
	decision.Reason = fmt.Sprintf("source fully processed on %s with %d chunks",
		record.LastProcessedAt.Format("2006-01-02 15:04:05"), record.ChunkCount)
	return decision
}

// RecordSuccessfulProcessing writes or refreshes the ledger entry after a
// complete extraction run.
func (v *Validator) RecordSuccessfulProcessing(ctx context.Context, record *ledger.Record) error {
	record.Environment = v.environment
	if err := v.ledger.Upsert(ctx, record); err != nil {
		return fmt.Errorf("record processed source: %w", err)
	}
	v.logger.Info("recorded processed source",
		logging.String(logging.FieldSourceHash, record.SourceHash),
		logging.Int("chunk_count", record.ChunkCount))
	return nil
}

// RemoveChunksForSource purges stale chunks before a re-run. Returns the
// number removed, or -1 when the backend could not be reached.
func (v *Validator) RemoveChunksForSource(ctx context.Context, sourceHash string) int {
	removed, err := v.vectors.DeleteBySourceHash(ctx, sourceHash)
	if err != nil {
		v.logger.Warn("failed to purge stale chunks",
			logging.String(logging.FieldSourceHash, sourceHash),
			logging.Error(err))
		return -1
	}
	v.logger.Info("purged stale chunks",
		logging.String(logging.FieldSourceHash, sourceHash),
		logging.Int("removed", removed))
	return removed
}
