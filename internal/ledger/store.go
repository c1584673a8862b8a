package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one ledger row: proof that a source was fully extracted in an
// environment, with the chunk count and artifact location of that run.
type Record struct {
	SourceHash      string
	SourcePath      string
	ChunkCount      int
	LastProcessedAt time.Time
	Environment     string
	ArtifactsPath   string
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the ledger database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS processing_records (
        source_hash TEXT NOT NULL,
        source_path TEXT,
        chunk_count INTEGER NOT NULL DEFAULT 0,
        last_processed_at TEXT NOT NULL,
        environment TEXT NOT NULL,
        artifacts_path TEXT,
        UNIQUE(source_hash, environment)
    )`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create processing_records table: %w", err)
	}
	return nil
}

// Get fetches the record for a (hash, environment) pair, or nil when absent.
func (s *Store) Get(ctx context.Context, sourceHash, environment string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT source_hash, source_path, chunk_count, last_processed_at, environment, artifacts_path
         FROM processing_records WHERE source_hash = ? AND environment = ?`,
		sourceHash,
		environment,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get processing record: %w", err)
	}
	return record, nil
}

// Upsert inserts or replaces the record for its (hash, environment) key.
// Calling it twice with the same key leaves exactly one row.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.SourceHash) == "" {
		return errors.New("record source hash is empty")
	}
	if record.LastProcessedAt.IsZero() {
		record.LastProcessedAt = time.Now().UTC()
	}

	return s.execWithRetry(
		ctx,
		`INSERT INTO processing_records (
            source_hash, source_path, chunk_count, last_processed_at, environment, artifacts_path
        ) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_hash, environment) DO UPDATE SET
            source_path = excluded.source_path,
            chunk_count = excluded.chunk_count,
            last_processed_at = excluded.last_processed_at,
            artifacts_path = excluded.artifacts_path`,
		record.SourceHash,
		nullableString(record.SourcePath),
		record.ChunkCount,
		record.LastProcessedAt.UTC().Format(time.RFC3339Nano),
		record.Environment,
		nullableString(record.ArtifactsPath),
	)
}

// List returns records, optionally filtered by environment, most recent first.
func (s *Store) List(ctx context.Context, environment string) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT source_hash, source_path, chunk_count, last_processed_at, environment, artifacts_path
        FROM processing_records`
	orderClause := ` ORDER BY last_processed_at DESC`

	if environment == "" {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE environment = ?`+orderClause, environment)
	}
	if err != nil {
		return nil, fmt.Errorf("list processing records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Delete removes the record for a (hash, environment) pair.
func (s *Store) Delete(ctx context.Context, sourceHash, environment string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM processing_records WHERE source_hash = ? AND environment = ?`,
		sourceHash,
		environment,
	)
	if err != nil {
		return false, fmt.Errorf("delete processing record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		sourceHash    string
		sourcePath    sql.NullString
		chunkCount    int
		processedRaw  string
		environment   string
		artifactsPath sql.NullString
	)
	if err := scanner.Scan(&sourceHash, &sourcePath, &chunkCount, &processedRaw, &environment, &artifactsPath); err != nil {
		return nil, err
	}

	record := &Record{
		SourceHash:    sourceHash,
		SourcePath:    sourcePath.String,
		ChunkCount:    chunkCount,
		Environment:   environment,
		ArtifactsPath: artifactsPath.String,
	}
	if processed, err := time.Parse(time.RFC3339Nano, processedRaw); err == nil {
		record.LastProcessedAt = processed
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
