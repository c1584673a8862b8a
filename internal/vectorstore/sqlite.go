package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is the in-repo reference implementation of Store: one row per
// chunk, embeddings serialized as JSON.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLiteIndex initializes or connects to the chunk index database.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
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

	index := &SQLiteIndex{db: db, path: path}
	if err := index.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteIndex) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS chunks (
        source_hash TEXT NOT NULL,
        chunk_index INTEGER NOT NULL,
        content TEXT,
        embedding TEXT,
        UNIQUE(source_hash, chunk_index)
    )`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	return nil
}

// CountDocumentsForSource returns the number of chunks stored for a source.
func (s *SQLiteIndex) CountDocumentsForSource(ctx context.Context, sourceHash string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks WHERE source_hash = ?`, sourceHash)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// DeleteBySourceHash removes every chunk for a source and returns how many.
func (s *SQLiteIndex) DeleteBySourceHash(ctx context.Context, sourceHash string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_hash = ?`, sourceHash)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// UpsertDocuments inserts or replaces chunks keyed by (source_hash, chunk_index).
func (s *SQLiteIndex) UpsertDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO chunks (source_hash, chunk_index, content, embedding)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(source_hash, chunk_index) DO UPDATE SET
            content = excluded.content,
            embedding = excluded.embedding`,
	)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if doc.SourceHash == "" {
			return errors.New("document source hash is empty")
		}
		embedding, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, doc.SourceHash, doc.ChunkIndex, doc.Content, string(embedding)); err != nil {
			return fmt.Errorf("upsert chunk %d: %w", doc.ChunkIndex, err)
		}
	}
	return tx.Commit()
}
