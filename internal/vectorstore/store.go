package vectorstore

import (
	"context"
)

// Document is one embedded chunk of a source.
type Document struct {
	SourceHash string
	ChunkIndex int
	Content    string
	Embedding  []float64
}

// Store is the vector backend contract the pipeline depends on. Callers treat
// a failing backend as degraded, never fatal: chunk counts fall back to zero
// and deletions report -1.
type Store interface {
	CountDocumentsForSource(ctx context.Context, sourceHash string) (int, error)
	DeleteBySourceHash(ctx context.Context, sourceHash string) (int, error)
	UpsertDocuments(ctx context.Context, docs []Document) error
}
