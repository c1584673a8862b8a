package vectorstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"grimoire/internal/vectorstore"
)

func mustOpenIndex(t *testing.T) *vectorstore.SQLiteIndex {
	t.Helper()
	index, err := vectorstore.OpenSQLiteIndex(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteIndex failed: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func sampleDocs(hash string, n int) []vectorstore.Document {
	docs := make([]vectorstore.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, vectorstore.Document{
			SourceHash: hash,
			ChunkIndex: i,
			Content:    "chunk text",
			Embedding:  []float64{0.1, 0.2, 0.3},
		})
	}
	return docs
}

func TestUpsertAndCount(t *testing.T) {
	index := mustOpenIndex(t)
	ctx := context.Background()

	if err := index.UpsertDocuments(ctx, sampleDocs("cafe01", 3)); err != nil {
		t.Fatalf("UpsertDocuments failed: %v", err)
	}
	count, err := index.CountDocumentsForSource(ctx, "cafe01")
	if err != nil {
		t.Fatalf("CountDocumentsForSource failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 chunks, got %d", count)
	}

	// Re-upserting the same chunk indexes must not duplicate rows.
	if err := index.UpsertDocuments(ctx, sampleDocs("cafe01", 3)); err != nil {
		t.Fatalf("second UpsertDocuments failed: %v", err)
	}
	count, err = index.CountDocumentsForSource(ctx, "cafe01")
	if err != nil {
		t.Fatalf("CountDocumentsForSource failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("upsert duplicated rows: got %d", count)
	}
}

func TestDeleteBySourceHash(t *testing.T) {
	index := mustOpenIndex(t)
	ctx := context.Background()

	if err := index.UpsertDocuments(ctx, sampleDocs("cafe02", 4)); err != nil {
		t.Fatalf("UpsertDocuments failed: %v", err)
	}
	if err := index.UpsertDocuments(ctx, sampleDocs("other", 2)); err != nil {
		t.Fatalf("UpsertDocuments failed: %v", err)
	}

	removed, err := index.DeleteBySourceHash(ctx, "cafe02")
	if err != nil {
		t.Fatalf("DeleteBySourceHash failed: %v", err)
	}
	if removed != 4 {
		t.Fatalf("expected 4 chunks removed, got %d", removed)
	}

	count, err := index.CountDocumentsForSource(ctx, "other")
	if err != nil {
		t.Fatalf("CountDocumentsForSource failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("unrelated source must be untouched, got %d", count)
	}
}

func TestCountUnknownSourceIsZero(t *testing.T) {
	index := mustOpenIndex(t)
	count, err := index.CountDocumentsForSource(context.Background(), "missing")
	if err != nil {
		t.Fatalf("CountDocumentsForSource failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 for unknown source, got %d", count)
	}
}
