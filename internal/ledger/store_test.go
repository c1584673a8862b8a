package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"grimoire/internal/ledger"
)

func mustOpen(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGetReturnsNilWhenAbsent(t *testing.T) {
	store := mustOpen(t)

	record, err := store.Get(context.Background(), "deadbeef", "test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil for unknown source, got %+v", record)
	}
}

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	first := &ledger.Record{
		SourceHash:  "cafe01",
		SourcePath:  "/srv/sources/bestiary.pdf",
		ChunkCount:  150,
		Environment: "test",
	}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := &ledger.Record{
		SourceHash:    "cafe01",
		SourcePath:    "/srv/sources/bestiary-v2.pdf",
		ChunkCount:    175,
		Environment:   "test",
		ArtifactsPath: "/srv/artifacts/job-2",
	}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	records, err := store.List(ctx, "test")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one row per (hash, environment), got %d", len(records))
	}
	if records[0].ChunkCount != 175 || records[0].ArtifactsPath != "/srv/artifacts/job-2" {
		t.Fatalf("second upsert did not replace fields: %+v", records[0])
	}
}

func TestSameHashDifferentEnvironmentsAreSeparateRows(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	for _, env := range []string{"staging", "production"} {
		record := &ledger.Record{SourceHash: "cafe02", ChunkCount: 10, Environment: env}
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", env, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected one row per environment, got %d", len(all))
	}

	staging, err := store.Get(ctx, "cafe02", "staging")
	if err != nil || staging == nil {
		t.Fatalf("staging row missing: %v %+v", err, staging)
	}
}

func TestUpsertStampsProcessedTime(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	record := &ledger.Record{SourceHash: "cafe03", ChunkCount: 5, Environment: "test"}
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	fetched, err := store.Get(ctx, "cafe03", "test")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.LastProcessedAt.Before(before) {
		t.Fatalf("expected processed timestamp to be stamped, got %+v", fetched)
	}
}

func TestDelete(t *testing.T) {
	store := mustOpen(t)
	ctx := context.Background()

	record := &ledger.Record{SourceHash: "cafe04", ChunkCount: 1, Environment: "test"}
	if err := store.Upsert(ctx, record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	removed, err := store.Delete(ctx, "cafe04", "test")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !removed {
		t.Fatal("expected row to be removed")
	}
	removed, err = store.Delete(ctx, "cafe04", "test")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if removed {
		t.Fatal("second delete should report nothing removed")
	}
}
