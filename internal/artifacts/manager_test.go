package artifacts_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"grimoire/internal/artifacts"
)

func writeArtifact(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCopyFromPreviousRunPreservesLayout(t *testing.T) {
	manager := artifacts.NewManager(nil)
	source := t.TempDir()
	dest := t.TempDir()

	writeArtifact(t, source, "extracted_content.json", `{"pages": 12}`)
	writeArtifact(t, source, "chunks.json", `[]`)
	writeArtifact(t, source, "metadata.json", `{}`)
	writeArtifact(t, source, "manifest.json", `{}`)
	writeArtifact(t, source, filepath.Join("images", "map-01.png"), "png-bytes")

	result := manager.CopyFromPreviousRun(source, dest)
	if !result.Success {
		t.Fatalf("copy failed: %s", result.ErrorMessage)
	}
	if result.ArtifactsCopied != 5 {
		t.Fatalf("expected 5 artifacts copied, got %d: %v", result.ArtifactsCopied, result.CopiedFiles)
	}

	want := []string{
		"chunks.json",
		"extracted_content.json",
		filepath.Join("images", "map-01.png"),
		"manifest.json",
		"metadata.json",
	}
	got := append([]string(nil), result.CopiedFiles...)
	sort.Strings(got)
	for i, rel := range want {
		if got[i] != rel {
			t.Fatalf("copied files mismatch at %d: got %v want %v", i, got, want)
		}
	}

	data, err := os.ReadFile(filepath.Join(dest, "extracted_content.json"))
	if err != nil {
		t.Fatalf("restored file unreadable: %v", err)
	}
	if string(data) != `{"pages": 12}` {
		t.Fatalf("restored content mismatch: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dest, "images", "map-01.png")); err != nil {
		t.Fatalf("nested artifact not restored: %v", err)
	}
}

func TestCopyFromAbsentSourceFails(t *testing.T) {
	manager := artifacts.NewManager(nil)

	result := manager.CopyFromPreviousRun(filepath.Join(t.TempDir(), "gone"), t.TempDir())
	if result.Success {
		t.Fatal("copy from a missing directory must fail")
	}
	if result.ErrorMessage == "" {
		t.Fatal("failure must carry an error message")
	}
}

func TestValidateRequiredArtifacts(t *testing.T) {
	manager := artifacts.NewManager(nil)
	dir := t.TempDir()

	writeArtifact(t, dir, "chunks.json", `[]`)
	writeArtifact(t, dir, "manifest.json", `{}`)

	present := manager.ValidateRequiredArtifacts(dir)
	if !present["chunks.json"] || !present["manifest.json"] {
		t.Fatalf("existing artifacts reported missing: %v", present)
	}
	if present["extracted_content.json"] || present["metadata.json"] {
		t.Fatalf("missing artifacts reported present: %v", present)
	}
}

func TestWriteBypassMarker(t *testing.T) {
	manager := artifacts.NewManager(nil)
	dir := t.TempDir()

	if err := manager.WriteBypassMarker(dir, "cafe20", "source fully processed"); err != nil {
		t.Fatalf("WriteBypassMarker failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "extraction_bypassed.json"))
	if err != nil {
		t.Fatalf("marker unreadable: %v", err)
	}
	var marker map[string]any
	if err := json.Unmarshal(data, &marker); err != nil {
		t.Fatalf("marker is not valid JSON: %v", err)
	}
	if marker["source_hash"] != "cafe20" || marker["reason"] != "source fully processed" {
		t.Fatalf("unexpected marker contents: %v", marker)
	}
	if marker["bypassed_at"] == "" {
		t.Fatal("marker must carry a timestamp")
	}
}
