package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"grimoire/internal/logging"
)

// RequiredFiles are the extraction outputs every artifact directory must
// contain before later passes may consume it.
var RequiredFiles = []string{
	"extracted_content.json",
	"chunks.json",
	"metadata.json",
	"manifest.json",
}

// artifactSubdirs are optional directories whose contents are preserved when
// present.
var artifactSubdirs = []string{
	"text_segments",
	"images",
	"tables",
}

const bypassMarkerFile = "extraction_bypassed.json"

// CopyResult reports the outcome of restoring artifacts from a previous run.
type CopyResult struct {
	Success         bool
	ArtifactsCopied int
	CopiedFiles     []string
	ErrorMessage    string
}

// Manager copies extraction artifacts between job directories and validates
// that a directory is complete enough to serve a bypassed run.
type Manager struct {
	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{logger: logger.With(logging.String(logging.FieldComponent, "artifacts"))}
}

// IdentifyExtractionArtifacts lists the relative paths of every preservable
// artifact in a directory: required files that exist, plus everything under
// the known subdirectories. Missing required files are logged, not fatal,
// since the caller validates completeness separately.
func (m *Manager) IdentifyExtractionArtifacts(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("artifact directory unavailable: %w", err)
	}

	var found []string
	for _, name := range RequiredFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			m.logger.Warn("expected artifact missing", logging.String("artifact", name), logging.String("dir", dir))
			continue
		}
		found = append(found, name)
	}

	for _, sub := range artifactSubdirs {
		root := filepath.Join(dir, sub)
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return relErr
			}
			found = append(found, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", sub, err)
		}
	}
	return found, nil
}

// CopyFromPreviousRun restores artifacts from a prior job's directory into the
// current one, preserving the relative layout. Individual file failures are
// collected rather than aborting the copy; the result succeeds if anything
// was restored.
func (m *Manager) CopyFromPreviousRun(sourceDir, destDir string) CopyResult {
	names, err := m.IdentifyExtractionArtifacts(sourceDir)
	if err != nil {
		return CopyResult{ErrorMessage: err.Error()}
	}
	if len(names) == 0 {
		return CopyResult{ErrorMessage: fmt.Sprintf("no artifacts found in %s", sourceDir)}
	}

	var copied []string
	var failures []string
	for _, rel := range names {
		src := filepath.Join(sourceDir, rel)
		dst := filepath.Join(destDir, rel)
		if err := copyFile(src, dst); err != nil {
			m.logger.Warn("artifact copy failed", logging.String("artifact", rel), logging.Error(err))
			failures = append(failures, rel)
			continue
		}
		copied = append(copied, rel)
	}

	result := CopyResult{
		Success:         len(copied) > 0,
		ArtifactsCopied: len(copied),
		CopiedFiles:     copied,
	}
	if len(failures) > 0 {
		result.ErrorMessage = fmt.Sprintf("failed to copy %d artifacts: %v", len(failures), failures)
	}
	m.logger.Info("restored artifacts from previous run",
		logging.Int("copied", len(copied)),
		logging.Int("failed", len(failures)),
		logging.String("dest", destDir))
	return result
}

// ValidateRequiredArtifacts reports, per required file, whether it exists in
// the directory.
func (m *Manager) ValidateRequiredArtifacts(dir string) map[string]bool {
	present := make(map[string]bool, len(RequiredFiles))
	for _, name := range RequiredFiles {
		_, err := os.Stat(filepath.Join(dir, name))
		present[name] = err == nil
	}
	return present
}

// WriteBypassMarker drops a marker file in the job's artifact directory
// recording that extraction was skipped and why.
func (m *Manager) WriteBypassMarker(dir, sourceHash, reason string) error {
	marker := map[string]any{
		"source_hash": sourceHash,
		"reason":      reason,
		"bypassed_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bypass marker: %w", err)
	}
	path := filepath.Join(dir, bypassMarkerFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write bypass marker: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	info, err := os.Stat(src)
	if err == nil {
		_ = os.Chmod(dst, info.Mode())
	}
	return nil
}
