// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"grimoire/internal/config"
)

// NewConfig returns a validated config whose directories live under the
// test's temp root.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(root, "artifacts")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Pipeline.Environment = "test"

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return &cfg
}
