package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grimoire/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("missing file must report exists=false")
	}
	if cfg.Pipeline.Environment != "development" {
		t.Fatalf("expected default environment, got %q", cfg.Pipeline.Environment)
	}
	if cfg.Pipeline.CallbackTimeout != 5 || cfg.Pipeline.HistoryRetention != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg.Pipeline)
	}
	if !cfg.Pipeline.BypassEnabled {
		t.Fatal("bypass must default to enabled")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
artifacts_dir = "` + filepath.Join(dir, "artifacts") + `"

[pipeline]
environment = "  Production "
callback_timeout_seconds = 10
history_retention = 25

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolution wrong: exists=%v path=%s", exists, resolved)
	}
	if cfg.Pipeline.Environment != "production" {
		t.Fatalf("environment must be trimmed and lowered, got %q", cfg.Pipeline.Environment)
	}
	if cfg.Pipeline.CallbackTimeout != 10 || cfg.Pipeline.HistoryRetention != 25 {
		t.Fatalf("pipeline values not applied: %+v", cfg.Pipeline)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging values not applied: %+v", cfg.Logging)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("paths must be absolute, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.CallbackTimeout = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "callback_timeout_seconds") || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("error must name each problem: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.Paths.DataDir, cfg.Paths.ArtifactsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %s missing: %v", d, err)
		}
	}
}
